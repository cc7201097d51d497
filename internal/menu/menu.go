// Package menu defines the immutable conversation menu graph. Node and
// option tables are validated when a registry is built, so the engine never
// has to probe optional fields at runtime.
package menu

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/valarieck/waconcierge/internal/session"
)

// OptionKind discriminates what choosing an option does.
type OptionKind int

const (
	// KindLeaf emits Response (possibly empty) and ends the session.
	KindLeaf OptionKind = iota
	// KindBranch emits Response (if any) and moves to the Next menu node.
	KindBranch
	// KindPrompt emits Response as an input prompt and moves the session
	// into the input-collection state in State.
	KindPrompt
)

// Option is a single selectable entry in a node's option table.
type Option struct {
	Action   string // diagnostic label, shows up in logs only
	Kind     OptionKind
	Response string
	Next     string        // target node id, KindBranch only
	State    session.State // collection state, KindPrompt only
}

// Node is one screen of the menu graph. Options are keyed by the exact
// trimmed token the user must type.
type Node struct {
	ID      string
	Title   string
	Body    string
	Options map[string]Option
}

// Registry is a validated, read-only menu graph with a designated root.
type Registry struct {
	root  string
	nodes map[string]*Node
}

// NewRegistry validates the graph and returns a registry rooted at rootID.
func NewRegistry(rootID string, nodes []*Node) (*Registry, error) {
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("menu: node with empty id")
		}
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("menu: duplicate node id %q", n.ID)
		}
		byID[n.ID] = n
	}
	if _, ok := byID[rootID]; !ok {
		return nil, fmt.Errorf("menu: root node %q not defined", rootID)
	}

	for _, n := range byID {
		for token, opt := range n.Options {
			if strings.TrimSpace(token) == "" || token != strings.TrimSpace(token) {
				return nil, fmt.Errorf("menu: node %q has invalid option token %q", n.ID, token)
			}
			switch opt.Kind {
			case KindLeaf:
				if opt.Next != "" || opt.State != "" {
					return nil, fmt.Errorf("menu: node %q option %q: leaf must not carry a target", n.ID, token)
				}
			case KindBranch:
				if opt.Next == "" {
					return nil, fmt.Errorf("menu: node %q option %q: branch without target", n.ID, token)
				}
				if _, ok := byID[opt.Next]; !ok {
					return nil, fmt.Errorf("menu: node %q option %q: unknown target %q", n.ID, token, opt.Next)
				}
			case KindPrompt:
				if opt.State == "" {
					return nil, fmt.Errorf("menu: node %q option %q: prompt without state", n.ID, token)
				}
				if opt.Response == "" {
					return nil, fmt.Errorf("menu: node %q option %q: prompt without prompt text", n.ID, token)
				}
			default:
				return nil, fmt.Errorf("menu: node %q option %q: unknown kind %d", n.ID, token, opt.Kind)
			}
		}
	}

	return &Registry{root: rootID, nodes: byID}, nil
}

// RootID returns the id of the root node.
func (r *Registry) RootID() string {
	return r.root
}

// Node returns the node for id, or nil when unknown.
func (r *Registry) Node(id string) *Node {
	return r.nodes[id]
}

// Render formats a node for display. Nodes defined without a fixed title get
// a randomized one plus a personalized greeting when userID is known.
func (r *Registry) Render(n *Node, userID string) string {
	var b strings.Builder
	if n.Title != "" {
		b.WriteString(n.Title)
		b.WriteString("\n\n")
	} else {
		b.WriteString(RandomTitle())
		b.WriteString("\n\n")
		if userID != "" {
			b.WriteString(randomGreeting(userID))
		}
	}
	b.WriteString(n.Body)
	return b.String()
}

var lookupTitles = []string{
	"👤 *Búsqueda de Personas*",
	"🔎 *Consulta de Datos Personales*",
	"👥 *Consulta de Ciudadanos*",
	"🧾 *Verificación de Identidad*",
	"📋 *Revisión de Datos Registrales*",
	"📘 *Consulta de Información Civil*",
	"📇 *Consulta del Registro de Personas*",
	"🗂️ *Datos del Ciudadano*",
	"🔍 *Identificación y Verificación*",
	"🪪 *Consulta del Documento de Identidad*",
}

// RandomTitle picks one of the rotating lookup-menu headlines.
func RandomTitle() string {
	return lookupTitles[rand.Intn(len(lookupTitles))]
}

var greetings = []string{
	"Bienvenido *%s* al sistema de búsqueda.\n\n",
	"Bienvenido al sistema de búsqueda usuario *%s*.\n\n",
	"Hola *%s*, bienvenido al sistema de búsqueda.\n\n",
	"¡Saludos *%s*! Bienvenido al sistema de búsqueda.\n\n",
	"Sistema de búsqueda activado para *%s*.\n\n",
}

func randomGreeting(userID string) string {
	return fmt.Sprintf(greetings[rand.Intn(len(greetings))], userID)
}
