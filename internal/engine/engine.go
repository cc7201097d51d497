// Package engine is the finite-state dispatcher for conversation turns: given
// a user identity and raw text it consults the session store, validates
// input, calls the lookup or AI gateway, and returns the outbound reply.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valarieck/waconcierge/internal/lookup"
	"github.com/valarieck/waconcierge/internal/menu"
	"github.com/valarieck/waconcierge/internal/observability/metrics"
	"github.com/valarieck/waconcierge/internal/session"
	"github.com/valarieck/waconcierge/internal/validate"
	"github.com/valarieck/waconcierge/pkg/logging"
)

var engineTracer = otel.Tracer("waconcierge.internal.engine")

// User-facing turn messages.
const (
	MsgSessionExpired = "⏱️ Tu sesión ha expirado por inactividad.\n\n_Escribe \"menu\" para iniciar una nueva búsqueda._"
	MsgFarewell       = "👋 Has salido del sistema de búsqueda.\n\n_Escribe \"menu\" cuando quieras volver._"
	MsgInvalidOption  = "❌ Opción no válida. Por favor, selecciona una opción del menú."

	MsgInvalidName  = "❌ El nombre debe tener al menos 3 caracteres.\n\n📝 Por favor, escribe el nombre completo o parcial de la persona:"
	MsgInvalidID    = "❌ Cédula inválida. Debe contener exactamente 10 dígitos.\n\n📝 Por favor, escribe el número de cédula:\n\n_Ejemplo: 1234567890_"
	MsgInvalidPlate = "❌ Placa inválida. Debe tener el formato ABC123 o ABC1234.\n\n📝 Por favor, escribe el número de placa:\n\n_Ejemplo: AAA3175_"
)

const lookupFailureFormat = "❌ Error al realizar la búsqueda: %s\n\n_Escribe \"menu\" para intentar nuevamente._"

// Outbound is one reply to hand to the messaging channel. An empty Text means
// the turn ends silently.
type Outbound struct {
	Text     string `json:"text"`
	MediaURL string `json:"media_url,omitempty"`
}

// MenuInfo describes the menu node a user is currently on.
type MenuInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Searcher is the lookup gateway surface the engine needs.
type Searcher interface {
	Search(ctx context.Context, kind lookup.Kind, query string) lookup.Result
}

// Asker is the AI gateway surface the engine needs. Ask always returns a
// displayable string.
type Asker interface {
	Ask(ctx context.Context, text, userID string) string
}

// Config selects a menu family and its behavior knobs.
type Config struct {
	Registry *menu.Registry
	Family   string
	// Timeout is the idle expiry applied to sessions this engine starts.
	Timeout time.Duration
	// SearchKinds maps each input-collection state to the lookup kind it
	// feeds. States absent from the map are disabled for this deployment.
	SearchKinds map[session.State]lookup.Kind
	// ExitTokens end an active session with a farewell. Idle users typing
	// one simply fall through to the normal dispatch.
	ExitTokens []string
	// AIAutoReply forwards free text from idle users to the AI gateway
	// instead of opening the root menu.
	AIAutoReply bool
}

// Engine drives one conversation turn at a time per user.
type Engine struct {
	store    session.Store
	searcher Searcher
	asker    Asker
	cfg      Config
	exit     map[string]struct{}
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// New builds an engine. searcher and asker may be nil when the deployment
// does not use that gateway; metrics may be nil.
func New(store session.Store, searcher Searcher, asker Asker, cfg Config, m *metrics.ConversationMetrics, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	exit := make(map[string]struct{}, len(cfg.ExitTokens))
	for _, token := range cfg.ExitTokens {
		exit[strings.ToLower(strings.TrimSpace(token))] = struct{}{}
	}
	return &Engine{
		store:    store,
		searcher: searcher,
		asker:    asker,
		cfg:      cfg,
		exit:     exit,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes one inbound message and returns the reply.
func (e *Engine) Handle(ctx context.Context, userID, rawText string) (*Outbound, error) {
	ctx, span := engineTracer.Start(ctx, "engine.handle")
	defer span.End()
	span.SetAttributes(attribute.String("waconcierge.menu.family", e.cfg.Family))

	start := e.now()
	out, outcome, err := e.turn(ctx, userID, strings.TrimSpace(rawText))
	if err != nil {
		span.RecordError(err)
	}
	e.metrics.ObserveTurn(outcome, e.now().Sub(start).Seconds())
	return out, err
}

func (e *Engine) turn(ctx context.Context, userID, text string) (*Outbound, string, error) {
	s, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, "store_error", fmt.Errorf("engine: load session: %w", err)
	}
	lowered := strings.ToLower(text)

	// The reset keyword wins over everything, abandoning any partial input.
	if lowered == "menu" || lowered == "menú" {
		return e.openRootMenu(ctx, s, "menu_reset")
	}

	if _, isExit := e.exit[lowered]; isExit && s.State != session.StateIdle {
		if err := e.store.Clear(ctx, userID); err != nil {
			return nil, "store_error", fmt.Errorf("engine: clear session: %w", err)
		}
		return &Outbound{Text: MsgFarewell}, "exit", nil
	}

	// Expiry is checked before the input is consumed as a selection; the
	// background sweep is advisory, this check is authoritative.
	if s.Expired(e.now()) {
		if err := e.store.Clear(ctx, userID); err != nil {
			return nil, "store_error", fmt.Errorf("engine: clear session: %w", err)
		}
		e.metrics.ObserveSessionExpirations(1)
		e.logger.Info("session expired on read", "user", userID, "state", s.State)
		return &Outbound{Text: MsgSessionExpired}, "expired", nil
	}

	s.LastInteraction = e.now()

	switch s.State {
	case session.StateIdle:
		if e.cfg.AIAutoReply && e.asker != nil {
			answer := e.asker.Ask(ctx, text, userID)
			e.metrics.ObserveGatewayCall("ai", "answered")
			return &Outbound{Text: answer}, "ai_reply", nil
		}
		// The first message is not consumed as a selection.
		return e.openRootMenu(ctx, s, "menu_opened")

	case session.StateMenuSelect:
		return e.menuSelect(ctx, s, text)

	case session.StateAwaitingName, session.StateAwaitingID, session.StateAwaitingPlate:
		return e.collectInput(ctx, s, text)

	default:
		// Unknown or stale state: restart rather than fail the turn.
		e.logger.Warn("session in unknown state, restarting", "user", userID, "state", s.State)
		return e.openRootMenu(ctx, s, "restarted")
	}
}

// openRootMenu resets the session onto the root menu node and renders it.
func (e *Engine) openRootMenu(ctx context.Context, s *session.Session, outcome string) (*Outbound, string, error) {
	root := e.cfg.Registry.Node(e.cfg.Registry.RootID())
	s.State = session.StateMenuSelect
	s.MenuID = root.ID
	s.LastInteraction = e.now()
	s.Timeout = e.cfg.Timeout
	s.Scratch = nil
	if err := e.store.Put(ctx, s); err != nil {
		return nil, "store_error", fmt.Errorf("engine: save session: %w", err)
	}
	return &Outbound{Text: e.cfg.Registry.Render(root, s.UserID)}, outcome, nil
}

func (e *Engine) menuSelect(ctx context.Context, s *session.Session, token string) (*Outbound, string, error) {
	node := e.cfg.Registry.Node(s.MenuID)
	if node == nil {
		// Menu graph changed under a live session.
		e.logger.Warn("session points at unknown menu node", "user", s.UserID, "menu", s.MenuID)
		return e.openRootMenu(ctx, s, "restarted")
	}

	opt, ok := node.Options[token]
	if !ok {
		if err := e.store.Put(ctx, s); err != nil {
			return nil, "store_error", fmt.Errorf("engine: save session: %w", err)
		}
		return &Outbound{Text: MsgInvalidOption + "\n\n" + e.cfg.Registry.Render(node, "")}, "invalid_option", nil
	}

	e.logger.Info("menu option selected", "user", s.UserID, "menu", node.ID, "action", opt.Action)

	switch opt.Kind {
	case menu.KindBranch:
		next := e.cfg.Registry.Node(opt.Next)
		s.MenuID = next.ID
		if err := e.store.Put(ctx, s); err != nil {
			return nil, "store_error", fmt.Errorf("engine: save session: %w", err)
		}
		text := e.cfg.Registry.Render(next, "")
		if opt.Response != "" {
			text = opt.Response + "\n\n" + text
		}
		return &Outbound{Text: text}, "menu_branch", nil

	case menu.KindPrompt:
		s.State = opt.State
		if err := e.store.Put(ctx, s); err != nil {
			return nil, "store_error", fmt.Errorf("engine: save session: %w", err)
		}
		return &Outbound{Text: opt.Response}, "prompt", nil

	default: // menu.KindLeaf, possibly with empty response (silent end)
		if err := e.store.Clear(ctx, s.UserID); err != nil {
			return nil, "store_error", fmt.Errorf("engine: clear session: %w", err)
		}
		return &Outbound{Text: opt.Response}, "menu_leaf", nil
	}
}

// collectInput validates the awaited input and, when valid, runs the lookup.
// The lookup flow is single-shot: the session is cleared after the result
// regardless of outcome, and a new search requires reopening the menu.
func (e *Engine) collectInput(ctx context.Context, s *session.Session, text string) (*Outbound, string, error) {
	kind, enabled := e.cfg.SearchKinds[s.State]
	if !enabled || e.searcher == nil {
		e.logger.Warn("search kind not enabled", "user", s.UserID, "state", s.State)
		return e.openRootMenu(ctx, s, "restarted")
	}

	if reprompt, ok := validateInput(s.State, text); !ok {
		if err := e.store.Put(ctx, s); err != nil {
			return nil, "store_error", fmt.Errorf("engine: save session: %w", err)
		}
		return &Outbound{Text: reprompt}, "invalid_input", nil
	}

	s.State = session.StateShowingResults
	if err := e.store.Put(ctx, s); err != nil {
		return nil, "store_error", fmt.Errorf("engine: save session: %w", err)
	}

	result := e.searcher.Search(ctx, kind, text)

	if err := e.store.Clear(ctx, s.UserID); err != nil {
		return nil, "store_error", fmt.Errorf("engine: clear session: %w", err)
	}

	if !result.OK {
		e.metrics.ObserveGatewayCall("lookup", "failure")
		e.logger.Error("lookup failed", "user", s.UserID, "kind", kind, "reason", result.Reason)
		return &Outbound{Text: fmt.Sprintf(lookupFailureFormat, result.Reason)}, "lookup_failure", nil
	}

	e.metrics.ObserveGatewayCall("lookup", "success")
	formatted := lookup.Format(kind, result.Data)
	return &Outbound{Text: formatted.Text, MediaURL: formatted.PhotoURL}, "lookup_success", nil
}

func validateInput(state session.State, text string) (reprompt string, ok bool) {
	switch state {
	case session.StateAwaitingName:
		return MsgInvalidName, validate.SearchName(text)
	case session.StateAwaitingID:
		return MsgInvalidID, validate.NationalID(text)
	case session.StateAwaitingPlate:
		return MsgInvalidPlate, validate.Plate(text)
	default:
		return MsgInvalidOption, false
	}
}

// StartMenu places the user on the given menu node (the root when menuID is
// empty) and returns its rendered text.
func (e *Engine) StartMenu(ctx context.Context, userID, menuID string) (string, error) {
	if menuID == "" {
		menuID = e.cfg.Registry.RootID()
	}
	node := e.cfg.Registry.Node(menuID)
	if node == nil {
		return "", fmt.Errorf("engine: unknown menu %q", menuID)
	}

	s, err := e.store.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("engine: load session: %w", err)
	}
	s.State = session.StateMenuSelect
	s.MenuID = node.ID
	s.LastInteraction = e.now()
	s.Timeout = e.cfg.Timeout
	s.Scratch = nil
	if err := e.store.Put(ctx, s); err != nil {
		return "", fmt.Errorf("engine: save session: %w", err)
	}
	return e.cfg.Registry.Render(node, userID), nil
}

// IsActive reports whether the user has a live session.
func (e *Engine) IsActive(ctx context.Context, userID string) (bool, error) {
	return e.store.IsActive(ctx, userID)
}

// CurrentMenuInfo returns the menu node the user is on, or nil when the user
// is not in a menu-selection state.
func (e *Engine) CurrentMenuInfo(ctx context.Context, userID string) (*MenuInfo, error) {
	s, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("engine: load session: %w", err)
	}
	if s.State != session.StateMenuSelect || s.Expired(e.now()) {
		return nil, nil
	}
	node := e.cfg.Registry.Node(s.MenuID)
	if node == nil {
		return nil, nil
	}
	title := node.Title
	if title == "" {
		title = menu.RandomTitle()
	}
	return &MenuInfo{ID: node.ID, Title: title}, nil
}

// ClearSession drops the user's session unconditionally.
func (e *Engine) ClearSession(ctx context.Context, userID string) error {
	return e.store.Clear(ctx, userID)
}
