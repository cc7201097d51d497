package menu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valarieck/waconcierge/internal/session"
)

func TestNewRegistry_Valid(t *testing.T) {
	reg, err := NewRegistry("A", []*Node{
		{ID: "A", Title: "t", Body: "b", Options: map[string]Option{
			"1": {Kind: KindBranch, Next: "B"},
			"2": {Kind: KindLeaf, Response: "done"},
			"3": {Kind: KindLeaf}, // silent leaf is allowed
		}},
		{ID: "B", Title: "t2", Body: "b2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A", reg.RootID())
	assert.NotNil(t, reg.Node("B"))
	assert.Nil(t, reg.Node("C"))
}

func TestNewRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		root  string
		nodes []*Node
	}{
		{
			name:  "missing root",
			root:  "X",
			nodes: []*Node{{ID: "A"}},
		},
		{
			name:  "duplicate node id",
			root:  "A",
			nodes: []*Node{{ID: "A"}, {ID: "A"}},
		},
		{
			name: "branch to unknown node",
			root: "A",
			nodes: []*Node{{ID: "A", Options: map[string]Option{
				"1": {Kind: KindBranch, Next: "GONE"},
			}}},
		},
		{
			name: "branch without target",
			root: "A",
			nodes: []*Node{{ID: "A", Options: map[string]Option{
				"1": {Kind: KindBranch},
			}}},
		},
		{
			name: "leaf carrying a target",
			root: "A",
			nodes: []*Node{{ID: "A", Options: map[string]Option{
				"1": {Kind: KindLeaf, Next: "A"},
			}}},
		},
		{
			name: "prompt without state",
			root: "A",
			nodes: []*Node{{ID: "A", Options: map[string]Option{
				"1": {Kind: KindPrompt, Response: "type it"},
			}}},
		},
		{
			name: "prompt without text",
			root: "A",
			nodes: []*Node{{ID: "A", Options: map[string]Option{
				"1": {Kind: KindPrompt, State: session.StateAwaitingID},
			}}},
		},
		{
			name: "untrimmed token",
			root: "A",
			nodes: []*Node{{ID: "A", Options: map[string]Option{
				" 1": {Kind: KindLeaf},
			}}},
		},
		{
			name:  "empty node id",
			root:  "A",
			nodes: []*Node{{ID: "A"}, {ID: ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.root, tt.nodes)
			assert.Error(t, err)
		})
	}
}

func TestRender_FixedTitle(t *testing.T) {
	reg, err := NewRegistry("A", []*Node{{ID: "A", Title: "🤖 *Menú*", Body: "cuerpo"}})
	require.NoError(t, err)

	out := reg.Render(reg.Node("A"), "593999000111")
	assert.Equal(t, "🤖 *Menú*\n\ncuerpo", out)
}

func TestRender_RandomTitleAndGreeting(t *testing.T) {
	reg := LookupMenu()
	node := reg.Node(reg.RootID())

	out := reg.Render(node, "593999000111")
	assert.Contains(t, out, "*593999000111*", "greeting should name the user")
	assert.Contains(t, out, node.Body)

	// Title comes from the rotating set.
	header := strings.SplitN(out, "\n", 2)[0]
	assert.Contains(t, strings.Join(lookupTitles, "|"), header)
}

func TestRender_RandomTitleWithoutUser(t *testing.T) {
	reg := LookupMenu()
	out := reg.Render(reg.Node(reg.RootID()), "")
	assert.NotContains(t, out, "Bienvenido *")
	assert.Contains(t, out, "¿Cómo deseas buscar?")
}

func TestFixedTree_Shape(t *testing.T) {
	reg := FixedTree()
	require.Equal(t, "MAIN", reg.RootID())

	main := reg.Node("MAIN")
	require.NotNil(t, main)
	assert.Len(t, main.Options, 3)
	assert.Equal(t, KindBranch, main.Options["1"].Kind)

	soporte := reg.Node("SOPORTE")
	require.NotNil(t, soporte)
	back := soporte.Options["0"]
	assert.Equal(t, KindBranch, back.Kind)
	assert.Equal(t, "MAIN", back.Next)
	assert.Equal(t, KindLeaf, soporte.Options["1"].Kind)
}

func TestLookupMenu_Shape(t *testing.T) {
	reg := LookupMenu()
	root := reg.Node(reg.RootID())
	require.NotNil(t, root)

	assert.Equal(t, session.StateAwaitingName, root.Options["1"].State)
	assert.Equal(t, session.StateAwaitingID, root.Options["2"].State)
	assert.Equal(t, session.StateAwaitingPlate, root.Options["3"].State)
	for _, token := range []string{"1", "2", "3"} {
		assert.Equal(t, KindPrompt, root.Options[token].Kind)
		assert.NotEmpty(t, root.Options[token].Response)
	}
}
