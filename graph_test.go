package workflow

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	return NewGraph(WithIDGenerator(NewSequenceGenerator(0, 0)))
}

func TestAddNodeBuildsLinearChain(t *testing.T) {
	for _, count := range []int{0, 1, 2, 5, 12} {
		g := newTestGraph(t)
		for i := 0; i < count; i++ {
			g.AddNode(Kinds[i%len(Kinds)], nil)
		}

		nodes, edges := g.Nodes(), g.Edges()
		require.Len(t, nodes, count)
		require.Len(t, edges, max(0, count-1))
		for i, e := range edges {
			assert.Equal(t, nodes[i].ID, e.Source, "edge %d source", i)
			assert.Equal(t, nodes[i+1].ID, e.Target, "edge %d target", i)
			assert.Equal(t, DefaultSourceHandle, e.SourceHandle)
			assert.Equal(t, DefaultTargetHandle, e.TargetHandle)
		}
	}
}

func TestAddNodeChainsToMostRecent(t *testing.T) {
	start := Node{ID: "1", Kind: KindStart, Position: DefaultPosition, Data: NodeData{Name: "Start"}}
	g, err := LoadGraph([]Node{start}, nil, "", WithIDGenerator(NewSequenceGenerator(1, 0)))
	require.NoError(t, err)

	end := g.AddNode(KindEnd, nil)
	assert.Equal(t, "2", end.ID)
	assert.Equal(t, KindEnd, end.Kind)
	assert.Equal(t, "End", end.Data.Name)
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, Edge{ID: "e1", Source: "1", Target: "2", SourceHandle: "source", TargetHandle: "target"}, g.Edges()[0])

	phase := g.AddNode(KindPhase, nil)
	assert.Equal(t, "3", phase.ID)
	require.Len(t, g.Edges(), 2)
	second := g.Edges()[1]
	assert.Equal(t, "2", second.Source, "chains to the last added node, not to start")
	assert.Equal(t, "3", second.Target)
}

func TestAddNodeSkipsIDsInUse(t *testing.T) {
	existing := []Node{
		{ID: "1", Kind: KindStart},
		{ID: "2", Kind: KindEnd},
	}
	g, err := LoadGraph(existing, []Edge{{ID: "e1", Source: "1", Target: "2"}}, "",
		WithIDGenerator(NewSequenceGenerator(0, 0)))
	require.NoError(t, err)

	n := g.AddNode(KindLPI, nil)
	assert.Equal(t, "3", n.ID)
	assert.Equal(t, "e2", g.Edges()[1].ID)
}

func TestAddNodeWithTemplate(t *testing.T) {
	g := newTestGraph(t)
	n := g.AddNode(KindLPI, &Template{Name: "Weather lookup", ComponentID: "42", Category: "rest"})

	assert.Equal(t, "Weather lookup", n.Data.Name)
	ref, ok := n.Ref()
	require.True(t, ok)
	assert.Equal(t, ComponentRef{ComponentID: "42", Category: "rest"}, ref)
	assert.Equal(t, DefaultPosition, n.Position)

	marker := g.AddNode(KindPhase, &Template{})
	assert.Equal(t, "New phase", marker.Data.Name)
	_, ok = marker.Ref()
	assert.False(t, ok)
}

func TestImportAndDropFollowAutoConnect(t *testing.T) {
	g := newTestGraph(t)
	g.AddNode(KindStart, nil)

	entry := CatalogEntry{ID: "7", Label: "Knowledge search", Kind: KindLPI, Category: "search"}
	imported := g.ImportFromCatalog(entry)
	assert.Equal(t, KindLPI, imported.Kind)
	assert.Equal(t, "Knowledge search", imported.Data.Name)
	assert.Equal(t, "7", imported.Data.ComponentID)
	assert.Equal(t, DefaultPosition, imported.Position)

	drop := Position{X: 12.5, Y: 640}
	dropped := g.DropAtPosition(CatalogEntry{ID: "9", Label: "Condition", Kind: KindCommon}, drop)
	assert.Equal(t, drop, dropped.Position)

	edges := g.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "1", edges[0].Source)
	assert.Equal(t, imported.ID, edges[0].Target)
	assert.Equal(t, imported.ID, edges[1].Source)
	assert.Equal(t, dropped.ID, edges[1].Target)
}

func TestConnect(t *testing.T) {
	g := newTestGraph(t)
	a := g.AddNode(KindStart, nil)
	b := g.AddNode(KindEnd, nil)

	t.Run("defaults handles", func(t *testing.T) {
		e, err := g.Connect(a.ID, "", b.ID, "")
		require.NoError(t, err)
		assert.Equal(t, DefaultSourceHandle, e.SourceHandle)
		assert.Equal(t, DefaultTargetHandle, e.TargetHandle)
	})

	t.Run("keeps explicit handles", func(t *testing.T) {
		e, err := g.Connect(b.ID, "yes", a.ID, "in")
		require.NoError(t, err)
		assert.Equal(t, "yes", e.SourceHandle)
		assert.Equal(t, "in", e.TargetHandle)
	})

	t.Run("allows duplicates", func(t *testing.T) {
		before := len(g.Edges())
		e1, err := g.Connect(a.ID, "", b.ID, "")
		require.NoError(t, err)
		e2, err := g.Connect(a.ID, "", b.ID, "")
		require.NoError(t, err)
		assert.NotEqual(t, e1.ID, e2.ID)
		assert.Len(t, g.Edges(), before+2)
	})
}

func TestConnectMissingNodeIsRejected(t *testing.T) {
	start := Node{ID: "1", Kind: KindStart}
	g, err := LoadGraph([]Node{start}, nil, "")
	require.NoError(t, err)

	nodesBefore, edgesBefore := g.Nodes(), g.Edges()

	_, err = g.Connect("1", "", "99", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConnection))
	var ice *InvalidConnectionError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, "99", ice.Missing)

	_, err = g.Connect("98", "", "1", "")
	assert.ErrorIs(t, err, ErrInvalidConnection)

	assert.Equal(t, nodesBefore, g.Nodes())
	assert.Equal(t, edgesBefore, g.Edges())
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	g := newTestGraph(t)
	a := g.AddNode(KindStart, nil)
	b := g.AddNode(KindLPI, nil)
	c := g.AddNode(KindEnd, nil)
	_, err := g.Connect(a.ID, "", c.ID, "")
	require.NoError(t, err)
	_, err = g.Connect(c.ID, "", b.ID, "")
	require.NoError(t, err)

	for _, victim := range []string{b.ID, a.ID, c.ID} {
		require.NoError(t, g.RemoveNode(victim))
		_, ok := g.Node(victim)
		assert.False(t, ok)
		for _, e := range g.Edges() {
			assert.NotEqual(t, victim, e.Source)
			assert.NotEqual(t, victim, e.Target)
		}
		assert.NoError(t, ValidateGraph(g.Nodes(), g.Edges()))
	}
	assert.Empty(t, g.Nodes())
	assert.Empty(t, g.Edges())
}

func TestRemoveNodeWithoutSelection(t *testing.T) {
	g := newTestGraph(t)
	g.AddNode(KindStart, nil)

	assert.NoError(t, g.RemoveNode(""))
	assert.Equal(t, 1, g.Len())

	err := g.RemoveNode("nope")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Equal(t, 1, g.Len())
}

func TestRemoveNodeKeepsOrder(t *testing.T) {
	g := newTestGraph(t)
	a := g.AddNode(KindStart, nil)
	b := g.AddNode(KindPhase, nil)
	c := g.AddNode(KindEnd, nil)

	require.NoError(t, g.RemoveNode(b.ID))
	nodes := g.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, a.ID, nodes[0].ID)
	assert.Equal(t, c.ID, nodes[1].ID)

	// The next add chains to the node that is now last.
	d := g.AddNode(KindLPI, nil)
	edges := g.Edges()
	assert.Equal(t, c.ID, edges[len(edges)-1].Source)
	assert.Equal(t, d.ID, edges[len(edges)-1].Target)
}

func TestRemoveEdge(t *testing.T) {
	g := newTestGraph(t)
	g.AddNode(KindStart, nil)
	g.AddNode(KindEnd, nil)
	e := g.Edges()[0]

	require.NoError(t, g.RemoveEdge(e.ID))
	assert.Empty(t, g.Edges())
	assert.Equal(t, 2, g.Len())
	assert.ErrorIs(t, g.RemoveEdge(e.ID), ErrEdgeNotFound)
}

func TestFieldUpdatesTouchOnlyTarget(t *testing.T) {
	g := newTestGraph(t)
	a := g.AddNode(KindStart, nil)
	b := g.AddNode(KindLPI, &Template{Name: "Fetch", ComponentID: "3", Category: "rest"})

	require.NoError(t, g.RenameNode(b.ID, "Fetch orders"))
	require.NoError(t, g.DescribeNode(b.ID, "calls the order API"))
	require.NoError(t, g.MoveNode(b.ID, Position{X: 1, Y: 2}))

	got, ok := g.Node(b.ID)
	require.True(t, ok)
	assert.Equal(t, "Fetch orders", got.Data.Name)
	assert.Equal(t, "calls the order API", got.Data.Description)
	assert.Equal(t, Position{X: 1, Y: 2}, got.Position)
	assert.Equal(t, "3", got.Data.ComponentID)
	assert.Equal(t, KindLPI, got.Kind)

	untouched, _ := g.Node(a.ID)
	assert.Equal(t, a, untouched)

	assert.ErrorIs(t, g.RenameNode("missing", "x"), ErrNodeNotFound)
	assert.ErrorIs(t, g.MoveNode("missing", Position{}), ErrNodeNotFound)
}

func TestModeToggleLeavesGraphUntouched(t *testing.T) {
	g := newTestGraph(t)
	g.AddNode(KindStart, nil)
	g.AddNode(KindLPI, &Template{Name: "Search"})
	g.AddNode(KindEnd, nil)
	g.SetMarkdown("# steps\n1. search")

	before, err := json.Marshal(struct {
		Nodes []Node
		Edges []Edge
	}{g.Nodes(), g.Edges()})
	require.NoError(t, err)

	assert.Equal(t, ModeFlow, g.Mode())
	require.NoError(t, g.SetMode(ModeMarkdown))
	assert.Equal(t, ModeMarkdown, g.Mode())
	require.NoError(t, g.SetMode(ModeFlow))

	after, err := json.Marshal(struct {
		Nodes []Node
		Edges []Edge
	}{g.Nodes(), g.Edges()})
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, "# steps\n1. search", g.Markdown())

	assert.ErrorIs(t, g.SetMode("graph"), ErrInvalidMode)
}

func TestMarkdownEditsDoNotTouchGraph(t *testing.T) {
	g := newTestGraph(t)
	g.AddNode(KindStart, nil)
	require.NoError(t, g.SetMode(ModeMarkdown))

	g.SetMarkdown("start -> end")
	assert.Equal(t, 1, g.Len())
	assert.Empty(t, g.Edges())
}

func TestSubscribeReceivesChangesInOrder(t *testing.T) {
	g := newTestGraph(t)
	var got []ChangeType
	unsubscribe := g.Subscribe(func(c Change) {
		got = append(got, c.Type)
		// Listeners may read the graph back.
		_ = g.Nodes()
	})

	a := g.AddNode(KindStart, nil)
	g.AddNode(KindEnd, nil)
	require.NoError(t, g.RenameNode(a.ID, "Begin"))
	require.NoError(t, g.RemoveNode(a.ID))
	require.NoError(t, g.SetMode(ModeMarkdown))
	g.SetMarkdown("x")

	assert.Equal(t, []ChangeType{
		NodeAdded,
		NodeAdded, EdgeAdded,
		NodeUpdated,
		EdgeRemoved, NodeRemoved,
		ModeChanged,
		MarkdownChanged,
	}, got)

	unsubscribe()
	g.AddNode(KindPhase, nil)
	assert.Len(t, got, 8)
}

func TestFailedMutationsEmitNothing(t *testing.T) {
	g := newTestGraph(t)
	g.AddNode(KindStart, nil)

	calls := 0
	g.Subscribe(func(Change) { calls++ })

	_, err := g.Connect("1", "", "2", "")
	require.Error(t, err)
	require.Error(t, g.RemoveNode("2"))
	require.NoError(t, g.SetMode(ModeFlow))
	assert.Zero(t, calls)
}

func TestLoadGraphRejectsDanglingEdges(t *testing.T) {
	_, err := LoadGraph([]Node{{ID: "1", Kind: KindStart}}, []Edge{{ID: "e1", Source: "1", Target: "2"}}, "")
	assert.ErrorIs(t, err, ErrDanglingEdge)
}

func TestNodeJSONShape(t *testing.T) {
	n := Node{
		ID:       "node_1",
		Kind:     KindLPI,
		Position: Position{X: 250, Y: 250},
		Data:     NodeData{Name: "Weather", ComponentID: "4", Category: "rest"},
	}
	raw, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "node_1",
		"type": "lpi",
		"position": {"x": 250, "y": 250},
		"data": {"name": "Weather", "component_id": "4", "lpiCategory": "rest"}
	}`, string(raw))
}
