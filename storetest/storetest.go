// Package storetest holds the behavior every workflow.Store must share.
// Backends call Run from their own tests with a fresh, empty store.
package storetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/meikuraledutech/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s. The store must have its schema created and be empty.
func Run(t *testing.T, s workflow.Store) {
	t.Run("WorkflowLifecycle", func(t *testing.T) { testWorkflowLifecycle(t, s) })
	t.Run("WorkflowRejectsDanglingEdges", func(t *testing.T) { testDanglingEdges(t, s) })
	t.Run("WorkflowNotFound", func(t *testing.T) { testWorkflowNotFound(t, s) })
	t.Run("WorkflowPartialUpdate", func(t *testing.T) { testPartialUpdate(t, s) })
	t.Run("ListWorkflowsByAgent", func(t *testing.T) { testListWorkflows(t, s) })
	t.Run("Components", func(t *testing.T) { testComponents(t, s) })
	t.Run("SessionRoundTrip", func(t *testing.T) { testSessionRoundTrip(t, s) })
	t.Run("DuplicateIDs", func(t *testing.T) { testDuplicateIDs(t, s) })
}

func chain() ([]workflow.Node, []workflow.Edge) {
	g := workflow.NewGraph()
	g.AddNode(workflow.KindStart, nil)
	g.AddNode(workflow.KindLPI, &workflow.Template{Name: "Weather lookup", ComponentID: "c-1", Category: "rest"})
	g.AddNode(workflow.KindEnd, nil)
	return g.Nodes(), g.Edges()
}

func testWorkflowLifecycle(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	nodes, edges := chain()

	created, err := s.CreateWorkflow(ctx, &workflow.Workflow{
		Name:    "Diagnosis workflow",
		AgentID: "agent-lifecycle",
		Nodes:   nodes,
		Edges:   edges,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.LoadWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Diagnosis workflow", got.Name)
	assert.Equal(t, nodes, got.Nodes)
	assert.Equal(t, edges, got.Edges)

	// Graph update leaves markdown alone.
	require.NoError(t, s.UpdateWorkflow(ctx, created.ID, workflow.MarkdownUpdate("1. diagnose")))
	require.NoError(t, s.UpdateWorkflow(ctx, created.ID, workflow.GraphUpdate(nodes[:1], nil)))
	got, err = s.LoadWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "1. diagnose", got.Markdown)
	assert.Len(t, got.Nodes, 1)
	assert.Empty(t, got.Edges)

	// Markdown update leaves the graph alone.
	require.NoError(t, s.UpdateWorkflow(ctx, created.ID, workflow.MarkdownUpdate("2. recover")))
	got, err = s.LoadWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2. recover", got.Markdown)
	assert.Len(t, got.Nodes, 1)

	require.NoError(t, s.DeleteWorkflow(ctx, created.ID))
	_, err = s.LoadWorkflow(ctx, created.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	assert.NoError(t, s.DeleteWorkflow(ctx, created.ID), "delete is idempotent")
}

func testDanglingEdges(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	nodes, _ := chain()
	bad := []workflow.Edge{{ID: "e-x", Source: nodes[0].ID, Target: "ghost"}}

	_, err := s.CreateWorkflow(ctx, &workflow.Workflow{Name: "bad", Nodes: nodes, Edges: bad})
	assert.ErrorIs(t, err, workflow.ErrDanglingEdge)

	created, err := s.CreateWorkflow(ctx, &workflow.Workflow{Name: "good", Nodes: nodes})
	require.NoError(t, err)
	err = s.UpdateWorkflow(ctx, created.ID, workflow.GraphUpdate(nodes, bad))
	assert.ErrorIs(t, err, workflow.ErrDanglingEdge)

	got, err := s.LoadWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Edges)
}

func testWorkflowNotFound(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	_, err := s.LoadWorkflow(ctx, "does-not-exist")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	err = s.UpdateWorkflow(ctx, "does-not-exist", workflow.MarkdownUpdate("x"))
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func testPartialUpdate(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	nodes, edges := chain()
	created, err := s.CreateWorkflow(ctx, &workflow.Workflow{
		Name:     "Partial",
		AgentID:  "agent-partial",
		Nodes:    nodes,
		Edges:    edges,
		Markdown: "1. start",
	})
	require.NoError(t, err)

	name := "Renamed"
	require.NoError(t, s.UpdateWorkflow(ctx, created.ID, workflow.Update{Name: &name}))
	got, err := s.LoadWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, nodes, got.Nodes, "name-only update keeps the graph")
	assert.Equal(t, edges, got.Edges)
	assert.Equal(t, "1. start", got.Markdown)

	// Nodes alone keep the stored edges, which must still resolve.
	moved := append([]workflow.Node{}, nodes...)
	moved[0].Position = workflow.Position{X: 10, Y: 20}
	require.NoError(t, s.UpdateWorkflow(ctx, created.ID, workflow.Update{Nodes: moved}))
	got, err = s.LoadWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, moved, got.Nodes)
	assert.Equal(t, edges, got.Edges)

	err = s.UpdateWorkflow(ctx, created.ID, workflow.Update{Nodes: nodes[:1]})
	assert.ErrorIs(t, err, workflow.ErrDanglingEdge, "dropping nodes under stored edges")

	err = s.UpdateWorkflow(ctx, created.ID, workflow.Update{})
	assert.ErrorIs(t, err, workflow.ErrEmptyUpdate)

	// An explicitly empty graph clears it.
	require.NoError(t, s.UpdateWorkflow(ctx, created.ID, workflow.GraphUpdate(nil, nil)))
	got, err = s.LoadWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Nodes)
	assert.Empty(t, got.Edges)
	assert.Equal(t, "Renamed", got.Name)
}

func testDuplicateIDs(t *testing.T, s workflow.Store) {
	ctx := context.Background()

	_, err := s.CreateWorkflow(ctx, &workflow.Workflow{ID: "wf-dup", Name: "first"})
	require.NoError(t, err)
	_, err = s.CreateWorkflow(ctx, &workflow.Workflow{ID: "wf-dup", Name: "second"})
	assert.ErrorIs(t, err, workflow.ErrDuplicateID)

	_, err = s.CreateComponent(ctx, &workflow.Component{ID: "cmp-dup", Name: "first", Kind: workflow.KindLPI})
	require.NoError(t, err)
	_, err = s.CreateComponent(ctx, &workflow.Component{ID: "cmp-dup", Name: "second", Kind: workflow.KindLPI})
	assert.ErrorIs(t, err, workflow.ErrDuplicateID)
}

func testListWorkflows(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	for _, agent := range []string{"agent-a", "agent-b", "agent-a"} {
		_, err := s.CreateWorkflow(ctx, &workflow.Workflow{Name: agent + " workflow", AgentID: agent})
		require.NoError(t, err)
	}

	list, err := s.ListWorkflows(ctx, "agent-a")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, w := range list {
		assert.Equal(t, "agent-a", w.AgentID)
		assert.NotNil(t, w.Nodes)
	}

	none, err := s.ListWorkflows(ctx, "agent-z")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, err := s.ListWorkflows(ctx, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 3)
}

func testComponents(t *testing.T, s workflow.Store) {
	ctx := context.Background()

	weather, err := s.CreateComponent(ctx, &workflow.Component{
		Name:     "Weather lookup",
		Kind:     workflow.KindLPI,
		Category: "rest",
		Content:  json.RawMessage(`{"endpoint":"/weather","method":"GET"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, weather.ID)

	_, err = s.CreateComponent(ctx, &workflow.Component{Name: "Support bot", Kind: workflow.KindAgent})
	require.NoError(t, err)
	cond, err := s.CreateComponent(ctx, &workflow.Component{Name: "Condition jump", Kind: workflow.KindCommon, Category: "control"})
	require.NoError(t, err)

	_, err = s.CreateComponent(ctx, &workflow.Component{Name: "Start", Kind: workflow.KindStart})
	assert.ErrorIs(t, err, workflow.ErrInvalidKind)

	got, err := s.GetComponent(ctx, weather.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"endpoint":"/weather","method":"GET"}`, string(got.Content))

	lpis, err := s.ListComponents(ctx, workflow.ComponentFilter{Kind: workflow.KindLPI})
	require.NoError(t, err)
	require.Len(t, lpis, 1)
	assert.Equal(t, weather.ID, lpis[0].ID)

	byCategory, err := s.ListComponents(ctx, workflow.ComponentFilter{Category: "control"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, cond.ID, byCategory[0].ID)

	hits, err := s.Search(ctx, "WEATHER")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, workflow.CatalogEntry{ID: weather.ID, Label: "Weather lookup", Kind: workflow.KindLPI, Category: "rest"}, hits[0])

	entry, err := s.GetByID(ctx, cond.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.KindCommon, entry.Kind)

	got.Name = "Weather forecast"
	require.NoError(t, s.UpdateComponent(ctx, got))
	got, err = s.GetComponent(ctx, weather.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weather forecast", got.Name)

	assert.ErrorIs(t, s.UpdateComponent(ctx, &workflow.Component{ID: "missing", Name: "x"}), workflow.ErrNotFound)

	require.NoError(t, s.DeleteComponent(ctx, weather.ID))
	_, err = s.GetComponent(ctx, weather.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	_, err = s.GetByID(ctx, weather.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func testSessionRoundTrip(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	agent := workflow.Agent{ID: "agent-session", Name: "Recovery"}

	sess := workflow.NewSession(s, agent)
	sess.Graph().AddNode(workflow.KindStart, nil)
	sess.Graph().AddNode(workflow.KindEnd, nil)
	require.NoError(t, sess.Save(ctx))
	id := sess.WorkflowID()
	require.NotEmpty(t, id)

	reopened, err := workflow.OpenSession(ctx, s, agent, id)
	require.NoError(t, err)
	assert.Equal(t, sess.Graph().Nodes(), reopened.Graph().Nodes())
	assert.Equal(t, sess.Graph().Edges(), reopened.Graph().Edges())

	reopened.Graph().AddNode(workflow.KindPhase, nil)
	require.NoError(t, reopened.Save(ctx))

	w, err := s.LoadWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Len(t, w.Nodes, 3)
	assert.Equal(t, "Recovery workflow", w.Name)
}
