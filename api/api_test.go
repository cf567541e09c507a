package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	s, err := badger.Open("", badger.InMemory())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, app *fiber.App, method, target string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func chain() ([]workflow.Node, []workflow.Edge) {
	g := workflow.NewGraph()
	g.AddNode(workflow.KindStart, nil)
	g.AddNode(workflow.KindPhase, nil)
	g.AddNode(workflow.KindEnd, nil)
	return g.Nodes(), g.Edges()
}

func createWorkflow(t *testing.T, app *fiber.App, agentID string) workflow.Workflow {
	t.Helper()
	nodes, edges := chain()
	status, body := do(t, app, http.MethodPost, "/api/workflows", fiber.Map{
		"name":     "Support workflow",
		"agent_id": agentID,
		"nodes":    nodes,
		"edges":    edges,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var w workflow.Workflow
	require.NoError(t, json.Unmarshal(body, &w))
	return w
}

func TestWorkflowCreateAndGet(t *testing.T) {
	app := newTestApp(t)
	created := createWorkflow(t, app, "agent-1")
	require.NotEmpty(t, created.ID)
	assert.Len(t, created.Nodes, 3)
	assert.Len(t, created.Edges, 2)

	status, body := do(t, app, http.MethodGet, "/api/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var got workflow.Workflow
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, created.Nodes, got.Nodes)
	assert.Equal(t, "agent-1", got.AgentID)
}

func TestWorkflowCreateValidation(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing name", fiber.Map{"agent_id": "a"}, http.StatusBadRequest},
		{"missing agent", fiber.Map{"name": "w"}, http.StatusBadRequest},
		{"dangling edge", fiber.Map{
			"name":     "w",
			"agent_id": "a",
			"nodes":    []workflow.Node{{ID: "1", Kind: workflow.KindStart}},
			"edges":    []workflow.Edge{{ID: "e1", Source: "1", Target: "9"}},
		}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodPost, "/api/workflows", tt.body)
			assert.Equal(t, tt.status, status, string(body))
			assert.Contains(t, string(body), `"error"`)
		})
	}
}

func TestWorkflowNotFound(t *testing.T) {
	app := newTestApp(t)
	status, _ := do(t, app, http.MethodGet, "/api/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodPut, "/api/workflows/missing", workflow.MarkdownUpdate("x"))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWorkflowUpdateModes(t *testing.T) {
	app := newTestApp(t)
	created := createWorkflow(t, app, "agent-1")

	status, body := do(t, app, http.MethodPut, "/api/workflows/"+created.ID, workflow.MarkdownUpdate("1. greet"))
	require.Equal(t, http.StatusOK, status, string(body))
	var got workflow.Workflow
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "1. greet", got.Markdown)
	assert.Len(t, got.Nodes, 3, "markdown update keeps the graph")

	status, body = do(t, app, http.MethodPut, "/api/workflows/"+created.ID,
		workflow.GraphUpdate(created.Nodes[:1], nil))
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got.Nodes, 1)
	assert.Empty(t, got.Edges)
	assert.Equal(t, "1. greet", got.Markdown, "graph update keeps the markdown")
}

func TestWorkflowListByAgent(t *testing.T) {
	app := newTestApp(t)
	createWorkflow(t, app, "agent-a")
	createWorkflow(t, app, "agent-a")
	createWorkflow(t, app, "agent-b")

	status, body := do(t, app, http.MethodGet, "/api/workflows?agent_id=agent-a", nil)
	require.Equal(t, http.StatusOK, status)
	var list []workflow.Workflow
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 2)

	status, body = do(t, app, http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 3)
}

func TestWorkflowDelete(t *testing.T) {
	app := newTestApp(t)
	created := createWorkflow(t, app, "agent-1")

	status, _ := do(t, app, http.MethodDelete, "/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodGet, "/api/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestComponents(t *testing.T) {
	app := newTestApp(t)

	for _, c := range []fiber.Map{
		{"name": "Weather lookup", "component_type": "lpi", "category": "rest"},
		{"name": "Customer service bot", "component_type": "agent"},
		{"name": "Condition jump", "component_type": "common"},
	} {
		status, body := do(t, app, http.MethodPost, "/api/components", c)
		require.Equal(t, http.StatusCreated, status, string(body))
	}

	t.Run("rejects workflow-only kinds", func(t *testing.T) {
		status, _ := do(t, app, http.MethodPost, "/api/components",
			fiber.Map{"name": "Start", "component_type": "start"})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("filter", func(t *testing.T) {
		status, body := do(t, app, http.MethodGet, "/api/components?type=lpi", nil)
		require.Equal(t, http.StatusOK, status)
		var list []workflow.Component
		require.NoError(t, json.Unmarshal(body, &list))
		require.Len(t, list, 1)
		assert.Equal(t, "Weather lookup", list[0].Name)

		status, _ = do(t, app, http.MethodGet, "/api/components?type=start", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("tree", func(t *testing.T) {
		status, body := do(t, app, http.MethodGet, "/api/components/tree", nil)
		require.Equal(t, http.StatusOK, status)
		var tree []workflow.TreeGroup
		require.NoError(t, json.Unmarshal(body, &tree))
		require.Len(t, tree, 3)
		assert.Equal(t, "LPI components", tree[0].Title)
		assert.Equal(t, "Weather lookup", tree[0].Children[0].Title)
	})

	t.Run("search", func(t *testing.T) {
		status, body := do(t, app, http.MethodGet, "/api/components/search?q=BOT", nil)
		require.Equal(t, http.StatusOK, status)
		var entries []workflow.CatalogEntry
		require.NoError(t, json.Unmarshal(body, &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "Customer service bot", entries[0].Label)
		assert.Equal(t, workflow.KindAgent, entries[0].Kind)
	})
}

func TestComponentUpdateAndDelete(t *testing.T) {
	app := newTestApp(t)
	status, body := do(t, app, http.MethodPost, "/api/components",
		fiber.Map{"name": "Weather lookup", "component_type": "lpi"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created workflow.Component
	require.NoError(t, json.Unmarshal(body, &created))

	status, body = do(t, app, http.MethodPut, "/api/components/"+created.ID,
		fiber.Map{"name": "Forecast lookup", "category": "rest"})
	require.Equal(t, http.StatusOK, status, string(body))
	var updated workflow.Component
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "Forecast lookup", updated.Name)
	assert.Equal(t, workflow.KindLPI, updated.Kind)

	status, _ = do(t, app, http.MethodPut, "/api/components/missing", fiber.Map{"name": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, http.MethodDelete, "/api/components/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodGet, "/api/components/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSchemaAndMetrics(t *testing.T) {
	app := newTestApp(t)
	createWorkflow(t, app, "agent-1")

	status, _ := do(t, app, http.MethodDelete, "/schema", nil)
	assert.Equal(t, http.StatusOK, status)
	status, body := do(t, app, http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, _ = do(t, app, http.MethodPost, "/schema", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "workflow_http_requests_total")
}

func TestWorkflowPartialUpdate(t *testing.T) {
	app := newTestApp(t)
	created := createWorkflow(t, app, "agent-1")
	path := "/api/workflows/" + created.ID

	load := func() workflow.Workflow {
		status, body := do(t, app, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, status)
		var w workflow.Workflow
		require.NoError(t, json.Unmarshal(body, &w))
		return w
	}

	status, body := do(t, app, http.MethodPut, path, fiber.Map{"name": "Renamed"})
	require.Equal(t, http.StatusOK, status, string(body))
	got := load()
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, created.Nodes, got.Nodes, "name-only body keeps the graph")
	assert.Equal(t, created.Edges, got.Edges)

	status, body = do(t, app, http.MethodPut, path, fiber.Map{"nodes": created.Nodes})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, created.Edges, load().Edges, "nodes-only body keeps the edges")

	status, _ = do(t, app, http.MethodPut, path, fiber.Map{"nodes": created.Nodes[:1]})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "stored edges would dangle")

	tests := []struct {
		name string
		body any
	}{
		{"empty object", fiber.Map{}},
		{"unknown keys only", fiber.Map{"title": "x"}},
		{"null graph", fiber.Map{"nodes": nil, "edges": nil}},
		{"blank name", fiber.Map{"name": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodPut, path, tt.body)
			assert.Equal(t, http.StatusBadRequest, status, string(body))
		})
	}

	got = load()
	assert.Equal(t, "Renamed", got.Name)
	assert.Len(t, got.Nodes, 3)
	assert.Len(t, got.Edges, 2)

	status, body = do(t, app, http.MethodPut, path, fiber.Map{"nodes": []workflow.Node{}, "edges": []workflow.Edge{}})
	require.Equal(t, http.StatusOK, status, string(body))
	got = load()
	assert.Empty(t, got.Nodes, "explicit empty graph clears it")
	assert.Empty(t, got.Edges)
}

func TestComponentExport(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodPost, "/api/components",
		fiber.Map{"name": "Customer service bot", "component_type": "agent"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var agent workflow.Component
	require.NoError(t, json.Unmarshal(body, &agent))

	status, body = do(t, app, http.MethodPost, "/api/components",
		fiber.Map{"name": "Weather lookup", "component_type": "lpi"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var lpi workflow.Component
	require.NoError(t, json.Unmarshal(body, &lpi))

	owned := createWorkflow(t, app, agent.ID)
	createWorkflow(t, app, "someone-else")

	status, body = do(t, app, http.MethodGet, "/api/components/"+agent.ID+"/export", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var exported workflow.ComponentExport
	require.NoError(t, json.Unmarshal(body, &exported))
	assert.Equal(t, "Customer service bot", exported.Name)
	require.Len(t, exported.Workflows, 1)
	assert.Equal(t, owned.ID, exported.Workflows[0].ID)

	status, body = do(t, app, http.MethodGet, "/api/components/"+lpi.ID+"/export", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), `"workflows"`)

	status, _ = do(t, app, http.MethodGet, "/api/components/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
