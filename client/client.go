// Package client talks to a workflowd server over its REST API. A *Client
// satisfies workflow.Persistence and workflow.Catalog, so an editing
// session can be backed by a remote server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberclient "github.com/gofiber/fiber/v3/client"
	"github.com/meikuraledutech/workflow"
)

var (
	_ workflow.Persistence = (*Client)(nil)
	_ workflow.Catalog     = (*Client)(nil)
)

// Client is a REST client for the workflow API.
type Client struct {
	http *fiberclient.Client
}

// New returns a client for the server at baseURL, e.g. "http://localhost:3000".
func New(baseURL string) *Client {
	cc := fiberclient.New()
	cc.SetBaseURL(baseURL)
	cc.SetTimeout(30 * time.Second)
	return &Client{http: cc}
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("workflow: server returned %d: %s", e.Status, e.Message)
}

// ── Workflows ─────────────────────────────────────────────────────────

// LoadWorkflow fetches a workflow by id.
// Returns workflow.ErrNotFound if the server does not know it.
func (c *Client) LoadWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	var w workflow.Workflow
	if err := c.do(ctx, fiber.MethodGet, "/api/workflows/"+url.PathEscape(id), nil, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWorkflow creates a workflow and returns it with its server-assigned id.
func (c *Client) CreateWorkflow(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error) {
	var created workflow.Workflow
	if err := c.do(ctx, fiber.MethodPost, "/api/workflows", nil, w, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateWorkflow sends a graph or markdown update.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, u workflow.Update) error {
	return c.do(ctx, fiber.MethodPut, "/api/workflows/"+url.PathEscape(id), nil, u, nil)
}

// DeleteWorkflow deletes a workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, fiber.MethodDelete, "/api/workflows/"+url.PathEscape(id), nil, nil, nil)
}

// ListWorkflows lists the workflows of agentID, or all when it is empty.
func (c *Client) ListWorkflows(ctx context.Context, agentID string) ([]workflow.Workflow, error) {
	var params map[string]string
	if agentID != "" {
		params = map[string]string{"agent_id": agentID}
	}
	workflows := []workflow.Workflow{}
	if err := c.do(ctx, fiber.MethodGet, "/api/workflows", params, nil, &workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

// ── Catalog ───────────────────────────────────────────────────────────

// Search returns catalog entries whose name contains query, ignoring case.
func (c *Client) Search(ctx context.Context, query string) ([]workflow.CatalogEntry, error) {
	entries := []workflow.CatalogEntry{}
	err := c.do(ctx, fiber.MethodGet, "/api/components/search", map[string]string{"q": query}, nil, &entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetByID returns the catalog entry of one component.
func (c *Client) GetByID(ctx context.Context, id string) (*workflow.CatalogEntry, error) {
	comp, err := c.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	e := comp.Entry()
	return &e, nil
}

// GetComponent fetches a component by id.
func (c *Client) GetComponent(ctx context.Context, id string) (*workflow.Component, error) {
	var comp workflow.Component
	if err := c.do(ctx, fiber.MethodGet, "/api/components/"+url.PathEscape(id), nil, nil, &comp); err != nil {
		return nil, err
	}
	return &comp, nil
}

// Export fetches a component in its exported form. Agent components come
// with the workflows they own.
func (c *Client) Export(ctx context.Context, id string) (*workflow.ComponentExport, error) {
	var e workflow.ComponentExport
	if err := c.do(ctx, fiber.MethodGet, "/api/components/"+url.PathEscape(id)+"/export", nil, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Tree fetches the component tree the editor sidebar shows.
func (c *Client) Tree(ctx context.Context) ([]workflow.TreeGroup, error) {
	tree := []workflow.TreeGroup{}
	if err := c.do(ctx, fiber.MethodGet, "/api/components/tree", nil, nil, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, out any) error {
	cfg := fiberclient.Config{Ctx: ctx, Param: params, Body: body}

	var (
		resp *fiberclient.Response
		err  error
	)
	switch method {
	case fiber.MethodGet:
		resp, err = c.http.Get(path, cfg)
	case fiber.MethodPost:
		resp, err = c.http.Post(path, cfg)
	case fiber.MethodPut:
		resp, err = c.http.Put(path, cfg)
	case fiber.MethodDelete:
		resp, err = c.http.Delete(path, cfg)
	default:
		return fmt.Errorf("workflow: unsupported method %s", method)
	}
	if err != nil {
		return fmt.Errorf("workflow: %s %s: %w", method, path, err)
	}
	defer resp.Close()

	if err := checkStatus(resp.StatusCode(), resp.Body()); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("workflow: decode %s %s: %w", method, path, err)
	}
	return nil
}

// checkStatus turns a non-2xx answer into a *StatusError. 404 also matches
// workflow.ErrNotFound, so OpenSession starts a new workflow.
func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	se := &StatusError{Status: status, Message: payload.Error}

	if status == fiber.StatusNotFound {
		return fmt.Errorf("%w: %w", workflow.ErrNotFound, se)
	}
	return se
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
