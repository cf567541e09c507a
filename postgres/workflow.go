package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/workflow"
)

const workflowColumns = `id, name, description, agent_id, nodes, edges, workflow_markdown, created_at, updated_at`

// CreateWorkflow saves a full workflow (nodes + edges + markdown) in one row.
// A workflow without an ID gets an auto-generated UUID.
// The graph is validated before anything is written.
// Returns the stored workflow with ID and timestamps filled in.
func (s *PGStore) CreateWorkflow(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error) {
	if err := workflow.ValidateGraph(w.Nodes, w.Edges); err != nil {
		return nil, err
	}
	if w.ID == "" {
		w.ID = newID()
	}

	nodes, edges, err := encodeGraph(w.Nodes, w.Edges)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO workflows (id, name, description, agent_id, nodes, edges, workflow_markdown)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+workflowColumns,
		w.ID, w.Name, w.Description, w.AgentID, nodes, edges, w.Markdown,
	)
	created, err := scanWorkflow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: workflow %q", workflow.ErrDuplicateID, w.ID)
		}
		return nil, fmt.Errorf("workflow: insert workflow %s: %w", w.ID, err)
	}
	return created, nil
}

// LoadWorkflow retrieves a workflow by its ID.
// Returns workflow.ErrNotFound if it doesn't exist.
func (s *PGStore) LoadWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, workflowID)
	w, err := scanWorkflow(row)
	if err != nil {
		if isNoRows(err) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("workflow: get workflow: %w", err)
	}
	return w, nil
}

// UpdateWorkflow applies the fields set in u inside one transaction. When
// the graph changes, the merged nodes and edges are validated before
// anything is written.
// Returns workflow.ErrNotFound if the workflow doesn't exist.
func (s *PGStore) UpdateWorkflow(ctx context.Context, workflowID string, u workflow.Update) error {
	if u.Empty() {
		return workflow.ErrEmptyUpdate
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("workflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := scanWorkflow(tx.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1 FOR UPDATE`, workflowID))
	if err != nil {
		if isNoRows(err) {
			return workflow.ErrNotFound
		}
		return fmt.Errorf("workflow: get workflow: %w", err)
	}

	u.Apply(w)
	if u.TouchesGraph() {
		if err := workflow.ValidateGraph(w.Nodes, w.Edges); err != nil {
			return err
		}
	}
	nodes, edges, err := encodeGraph(w.Nodes, w.Edges)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE workflows
		 SET name = $1, description = $2, agent_id = $3, nodes = $4, edges = $5,
		     workflow_markdown = $6, updated_at = NOW()
		 WHERE id = $7`,
		w.Name, w.Description, w.AgentID, nodes, edges, w.Markdown, workflowID,
	); err != nil {
		return fmt.Errorf("workflow: update workflow: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("workflow: commit: %w", err)
	}
	return nil
}

// DeleteWorkflow removes a workflow.
// No error if the workflowID doesn't exist.
func (s *PGStore) DeleteWorkflow(ctx context.Context, workflowID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, workflowID); err != nil {
		return fmt.Errorf("workflow: delete workflow: %w", err)
	}
	return nil
}

// ListWorkflows returns all workflows, or those of one agent when agentID
// is set, ordered by created_at.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListWorkflows(ctx context.Context, agentID string) ([]workflow.Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+workflowColumns+` FROM workflows
		 WHERE $1 = '' OR agent_id = $1
		 ORDER BY created_at, id`, agentID)
	if err != nil {
		return nil, fmt.Errorf("workflow: list workflows: %w", err)
	}
	defer rows.Close()

	workflows := []workflow.Workflow{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("workflow: scan workflow: %w", err)
		}
		workflows = append(workflows, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows workflows: %w", err)
	}
	return workflows, nil
}

func scanWorkflow(row pgx.Row) (*workflow.Workflow, error) {
	var (
		w            workflow.Workflow
		nodes, edges []byte
	)
	if err := row.Scan(&w.ID, &w.Name, &w.Description, &w.AgentID, &nodes, &edges,
		&w.Markdown, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(nodes, &w.Nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &w.Edges); err != nil {
		return nil, fmt.Errorf("decode edges: %w", err)
	}
	if w.Nodes == nil {
		w.Nodes = []workflow.Node{}
	}
	if w.Edges == nil {
		w.Edges = []workflow.Edge{}
	}
	return &w, nil
}

func encodeGraph(nodes []workflow.Node, edges []workflow.Edge) ([]byte, []byte, error) {
	if nodes == nil {
		nodes = []workflow.Node{}
	}
	if edges == nil {
		edges = []workflow.Edge{}
	}
	n, err := json.Marshal(nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow: encode nodes: %w", err)
	}
	e, err := json.Marshal(edges)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow: encode edges: %w", err)
	}
	return n, e, nil
}
