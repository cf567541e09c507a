package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
)

// CreateWorkflow stores a new workflow. A workflow without an ID gets an
// auto-generated UUID. The graph is validated before anything is written.
func (s *Store) CreateWorkflow(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error) {
	if err := workflow.ValidateGraph(w.Nodes, w.Edges); err != nil {
		return nil, err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}

	stored := *w
	stored.Nodes = append([]workflow.Node{}, w.Nodes...)
	stored.Edges = append([]workflow.Edge{}, w.Edges...)
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt

	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, workflowPrefix+stored.ID)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: workflow %q", workflow.ErrDuplicateID, stored.ID)
		}
		return setJSON(txn, workflowPrefix+stored.ID, stored)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrDuplicateID) {
			return nil, err
		}
		return nil, fmt.Errorf("workflow: insert workflow %s: %w", stored.ID, err)
	}
	return &stored, nil
}

// LoadWorkflow retrieves a workflow by its ID.
// Returns workflow.ErrNotFound if it doesn't exist.
func (s *Store) LoadWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	var w workflow.Workflow
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, workflowPrefix+workflowID, &w)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("workflow: get workflow: %w", err)
	}
	normalize(&w)
	return &w, nil
}

// UpdateWorkflow applies the fields set in u. When the graph changes, the
// merged nodes and edges are validated before anything is written.
// Returns workflow.ErrNotFound if the workflow doesn't exist.
func (s *Store) UpdateWorkflow(ctx context.Context, workflowID string, u workflow.Update) error {
	if u.Empty() {
		return workflow.ErrEmptyUpdate
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		var w workflow.Workflow
		if err := getJSON(txn, workflowPrefix+workflowID, &w); err != nil {
			return err
		}
		u.Apply(&w)
		if u.TouchesGraph() {
			if err := workflow.ValidateGraph(w.Nodes, w.Edges); err != nil {
				return err
			}
		}
		w.UpdatedAt = s.now()
		return setJSON(txn, workflowPrefix+workflowID, w)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) || isValidation(err) {
			return err
		}
		return fmt.Errorf("workflow: update workflow: %w", err)
	}
	return nil
}

// DeleteWorkflow removes a workflow.
// No error if the workflowID doesn't exist.
func (s *Store) DeleteWorkflow(ctx context.Context, workflowID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(workflowPrefix + workflowID))
	})
	if err != nil {
		return fmt.Errorf("workflow: delete workflow: %w", err)
	}
	return nil
}

// ListWorkflows returns all workflows, or those of one agent when agentID
// is set, ordered by creation time.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListWorkflows(ctx context.Context, agentID string) ([]workflow.Workflow, error) {
	workflows := []workflow.Workflow{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, workflowPrefix, func(raw []byte) error {
			var w workflow.Workflow
			if err := json.Unmarshal(raw, &w); err != nil {
				return err
			}
			if agentID != "" && w.AgentID != agentID {
				return nil
			}
			normalize(&w)
			workflows = append(workflows, w)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: list workflows: %w", err)
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		a, b := workflows[i], workflows[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return workflows, nil
}

func normalize(w *workflow.Workflow) {
	if w.Nodes == nil {
		w.Nodes = []workflow.Node{}
	}
	if w.Edges == nil {
		w.Edges = []workflow.Edge{}
	}
}

func isValidation(err error) bool {
	return errors.Is(err, workflow.ErrDanglingEdge) ||
		errors.Is(err, workflow.ErrDuplicateID) ||
		errors.Is(err, workflow.ErrInvalidKind)
}
