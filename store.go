package workflow

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidConnection = errors.New("workflow: invalid connection")
	ErrNodeNotFound      = errors.New("workflow: node not found")
	ErrEdgeNotFound      = errors.New("workflow: edge not found")
	ErrNotFound          = errors.New("workflow: not found")
	ErrInvalidMode       = errors.New("workflow: invalid editing mode")
	ErrInvalidKind       = errors.New("workflow: invalid node kind")
	ErrDanglingEdge      = errors.New("workflow: edge references a missing node")
	ErrDuplicateID       = errors.New("workflow: duplicate id")
	ErrEmptyUpdate       = errors.New("workflow: update sets no field")
)

// InvalidConnectionError is returned by Graph.Connect when an endpoint does
// not exist. It matches ErrInvalidConnection with errors.Is.
type InvalidConnectionError struct {
	Source string
	Target string
	// Missing is the first endpoint id that could not be found.
	Missing string
}

func (e *InvalidConnectionError) Error() string {
	return fmt.Sprintf("workflow: invalid connection %q -> %q: node %q does not exist", e.Source, e.Target, e.Missing)
}

func (e *InvalidConnectionError) Is(target error) bool {
	return target == ErrInvalidConnection
}

// PersistenceError wraps any failure of the persistence collaborator.
// The in-memory graph is never modified when one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("workflow: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence loads and saves workflows. It is implemented by the REST client
// and by every Store.
type Persistence interface {
	// LoadWorkflow returns ErrNotFound when the id is unknown.
	LoadWorkflow(ctx context.Context, workflowID string) (*Workflow, error)
	// CreateWorkflow assigns an id when w.ID is empty and returns the stored record.
	CreateWorkflow(ctx context.Context, w *Workflow) (*Workflow, error)
	// UpdateWorkflow applies the fields set in u. It returns ErrNotFound
	// when the id is unknown and ErrEmptyUpdate when u sets nothing.
	UpdateWorkflow(ctx context.Context, workflowID string, u Update) error
	// DeleteWorkflow is a no-op for unknown ids.
	DeleteWorkflow(ctx context.Context, workflowID string) error
}

// Catalog looks up addable component templates.
type Catalog interface {
	Search(ctx context.Context, query string) ([]CatalogEntry, error)
	// GetByID returns ErrNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*CatalogEntry, error)
}

// ComponentFilter narrows ListComponents. Empty fields match everything.
type ComponentFilter struct {
	Kind     Kind
	Category string
}

// Store is the backend-side contract: workflow persistence plus the
// component catalog and schema management.
type Store interface {
	Persistence
	Catalog

	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Workflows
	ListWorkflows(ctx context.Context, agentID string) ([]Workflow, error)

	// Components
	CreateComponent(ctx context.Context, c *Component) (*Component, error)
	GetComponent(ctx context.Context, id string) (*Component, error)
	UpdateComponent(ctx context.Context, c *Component) error
	DeleteComponent(ctx context.Context, id string) error
	ListComponents(ctx context.Context, f ComponentFilter) ([]Component, error)
}
