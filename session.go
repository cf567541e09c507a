package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Agent identifies the owner of a workflow.
type Agent struct {
	ID   string
	Name string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithGraphOptions passes options to the graph the session creates.
func WithGraphOptions(opts ...GraphOption) SessionOption {
	return func(s *Session) { s.graphOpts = append(s.graphOpts, opts...) }
}

// Session is one editing session over an agent's workflow. It owns the
// Graph and knows whether the workflow has been persisted yet: the first
// save of a new workflow creates it, every later save updates it by id.
//
// Saves do not lock the graph while waiting on the backend; the graph keeps
// accepting edits and each save persists whatever the graph held when the
// save started.
type Session struct {
	store     Persistence
	agent     Agent
	graph     *Graph
	log       *slog.Logger
	graphOpts []GraphOption

	mu         sync.Mutex
	workflowID string
	creating   chan struct{} // closed when the in-flight create finishes
	closed     bool
}

// NewSession starts a session on a workflow that does not exist yet.
func NewSession(store Persistence, agent Agent, opts ...SessionOption) *Session {
	s := newSession(store, agent, opts)
	s.graph = NewGraph(s.graphOpts...)
	return s
}

// OpenSession loads workflowID. When it does not exist the session starts
// empty and the first Save creates a new workflow.
func OpenSession(ctx context.Context, store Persistence, agent Agent, workflowID string, opts ...SessionOption) (*Session, error) {
	s := newSession(store, agent, opts)

	w, err := store.LoadWorkflow(ctx, workflowID)
	if errors.Is(err, ErrNotFound) {
		s.log.Info("workflow not found, starting a new one", "workflow_id", workflowID, "agent_id", agent.ID)
		s.graph = NewGraph(s.graphOpts...)
		return s, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load workflow", Err: err}
	}

	g, err := LoadGraph(w.Nodes, w.Edges, w.Markdown, s.graphOpts...)
	if err != nil {
		return nil, fmt.Errorf("workflow: load %q: %w", workflowID, err)
	}
	s.graph = g
	s.workflowID = w.ID
	s.log.Debug("workflow loaded", "workflow_id", w.ID, "nodes", len(w.Nodes), "edges", len(w.Edges))
	return s, nil
}

func newSession(store Persistence, agent Agent, opts []SessionOption) *Session {
	s := &Session{store: store, agent: agent, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns the graph being edited.
func (s *Session) Graph() *Graph { return s.graph }

// Agent returns the owner of the workflow.
func (s *Session) Agent() Agent { return s.agent }

// WorkflowID returns the persisted id, or "" before the first save.
func (s *Session) WorkflowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workflowID
}

// Save persists the representation of the active mode: nodes and edges in
// flow mode, the markdown text in markdown mode.
//
// Only one create is in flight per session. A save that starts while the
// first save is still creating the workflow waits for it, then updates the
// created workflow with the graph as it is at that point.
func (s *Session) Save(ctx context.Context) error {
	id, created, err := s.claimID(ctx)
	if err != nil {
		return err
	}

	mode, nodes, edges, markdown := s.graph.snapshot()
	var u Update
	if mode == ModeMarkdown {
		u = MarkdownUpdate(markdown)
	} else {
		u = GraphUpdate(nodes, edges)
	}

	if id != "" {
		if err := s.store.UpdateWorkflow(ctx, id, u); err != nil {
			s.log.Error("save workflow failed", "workflow_id", id, "mode", mode, "error", err)
			return &PersistenceError{Op: "update workflow", Err: err}
		}
		s.log.Debug("workflow updated", "workflow_id", id, "mode", mode)
		return nil
	}

	w := &Workflow{
		Name:        s.agent.Name + " workflow",
		Description: "Workflow of " + s.agent.Name,
		AgentID:     s.agent.ID,
	}
	u.Apply(w)
	stored, err := s.store.CreateWorkflow(ctx, w)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creating = nil
	close(created)
	if err != nil {
		s.log.Error("create workflow failed", "agent_id", s.agent.ID, "error", err)
		return &PersistenceError{Op: "create workflow", Err: err}
	}
	if s.closed {
		return nil
	}
	s.workflowID = stored.ID
	s.log.Info("workflow created", "workflow_id", stored.ID, "agent_id", s.agent.ID)
	return nil
}

// claimID returns the workflow id to update. When there is none yet, the
// caller becomes the creator and gets a channel it must close once the
// create has finished.
func (s *Session) claimID(ctx context.Context) (string, chan struct{}, error) {
	s.mu.Lock()
	for s.workflowID == "" && s.creating != nil {
		pending := s.creating
		s.mu.Unlock()
		select {
		case <-pending:
		case <-ctx.Done():
			return "", nil, &PersistenceError{Op: "create workflow", Err: ctx.Err()}
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if s.workflowID != "" {
		return s.workflowID, nil, nil
	}
	s.creating = make(chan struct{})
	return "", s.creating, nil
}

// Delete removes the persisted workflow, if any. The graph is kept so the
// user can save it again as a new workflow.
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	id := s.workflowID
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	if err := s.store.DeleteWorkflow(ctx, id); err != nil {
		return &PersistenceError{Op: "delete workflow", Err: err}
	}

	s.mu.Lock()
	if s.workflowID == id {
		s.workflowID = ""
	}
	s.mu.Unlock()
	return nil
}

// Close ends the session. Saves still in flight complete against the
// backend but no longer change the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
