package workflow

import (
	"fmt"
	"sync"
)

// Mode selects which representation of the workflow is being edited.
type Mode string

const (
	ModeFlow     Mode = "flow"
	ModeMarkdown Mode = "markdown"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeFlow || m == ModeMarkdown
}

// ChangeType names the effect a mutation had on the graph.
type ChangeType string

const (
	NodeAdded       ChangeType = "node_added"
	NodeUpdated     ChangeType = "node_updated"
	NodeRemoved     ChangeType = "node_removed"
	EdgeAdded       ChangeType = "edge_added"
	EdgeRemoved     ChangeType = "edge_removed"
	ModeChanged     ChangeType = "mode_changed"
	MarkdownChanged ChangeType = "markdown_changed"
)

// Change is delivered to subscribers after a mutation completes.
// Only the field matching Type is set.
type Change struct {
	Type     ChangeType
	Node     *Node
	Edge     *Edge
	Mode     Mode
	Markdown string
}

// Template supplies the name and catalog reference of a new node.
type Template struct {
	Name        string
	Description string
	ComponentID string
	Category    string
}

// TemplateFrom builds a node template out of a catalog entry.
func TemplateFrom(e CatalogEntry) *Template {
	return &Template{Name: e.Label, ComponentID: e.ID, Category: e.Category}
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithIDGenerator replaces the default uuid-based ids.
func WithIDGenerator(ids IDGenerator) GraphOption {
	return func(g *Graph) { g.ids = ids }
}

// Graph is the editable node/edge model of one workflow plus its markdown
// mirror. Every mutation keeps edges pointing at existing nodes.
//
// Mutations are applied one at a time in call order. Subscribers are called
// after the mutation is complete and outside the internal lock, so they may
// read the graph back.
type Graph struct {
	mu        sync.Mutex
	nodes     []Node
	edges     []Edge
	markdown  string
	mode      Mode
	ids       IDGenerator
	listeners map[int]func(Change)
	nextSub   int
}

// NewGraph returns an empty graph in flow mode.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		nodes:     []Node{},
		edges:     []Edge{},
		mode:      ModeFlow,
		ids:       UUIDGenerator{},
		listeners: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoadGraph returns a graph holding an already persisted workflow.
// The node/edge set must satisfy ValidateGraph.
func LoadGraph(nodes []Node, edges []Edge, markdown string, opts ...GraphOption) (*Graph, error) {
	if err := ValidateGraph(nodes, edges); err != nil {
		return nil, err
	}
	g := NewGraph(opts...)
	g.nodes = append(g.nodes, nodes...)
	g.edges = append(g.edges, edges...)
	g.markdown = markdown
	return g, nil
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (g *Graph) Subscribe(fn func(Change)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.listeners[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

// AddNode appends a node of the given kind. When the graph already had
// nodes, the previously last node is connected to the new one with default
// handles, so repeated adds build a linear chain in insertion order.
func (g *Graph) AddNode(kind Kind, tmpl *Template) Node {
	return g.addNode(kind, tmpl, DefaultPosition)
}

// ImportFromCatalog adds a node built from a catalog entry.
func (g *Graph) ImportFromCatalog(entry CatalogEntry) Node {
	return g.addNode(entry.Kind, TemplateFrom(entry), DefaultPosition)
}

// DropAtPosition adds a node built from a catalog entry at pos.
func (g *Graph) DropAtPosition(entry CatalogEntry, pos Position) Node {
	return g.addNode(entry.Kind, TemplateFrom(entry), pos)
}

func (g *Graph) addNode(kind Kind, tmpl *Template, pos Position) Node {
	g.mu.Lock()

	n := Node{
		ID:       g.freshNodeID(),
		Kind:     kind,
		Position: pos,
		Data:     NodeData{Name: kind.DefaultName()},
	}
	if tmpl != nil {
		if tmpl.Name != "" {
			n.Data.Name = tmpl.Name
		}
		n.Data.Description = tmpl.Description
		n.Data.ComponentID = tmpl.ComponentID
		n.Data.Category = tmpl.Category
	}

	changes := []Change{{Type: NodeAdded, Node: &n}}
	if len(g.nodes) > 0 {
		last := g.nodes[len(g.nodes)-1]
		e := g.newEdge(last.ID, DefaultSourceHandle, n.ID, DefaultTargetHandle)
		g.edges = append(g.edges, e)
		changes = append(changes, Change{Type: EdgeAdded, Edge: &e})
	}
	g.nodes = append(g.nodes, n)

	g.mu.Unlock()
	g.emit(changes...)
	return n
}

// Connect adds an edge from source to target. Empty handles default to
// "source" and "target". Both nodes must exist; otherwise an
// *InvalidConnectionError is returned and nothing changes. Parallel edges
// between the same pair are allowed.
func (g *Graph) Connect(source, sourceHandle, target, targetHandle string) (Edge, error) {
	g.mu.Lock()

	for _, id := range []string{source, target} {
		if g.indexOfNode(id) < 0 {
			g.mu.Unlock()
			return Edge{}, &InvalidConnectionError{Source: source, Target: target, Missing: id}
		}
	}
	if sourceHandle == "" {
		sourceHandle = DefaultSourceHandle
	}
	if targetHandle == "" {
		targetHandle = DefaultTargetHandle
	}
	e := g.newEdge(source, sourceHandle, target, targetHandle)
	g.edges = append(g.edges, e)

	g.mu.Unlock()
	g.emit(Change{Type: EdgeAdded, Edge: &e})
	return e, nil
}

// RemoveNode deletes a node and every edge touching it. An empty id means
// nothing is selected and is a no-op.
func (g *Graph) RemoveNode(nodeID string) error {
	if nodeID == "" {
		return nil
	}
	g.mu.Lock()

	i := g.indexOfNode(nodeID)
	if i < 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
	}
	removed := g.nodes[i]
	g.nodes = append(g.nodes[:i:i], g.nodes[i+1:]...)

	var changes []Change
	kept := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e.Source == nodeID || e.Target == nodeID {
			changes = append(changes, Change{Type: EdgeRemoved, Edge: &e})
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	changes = append(changes, Change{Type: NodeRemoved, Node: &removed})

	g.mu.Unlock()
	g.emit(changes...)
	return nil
}

// RemoveEdge deletes a single edge.
func (g *Graph) RemoveEdge(edgeID string) error {
	g.mu.Lock()

	for i, e := range g.edges {
		if e.ID != edgeID {
			continue
		}
		g.edges = append(g.edges[:i:i], g.edges[i+1:]...)
		g.mu.Unlock()
		g.emit(Change{Type: EdgeRemoved, Edge: &e})
		return nil
	}

	g.mu.Unlock()
	return fmt.Errorf("%w: %q", ErrEdgeNotFound, edgeID)
}

// RenameNode replaces the name of one node.
func (g *Graph) RenameNode(nodeID, name string) error {
	return g.updateNode(nodeID, func(n *Node) { n.Data.Name = name })
}

// DescribeNode replaces the description of one node.
func (g *Graph) DescribeNode(nodeID, description string) error {
	return g.updateNode(nodeID, func(n *Node) { n.Data.Description = description })
}

// MoveNode replaces the position of one node.
func (g *Graph) MoveNode(nodeID string, pos Position) error {
	return g.updateNode(nodeID, func(n *Node) { n.Position = pos })
}

func (g *Graph) updateNode(nodeID string, fn func(*Node)) error {
	g.mu.Lock()

	i := g.indexOfNode(nodeID)
	if i < 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
	}
	fn(&g.nodes[i])
	n := g.nodes[i]

	g.mu.Unlock()
	g.emit(Change{Type: NodeUpdated, Node: &n})
	return nil
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(nodeID string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := g.indexOfNode(nodeID); i >= 0 {
		return g.nodes[i], true
	}
	return Node{}, false
}

// Nodes returns a copy of the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Node{}, g.nodes...)
}

// Edges returns a copy of the edges in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Edge{}, g.edges...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Mode returns the active editing mode.
func (g *Graph) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// SetMode switches the active representation. Neither representation is
// translated into the other.
func (g *Graph) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	g.mu.Lock()
	if g.mode == m {
		g.mu.Unlock()
		return nil
	}
	g.mode = m
	g.mu.Unlock()
	g.emit(Change{Type: ModeChanged, Mode: m})
	return nil
}

// Markdown returns the markdown mirror.
func (g *Graph) Markdown() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.markdown
}

// SetMarkdown replaces the markdown mirror. Nodes and edges are untouched.
func (g *Graph) SetMarkdown(markdown string) {
	g.mu.Lock()
	g.markdown = markdown
	g.mu.Unlock()
	g.emit(Change{Type: MarkdownChanged, Markdown: markdown})
}

// snapshot captures everything a save needs in one consistent read.
func (g *Graph) snapshot() (Mode, []Node, []Edge, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode, append([]Node{}, g.nodes...), append([]Edge{}, g.edges...), g.markdown
}

func (g *Graph) newEdge(source, sourceHandle, target, targetHandle string) Edge {
	return Edge{
		ID:           g.freshEdgeID(),
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
}

// freshNodeID skips ids already in use, so generators that restart (for
// example a sequence over a loaded graph) cannot collide.
func (g *Graph) freshNodeID() string {
	for {
		id := g.ids.NodeID()
		if g.indexOfNode(id) < 0 {
			return id
		}
	}
}

func (g *Graph) freshEdgeID() string {
	for {
		id := g.ids.EdgeID()
		if g.indexOfEdge(id) < 0 {
			return id
		}
	}
}

func (g *Graph) indexOfNode(id string) int {
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (g *Graph) indexOfEdge(id string) int {
	for i := range g.edges {
		if g.edges[i].ID == id {
			return i
		}
	}
	return -1
}

func (g *Graph) emit(changes ...Change) {
	g.mu.Lock()
	listeners := make([]func(Change), 0, len(g.listeners))
	for i := 0; i < g.nextSub; i++ {
		if fn, ok := g.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	g.mu.Unlock()

	for _, c := range changes {
		for _, fn := range listeners {
			fn(c)
		}
	}
}
