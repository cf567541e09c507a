package workflow

import "time"

// Kind is the semantic role of a node. It never changes after creation.
type Kind string

const (
	KindStart  Kind = "start"
	KindEnd    Kind = "end"
	KindPhase  Kind = "phase"
	KindLPI    Kind = "lpi"
	KindAgent  Kind = "agent"
	KindCommon Kind = "common"
)

// Kinds lists every node kind in display order.
var Kinds = []Kind{KindStart, KindEnd, KindPhase, KindLPI, KindAgent, KindCommon}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Component reports whether nodes of this kind reference a catalog component
// rather than acting as a structural marker.
func (k Kind) Component() bool {
	return k == KindLPI || k == KindAgent || k == KindCommon
}

// DefaultName is the label a node of this kind gets when no template names it.
func (k Kind) DefaultName() string {
	switch k {
	case KindStart:
		return "Start"
	case KindEnd:
		return "End"
	case KindPhase:
		return "New phase"
	case KindLPI:
		return "New LPI"
	case KindAgent:
		return "New Agent"
	case KindCommon:
		return "New component"
	}
	return "New node"
}

// Position is a canvas coordinate. Only the presentation layer reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultPosition is where nodes land when the caller does not place them.
var DefaultPosition = Position{X: 250, Y: 250}

// Node is one step in a workflow.
type Node struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NodeData holds the mutable, displayable part of a node.
// ComponentID and Category form a weak reference into the component catalog.
type NodeData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
	Category    string `json:"lpiCategory,omitempty"`
}

// ComponentRef points at a catalog entry. The graph never validates it.
type ComponentRef struct {
	ComponentID string `json:"component_id"`
	Category    string `json:"category,omitempty"`
}

// Ref returns the catalog reference of the node, if it has one.
func (n Node) Ref() (ComponentRef, bool) {
	if n.Data.ComponentID == "" {
		return ComponentRef{}, false
	}
	return ComponentRef{ComponentID: n.Data.ComponentID, Category: n.Data.Category}, true
}

// Default anchor names used when a connection request omits them.
const (
	DefaultSourceHandle = "source"
	DefaultTargetHandle = "target"
)

// Edge is a directed connection between two nodes of the same graph.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// Workflow is the persisted form of one agent's workflow.
// Nodes/Edges and Markdown are stored independently and are never reconciled.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AgentID     string    `json:"agent_id"`
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	Markdown    string    `json:"workflow_markdown"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update is the payload of an update against an existing workflow. Only
// the fields that are set are applied: a nil pointer or a nil slice leaves
// the stored value alone, while an empty non-nil slice clears it.
//
// Nodes and Edges carry no omitempty so that a cleared graph is sent as []
// and an absent one as null.
type Update struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AgentID     *string `json:"agent_id,omitempty"`
	Nodes       []Node  `json:"nodes"`
	Edges       []Edge  `json:"edges"`
	Markdown    *string `json:"workflow_markdown,omitempty"`
}

// GraphUpdate builds an update that replaces the stored nodes and edges.
func GraphUpdate(nodes []Node, edges []Edge) Update {
	return Update{Nodes: nonNilNodes(nodes), Edges: nonNilEdges(edges)}
}

// MarkdownUpdate builds an update that replaces only the markdown text.
func MarkdownUpdate(markdown string) Update {
	return Update{Markdown: &markdown}
}

// Empty reports whether u sets no field at all.
func (u Update) Empty() bool {
	return u.Name == nil && u.Description == nil && u.AgentID == nil &&
		u.Nodes == nil && u.Edges == nil && u.Markdown == nil
}

// TouchesGraph reports whether u replaces the nodes or the edges.
func (u Update) TouchesGraph() bool {
	return u.Nodes != nil || u.Edges != nil
}

// IsMarkdown reports whether u touches only the markdown text.
func (u Update) IsMarkdown() bool {
	return u.Markdown != nil && !u.TouchesGraph() &&
		u.Name == nil && u.Description == nil && u.AgentID == nil
}

// Apply writes the fields set in u into w.
func (u Update) Apply(w *Workflow) {
	if u.Name != nil {
		w.Name = *u.Name
	}
	if u.Description != nil {
		w.Description = *u.Description
	}
	if u.AgentID != nil {
		w.AgentID = *u.AgentID
	}
	if u.Nodes != nil {
		w.Nodes = u.Nodes
	}
	if u.Edges != nil {
		w.Edges = u.Edges
	}
	if u.Markdown != nil {
		w.Markdown = *u.Markdown
	}
	w.Nodes = nonNilNodes(w.Nodes)
	w.Edges = nonNilEdges(w.Edges)
}

func nonNilNodes(nodes []Node) []Node {
	if nodes == nil {
		return []Node{}
	}
	return nodes
}

func nonNilEdges(edges []Edge) []Edge {
	if edges == nil {
		return []Edge{}
	}
	return edges
}
