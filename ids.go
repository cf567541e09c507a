package workflow

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator hands out node and edge ids. Ids must never repeat within one
// generator.
type IDGenerator interface {
	NodeID() string
	EdgeID() string
}

// UUIDGenerator produces "node_<uuid>" and "edge_<uuid>" ids.
type UUIDGenerator struct{}

func (UUIDGenerator) NodeID() string { return "node_" + uuid.NewString() }
func (UUIDGenerator) EdgeID() string { return "edge_" + uuid.NewString() }

// SequenceGenerator produces "1", "2", ... for nodes and "e1", "e2", ...
// for edges, starting after the given offsets.
type SequenceGenerator struct {
	mu    sync.Mutex
	nodes int
	edges int
}

// NewSequenceGenerator returns a generator whose first node id is
// nodeOffset+1 and first edge id is e<edgeOffset+1>.
func NewSequenceGenerator(nodeOffset, edgeOffset int) *SequenceGenerator {
	return &SequenceGenerator{nodes: nodeOffset, edges: edgeOffset}
}

func (g *SequenceGenerator) NodeID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes++
	return strconv.Itoa(g.nodes)
}

func (g *SequenceGenerator) EdgeID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges++
	return "e" + strconv.Itoa(g.edges)
}
