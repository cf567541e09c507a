package workflow

import "fmt"

// ValidateGraph checks the structural invariants of a node/edge set:
// unique node ids, known kinds, unique edge ids and no dangling edges.
// Cycles are allowed; a condition node may loop back to an earlier step.
func ValidateGraph(nodes []Node, edges []Edge) error {
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrDuplicateID)
		}
		if _, ok := seen[n.ID]; ok {
			return fmt.Errorf("%w: node %q", ErrDuplicateID, n.ID)
		}
		if !n.Kind.Valid() {
			return fmt.Errorf("%w: node %q has kind %q", ErrInvalidKind, n.ID, n.Kind)
		}
		seen[n.ID] = struct{}{}
	}

	edgeIDs := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		if e.ID == "" {
			return fmt.Errorf("%w: edge without id", ErrDuplicateID)
		}
		if _, ok := edgeIDs[e.ID]; ok {
			return fmt.Errorf("%w: edge %q", ErrDuplicateID, e.ID)
		}
		edgeIDs[e.ID] = struct{}{}

		if _, ok := seen[e.Source]; !ok {
			return fmt.Errorf("%w: edge %q source %q", ErrDanglingEdge, e.ID, e.Source)
		}
		if _, ok := seen[e.Target]; !ok {
			return fmt.Errorf("%w: edge %q target %q", ErrDanglingEdge, e.ID, e.Target)
		}
	}
	return nil
}
