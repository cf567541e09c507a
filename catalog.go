package workflow

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Component is a reusable LPI, Agent or common component in the catalog.
// Content is free-form per kind (endpoint and params for an LPI, subtype and
// config for a common component, ...).
type Component struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	EnglishDescription string          `json:"english_description"`
	Kind               Kind            `json:"component_type"`
	Category           string          `json:"category"`
	Content            json.RawMessage `json:"content,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Entry projects the component to what the graph needs to add it.
func (c Component) Entry() CatalogEntry {
	return CatalogEntry{ID: c.ID, Label: c.Name, Kind: c.Kind, Category: c.Category}
}

// ComponentExport is the exported form of a component. Workflows is set
// only for agent components and lists the workflows the agent owns.
type ComponentExport struct {
	Component
	Workflows []Workflow `json:"workflows,omitempty"`
}

// Export builds the exported form of c. workflows is ignored unless c is an
// agent component.
func (c Component) Export(workflows []Workflow) ComponentExport {
	e := ComponentExport{Component: c}
	if c.Kind == KindAgent {
		e.Workflows = workflows
	}
	return e
}

// CatalogEntry is an addable node template.
type CatalogEntry struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Kind     Kind   `json:"type"`
	Category string `json:"category,omitempty"`
}

// TreeGroup is one kind-level branch of the component tree.
type TreeGroup struct {
	Title    string      `json:"title"`
	Key      string      `json:"key"`
	Children []TreeEntry `json:"children"`
}

// TreeEntry is a leaf of the component tree.
type TreeEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Key      string `json:"key"`
	Kind     Kind   `json:"type"`
	Category string `json:"category,omitempty"`
}

var treeGroups = []struct {
	kind  Kind
	title string
}{
	{KindLPI, "LPI components"},
	{KindAgent, "Agent components"},
	{KindCommon, "Common components"},
}

// BuildTree groups components by kind (lpi, agent, common), keeping the
// input order inside each group. Empty groups are omitted.
func BuildTree(components []Component) []TreeGroup {
	tree := []TreeGroup{}
	for _, g := range treeGroups {
		group := TreeGroup{Title: g.title, Key: string(g.kind)}
		for _, c := range components {
			if c.Kind != g.kind {
				continue
			}
			group.Children = append(group.Children, TreeEntry{
				ID:       c.ID,
				Title:    c.Name,
				Key:      string(c.Kind) + "-" + c.ID,
				Kind:     c.Kind,
				Category: c.Category,
			})
		}
		if len(group.Children) > 0 {
			tree = append(tree, group)
		}
	}
	return tree
}

// FlattenTree returns the leaves of a component tree as catalog entries.
func FlattenTree(tree []TreeGroup) []CatalogEntry {
	var entries []CatalogEntry
	for _, g := range tree {
		for _, c := range g.Children {
			if c.ID == "" {
				continue
			}
			entries = append(entries, CatalogEntry{ID: c.ID, Label: c.Title, Kind: c.Kind, Category: c.Category})
		}
	}
	return entries
}

// FilterEntries keeps the entries whose label contains query, ignoring case.
// An empty query keeps everything.
func FilterEntries(entries []CatalogEntry, query string) []CatalogEntry {
	q := strings.ToLower(query)
	out := make([]CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if q == "" || strings.Contains(strings.ToLower(e.Label), q) {
			out = append(out, e)
		}
	}
	return out
}

// SortComponents orders components the way the catalog presents them:
// by kind group, then by creation time, then by id.
func SortComponents(components []Component) {
	rank := func(k Kind) int {
		for i, g := range treeGroups {
			if g.kind == k {
				return i
			}
		}
		return len(treeGroups)
	}
	sort.SliceStable(components, func(i, j int) bool {
		a, b := components[i], components[j]
		if ra, rb := rank(a.Kind), rank(b.Kind); ra != rb {
			return ra < rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Match reports whether c passes the filter.
func (f ComponentFilter) Match(c Component) bool {
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	return true
}
