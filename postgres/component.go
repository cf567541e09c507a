package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/workflow"
)

const componentColumns = `id, name, description, english_description, kind, category, content, created_at, updated_at`

// CreateComponent inserts a component into the catalog.
// If c.ID is empty, a UUID is auto-generated.
func (s *PGStore) CreateComponent(ctx context.Context, c *workflow.Component) (*workflow.Component, error) {
	if !c.Kind.Component() {
		return nil, fmt.Errorf("%w: %q is not a component kind", workflow.ErrInvalidKind, c.Kind)
	}
	if c.ID == "" {
		c.ID = newID()
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO components (id, name, description, english_description, kind, category, content)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+componentColumns,
		c.ID, c.Name, c.Description, c.EnglishDescription, string(c.Kind), c.Category, contentOrEmpty(c.Content),
	)
	created, err := scanComponent(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: component %q", workflow.ErrDuplicateID, c.ID)
		}
		return nil, fmt.Errorf("workflow: insert component: %w", err)
	}
	return created, nil
}

// GetComponent fetches a single component by its ID.
// Returns workflow.ErrNotFound if not found.
func (s *PGStore) GetComponent(ctx context.Context, id string) (*workflow.Component, error) {
	row := s.db.QueryRow(ctx, `SELECT `+componentColumns+` FROM components WHERE id = $1`, id)
	c, err := scanComponent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("workflow: get component: %w", err)
	}
	return c, nil
}

// UpdateComponent updates the descriptive fields of a component, and its
// content when c.Content is set. The kind of a component never changes.
// Returns workflow.ErrNotFound if the component doesn't exist.
func (s *PGStore) UpdateComponent(ctx context.Context, c *workflow.Component) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE components
		 SET name = $1, description = $2, english_description = $3, category = $4,
		     content = COALESCE($5, content), updated_at = NOW()
		 WHERE id = $6`,
		c.Name, c.Description, c.EnglishDescription, c.Category, contentOrNil(c.Content), c.ID,
	)
	if err != nil {
		return fmt.Errorf("workflow: update component: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

// DeleteComponent deletes a component by its ID.
// Nodes referencing it keep their weak reference.
// No error if the component doesn't exist.
func (s *PGStore) DeleteComponent(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM components WHERE id = $1`, id); err != nil {
		return fmt.Errorf("workflow: delete component: %w", err)
	}
	return nil
}

// ListComponents returns the components matching f in catalog order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListComponents(ctx context.Context, f workflow.ComponentFilter) ([]workflow.Component, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+componentColumns+` FROM components
		 WHERE ($1 = '' OR kind = $1) AND ($2 = '' OR category = $2)
		 ORDER BY created_at, id`, string(f.Kind), f.Category)
	if err != nil {
		return nil, fmt.Errorf("workflow: list components: %w", err)
	}
	defer rows.Close()

	components := []workflow.Component{}
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("workflow: scan component: %w", err)
		}
		components = append(components, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows components: %w", err)
	}

	workflow.SortComponents(components)
	return components, nil
}

// Search returns catalog entries whose name contains query, ignoring case.
func (s *PGStore) Search(ctx context.Context, query string) ([]workflow.CatalogEntry, error) {
	components, err := s.ListComponents(ctx, workflow.ComponentFilter{})
	if err != nil {
		return nil, err
	}
	entries := make([]workflow.CatalogEntry, 0, len(components))
	for _, c := range components {
		entries = append(entries, c.Entry())
	}
	return workflow.FilterEntries(entries, query), nil
}

// GetByID returns the catalog entry of one component.
func (s *PGStore) GetByID(ctx context.Context, id string) (*workflow.CatalogEntry, error) {
	c, err := s.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	e := c.Entry()
	return &e, nil
}

func scanComponent(row pgx.Row) (*workflow.Component, error) {
	var (
		c       workflow.Component
		kind    string
		content []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.EnglishDescription, &kind, &c.Category,
		&content, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Kind = workflow.Kind(kind)
	c.Content = json.RawMessage(content)
	return &c, nil
}

func contentOrEmpty(content json.RawMessage) []byte {
	if len(content) == 0 {
		return []byte(`{}`)
	}
	return content
}

func contentOrNil(content json.RawMessage) []byte {
	if len(content) == 0 {
		return nil
	}
	return content
}
