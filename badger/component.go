package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
)

// CreateComponent inserts a component into the catalog.
// If c.ID is empty, a UUID is auto-generated.
func (s *Store) CreateComponent(ctx context.Context, c *workflow.Component) (*workflow.Component, error) {
	if !c.Kind.Component() {
		return nil, fmt.Errorf("%w: %q is not a component kind", workflow.ErrInvalidKind, c.Kind)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	stored := *c
	if len(stored.Content) == 0 {
		stored.Content = json.RawMessage(`{}`)
	}
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt

	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, componentPrefix+stored.ID)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: component %q", workflow.ErrDuplicateID, stored.ID)
		}
		return setJSON(txn, componentPrefix+stored.ID, stored)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrDuplicateID) {
			return nil, err
		}
		return nil, fmt.Errorf("workflow: insert component: %w", err)
	}
	return &stored, nil
}

// GetComponent fetches a single component by its ID.
// Returns workflow.ErrNotFound if not found.
func (s *Store) GetComponent(ctx context.Context, id string) (*workflow.Component, error) {
	var c workflow.Component
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, componentPrefix+id, &c)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("workflow: get component: %w", err)
	}
	return &c, nil
}

// UpdateComponent updates the descriptive fields of a component, and its
// content when c.Content is set. The kind of a component never changes.
// Returns workflow.ErrNotFound if the component doesn't exist.
func (s *Store) UpdateComponent(ctx context.Context, c *workflow.Component) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var stored workflow.Component
		if err := getJSON(txn, componentPrefix+c.ID, &stored); err != nil {
			return err
		}
		stored.Name = c.Name
		stored.Description = c.Description
		stored.EnglishDescription = c.EnglishDescription
		stored.Category = c.Category
		if len(c.Content) > 0 {
			stored.Content = c.Content
		}
		stored.UpdatedAt = s.now()
		return setJSON(txn, componentPrefix+c.ID, stored)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return err
		}
		return fmt.Errorf("workflow: update component: %w", err)
	}
	return nil
}

// DeleteComponent deletes a component by its ID.
// No error if the component doesn't exist.
func (s *Store) DeleteComponent(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(componentPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("workflow: delete component: %w", err)
	}
	return nil
}

// ListComponents returns the components matching f in catalog order.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListComponents(ctx context.Context, f workflow.ComponentFilter) ([]workflow.Component, error) {
	components := []workflow.Component{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, componentPrefix, func(raw []byte) error {
			var c workflow.Component
			if err := json.Unmarshal(raw, &c); err != nil {
				return err
			}
			if f.Match(c) {
				components = append(components, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: list components: %w", err)
	}
	workflow.SortComponents(components)
	return components, nil
}

// Search returns catalog entries whose name contains query, ignoring case.
func (s *Store) Search(ctx context.Context, query string) ([]workflow.CatalogEntry, error) {
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
func (s *Store) GetByID(ctx context.Context, id string) (*workflow.CatalogEntry, error) {
	c, err := s.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	e := c.Entry()
	return &e, nil
}
