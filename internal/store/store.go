// Package store persists workflow definitions as a thin layer over the
// tenant manager's "default" project pool.
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/workflow"
)

const defaultTenant = "default"

// PoolProvider resolves the backing *sql.DB for a tenant slug.
type PoolProvider interface {
	ProjectPool(ctx context.Context, slug string) (*sql.DB, error)
}

// Store is the durable workflow_id -> Workflow map.
type Store struct {
	pools PoolProvider
}

// New creates a Store backed by pools.
func New(pools PoolProvider) *Store {
	return &Store{pools: pools}
}

func (s *Store) db(ctx context.Context) (*sql.DB, error) {
	db, err := s.pools.ProjectPool(ctx, defaultTenant)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Save upserts wf, refreshing its updated_at timestamp.
func (s *Store) Save(ctx context.Context, wf workflow.Workflow) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	definition, err := json.Marshal(wf)
	if err != nil {
		return core.StorageError("failed to marshal workflow "+wf.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, definition, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			definition = excluded.definition,
			updated_at = CURRENT_TIMESTAMP
	`, wf.ID, wf.Name, string(definition))
	if err != nil {
		return core.StorageError("failed to save workflow "+wf.ID, err)
	}
	return nil
}

// Get returns the workflow with id, or ok=false if none exists.
func (s *Store) Get(ctx context.Context, id string) (workflow.Workflow, bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return workflow.Workflow{}, false, err
	}
	var definition string
	err = db.QueryRowContext(ctx, `SELECT definition FROM workflows WHERE id = ?`, id).Scan(&definition)
	if err == sql.ErrNoRows {
		return workflow.Workflow{}, false, nil
	}
	if err != nil {
		return workflow.Workflow{}, false, core.StorageError("failed to read workflow "+id, err)
	}
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(definition), &wf); err != nil {
		return workflow.Workflow{}, false, core.StorageError("corrupt workflow definition for "+id, err)
	}
	return wf, true, nil
}

// List returns metadata for every stored workflow, newest-updated first.
func (s *Store) List(ctx context.Context) ([]workflow.Metadata, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM workflows ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, core.StorageError("failed to list workflows", err)
	}
	defer rows.Close()

	var out []workflow.Metadata
	for rows.Next() {
		var m workflow.Metadata
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, core.StorageError("failed to scan workflow row", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadAll returns every stored workflow keyed by id, for registry bootstrap.
func (s *Store) LoadAll(ctx context.Context) (map[string]workflow.Workflow, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, definition FROM workflows`)
	if err != nil {
		return nil, core.StorageError("failed to load workflows", err)
	}
	defer rows.Close()

	out := make(map[string]workflow.Workflow)
	for rows.Next() {
		var id, definition string
		if err := rows.Scan(&id, &definition); err != nil {
			return nil, core.StorageError("failed to scan workflow row", err)
		}
		var wf workflow.Workflow
		if err := json.Unmarshal([]byte(definition), &wf); err != nil {
			return nil, core.StorageError("corrupt workflow definition for "+id, err)
		}
		out[id] = wf
	}
	return out, rows.Err()
}

// Delete removes id from storage. Returns whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return false, err
	}
	result, err := db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return false, core.StorageError("failed to delete workflow "+id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, core.StorageError("failed to read delete result for "+id, err)
	}
	return n > 0, nil
}
