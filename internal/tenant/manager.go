// Package tenant manages per-tenant SQLite storage: a project database
// (workflows, secrets, metadata) and a simpletable database (dynamic
// tables created on demand by SimpleTable* nodes). Each is a lazily
// created, process-lifetime-cached *sql.DB behind double-checked locking.
package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/insanalamin/mechaway/internal/core"
	_ "modernc.org/sqlite"
)

const sqliteDSNSuffix = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

// Manager owns the lazily-created per-tenant pools.
type Manager struct {
	dataDir string

	projectMu    sync.RWMutex
	projectPools map[string]*sql.DB

	simpleMu    sync.RWMutex
	simplePools map[string]*sql.DB
}

// New creates a Manager rooted at dataDir. Pools are created on first
// access, not here.
func New(dataDir string) *Manager {
	return &Manager{
		dataDir:      dataDir,
		projectPools: make(map[string]*sql.DB),
		simplePools:  make(map[string]*sql.DB),
	}
}

// ProjectPool returns the project.db connection for slug, creating and
// schema-initializing it on first access. Double-checked locking keeps the
// common case (pool already cached) lock-free except for a brief RLock.
func (m *Manager) ProjectPool(ctx context.Context, slug string) (*sql.DB, error) {
	m.projectMu.RLock()
	if db, ok := m.projectPools[slug]; ok {
		m.projectMu.RUnlock()
		return db, nil
	}
	m.projectMu.RUnlock()

	m.projectMu.Lock()
	defer m.projectMu.Unlock()
	if db, ok := m.projectPools[slug]; ok {
		return db, nil
	}

	db, err := m.openPool(slug, "project.db")
	if err != nil {
		return nil, err
	}
	if err := initProjectSchema(ctx, db); err != nil {
		db.Close()
		return nil, core.StorageError("failed to initialize project schema for "+slug, err)
	}
	m.projectPools[slug] = db
	return db, nil
}

// SimpletablePool returns the simpletable.db connection for slug, creating
// it on first access. No schema is initialized up front — SimpleTable*
// nodes create their own tables lazily.
func (m *Manager) SimpletablePool(_ context.Context, slug string) (*sql.DB, error) {
	m.simpleMu.RLock()
	if db, ok := m.simplePools[slug]; ok {
		m.simpleMu.RUnlock()
		return db, nil
	}
	m.simpleMu.RUnlock()

	m.simpleMu.Lock()
	defer m.simpleMu.Unlock()
	if db, ok := m.simplePools[slug]; ok {
		return db, nil
	}

	db, err := m.openPool(slug, "simpletable.db")
	if err != nil {
		return nil, err
	}
	m.simplePools[slug] = db
	return db, nil
}

func (m *Manager) openPool(slug, filename string) (*sql.DB, error) {
	dir := filepath.Join(m.dataDir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.StorageError(
			fmt.Sprintf("failed to create tenant directory %s", dir), err)
	}
	dsn := filepath.Join(dir, filename) + sqliteDSNSuffix
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.StorageError("failed to open "+filename+" for "+slug, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func initProjectSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			definition TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS project_secrets (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			value TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS project_metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_name ON workflows(name)`,
		`CREATE INDEX IF NOT EXISTS idx_secrets_key ON project_secrets(key)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// PoolStats reports how many project/simpletable pools are currently open,
// for monitoring.
func (m *Manager) PoolStats() (projectCount, simpletableCount int) {
	m.projectMu.RLock()
	projectCount = len(m.projectPools)
	m.projectMu.RUnlock()

	m.simpleMu.RLock()
	simpletableCount = len(m.simplePools)
	m.simpleMu.RUnlock()
	return
}

// GetSecret resolves a tenant-scoped secret by key from project_secrets,
// falling back to the MECHAWAY_SECRET_<KEY> environment variable when the
// table has no row for it.
func (m *Manager) GetSecret(ctx context.Context, slug, key string) (string, bool, error) {
	db, err := m.ProjectPool(ctx, slug)
	if err != nil {
		return "", false, err
	}
	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM project_secrets WHERE key = ?`, key).Scan(&value)
	if err == nil {
		return value, true, nil
	}
	if err != sql.ErrNoRows {
		return "", false, core.StorageError("failed to read secret "+key, err)
	}
	if env, ok := os.LookupEnv(envSecretName(key)); ok {
		return env, true, nil
	}
	return "", false, nil
}

func envSecretName(key string) string {
	out := make([]byte, 0, len(key)+16)
	out = append(out, "MECHAWAY_SECRET_"...)
	for _, r := range key {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, byte(r))
	}
	return string(out)
}
