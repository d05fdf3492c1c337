// Package registry holds the hot-reload, lock-free compiled-workflow table.
// Readers dereference an atomic pointer with no locking; writers build a
// whole new map and swap the pointer in, serialized by a mutex so
// concurrent writers never race each other.
package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/workflow"
)

// Store is the subset of workflow persistence the registry needs to
// (re)populate itself.
type Store interface {
	Get(ctx context.Context, id string) (workflow.Workflow, bool, error)
	LoadAll(ctx context.Context) (map[string]workflow.Workflow, error)
}

// Registry is the in-memory table of compiled workflows.
type Registry struct {
	table   atomic.Pointer[map[string]workflow.CompiledWorkflow]
	writeMu sync.Mutex
	store   Store
}

// New creates an empty Registry backed by store.
func New(store Store) *Registry {
	r := &Registry{store: store}
	empty := map[string]workflow.CompiledWorkflow{}
	r.table.Store(&empty)
	return r
}

// InitFromStore loads every workflow from the store, compiles them, and
// atomically installs the result as the registry's initial table.
func (r *Registry) InitFromStore(ctx context.Context) error {
	raw, err := r.store.LoadAll(ctx)
	if err != nil {
		return core.StorageError("failed to load workflows from storage", err)
	}

	compiled := make(map[string]workflow.CompiledWorkflow, len(raw))
	for id, wf := range raw {
		cw, err := workflow.Compile(wf)
		if err != nil {
			return err
		}
		compiled[id] = cw
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.table.Store(&compiled)
	return nil
}

// Reload re-reads workflowID from the store, recompiles it, and installs
// the new compiled workflow via copy-on-write. Returns NotFound if the
// store no longer has it.
func (r *Registry) Reload(ctx context.Context, workflowID string) error {
	wf, ok, err := r.store.Get(ctx, workflowID)
	if err != nil {
		return core.StorageError("failed to load workflow "+workflowID, err)
	}
	if !ok {
		return core.NotFound("workflow not found: " + workflowID)
	}

	cw, err := workflow.Compile(wf)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	current := *r.table.Load()
	next := make(map[string]workflow.CompiledWorkflow, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[workflowID] = cw
	r.table.Store(&next)
	return nil
}

// Remove deletes workflowID from the registry. A no-op if it's absent.
func (r *Registry) Remove(workflowID string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	current := *r.table.Load()
	if _, ok := current[workflowID]; !ok {
		return
	}
	next := make(map[string]workflow.CompiledWorkflow, len(current)-1)
	for k, v := range current {
		if k != workflowID {
			next[k] = v
		}
	}
	r.table.Store(&next)
}

// Get returns the compiled workflow for id, lock-free.
func (r *Registry) Get(id string) (workflow.CompiledWorkflow, bool) {
	cw, ok := (*r.table.Load())[id]
	return cw, ok
}

// ListIDs returns every currently-registered workflow id.
func (r *Registry) ListIDs() []string {
	current := *r.table.Load()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	return ids
}

// AllWorkflows returns every currently-registered workflow definition, used
// by the cron scheduler to reconcile its job table.
func (r *Registry) AllWorkflows() []workflow.Workflow {
	current := *r.table.Load()
	out := make([]workflow.Workflow, 0, len(current))
	for _, cw := range current {
		out = append(out, cw.Workflow)
	}
	return out
}

// WebhookRoutes returns a flattened webhook-path -> workflow-id map across
// every registered workflow.
func (r *Registry) WebhookRoutes() map[string]string {
	current := *r.table.Load()
	routes := make(map[string]string)
	for id, cw := range current {
		for _, path := range cw.WebhookPaths {
			routes[path] = id
		}
	}
	return routes
}
