// Package cron runs a workflow's Cron-type trigger nodes on a schedule.
// Jobs are keyed by "<workflow_id>:<node_id>" so a workflow update can
// remove and re-add exactly its own jobs without disturbing anyone else's,
// and a job that fires after its workflow was deleted re-checks the
// registry and skips silently instead of erroring.
package cron

import (
	"context"
	"strings"
	"sync"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/dag"
	"github.com/insanalamin/mechaway/internal/workflow"
	"github.com/insanalamin/mechaway/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Registry is the subset of the compiled-workflow registry the scheduler
// needs: looking a workflow up again at fire time, and listing every
// workflow at startup to register their existing cron triggers.
type Registry interface {
	Get(id string) (workflow.CompiledWorkflow, bool)
	AllWorkflows() []workflow.Workflow
}

// Scheduler owns a robfig/cron/v3 runner and the composite-key -> EntryID
// map that makes per-workflow hot reload possible.
type Scheduler struct {
	cron     *cron.Cron
	registry Registry
	exec     dag.NodeExecutor
	log      logger.Logger

	mu      sync.RWMutex
	entries map[string]cron.EntryID
}

// New creates a Scheduler. Start must be called once before jobs fire.
func New(registry Registry, exec dag.NodeExecutor, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.FromContext(context.Background())
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		exec:     exec,
		log:      log,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start registers every cron trigger already present in the registry and
// begins the background dispatch loop.
func (s *Scheduler) Start() error {
	for _, wf := range s.registry.AllWorkflows() {
		if err := s.AddOrUpdate(wf); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop, waits for any in-flight job to finish, and
// clears the job table.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.mu.Lock()
	s.entries = make(map[string]cron.EntryID)
	s.mu.Unlock()
}

func jobKey(workflowID, nodeID string) string {
	return workflowID + ":" + nodeID
}

// AddOrUpdate removes every job previously registered for wf's id and
// re-adds one job per Cron node currently in wf. Calling this for an
// unchanged workflow is a correct, if wasteful, no-op-equivalent.
func (s *Scheduler) AddOrUpdate(wf workflow.Workflow) error {
	s.Remove(wf.ID)

	for _, node := range wf.Nodes {
		if node.Type != workflow.NodeCron {
			continue
		}
		schedule, ok := node.Params["schedule"].(string)
		if !ok || schedule == "" {
			return core.BadNode("Cron node " + node.ID + " missing 'schedule' parameter")
		}
		workflowID, nodeID := wf.ID, node.ID
		entryID, err := s.cron.AddFunc(schedule, func() {
			s.fire(workflowID, nodeID)
		})
		if err != nil {
			return core.BadNode("Cron node " + node.ID + " has an invalid schedule: " + schedule)
		}

		s.mu.Lock()
		s.entries[jobKey(workflowID, nodeID)] = entryID
		s.mu.Unlock()
	}
	return nil
}

// Remove un-registers every job belonging to workflowID.
func (s *Scheduler) Remove(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := workflowID + ":"
	for key, entryID := range s.entries {
		if strings.HasPrefix(key, prefix) {
			s.cron.Remove(entryID)
			delete(s.entries, key)
		}
	}
}

// fire re-reads the registry at trigger time so a workflow deleted between
// scheduling and firing is skipped rather than executed against stale data.
func (s *Scheduler) fire(workflowID, nodeID string) {
	cw, ok := s.registry.Get(workflowID)
	if !ok {
		s.log.Debug("skipping cron trigger for deleted workflow", "workflow_id", workflowID)
		return
	}

	ec := workflow.FromCronTrigger(workflowID, nodeID, "default")
	ctx := context.Background()
	result, err := dag.Run(ctx, cw, nodeID, ec, s.exec)
	if err != nil {
		s.log.Error("cron-triggered workflow failed", "workflow_id", workflowID, "node_id", nodeID, "error", err)
		return
	}
	s.log.Debug("cron-triggered workflow completed", "workflow_id", workflowID, "continue", result.Continue)
}
