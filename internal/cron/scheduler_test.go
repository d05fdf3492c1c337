package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/insanalamin/mechaway/internal/workflow"
	"github.com/insanalamin/mechaway/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu        sync.Mutex
	workflows map[string]workflow.CompiledWorkflow
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{workflows: make(map[string]workflow.CompiledWorkflow)}
}

func (r *fakeRegistry) put(wf workflow.Workflow) {
	cw, err := workflow.Compile(wf)
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	r.workflows[wf.ID] = cw
	r.mu.Unlock()
}

func (r *fakeRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.workflows, id)
	r.mu.Unlock()
}

func (r *fakeRegistry) Get(id string) (workflow.CompiledWorkflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cw, ok := r.workflows[id]
	return cw, ok
}

func (r *fakeRegistry) AllWorkflows() []workflow.Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []workflow.Workflow
	for _, cw := range r.workflows {
		out = append(out, cw.Workflow)
	}
	return out
}

type countingExecutor struct {
	mu    sync.Mutex
	count int
}

func (c *countingExecutor) Execute(_ context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return workflow.ExecutionResult{Data: ec.Data, Continue: true}, nil
}

func (c *countingExecutor) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func cronWorkflow(id, schedule string) workflow.Workflow {
	return workflow.Workflow{
		ID: id,
		Nodes: []workflow.Node{
			{ID: "trigger", Type: workflow.NodeCron, Params: map[string]any{"schedule": schedule}},
			{ID: "work", Type: workflow.NodeFunLogic, Params: map[string]any{"script": "return {}"}},
		},
		Edges: []workflow.Edge{{From: "trigger", To: "work"}},
	}
}

func TestAddOrUpdateRejectsMissingSchedule(t *testing.T) {
	reg := newFakeRegistry()
	s := New(reg, &countingExecutor{}, logger.NewLogger(logger.TestConfig()))

	wf := workflow.Workflow{
		ID:    "wf1",
		Nodes: []workflow.Node{{ID: "trigger", Type: workflow.NodeCron}},
	}
	err := s.AddOrUpdate(wf)
	require.Error(t, err)
}

func TestAddOrUpdateRegistersOneEntryPerCronNode(t *testing.T) {
	reg := newFakeRegistry()
	s := New(reg, &countingExecutor{}, logger.NewLogger(logger.TestConfig()))

	wf := cronWorkflow("wf1", "* * * * * *")
	require.NoError(t, s.AddOrUpdate(wf))

	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestAddOrUpdateReplacesPriorEntries(t *testing.T) {
	reg := newFakeRegistry()
	s := New(reg, &countingExecutor{}, logger.NewLogger(logger.TestConfig()))

	wf := cronWorkflow("wf1", "* * * * * *")
	require.NoError(t, s.AddOrUpdate(wf))
	s.mu.Lock()
	firstEntry := s.entries[jobKey("wf1", "trigger")]
	s.mu.Unlock()

	require.NoError(t, s.AddOrUpdate(wf))
	s.mu.Lock()
	secondEntry := s.entries[jobKey("wf1", "trigger")]
	count := len(s.entries)
	s.mu.Unlock()

	assert.NotEqual(t, firstEntry, secondEntry, "re-adding must replace, not accumulate, the job")
	assert.Equal(t, 1, count)
}

func TestRemoveDropsOnlyMatchingWorkflow(t *testing.T) {
	reg := newFakeRegistry()
	s := New(reg, &countingExecutor{}, logger.NewLogger(logger.TestConfig()))

	require.NoError(t, s.AddOrUpdate(cronWorkflow("wf1", "* * * * * *")))
	require.NoError(t, s.AddOrUpdate(cronWorkflow("wf1-archive", "* * * * * *")))

	s.Remove("wf1")

	s.mu.Lock()
	_, wf1Present := s.entries[jobKey("wf1", "trigger")]
	_, archivePresent := s.entries[jobKey("wf1-archive", "trigger")]
	s.mu.Unlock()

	assert.False(t, wf1Present)
	assert.True(t, archivePresent, "prefix removal must not match a different workflow id that happens to share a prefix")
}

func TestFireSkipsDeletedWorkflow(t *testing.T) {
	reg := newFakeRegistry()
	exec := &countingExecutor{}
	s := New(reg, exec, logger.NewLogger(logger.TestConfig()))

	s.fire("missing-workflow", "trigger")
	assert.Equal(t, 0, exec.calls())
}

func TestFireExecutesFromTriggerNode(t *testing.T) {
	reg := newFakeRegistry()
	wf := cronWorkflow("wf1", "* * * * * *")
	reg.put(wf)
	exec := &countingExecutor{}
	s := New(reg, exec, logger.NewLogger(logger.TestConfig()))

	s.fire("wf1", "trigger")
	assert.Equal(t, 1, exec.calls())
}

func TestStartAndStopDoesNotPanic(t *testing.T) {
	reg := newFakeRegistry()
	reg.put(cronWorkflow("wf1", "* * * * * *"))
	s := New(reg, &countingExecutor{}, logger.NewLogger(logger.TestConfig()))

	require.NoError(t, s.Start())
	time.Sleep(10 * time.Millisecond)
	s.Stop()
}
