package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	workflows map[string]workflow.Workflow
	saveErr   error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{workflows: make(map[string]workflow.Workflow)}
}

func (s *fakeStore) Save(_ context.Context, wf workflow.Workflow) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.workflows[wf.ID] = wf
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (workflow.Workflow, bool, error) {
	wf, ok := s.workflows[id]
	return wf, ok, nil
}

func (s *fakeStore) List(_ context.Context) ([]workflow.Metadata, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]workflow.Metadata, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, workflow.Metadata{ID: wf.ID, Name: wf.Name})
	}
	return out, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.workflows[id]; !ok {
		return false, nil
	}
	delete(s.workflows, id)
	return true, nil
}

type fakeRegistry struct {
	reloaded []string
	removed  []string
	err      error
}

func (r *fakeRegistry) Reload(_ context.Context, id string) error {
	if r.err != nil {
		return r.err
	}
	r.reloaded = append(r.reloaded, id)
	return nil
}

func (r *fakeRegistry) Remove(id string) {
	r.removed = append(r.removed, id)
}

type fakeScheduler struct {
	updated []string
	removed []string
	err     error
}

func (s *fakeScheduler) AddOrUpdate(wf workflow.Workflow) error {
	if s.err != nil {
		return s.err
	}
	s.updated = append(s.updated, wf.ID)
	return nil
}

func (s *fakeScheduler) Remove(id string) {
	s.removed = append(s.removed, id)
}

func cronlessWorkflow(id, name string) workflow.Workflow {
	return workflow.Workflow{
		ID:   id,
		Name: name,
		Nodes: []workflow.Node{
			{ID: "hook", Type: workflow.NodeWebhook, Params: map[string]any{"path": "/in"}},
		},
	}
}

func newTestRouter() (*gin.Engine, *fakeStore, *fakeRegistry, *fakeScheduler) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	registry := &fakeRegistry{}
	scheduler := &fakeScheduler{}
	api := &WorkflowAPI{Store: store, Registry: registry, Scheduler: scheduler}
	engine := gin.New()
	group := engine.Group("/api")
	api.RegisterWorkflowRoutes(group)
	return engine, store, registry, scheduler
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCreateWorkflowSuccess(t *testing.T) {
	engine, store, registry, scheduler := newTestRouter()
	wf := cronlessWorkflow("wf1", "My Flow")

	rec := doJSON(t, engine, http.MethodPost, "/api/workflows", wf)
	assert.Equal(t, http.StatusCreated, rec.Code)

	_, ok := store.workflows["wf1"]
	assert.True(t, ok)
	assert.Contains(t, registry.reloaded, "wf1")
	assert.Contains(t, scheduler.updated, "wf1")
}

func TestCreateWorkflowRejectsEmptyID(t *testing.T) {
	engine, _, _, _ := newTestRouter()
	wf := cronlessWorkflow("", "My Flow")

	rec := doJSON(t, engine, http.MethodPost, "/api/workflows", wf)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWorkflowConflict(t *testing.T) {
	engine, store, _, _ := newTestRouter()
	wf := cronlessWorkflow("wf1", "My Flow")
	store.workflows["wf1"] = wf

	rec := doJSON(t, engine, http.MethodPost, "/api/workflows", wf)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetWorkflowNotFound(t *testing.T) {
	engine, _, _, _ := newTestRouter()
	rec := doJSON(t, engine, http.MethodGet, "/api/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateWorkflowNotFound(t *testing.T) {
	engine, _, _, _ := newTestRouter()
	wf := cronlessWorkflow("wf1", "Renamed")
	rec := doJSON(t, engine, http.MethodPut, "/api/workflows/wf1", wf)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateWorkflowSuccess(t *testing.T) {
	engine, store, registry, scheduler := newTestRouter()
	store.workflows["wf1"] = cronlessWorkflow("wf1", "Original")

	wf := cronlessWorkflow("wf1", "Renamed")
	rec := doJSON(t, engine, http.MethodPut, "/api/workflows/wf1", wf)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", store.workflows["wf1"].Name)
	assert.Contains(t, registry.reloaded, "wf1")
	assert.Contains(t, scheduler.updated, "wf1")
}

func TestDeleteWorkflowNotFound(t *testing.T) {
	engine, _, registry, scheduler := newTestRouter()
	rec := doJSON(t, engine, http.MethodDelete, "/api/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	// Scheduler/registry removal is fire-and-forget ahead of the storage
	// check, so it's still called even when storage reports nothing to delete.
	assert.Contains(t, registry.removed, "missing")
	assert.Contains(t, scheduler.removed, "missing")
}

func TestDeleteWorkflowSuccess(t *testing.T) {
	engine, store, _, _ := newTestRouter()
	store.workflows["wf1"] = cronlessWorkflow("wf1", "Original")

	rec := doJSON(t, engine, http.MethodDelete, "/api/workflows/wf1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, ok := store.workflows["wf1"]
	assert.False(t, ok)
}

func TestListWorkflows(t *testing.T) {
	engine, store, _, _ := newTestRouter()
	store.workflows["wf1"] = cronlessWorkflow("wf1", "A")

	rec := doJSON(t, engine, http.MethodGet, "/api/workflows", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]workflow.Metadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["workflows"], 1)
}

// TestCreateWorkflowRegistryReloadFailureReturns500 covers a workflow that
// passes request validation (e.g. a well-formed cycle a->b->a) but is
// rejected by the registry at recompile time. That's a server-side
// reconciliation failure, not a bad request, so it must surface as 500.
func TestCreateWorkflowRegistryReloadFailureReturns500(t *testing.T) {
	engine, _, registry, _ := newTestRouter()
	registry.err = core.CompileError("workflow contains a cycle")

	wf := cronlessWorkflow("wf1", "Cyclic")
	rec := doJSON(t, engine, http.MethodPost, "/api/workflows", wf)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
