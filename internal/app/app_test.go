package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{Host: "127.0.0.1", Port: 0, DataDir: t.TempDir()}
	a, err := New(cfg, logger.NewLogger(logger.TestConfig()))
	require.NoError(t, err)
	return a
}

func TestCreateWorkflowThenInvokeWebhook(t *testing.T) {
	a := newTestApp(t)

	workflowJSON := []byte(`{
		"id": "greet",
		"name": "Greeter",
		"nodes": [
			{"id": "hook", "type": "Webhook", "params": {"path": "/greet"}},
			{"id": "reply", "type": "FunLogic", "params": {"script": "return {greeting = 'hi ' .. data[1].name}"}}
		],
		"edges": [{"from": "hook", "to": "reply"}]
	}`)

	createReq := httptest.NewRequest(http.MethodPost, "/api/workflows", bytes.NewReader(workflowJSON))
	createReq.Header.Set("Content-Type", "application/json")
	createRec := httptest.NewRecorder()
	a.router.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)

	webhookReq := httptest.NewRequest(http.MethodPost, "/webhook/greet/greet", bytes.NewBufferString(`{"name":"ada"}`))
	webhookRec := httptest.NewRecorder()
	a.router.ServeHTTP(webhookRec, webhookReq)
	require.Equal(t, http.StatusOK, webhookRec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(webhookRec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "hi ada", body[0]["greeting"])
}

func TestHealthzReturnsOK(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestDeletingWorkflowRemovesWebhookRoute(t *testing.T) {
	a := newTestApp(t)

	workflowJSON := []byte(`{
		"id": "temp",
		"name": "Temp",
		"nodes": [
			{"id": "hook", "type": "Webhook", "params": {"path": "/temp"}},
			{"id": "noop", "type": "FunLogic", "params": {"script": "return data[1]"}}
		],
		"edges": [{"from": "hook", "to": "noop"}]
	}`)
	createReq := httptest.NewRequest(http.MethodPost, "/api/workflows", bytes.NewReader(workflowJSON))
	createReq.Header.Set("Content-Type", "application/json")
	a.router.ServeHTTP(httptest.NewRecorder(), createReq)

	deleteReq := httptest.NewRequest(http.MethodDelete, "/api/workflows/temp", nil)
	deleteRec := httptest.NewRecorder()
	a.router.ServeHTTP(deleteRec, deleteReq)
	require.Equal(t, http.StatusOK, deleteRec.Code)

	webhookReq := httptest.NewRequest(http.MethodPost, "/webhook/temp/temp", bytes.NewBufferString(`{}`))
	webhookRec := httptest.NewRecorder()
	a.router.ServeHTTP(webhookRec, webhookReq)
	assert.Equal(t, http.StatusNotFound, webhookRec.Code)
}
