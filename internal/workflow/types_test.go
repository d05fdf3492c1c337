package workflow

import (
	"testing"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileExtractsWebhookPathsAndEntryNodes(t *testing.T) {
	wf := Workflow{
		ID:   "wf-grading",
		Name: "grading",
		Nodes: []Node{
			{ID: "hook", Type: NodeWebhook, Params: map[string]any{"path": "/grade"}},
			{ID: "logic", Type: NodeFunLogic, Params: map[string]any{"script": "return data"}},
		},
		Edges: []Edge{{From: "hook", To: "logic"}},
	}

	compiled, err := Compile(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"hook"}, compiled.EntryNodeIDs)
	assert.Equal(t, []string{"/grade"}, compiled.WebhookPaths)
}

func TestCompileRejectsDanglingEdge(t *testing.T) {
	wf := Workflow{
		ID:   "wf-bad",
		Name: "bad",
		Nodes: []Node{
			{ID: "hook", Type: NodeWebhook, Params: map[string]any{"path": "/x"}},
		},
		Edges: []Edge{{From: "hook", To: "ghost"}},
	}

	_, err := Compile(wf)
	require.Error(t, err)
	assert.Equal(t, core.KindCompileError, core.Of(err))
}

func TestCompileRejectsWorkflowWithNoEntryNode(t *testing.T) {
	wf := Workflow{
		ID:   "wf-no-entry",
		Name: "no entry",
		Nodes: []Node{
			{ID: "logic", Type: NodeFunLogic, Params: map[string]any{"script": "return data"}},
		},
	}

	_, err := Compile(wf)
	require.Error(t, err)
	assert.Equal(t, core.KindCompileError, core.Of(err))
}

func TestCompileRejectsReservedTriggerTypeAsEntryNode(t *testing.T) {
	wf := Workflow{
		ID:   "wf-reserved-only",
		Name: "reserved only",
		Nodes: []Node{
			{ID: "ws", Type: NodeWebSocketTrigger},
			{ID: "logic", Type: NodeFunLogic, Params: map[string]any{"script": "return data"}},
		},
		Edges: []Edge{{From: "ws", To: "logic"}},
	}

	_, err := Compile(wf)
	require.Error(t, err)
	assert.Equal(t, core.KindCompileError, core.Of(err))
}

func TestNodeTypeIsTrigger(t *testing.T) {
	assert.True(t, NodeWebhook.IsTrigger())
	assert.True(t, NodeCron.IsTrigger())
	assert.True(t, NodeMQTTTrigger.IsTrigger())
	assert.False(t, NodeFunLogic.IsTrigger())
	assert.False(t, NodeHTTPClient.IsTrigger())
}

func TestFromWebhookDataWrapsPayload(t *testing.T) {
	ctx := FromWebhookData("wf1", map[string]any{"a": 1}, "default")
	require.Len(t, ctx.Data, 1)
	assert.Equal(t, "wf1", ctx.Metadata["workflow_id"])
	assert.Equal(t, "default", ctx.ProjectSlug)
}

func TestFromCronTriggerShapesPayload(t *testing.T) {
	ctx := FromCronTrigger("wf1", "cron-1", "default")
	require.Len(t, ctx.Data, 1)
	trigger := ctx.Data[0].(map[string]any)
	assert.Equal(t, "cron", trigger["trigger_type"])
	assert.Equal(t, "cron", ctx.Metadata["trigger_type"])
}
