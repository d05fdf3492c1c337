package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/insanalamin/mechaway/internal/dag"
	"github.com/insanalamin/mechaway/internal/workflow"
	"github.com/insanalamin/mechaway/pkg/logger"
)

// WebhookRegistry is the subset of the compiled-workflow registry the
// webhook dispatcher needs to look workflows up at request time.
type WebhookRegistry interface {
	Get(id string) (workflow.CompiledWorkflow, bool)
}

// WebhookAPI executes a workflow in response to an inbound webhook call.
type WebhookAPI struct {
	Registry WebhookRegistry
	Executor dag.NodeExecutor
	Log      logger.Logger
}

// RegisterWebhookRoutes mounts the catch-all webhook route on engine.
func (a *WebhookAPI) RegisterWebhookRoutes(engine gin.IRouter) {
	engine.Any("/webhook/:workflow_id/*path", a.handleWebhook)
}

func (a *WebhookAPI) handleWebhook(c *gin.Context) {
	workflowID := c.Param("workflow_id")
	webhookPath := c.Param("path")
	if !strings.HasPrefix(webhookPath, "/") {
		webhookPath = "/" + webhookPath
	}

	log := a.Log
	if log == nil {
		log = logger.FromContext(c.Request.Context())
	}
	log.Debug("webhook request received", "workflow_id", workflowID, "path", webhookPath)

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var payload any
	if len(raw) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(raw, &payload); err != nil {
		log.Warn("invalid webhook json payload", "workflow_id", workflowID, "path", webhookPath, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	cw, ok := a.Registry.Get(workflowID)
	if !ok {
		log.Warn("webhook called for unknown workflow", "workflow_id", workflowID)
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}

	startNodeID, ok := findWebhookNode(cw, webhookPath)
	if !ok {
		log.Warn("no webhook node for path", "workflow_id", workflowID, "path", webhookPath)
		c.JSON(http.StatusNotFound, gin.H{"error": "no webhook registered at this path"})
		return
	}

	ec := workflow.FromWebhookData(workflowID, payload, "default")

	ctx := c.Request.Context()
	result, err := dag.Run(ctx, cw, startNodeID, ec, a.Executor)
	if err != nil {
		log.Error("webhook-triggered workflow failed", "workflow_id", workflowID, "node_id", startNodeID, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if result.Data == nil {
		result.Data = []any{}
	}
	c.JSON(http.StatusOK, result.Data)
}

// findWebhookNode searches cw's nodes for a Webhook-typed node whose "path"
// parameter matches webhookPath, returning its id as the execution start.
func findWebhookNode(cw workflow.CompiledWorkflow, webhookPath string) (string, bool) {
	for _, node := range cw.Workflow.Nodes {
		if node.Type != workflow.NodeWebhook {
			continue
		}
		path, _ := node.Params["path"].(string)
		if path == webhookPath {
			return node.ID, true
		}
	}
	return "", false
}
