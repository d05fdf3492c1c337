package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/workflow"
)

// WorkflowStore is the subset of the durable workflow store the management
// API needs.
type WorkflowStore interface {
	Save(ctx context.Context, wf workflow.Workflow) error
	Get(ctx context.Context, id string) (workflow.Workflow, bool, error)
	List(ctx context.Context) ([]workflow.Metadata, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// WorkflowRegistry is the subset of the compiled-workflow registry the
// management API needs.
type WorkflowRegistry interface {
	Reload(ctx context.Context, workflowID string) error
	Remove(workflowID string)
}

// CronScheduler is the subset of the cron scheduler the management API
// needs to keep triggers in sync with stored workflow definitions.
type CronScheduler interface {
	AddOrUpdate(wf workflow.Workflow) error
	Remove(workflowID string)
}

// WorkflowAPI holds the dependencies behind the workflow CRUD routes.
type WorkflowAPI struct {
	Store     WorkflowStore
	Registry  WorkflowRegistry
	Scheduler CronScheduler

	// Validator runs struct-tag and cron-schedule validation ahead of any
	// storage access. A nil Validator is replaced with a default one on
	// first use.
	Validator *workflow.Validator
}

func (a *WorkflowAPI) validator() *workflow.Validator {
	if a.Validator == nil {
		a.Validator = workflow.NewValidator()
	}
	return a.Validator
}

// RegisterWorkflowRoutes mounts the workflow management routes under api.
func (a *WorkflowAPI) RegisterWorkflowRoutes(api *gin.RouterGroup) {
	workflows := api.Group("/workflows")
	{
		workflows.POST("", a.createWorkflow)
		workflows.GET("", a.listWorkflows)
		workflows.GET("/:id", a.getWorkflow)
		workflows.PUT("/:id", a.updateWorkflow)
		workflows.DELETE("/:id", a.deleteWorkflow)
	}
}

func (a *WorkflowAPI) createWorkflow(c *gin.Context) {
	var wf workflow.Workflow
	if err := c.ShouldBindJSON(&wf); err != nil {
		respondError(c, core.BadRequest("invalid workflow payload: "+err.Error()))
		return
	}
	if wf.ID == "" || wf.Name == "" {
		respondError(c, core.BadRequest("workflow id and name are required"))
		return
	}
	if err := a.validator().Validate(wf); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	_, exists, err := a.Store.Get(ctx, wf.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if exists {
		respondError(c, core.Conflict("workflow already exists: "+wf.ID))
		return
	}

	if err := a.saveAndReconcile(ctx, wf); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      wf.ID,
		"message": "Workflow '" + wf.Name + "' created successfully",
	})
}

func (a *WorkflowAPI) listWorkflows(c *gin.Context) {
	list, err := a.Store.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"workflows": list})
}

func (a *WorkflowAPI) getWorkflow(c *gin.Context) {
	id := c.Param("id")
	wf, ok, err := a.Store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, core.NotFound("workflow not found: "+id))
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (a *WorkflowAPI) updateWorkflow(c *gin.Context) {
	id := c.Param("id")
	var wf workflow.Workflow
	if err := c.ShouldBindJSON(&wf); err != nil {
		respondError(c, core.BadRequest("invalid workflow payload: "+err.Error()))
		return
	}
	wf.ID = id
	if wf.Name == "" {
		respondError(c, core.BadRequest("workflow name is required"))
		return
	}
	if err := a.validator().Validate(wf); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	_, exists, err := a.Store.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !exists {
		respondError(c, core.NotFound("workflow not found: "+id))
		return
	}

	if err := a.saveAndReconcile(ctx, wf); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{"id": wf.ID, "message": "Workflow '" + wf.Name + "' updated successfully"})
}

// saveAndReconcile persists wf then brings the registry and cron scheduler
// in line with it, in that order: a reload failure after a successful save
// still leaves storage consistent for the next reload attempt. wf has
// already passed request validation by this point, so any failure here —
// including a registry recompile rejecting wf (e.g. a cycle) — is a
// server-side reconciliation failure, not a bad request, and is reported
// as such regardless of the underlying error's Kind.
func (a *WorkflowAPI) saveAndReconcile(ctx context.Context, wf workflow.Workflow) error {
	if err := a.Store.Save(ctx, wf); err != nil {
		return err
	}
	if err := a.Registry.Reload(ctx, wf.ID); err != nil {
		return core.StorageError("failed to reload workflow into registry", err)
	}
	if err := a.Scheduler.AddOrUpdate(wf); err != nil {
		return core.StorageError("failed to schedule workflow", err)
	}
	return nil
}

func (a *WorkflowAPI) deleteWorkflow(c *gin.Context) {
	id := c.Param("id")
	a.Scheduler.Remove(id)
	a.Registry.Remove(id)

	deleted, err := a.Store.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		respondError(c, core.NotFound("workflow not found: "+id))
		return
	}
	respondOK(c, gin.H{"message": "Workflow deleted successfully"})
}
