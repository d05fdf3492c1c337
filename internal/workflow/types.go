// Package workflow defines the core workflow/node/edge data model and
// compiles raw Workflow definitions into execution-ready CompiledWorkflows.
package workflow

import (
	"time"

	"github.com/insanalamin/mechaway/internal/core"
)

// NodeType is the closed set of node kinds mechaway understands.
type NodeType string

const (
	NodeWebhook           NodeType = "Webhook"
	NodeCron              NodeType = "Cron"
	NodeFunLogic          NodeType = "FunLogic"
	NodeSimpleTableWriter NodeType = "SimpleTableWriter"
	NodeSimpleTableReader NodeType = "SimpleTableReader"
	NodeSimpleTableQuery  NodeType = "SimpleTableQuery"
	NodeHTTPClient        NodeType = "HTTPClient"
	NodePGQuery           NodeType = "PGQuery"
	NodePGDynTableWriter  NodeType = "PGDynTableWriter"

	// Reserved trigger-only variants: valid entry anchors, never dispatched.
	NodeMCPTrigger       NodeType = "MCPTrigger"
	NodeWebSocketTrigger NodeType = "WebSocketTrigger"
	NodeMQTTTrigger      NodeType = "MQTTTrigger"
)

// IsTrigger reports whether t is an entry-anchor-only node type: one the
// DAG engine may use as an execution start but must never dispatch.
func (t NodeType) IsTrigger() bool {
	switch t {
	case NodeWebhook, NodeCron, NodeMCPTrigger, NodeWebSocketTrigger, NodeMQTTTrigger:
		return true
	default:
		return false
	}
}

// Node is a single unit in a workflow's DAG.
type Node struct {
	ID      string         `json:"id"               validate:"required"`
	Type    NodeType       `json:"type"             validate:"required"`
	Params  map[string]any `json:"params"`
	Inputs  []string       `json:"inputs,omitempty"`
	Outputs []string       `json:"outputs,omitempty"`
	Secrets []string       `json:"secrets,omitempty"`
}

// Edge connects two nodes within the same workflow.
type Edge struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to"   validate:"required"`
}

// Workflow is a full workflow definition as stored and served over the
// management API.
type Workflow struct {
	ID    string `json:"id"   validate:"required"`
	Name  string `json:"name" validate:"required"`
	Nodes []Node `json:"nodes" validate:"dive"`
	Edges []Edge `json:"edges" validate:"dive"`
}

// Metadata is the listing-friendly projection of a stored workflow.
type Metadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompiledWorkflow augments a Workflow with the execution metadata derived
// at compile time: its webhook paths and its entry node ids.
type CompiledWorkflow struct {
	Workflow     Workflow
	WebhookPaths []string
	EntryNodeIDs []string
}

// Compile validates wf's structural invariants and derives a
// CompiledWorkflow. It never mutates wf.
func Compile(wf Workflow) (CompiledWorkflow, error) {
	nodeIndex := make(map[string]Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodeIndex[n.ID] = n
	}
	for _, e := range wf.Edges {
		if _, ok := nodeIndex[e.From]; !ok {
			return CompiledWorkflow{}, core.CompileError(
				"edge references unknown node: " + e.From)
		}
		if _, ok := nodeIndex[e.To]; !ok {
			return CompiledWorkflow{}, core.CompileError(
				"edge references unknown node: " + e.To)
		}
	}

	depth := make(map[string]int, len(nodeIndex)) // longest path ending at each node; grows forever on a cycle
	for i := 0; i <= len(nodeIndex); i++ {
		changed := false
		for _, e := range wf.Edges {
			if depth[e.To] < depth[e.From]+1 {
				depth[e.To], changed = depth[e.From]+1, true
			}
		}
		if !changed {
			break
		}
		if i == len(nodeIndex) {
			return CompiledWorkflow{}, core.CycleError("workflow contains a cycle - must be a DAG")
		}
	}

	var webhookPaths []string
	var entryNodeIDs []string
	for _, n := range wf.Nodes {
		switch n.Type {
		case NodeWebhook:
			entryNodeIDs = append(entryNodeIDs, n.ID)
			if path, ok := n.Params["path"].(string); ok && path != "" {
				webhookPaths = append(webhookPaths, path)
			}
		case NodeCron:
			entryNodeIDs = append(entryNodeIDs, n.ID)
		}
	}

	if len(entryNodeIDs) == 0 {
		return CompiledWorkflow{}, core.CompileError(
			"workflow must have at least one entry node (Webhook or Cron)")
	}

	return CompiledWorkflow{
		Workflow:     wf,
		WebhookPaths: webhookPaths,
		EntryNodeIDs: entryNodeIDs,
	}, nil
}
