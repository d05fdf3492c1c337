// Package dispatch implements the per-node-type execution handlers: the
// side-effecting half of a workflow run. Dispatcher satisfies
// dag.NodeExecutor.
package dispatch

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/workflow"
	"github.com/insanalamin/mechaway/pkg/logger"
	resty "github.com/go-resty/resty/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	lua "github.com/yuin/gopher-lua"
)

// TenantPools is the subset of *tenant.Manager the dispatcher needs.
type TenantPools interface {
	SimpletablePool(ctx context.Context, slug string) (*sql.DB, error)
	GetSecret(ctx context.Context, slug, key string) (string, bool, error)
}

// Dispatcher routes a node to its handler based on NodeType.
type Dispatcher struct {
	tenants TenantPools
	http    *resty.Client
	log     logger.Logger

	luaPool sync.Pool

	pgMu    sync.Mutex
	pgPools map[string]*pgxpool.Pool
}

// New creates a Dispatcher backed by tenants for simpletable storage and
// secrets, and a shared resty client for HTTPClient nodes.
func New(tenants TenantPools) *Dispatcher {
	return &Dispatcher{
		tenants: tenants,
		http:    resty.New(),
		log:     logger.FromContext(context.Background()),
		pgPools: make(map[string]*pgxpool.Pool),
		luaPool: sync.Pool{
			New: func() any { return lua.NewState() },
		},
	}
}

// WithLogger points d at log instead of the background default and returns
// d for chaining off New.
func (d *Dispatcher) WithLogger(log logger.Logger) *Dispatcher {
	d.log = log
	return d
}

// Execute dispatches node to its handler. Trigger-type nodes (Webhook,
// Cron, and the reserved MCP/WebSocket/MQTT variants) are entry anchors
// only and must never reach here. Before dispatch it stamps the node's
// identity and its own start time into ec.Metadata; after dispatch it
// logs how long the node took.
func (d *Dispatcher) Execute(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	if node.Type.IsTrigger() {
		return workflow.ExecutionResult{}, core.TriggerMisuse(
			"node " + node.ID + " is a trigger and cannot be executed mid-flow")
	}

	if ec.Metadata == nil {
		ec.Metadata = make(map[string]any)
	}
	ec.Metadata["current_node_id"] = node.ID
	ec.Metadata["current_node_type"] = string(node.Type)
	start := time.Now()
	ec.Metadata["execution_start"] = start.UTC().Format(time.RFC3339Nano)

	result, err := d.dispatch(ctx, node, ec)
	duration := time.Since(start)

	if err != nil {
		d.log.Debug("node execution failed",
			"node_id", node.ID, "node_type", string(node.Type), "duration", duration.String(), "error", err)
	} else {
		d.log.Debug("node execution finished",
			"node_id", node.ID, "node_type", string(node.Type), "duration", duration.String())
	}
	return result, err
}

func (d *Dispatcher) dispatch(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	switch node.Type {
	case workflow.NodeFunLogic:
		return d.executeFunLogic(node, ec)
	case workflow.NodeSimpleTableWriter:
		return d.executeSimpleTableWriter(ctx, node, ec)
	case workflow.NodeSimpleTableReader:
		return d.executeSimpleTableReader(ctx, node, ec)
	case workflow.NodeSimpleTableQuery:
		return d.executeSimpleTableQuery(ctx, node, ec)
	case workflow.NodeHTTPClient:
		return d.executeHTTPClient(ctx, node, ec)
	case workflow.NodePGQuery:
		return d.executePGQuery(ctx, node, ec)
	case workflow.NodePGDynTableWriter:
		return d.executePGDynTableWriter(ctx, node, ec)
	default:
		return workflow.ExecutionResult{}, core.BadNode("unknown node type: " + string(node.Type))
	}
}
