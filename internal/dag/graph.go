// Package dag builds and executes a workflow's node graph using a
// hand-rolled adjacency-list graph, topological sort, and reachability
// search — see DESIGN.md for why no graph library is used here.
package dag

import (
	"context"

	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/workflow"
)

// graph is the adjacency-list representation of a compiled workflow.
type graph struct {
	nodes    map[string]workflow.Node
	order    []string // insertion order, used for deterministic toposort
	outEdges map[string][]string
	inDegree map[string]int
}

func buildGraph(wf workflow.Workflow) (*graph, error) {
	g := &graph{
		nodes:    make(map[string]workflow.Node, len(wf.Nodes)),
		outEdges: make(map[string][]string, len(wf.Nodes)),
		inDegree: make(map[string]int, len(wf.Nodes)),
	}
	for _, n := range wf.Nodes {
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
		if _, ok := g.inDegree[n.ID]; !ok {
			g.inDegree[n.ID] = 0
		}
	}
	for _, e := range wf.Edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, core.CompileError("edge references unknown node: " + e.From)
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, core.CompileError("edge references unknown node: " + e.To)
		}
		g.outEdges[e.From] = append(g.outEdges[e.From], e.To)
		g.inDegree[e.To]++
	}
	return g, nil
}

// topoOrder returns a topologically sorted node-id list via Kahn's
// algorithm, or a CycleError if the graph has a cycle.
func (g *graph) topoOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.inDegree))
	for k, v := range g.inDegree {
		inDegree[k] = v
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range g.outEdges[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, core.CycleError("workflow contains a cycle - must be a DAG")
	}
	return order, nil
}

// reachableFrom returns the set of node ids reachable from start via a
// forward BFS, start included.
func (g *graph) reachableFrom(start string) map[string]bool {
	reachable := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.outEdges[id] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}
	return reachable
}

// NodeExecutor dispatches a single node to its side-effect handler.
type NodeExecutor interface {
	Execute(ctx context.Context, node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error)
}

// Run builds the graph for cw, computes the nodes reachable from startNodeID
// (excluding trigger-type nodes, which are entry anchors only), and executes
// them in topological order against exec. It stops early, without error, the
// moment a node reports Continue=false.
func Run(
	ctx context.Context,
	cw workflow.CompiledWorkflow,
	startNodeID string,
	ec workflow.ExecutionContext,
	exec NodeExecutor,
) (workflow.ExecutionResult, error) {
	g, err := buildGraph(cw.Workflow)
	if err != nil {
		return workflow.ExecutionResult{}, err
	}

	if _, ok := g.nodes[startNodeID]; !ok {
		return workflow.ExecutionResult{}, core.UnknownStart("unknown start node: " + startNodeID)
	}

	order, err := g.topoOrder()
	if err != nil {
		return workflow.ExecutionResult{}, err
	}

	reachable := g.reachableFrom(startNodeID)

	var toExecute []string
	for _, id := range order {
		if !reachable[id] {
			continue
		}
		if g.nodes[id].Type.IsTrigger() {
			continue
		}
		toExecute = append(toExecute, id)
	}

	if len(toExecute) == 0 {
		return workflow.ExecutionResult{}, core.EmptyFlow(
			"no executable nodes reachable from start node: " + startNodeID)
	}

	result := workflow.ExecutionResult{
		Data:     ec.Data,
		Metadata: ec.Metadata,
		Continue: true,
	}

	for _, id := range toExecute {
		if !result.Continue {
			break
		}
		node := g.nodes[id]
		ec.Data = result.Data
		ec.Metadata = result.Metadata

		result, err = exec.Execute(ctx, node, ec)
		if err != nil {
			return workflow.ExecutionResult{}, core.NodeError(id, err)
		}
	}

	return result, nil
}
