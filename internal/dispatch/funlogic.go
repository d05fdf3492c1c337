package dispatch

import (
	"github.com/insanalamin/mechaway/internal/core"
	"github.com/insanalamin/mechaway/internal/pin"
	"github.com/insanalamin/mechaway/internal/workflow"
	lua "github.com/yuin/gopher-lua"
)

// executeFunLogic runs a node's "script" parameter as Lua against the
// current data array, exposing it as a global "data" table. Each
// invocation gets a fresh *lua.LState, closed on return, so one script can
// never see another's state.
func (d *Dispatcher) executeFunLogic(node workflow.Node, ec workflow.ExecutionContext) (workflow.ExecutionResult, error) {
	script, ok := node.Params["script"].(string)
	if !ok || script == "" {
		return workflow.ExecutionResult{}, core.BadNode("FunLogic node " + node.ID + " missing 'script' parameter")
	}

	L := lua.NewState()
	defer L.Close()

	dataTable := L.NewTable()
	for i, item := range ec.Data {
		dataTable.RawSetInt(i+1, pin.ToLValue(L, item))
	}
	L.SetGlobal("data", dataTable)

	fn, err := L.LoadString(script)
	if err != nil {
		return workflow.ExecutionResult{}, core.ScriptError("FunLogic node "+node.ID+" failed to compile", err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return workflow.ExecutionResult{}, core.ScriptError("FunLogic node "+node.ID+" failed", err)
	}
	result := L.Get(-1)
	L.Pop(1)

	goResult := pin.FromLValue(result)
	var resultArray []any
	if arr, ok := goResult.([]any); ok {
		resultArray = arr
	} else {
		resultArray = []any{goResult}
	}

	return workflow.ExecutionResult{
		Data:     resultArray,
		Metadata: ec.Metadata,
		Continue: true,
	}, nil
}
