package pin

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/insanalamin/mechaway/internal/core"
	lua "github.com/yuin/gopher-lua"
)

var dangerousTokens = []string{
	"os.", "io.", "debug.", "package.", "require", "load", "dofile",
	"loadfile", "loadstring", "rawget", "rawset", "getmetatable",
	"setmetatable", "_G", "_ENV", "coroutine", "collectgarbage",
}

var safeTokens = []string{
	"date(", "time()", "now()",
	"math.", "string.",
	"uuid()", "hash(",
}

const maxSafeExpressionLen = 200

// isSafeExpression reports whether expr is eligible for sandboxed Lua
// evaluation: it must avoid every dangerous token, and either reference one
// of the whitelisted safe helpers or consist solely of a restricted,
// injection-proof character set.
func isSafeExpression(expr string) bool {
	for _, tok := range dangerousTokens {
		if strings.Contains(expr, tok) {
			return false
		}
	}
	for _, tok := range safeTokens {
		if strings.Contains(expr, tok) {
			return true
		}
	}
	if len(expr) >= maxSafeExpressionLen {
		return false
	}
	for _, r := range expr {
		if !(isAlnum(r) || strings.ContainsRune(" +-*/()[]{}.,\"'_%", r)) {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// evalSafeExpression runs expr in a fresh, sandboxed Lua state: dangerous
// globals are removed and a small whitelist of helpers (date, time, now,
// math, string, uuid, hash) is installed before the expression is loaded.
func evalSafeExpression(expr string) (any, error) {
	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
	L.SetGlobal("package", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("collectgarbage", lua.LNil)

	L.SetGlobal("date", L.NewFunction(func(ls *lua.LState) int {
		format := ls.ToString(1)
		ls.Push(lua.LString(strftimeLike(format)))
		return 1
	}))
	L.SetGlobal("time", L.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	L.SetGlobal("now", L.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LString(time.Now().UTC().Format(time.RFC3339)))
		return 1
	}))
	L.SetGlobal("uuid", L.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LString(uuid.NewString()))
		return 1
	}))
	L.SetGlobal("hash", L.NewFunction(func(ls *lua.LState) int {
		sum := sha256.Sum256([]byte(ls.ToString(1)))
		ls.Push(lua.LString(hex.EncodeToString(sum[:])))
		return 1
	}))

	fn, err := L.LoadString("return " + expr)
	if err != nil {
		return nil, core.ScriptError("invalid safe expression: "+expr, err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, core.ScriptError("safe expression failed: "+expr, err)
	}
	result := L.Get(-1)
	L.Pop(1)
	return fromLValue(result), nil
}

// strftimeLike is a minimal stand-in for Lua's os.date, which is removed
// from the sandbox; it recognizes a handful of common layout tokens.
func strftimeLike(format string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006", "%m", "01", "%d", "02",
		"%H", "15", "%M", "04", "%S", "05",
	)
	goLayout := replacer.Replace(format)
	return time.Now().UTC().Format(goLayout)
}
