package workload

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Lua runs a script that decides what to issue. The script must define a
// global function issue(cycle) that returns an address and a boolean that is
// true for writes, or nil to skip the cycle. The script sets the global done
// to true when it has nothing more to issue.
//
//	local n = 0
//	function issue(cycle)
//	  if n == 100 then done = true return nil end
//	  n = n + 1
//	  return (n % 256) * 64, n % 2 == 0
//	end
type Lua struct {
	state *lua.LState
	issue lua.LValue
	err   error
}

// NewLua compiles and runs the script so that it can define issue.
func NewLua(script string) (*Lua, error) {
	return newLua(func(L *lua.LState) error { return L.DoString(script) })
}

// LoadLua runs the script file at path.
func LoadLua(path string) (*Lua, error) {
	return newLua(func(L *lua.LState) error { return L.DoFile(path) })
}

func newLua(load func(L *lua.LState) error) (*Lua, error) {
	L := lua.NewState()

	if err := load(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("workload: %w", err)
	}

	issue := L.GetGlobal("issue")
	if issue.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("workload: script does not define issue(cycle)")
	}

	return &Lua{state: L, issue: issue}, nil
}

// Next calls the script's issue function.
func (g *Lua) Next(cycle uint64) (Access, bool) {
	if g.Done() {
		return Access{}, false
	}

	L := g.state

	err := L.CallByParam(lua.P{
		Fn:      g.issue,
		NRet:    2,
		Protect: true,
	}, lua.LNumber(cycle))
	if err != nil {
		g.err = fmt.Errorf("workload: issue(%d): %w", cycle, err)
		return Access{}, false
	}

	addr := L.Get(-2)
	isWrite := L.Get(-1)
	L.Pop(2)

	n, ok := addr.(lua.LNumber)
	if !ok {
		if addr != lua.LNil {
			g.err = fmt.Errorf("workload: issue(%d) returned %s as address",
				cycle, addr.Type())
		}

		return Access{}, false
	}

	return Access{Addr: int64(n), IsWrite: lua.LVAsBool(isWrite)}, true
}

// Done returns true once the script sets done or fails.
func (g *Lua) Done() bool {
	return g.err != nil || lua.LVAsBool(g.state.GetGlobal("done"))
}

// Err returns the error that stopped the script, if any.
func (g *Lua) Err() error {
	return g.err
}

// Close releases the interpreter.
func (g *Lua) Close() {
	g.state.Close()
}
