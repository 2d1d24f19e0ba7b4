package script

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/nav"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type luaProgram struct {
	proto *lua.FunctionProto
}

func compileLua(name string, src []byte) (*luaProgram, error) {
	chunk, err := parse.Parse(bytes.NewReader(bytes.TrimPrefix(src, utf8BOM)), name)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, err
	}
	return &luaProgram{proto: proto}, nil
}

// bind runs the chunk in a fresh state so it can define on_spawn and
// handlers. Only the base, table, string and math libraries are opened.
func (p *luaProgram) bind(r *Runtime, e ecs.Entity, carried any) (binding, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, err
		}
	}
	L.SetGlobal("ScriptLib", r.scriptLib(L, e))

	L.Push(L.NewFunctionFromProto(p.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, err
	}
	state, ok := carried.(*lua.LTable)
	if !ok {
		state = L.NewTable()
	}
	return &luaBinding{L: L, state: state}, nil
}

type luaBinding struct {
	L     *lua.LState
	state *lua.LTable
}

func (b *luaBinding) call(phase, handler, tag string, pos mgl32.Vec3) error {
	if phase == "spawn" {
		fn := b.L.GetGlobal("on_spawn")
		if fn.Type() != lua.LTFunction {
			return nil
		}
		return b.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, b.state)
	}
	handlers, ok := b.L.GetGlobal("handlers").(*lua.LTable)
	if !ok {
		return nil
	}
	fn := handlers.RawGetString(handler)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	return b.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, b.state, lua.LString(tag), luaVec(b.L, pos))
}

func (b *luaBinding) snapshot() map[string]any {
	out, _ := fromLua(b.state).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func (b *luaBinding) carry() any { return b.state }

func (b *luaBinding) close() { b.L.Close() }

// scriptLib is the Lua counterpart of engine: the same calls, exposed as
// fields of the ScriptLib global.
func (r *Runtime) scriptLib(L *lua.LState, e ecs.Entity) *lua.LTable {
	var self uint64
	if avatar, ok := r.comps.Avatar.Get(e); ok {
		self = avatar.ID
	}
	lib := L.NewTable()
	lib.RawSetString("self", lua.LNumber(self))

	lib.RawSetString("move_to_position", L.NewFunction(func(L *lua.LState) int {
		target, ok := r.luaEntity(L, 1)
		if !ok {
			L.Push(lua.LFalse)
			return 1
		}
		dest := checkVec(L, 2)
		speed := float32(L.CheckNumber(3))
		if speed <= 0 {
			L.ArgError(3, "speed must be positive")
			return 0
		}
		var callback nav.Callback
		if handler := L.OptString(4, ""); handler != "" {
			callback = r.Callback(target, handler)
		}
		r.nav.MoveToPosition(target, dest, speed, callback)
		L.Push(lua.LTrue)
		return 1
	}))

	lib.RawSetString("cancel_movement", L.NewFunction(func(L *lua.LState) int {
		target, ok := r.luaEntity(L, 1)
		L.Push(lua.LBool(ok && r.nav.CancelMovement(target)))
		return 1
	}))

	lib.RawSetString("position", L.NewFunction(func(L *lua.LState) int {
		target, ok := r.luaEntity(L, 1)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		move, ok := r.comps.Movement.Get(target)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(luaVec(L, move.Position))
		return 1
	}))

	lib.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		r.logger.Printf("avatar=%d %s", self, strings.Join(parts, " "))
		return 0
	}))
	return lib
}

func (r *Runtime) luaEntity(L *lua.LState, n int) (ecs.Entity, bool) {
	id := L.CheckNumber(n)
	if id < 0 {
		return 0, false
	}
	return r.comps.FindByAvatar(uint64(id))
}

func checkVec(L *lua.LState, n int) mgl32.Vec3 {
	tbl := L.CheckTable(n)
	var out mgl32.Vec3
	if tbl.Len() != 3 {
		L.ArgError(n, "expected {x, y, z}")
		return out
	}
	for i := range out {
		num, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
		if !ok {
			L.ArgError(n, fmt.Sprintf("component %d is not a number", i+1))
			return out
		}
		out[i] = float32(num)
	}
	return out
}

func luaVec(L *lua.LState, v mgl32.Vec3) *lua.LTable {
	tbl := L.CreateTable(3, 0)
	for _, c := range v {
		tbl.Append(lua.LNumber(c))
	}
	return tbl
}

// fromLua converts a Lua value to plain Go values. Tables with only a
// sequence part become slices; other tables become string-keyed maps.
func fromLua(v lua.LValue) any {
	switch v := v.(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case lua.LBool:
		return bool(v)
	case *lua.LTable:
		if n := v.Len(); n > 0 {
			count := 0
			v.ForEach(func(lua.LValue, lua.LValue) { count++ })
			if count == n {
				out := make([]any, 0, n)
				for i := 1; i <= n; i++ {
					out = append(out, fromLua(v.RawGetInt(i)))
				}
				return out
			}
		}
		out := make(map[string]any)
		v.ForEach(func(key, value lua.LValue) {
			out[key.String()] = fromLua(value)
		})
		return out
	default:
		return nil
	}
}
