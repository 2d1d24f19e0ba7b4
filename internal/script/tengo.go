package script

import (
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
)

const dispatchScript = `
if __phase == "spawn" {
	on_spawn(__engine, __state)
} else if __phase == "nav" {
	__h := handlers[__handler]
	if __h != undefined {
		__h(__engine, __state, __tag, __pos)
	}
}
`

type tengoProgram struct {
	compiled *tengo.Compiled
}

func compileTengo(src []byte) (_ *tengoProgram, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tengo compile panic: %v", r)
		}
	}()
	s := tengo.NewScript(append(append([]byte(nil), src...), []byte("\n"+dispatchScript)...))
	for _, v := range []string{"__phase", "__handler", "__tag"} {
		_ = s.Add(v, "")
	}
	_ = s.Add("__engine", map[string]any{})
	_ = s.Add("__state", map[string]any{})
	_ = s.Add("__pos", []any{})
	s.SetImports(stdlib.GetModuleMap("math", "text", "fmt"))
	compiled, err := s.Compile()
	if err != nil {
		return nil, err
	}
	return &tengoProgram{compiled: compiled}, nil
}

func (p *tengoProgram) bind(r *Runtime, e ecs.Entity, carried any) (binding, error) {
	state, ok := carried.(*tengo.Map)
	if !ok {
		state = &tengo.Map{Value: map[string]tengo.Object{}}
	}
	return &tengoBinding{r: r, e: e, compiled: p.compiled.Clone(), state: state}, nil
}

type tengoBinding struct {
	r        *Runtime
	e        ecs.Entity
	compiled *tengo.Compiled
	state    *tengo.Map
}

func (b *tengoBinding) call(phase, handler, tag string, pos mgl32.Vec3) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %q panicked: %v", handler, r)
		}
	}()
	for name, value := range map[string]any{
		"__phase":   phase,
		"__handler": handler,
		"__tag":     tag,
		"__engine":  b.r.engine(b.e),
		"__state":   b.state,
		"__pos":     vecObject(pos),
	} {
		if err := b.compiled.Set(name, value); err != nil {
			return err
		}
	}
	return b.compiled.Run()
}

func (b *tengoBinding) snapshot() map[string]any {
	return tengo.ToInterface(b.state).(map[string]any)
}

func (b *tengoBinding) carry() any { return b.state }

func (b *tengoBinding) close() {}
