// Package script runs behaviour scripts for game objects. Scripts request
// movement through move_to_position and cancel_movement and receive
// navigation status through named handlers.
//
// Two languages are accepted. A tengo script (.tengo) must define
// on_spawn(engine, state) and a handlers map whose values are
// func(engine, state, tag, pos). A Lua script (.lua) may define
// on_spawn(state) and a handlers table of function(state, tag, pos), and
// reaches the engine through the ScriptLib global.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/nav"
	"realm-nav/server/internal/telemetry"
	"realm-nav/server/internal/world"
)

// File suffixes of behaviour scripts, in lookup order.
const (
	Extension    = ".tengo"
	LuaExtension = ".lua"
)

var ErrUnknownScript = errors.New("script: unknown script")

// program is a compiled script. bind starts the copy that runs for one
// entity; carried is the state of the copy being replaced, if any.
type program interface {
	bind(r *Runtime, e ecs.Entity, carried any) (binding, error)
}

// binding is one entity's running copy of a program.
type binding interface {
	call(phase, handler, tag string, pos mgl32.Vec3) error
	snapshot() map[string]any
	carry() any
	close()
}

type instance struct {
	name    string
	binding binding
}

// Runtime owns compiled scripts and the per-entity instances bound to them.
// It is driven from the tick goroutine only.
type Runtime struct {
	dir       string
	comps     *world.Components
	nav       *nav.System
	logger    telemetry.Logger
	programs  map[string]program
	instances map[ecs.Entity]*instance
}

func NewRuntime(dir string, comps *world.Components, navSystem *nav.System, logger telemetry.Logger) *Runtime {
	return &Runtime{
		dir:       dir,
		comps:     comps,
		nav:       navSystem,
		logger:    telemetry.Prefixed(logger, "script"),
		programs:  make(map[string]program),
		instances: make(map[ecs.Entity]*instance),
	}
}

// Load compiles the named script from the script directory, replacing any
// previously compiled version.
func (r *Runtime) Load(name string) error {
	name = scriptName(name)
	for _, ext := range []string{Extension, LuaExtension} {
		src, err := os.ReadFile(filepath.Join(r.dir, name+ext))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read script %s: %w", name, err)
		}
		var prog program
		if ext == LuaExtension {
			prog, err = compileLua(name, src)
		} else {
			prog, err = compileTengo(src)
		}
		if err != nil {
			return fmt.Errorf("compile script %s: %w", name, err)
		}
		r.programs[name] = prog
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownScript, name)
}

// Attach binds a fresh instance of the named script to e and runs its
// on_spawn hook.
func (r *Runtime) Attach(e ecs.Entity, name string) error {
	name = scriptName(name)
	if _, ok := r.programs[name]; !ok {
		if err := r.Load(name); err != nil {
			return err
		}
	}
	b, err := r.programs[name].bind(r, e, nil)
	if err != nil {
		return fmt.Errorf("script %s: %w", name, err)
	}
	if old, ok := r.instances[e]; ok {
		old.binding.close()
	}
	inst := &instance{name: name, binding: b}
	r.instances[e] = inst
	return r.run(inst, "spawn", "", "", mgl32.Vec3{})
}

// Detach drops the instance bound to e.
func (r *Runtime) Detach(e ecs.Entity) {
	if inst, ok := r.instances[e]; ok {
		inst.binding.close()
		delete(r.instances, e)
	}
}

// Instances reports the number of bound instances.
func (r *Runtime) Instances() int {
	return len(r.instances)
}

// State returns the script state of e.
func (r *Runtime) State(e ecs.Entity) (map[string]any, bool) {
	inst, ok := r.instances[e]
	if !ok {
		return nil, false
	}
	return inst.binding.snapshot(), true
}

// Reload recompiles the script at path and rebinds every instance running it.
// Instance state survives the reload; on_spawn is not run again.
func (r *Runtime) Reload(path string) error {
	name := scriptName(filepath.Base(path))
	if err := r.Load(name); err != nil {
		return err
	}
	prog := r.programs[name]
	rebound := 0
	for e, inst := range r.instances {
		if inst.name != name {
			continue
		}
		b, err := prog.bind(r, e, inst.binding.carry())
		if err != nil {
			r.logger.Printf("rebind %s for entity %d failed: %v", name, e, err)
			continue
		}
		inst.binding.close()
		inst.binding = b
		rebound++
	}
	r.logger.Printf("reloaded %s (%d instances)", name, rebound)
	return nil
}

// Callback returns a navigation callback that dispatches to the named handler
// of the script bound to e.
func (r *Runtime) Callback(e ecs.Entity, handler string) nav.Callback {
	return nav.CallbackFunc(func(tag nav.Tag, pos mgl32.Vec3) error {
		inst, ok := r.instances[e]
		if !ok {
			return nil
		}
		return r.run(inst, "nav", handler, string(tag), pos)
	})
}

func (r *Runtime) run(inst *instance, phase, handler, tag string, pos mgl32.Vec3) error {
	if err := inst.binding.call(phase, handler, tag, pos); err != nil {
		return fmt.Errorf("script %s %s: %w", inst.name, phase, err)
	}
	return nil
}

func isScriptFile(path string) bool {
	ext := filepath.Ext(path)
	return strings.EqualFold(ext, Extension) || strings.EqualFold(ext, LuaExtension)
}

func scriptName(name string) string {
	name = strings.TrimSpace(name)
	if isScriptFile(name) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
