package script

import (
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/nav"
)

// engine builds the function table a script sees while running for e.
func (r *Runtime) engine(e ecs.Entity) *tengo.ImmutableMap {
	var self int64
	if avatar, ok := r.comps.Avatar.Get(e); ok {
		self = int64(avatar.ID)
	}
	values := map[string]tengo.Object{
		"self": &tengo.Int{Value: self},
	}

	values["move_to_position"] = &tengo.UserFunction{Name: "move_to_position", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 3 {
			return nil, tengo.ErrWrongNumArguments
		}
		target, ok := r.entityArg(args[0])
		if !ok {
			return tengo.FalseValue, nil
		}
		dest, err := vecArg(args[1])
		if err != nil {
			return nil, err
		}
		speed, ok := tengo.ToFloat64(args[2])
		if !ok || speed <= 0 {
			return nil, tengo.ErrInvalidArgumentType{Name: "speed", Expected: "positive number", Found: args[2].TypeName()}
		}
		handler := ""
		if len(args) > 3 {
			handler, _ = tengo.ToString(args[3])
		}
		var callback nav.Callback
		if handler != "" {
			callback = r.Callback(target, handler)
		}
		r.nav.MoveToPosition(target, dest, float32(speed), callback)
		return tengo.TrueValue, nil
	}}

	values["cancel_movement"] = &tengo.UserFunction{Name: "cancel_movement", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		target, ok := r.entityArg(args[0])
		if !ok || !r.nav.CancelMovement(target) {
			return tengo.FalseValue, nil
		}
		return tengo.TrueValue, nil
	}}

	values["position"] = &tengo.UserFunction{Name: "position", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		target, ok := r.entityArg(args[0])
		if !ok {
			return tengo.UndefinedValue, nil
		}
		move, ok := r.comps.Movement.Get(target)
		if !ok {
			return tengo.UndefinedValue, nil
		}
		return vecObject(move.Position), nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]any, 0, len(args))
		for _, arg := range args {
			s, _ := tengo.ToString(arg)
			parts = append(parts, s)
		}
		r.logger.Printf("avatar=%d %s", self, fmt.Sprint(parts...))
		return tengo.UndefinedValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

func (r *Runtime) entityArg(arg tengo.Object) (ecs.Entity, bool) {
	id, ok := tengo.ToInt64(arg)
	if !ok || id < 0 {
		return 0, false
	}
	return r.comps.FindByAvatar(uint64(id))
}

func vecArg(arg tengo.Object) (mgl32.Vec3, error) {
	var items []tengo.Object
	switch v := arg.(type) {
	case *tengo.Array:
		items = v.Value
	case *tengo.ImmutableArray:
		items = v.Value
	}
	if len(items) != 3 {
		return mgl32.Vec3{}, tengo.ErrInvalidArgumentType{Name: "position", Expected: "array of 3 numbers", Found: arg.TypeName()}
	}
	var out mgl32.Vec3
	for i, item := range items {
		f, ok := tengo.ToFloat64(item)
		if !ok {
			return mgl32.Vec3{}, tengo.ErrInvalidArgumentType{Name: "position", Expected: "number", Found: item.TypeName()}
		}
		out[i] = float32(f)
	}
	return out, nil
}

func vecObject(v mgl32.Vec3) *tengo.Array {
	return &tengo.Array{Value: []tengo.Object{
		&tengo.Float{Value: float64(v[0])},
		&tengo.Float{Value: float64(v[1])},
		&tengo.Float{Value: float64(v[2])},
	}}
}
