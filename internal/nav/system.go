package nav

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/navmesh"
	"realm-nav/server/internal/world"
	"realm-nav/server/logging"
	navlog "realm-nav/server/logging/navigation"
)

const (
	// MaxCorners is the number of straight path corners requested per segment.
	MaxCorners = 2
	// MaxPath bounds corridor and path search length in polygons.
	MaxPath = 256
	// RetargetDistance is how close a moved corridor target must land to the
	// requested destination for the corridor to be reused.
	RetargetDistance = 10
	// ArrivalDistance is the ground-plane distance under which a corridor
	// ending off the mesh counts as arrived.
	ArrivalDistance = 15
)

var searchExtents = mgl32.Vec3{100, 100, 100}

// Frame is the timing of one simulation tick.
type Frame struct {
	Tick  uint64
	Now   float32
	Delta float32
}

// tileLocator is implemented by geometries that know the external tile grid.
type tileLocator interface {
	PathengineTileForPos(pos mgl32.Vec3) int32
}

// System owns the navigation components and runs the navigation steps.
type System struct {
	comps     *world.Components
	Targets   *ecs.Store[Target]
	Corridors *ecs.Store[PathCorridor]

	geometry  navmesh.Geometry
	publisher logging.Publisher

	acquired ecs.Cursor
	cleaned  ecs.Cursor
	now      float32
	tick     uint64
}

// NewSystem registers the navigation stores with the world of comps.
func NewSystem(comps *world.Components, geometry navmesh.Geometry, publisher logging.Publisher) *System {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &System{
		comps:     comps,
		Targets:   ecs.NewStore[Target](comps.World),
		Corridors: ecs.NewStore[PathCorridor](comps.World),
		geometry:  geometry,
		publisher: publisher,
	}
}

// Navigating reports whether e has an outstanding target.
func (s *System) Navigating(e ecs.Entity) bool {
	return s.Targets.Has(e)
}

// MoveToPosition queues a target for e. A target set before the previous one
// completed replaces it.
func (s *System) MoveToPosition(e ecs.Entity, dest mgl32.Vec3, speed float32, callback Callback) {
	s.comps.World.Commands().Push(func() {
		if !s.comps.World.Alive(e) {
			return
		}
		s.Targets.Set(e, Target{Pos: dest, Speed: speed, Callback: callback})
	})
}

// CancelMovement stops e immediately. A navigating entity loses its target
// and corridor and gets a Pathing that holds it in place; anything else is
// left alone.
func (s *System) CancelMovement(e ecs.Entity) bool {
	move, ok := s.comps.Movement.Get(e)
	if !ok || !s.Targets.Has(e) {
		return false
	}
	s.stop(e)
	s.comps.Pathing.Set(e, world.Pathing{
		StartPos:     move.Position,
		AnchorPos:    move.Position,
		IsAbortEarly: true,
		StartTime:    s.now,
		MoverKey:     move.MoverID,
	})
	return true
}

func (s *System) begin(frame Frame) {
	s.now = frame.Now
	s.tick = frame.Tick
}

// stop removes the target and corridor of e.
func (s *System) stop(e ecs.Entity) {
	s.Targets.Remove(e)
	s.Corridors.Remove(e)
}

func (s *System) notify(ctx context.Context, e ecs.Entity, target Target, tag Tag, pos mgl32.Vec3) {
	if target.Callback == nil {
		return
	}
	if err := safeNotify(target.Callback, tag, pos); err != nil {
		navlog.CallbackFailed(ctx, s.publisher, s.tick, entityRef(e), navlog.CallbackFailedPayload{Status: string(tag), Error: err.Error()}, nil)
	}
}

func safeNotify(cb Callback, tag Tag, pos mgl32.Vec3) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return cb.Notify(tag, pos)
}

func entityRef(e ecs.Entity) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(uint64(e), 10), Kind: logging.EntityKindGameObject}
}
