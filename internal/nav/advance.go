package nav

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/world"
	navlog "realm-nav/server/logging/navigation"
)

// AdvanceCorridors moves every entity holding a corridor along its current
// segment, deriving a new segment from the corridor corners when needed.
func (s *System) AdvanceCorridors(ctx context.Context, frame Frame) {
	s.begin(frame)
	for _, e := range s.Corridors.Entities() {
		s.advance(ctx, e, frame)
	}
}

func (s *System) advance(ctx context.Context, e ecs.Entity, frame Frame) {
	pc, ok := s.Corridors.Get(e)
	if !ok {
		return
	}
	target, ok := s.Targets.Get(e)
	if !ok {
		s.Corridors.Remove(e)
		return
	}
	move, ok := s.comps.Movement.Get(e)
	if !ok {
		return
	}

	if pc.Segment == nil {
		if !pc.Corridor.MovePosition(move.Position) {
			s.fail(ctx, e, target, TagInvalidPosition)
			return
		}
		pc.Corridor.OptimizePathTopology()
		corners, err := pc.Corridor.FindCorners(MaxCorners)
		if err != nil {
			s.fail(ctx, e, target, TagInvalidPosition)
			return
		}
		if len(corners) == 0 {
			s.finish(ctx, e, target)
			return
		}

		start := pc.Corridor.Pos()
		next := corners[0].Pos
		end := pc.Corridor.Target()
		if groundDistance(start, end) < ArrivalDistance && corners[len(corners)-1].Ref == 0 {
			s.finish(ctx, e, target)
			return
		}
		pc.Segment = &PathSegment{
			Start:    start,
			End:      next,
			Duration: next.Sub(start).Len() / target.Speed,
			Speed:    target.Speed,
		}
	}

	seg := *pc.Segment
	if seg.Elapsed == 0 {
		s.comps.Pathing.Set(e, world.Pathing{
			AnchorPos:       seg.End,
			StartPos:        seg.Start,
			IsAbortEarly:    true,
			StartTime:       frame.Now,
			Speed:           seg.Speed,
			WhileObstructed: true,
			MoverKey:        move.MoverID,
		})
	}

	seg.Elapsed = mgl32.Clamp(seg.Elapsed+frame.Delta, 0, seg.Duration)
	progress := float32(1)
	if seg.Duration > 0 {
		progress = seg.Elapsed / seg.Duration
	}
	move.Position = seg.Start.Add(seg.End.Sub(seg.Start).Mul(progress))
	move.Rotation = world.FacingRotation(seg.Start, seg.End)
	move.Seconds = frame.Now
	s.comps.Movement.Set(e, move)

	if seg.Elapsed >= seg.Duration {
		pc.Segment = nil
	} else {
		pc.Segment = &seg
	}
	s.Corridors.Set(e, pc)

	s.notify(ctx, e, target, TagPathSegmentComplete, move.Position)
}

func (s *System) finish(ctx context.Context, e ecs.Entity, target Target) {
	s.stop(e)
	navlog.Finished(ctx, s.publisher, s.tick, entityRef(e), navlog.StatusPayload{Status: string(TagFinished), Target: target.Pos}, nil)
	s.notify(ctx, e, target, TagFinished, target.Pos)
}

func groundDistance(a, b mgl32.Vec3) float32 {
	return mgl32.Vec2{b[0] - a[0], b[2] - a[2]}.Len()
}
