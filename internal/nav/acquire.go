package nav

import (
	"context"

	"realm-nav/server/internal/ecs"
	navlog "realm-nav/server/logging/navigation"
)

// AcquireTargets resolves every target set since the previous run into a
// corridor, reusing the existing corridor when it can be retargeted.
func (s *System) AcquireTargets(ctx context.Context, frame Frame) {
	s.begin(frame)
	since := s.acquired.Begin(s.comps.World)
	for _, e := range s.Targets.ChangedSince(since) {
		target, ok := s.Targets.Get(e)
		if !ok {
			continue
		}
		s.acquire(ctx, e, target)
	}
}

func (s *System) acquire(ctx context.Context, e ecs.Entity, target Target) {
	move, ok := s.comps.Movement.Get(e)
	if !ok {
		return
	}

	if pc, ok := s.Corridors.Get(e); ok {
		if pc.Corridor.MoveTargetPosition(target.Pos) {
			reached := pc.Corridor.Target()
			if reached.Sub(target.Pos).Len() < RetargetDistance {
				pc.Segment = nil
				s.Corridors.Set(e, pc)
				navlog.Retargeted(ctx, s.publisher, s.tick, entityRef(e), navlog.RetargetPayload{Requested: target.Pos, Reached: reached}, nil)
				return
			}
		}
	}

	corridor := s.geometry.NewCorridor(MaxPath)
	startRef, startPos, startOK := s.geometry.FindNearestPoly(move.Position, searchExtents)
	endRef, endPos, endOK := s.geometry.FindNearestPoly(target.Pos, searchExtents)
	if !startOK || !endOK {
		s.fail(ctx, e, target, TagTargetNotFound)
		return
	}

	path, err := s.geometry.FindPath(startRef, endRef, startPos, endPos, MaxPath)
	if err != nil || len(path) == 0 {
		s.fail(ctx, e, target, TagPathfindingFailed)
		return
	}

	corridor.Reset(startRef, startPos)
	corridor.SetPath(endPos, path)
	s.Corridors.Set(e, PathCorridor{Corridor: corridor})

	payload := navlog.CorridorFoundPayload{Target: target.Pos, Polygons: len(path)}
	if locator, ok := s.geometry.(tileLocator); ok {
		payload.PathengineTile = locator.PathengineTileForPos(target.Pos)
	}
	navlog.CorridorFound(ctx, s.publisher, s.tick, entityRef(e), payload, nil)
	s.notify(ctx, e, target, TagFoundCorridor, target.Pos)
}

func (s *System) fail(ctx context.Context, e ecs.Entity, target Target, tag Tag) {
	s.stop(e)
	navlog.Failed(ctx, s.publisher, s.tick, entityRef(e), navlog.StatusPayload{Status: string(tag), Target: target.Pos}, nil)
	s.notify(ctx, e, target, tag, target.Pos)
}
