package nav

import "context"

// Cleanup strips navigation state from game objects deactivated since the
// previous run.
func (s *System) Cleanup(ctx context.Context, frame Frame) {
	s.begin(frame)
	since := s.cleaned.Begin(s.comps.World)
	for _, e := range s.comps.Active.RemovedSince(since) {
		if s.comps.Active.Has(e) || !s.comps.GameObject.Has(e) {
			continue
		}
		s.Targets.Remove(e)
		s.Corridors.Remove(e)
		s.comps.Pathing.Remove(e)
	}
}
