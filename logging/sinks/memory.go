package sinks

import (
	"context"
	"sync"

	"realm-nav/server/logging"
)

// MemorySink keeps events in memory for tests and the diagnostics surface.
// With a positive limit only the most recent limit events are kept.
type MemorySink struct {
	mu     sync.RWMutex
	limit  int
	events []logging.Event
}

func NewMemorySink() *MemorySink {
	return NewBoundedMemorySink(0)
}

func NewBoundedMemorySink(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Write(event logging.Event) error {
	event.Targets = append([]logging.EntityRef(nil), event.Targets...)
	if event.Extra != nil {
		extra := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			extra[k] = v
		}
		event.Extra = extra
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	if s.limit > 0 && len(s.events) > s.limit {
		s.events = append(s.events[:0], s.events[len(s.events)-s.limit:]...)
	}
	s.mu.Unlock()
	return nil
}

// Events returns a copy of the retained events, oldest first.
func (s *MemorySink) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]logging.Event(nil), s.events...)
}

// OfType returns the retained events of one type.
func (s *MemorySink) OfType(typ logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []logging.Event
	for _, event := range s.events {
		if event.Type == typ {
			out = append(out, event)
		}
	}
	return out
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

func (s *MemorySink) Close(context.Context) error { return nil }
