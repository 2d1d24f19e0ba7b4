package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"realm-nav/server/logging"
)

// jsonRecord is one line of the JSON sink. Severity is written by name so the
// output can be filtered without knowing the enum.
type jsonRecord struct {
	Type      logging.EventType   `json:"type"`
	Tick      uint64              `json:"tick"`
	Time      string              `json:"time"`
	Severity  string              `json:"severity"`
	Category  string              `json:"category,omitempty"`
	Actor     logging.EntityRef   `json:"actor"`
	Targets   []logging.EntityRef `json:"targets,omitempty"`
	Payload   any                 `json:"payload,omitempty"`
	Extra     map[string]any      `json:"extra,omitempty"`
	TraceID   string              `json:"traceId,omitempty"`
	CommandID string              `json:"commandId,omitempty"`
}

// JSON writes newline-delimited events. Output is flushed every MaxBatch
// events, every FlushInterval, and on Close; a zero interval flushes each
// event.
type JSON struct {
	mu       sync.Mutex
	writer   *bufio.Writer
	encoder  *json.Encoder
	maxBatch int
	pending  int
	eager    bool
	done     chan struct{}
	once     sync.Once
}

func NewJSON(w io.Writer, cfg logging.JSONConfig) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{
		writer:   buf,
		encoder:  json.NewEncoder(buf),
		maxBatch: cfg.MaxBatch,
		eager:    cfg.FlushInterval <= 0,
		done:     make(chan struct{}),
	}
	if !sink.eager {
		go sink.flushEvery(cfg.FlushInterval)
	}
	return sink
}

func (s *JSON) Write(event logging.Event) error {
	record := jsonRecord{
		Type:      event.Type,
		Tick:      event.Tick,
		Time:      event.Time.UTC().Format(time.RFC3339Nano),
		Severity:  event.Severity.String(),
		Category:  event.Category,
		Actor:     event.Actor,
		Targets:   event.Targets,
		Payload:   event.Payload,
		Extra:     event.Extra,
		TraceID:   event.TraceID,
		CommandID: event.CommandID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(record); err != nil {
		return err
	}
	s.pending++
	if s.eager || (s.maxBatch > 0 && s.pending >= s.maxBatch) {
		return s.flushLocked()
	}
	return nil
}

func (s *JSON) Close(context.Context) error {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *JSON) flushLocked() error {
	s.pending = 0
	return s.writer.Flush()
}

func (s *JSON) flushEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			_ = s.flushLocked()
			s.mu.Unlock()
		}
	}
}
