package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"realm-nav/server/logging"
)

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	err := sink.Write(logging.Event{
		Type:     "navigation.finished",
		Tick:     7,
		Actor:    logging.EntityRef{ID: "3", Kind: logging.EntityKindGameObject},
		Severity: logging.SeverityInfo,
		Payload:  map[string]string{"status": "FINISHED"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[navigation.finished]", "tick=7", "actor=game_object:3", "severity=info", `payload={"status":"FINISHED"}`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, logging.JSONConfig{})
	for i := 0; i < 2; i++ {
		if err := sink.Write(logging.Event{Type: "network.client_attached", Tick: uint64(i)}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != "network.client_attached" || decoded["tick"] != float64(1) || decoded["severity"] != "debug" {
		t.Fatalf("unexpected line %v", decoded)
	}
}

func TestZapSinkMapsSeverity(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := NewZapWithLogger(zap.New(core))
	if err := sink.Write(logging.Event{
		Type:     "navigation.failed",
		Tick:     3,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNavigation,
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "navigation.failed" || entry.Level != zap.WarnLevel {
		t.Fatalf("unexpected entry %+v", entry.Entry)
	}
	if entry.ContextMap()["category"] != logging.CategoryNavigation {
		t.Fatalf("expected category field, got %v", entry.ContextMap())
	}
}

func TestMemorySinkReset(t *testing.T) {
	sink := NewMemorySink()
	_ = sink.Write(logging.Event{Type: "lifecycle.entity_spawned"})
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected empty sink after reset")
	}
}

func TestJSONSinkFlushesInBatches(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, logging.JSONConfig{MaxBatch: 2, FlushInterval: time.Hour})
	_ = sink.Write(logging.Event{Type: "navigation.started"})
	if buf.Len() != 0 {
		t.Fatalf("expected first event buffered")
	}
	_ = sink.Write(logging.Event{Type: "navigation.finished"})
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("expected batch flush of 2 lines, got %d", got)
	}
	_ = sink.Write(logging.Event{Type: "navigation.failed"})
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 3 {
		t.Fatalf("expected close to flush, got %d lines", got)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestBoundedMemorySinkKeepsNewest(t *testing.T) {
	sink := NewBoundedMemorySink(2)
	for _, typ := range []logging.EventType{"a", "b", "a"} {
		_ = sink.Write(logging.Event{Type: typ})
	}
	events := sink.Events()
	if len(events) != 2 || events[0].Type != "b" || events[1].Type != "a" {
		t.Fatalf("unexpected retained events %+v", events)
	}
	if got := sink.OfType("a"); len(got) != 1 {
		t.Fatalf("expected one retained event of type a, got %d", len(got))
	}
}
