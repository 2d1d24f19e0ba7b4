package logging_test

import (
	"context"
	"testing"
	"time"

	"realm-nav/server/logging"
	"realm-nav/server/logging/sinks"
)

func newMemoryRouter(t *testing.T, cfg logging.Config) (*logging.Router, *sinks.MemorySink) {
	t.Helper()
	memory := sinks.NewMemorySink()
	cfg.EnabledSinks = []string{"memory"}
	router, err := logging.NewRouter(cfg, logging.ClockFunc(func() time.Time {
		return time.Unix(100, 0)
	}), nil, map[string]logging.Sink{"memory": memory})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router, memory
}

func TestRouterFiltersBySeverityAndAddsFields(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityInfo
	cfg.Fields = map[string]any{"world": "w1"}
	router, memory := newMemoryRouter(t, cfg)

	ctx := context.Background()
	router.Publish(ctx, logging.Event{Type: "navigation.corridor_found", Severity: logging.SeverityDebug})
	router.Publish(ctx, logging.Event{Type: "navigation.finished", Severity: logging.SeverityInfo})
	router.Publish(ctx, logging.Event{Severity: logging.SeverityError})

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := router.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected only the info event, got %d", len(events))
	}
	if events[0].Type != "navigation.finished" {
		t.Fatalf("unexpected event %q", events[0].Type)
	}
	if events[0].Extra["world"] != "w1" {
		t.Fatalf("expected router field, got %v", events[0].Extra)
	}
	if !events[0].Time.Equal(time.Unix(100, 0)) {
		t.Fatalf("expected clock time, got %v", events[0].Time)
	}
	if got := router.Metrics().Snapshot()["log_events_info"]; got != 1 {
		t.Fatalf("expected info counter 1, got %d", got)
	}
}

func TestRouterRejectsMissingSink(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"json"}
	if _, err := logging.NewRouter(cfg, nil, nil, nil); err == nil {
		t.Fatalf("expected error for enabled sink without implementation")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug":   logging.SeverityDebug,
		"":        logging.SeverityInfo,
		"WARN":    logging.SeverityWarn,
		"warning": logging.SeverityWarn,
		"error":   logging.SeverityError,
	}
	for name, want := range cases {
		got, err := logging.ParseSeverity(name)
		if err != nil || got != want {
			t.Fatalf("ParseSeverity(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := logging.ParseSeverity("loud"); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}

func TestWithFieldsKeepsExistingExtra(t *testing.T) {
	var got logging.Event
	base := logging.PublisherFunc(func(_ context.Context, event logging.Event) { got = event })
	pub := logging.WithFields(base, map[string]any{"client": "a", "tick": 1})
	pub.Publish(context.Background(), logging.Event{Type: "network.client_attached", Extra: map[string]any{"client": "b"}})
	if got.Extra["client"] != "b" || got.Extra["tick"] != 1 {
		t.Fatalf("unexpected extra %v", got.Extra)
	}
}

func TestRouterCategoryFloorOverridesMinimum(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	cfg.CategorySeverity = map[string]logging.Severity{logging.CategoryNavigation: logging.SeverityDebug}
	router, memory := newMemoryRouter(t, cfg)

	if !router.Admits(logging.CategoryNavigation, logging.SeverityDebug) || router.Admits(logging.CategoryNetwork, logging.SeverityInfo) {
		t.Fatalf("unexpected admission rules")
	}

	ctx := context.Background()
	router.Publish(ctx, logging.Event{Type: "navigation.corridor_found", Category: logging.CategoryNavigation, Severity: logging.SeverityDebug})
	router.Publish(ctx, logging.Event{Type: "network.client_attached", Category: logging.CategoryNetwork, Severity: logging.SeverityInfo})
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := router.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 || events[0].Type != "navigation.corridor_found" {
		t.Fatalf("expected only the navigation event, got %+v", events)
	}
	if got := router.Metrics().Snapshot()["log_events_category_navigation"]; got != 1 {
		t.Fatalf("expected category counter 1, got %d", got)
	}
}
