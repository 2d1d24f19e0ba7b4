package sim

import (
	"testing"

	"realm-nav/server/internal/telemetry"
	"realm-nav/server/logging"
)

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{ActorID: "a"},
		{ActorID: "b"},
		{ActorID: "c"},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{ActorID: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != cmds[i].ActorID {
			t.Fatalf("expected drain order %v, got %v", cmds[i].ActorID, cmd.ActorID)
		}
	}
	// Push again to ensure the indices wrap correctly.
	for _, cmd := range []Command{{ActorID: "d"}, {ActorID: "e"}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 {
		t.Fatalf("expected 2 commands after wraparound, got %d", len(wrapped))
	}
	if wrapped[0].ActorID != "d" || wrapped[1].ActorID != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
}

func TestCommandBufferOverflow(t *testing.T) {
	var metrics logging.Metrics
	buffer := NewCommandBuffer(1, telemetry.WrapMetrics(&metrics))
	if !buffer.Push(Command{ActorID: "one"}) {
		t.Fatalf("expected initial push to succeed")
	}
	if buffer.Push(Command{ActorID: "two"}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	if got := metrics.Snapshot()[telemetry.MetricCommandOverflow]; got != 1 {
		t.Fatalf("expected overflow counter 1, got %d", got)
	}
	drained := buffer.Drain()
	if len(drained) != 1 || drained[0].ActorID != "one" {
		t.Fatalf("unexpected drained commands: %+v", drained)
	}
	if got := metrics.Snapshot()[telemetry.MetricCommandOccupancy]; got != 0 {
		t.Fatalf("expected occupancy reset after drain, got %d", got)
	}
}

func TestCommandBufferCountsDropsPerType(t *testing.T) {
	var metrics logging.Metrics
	buffer := NewCommandBuffer(2, telemetry.WrapMetrics(&metrics))
	buffer.Push(Command{ActorID: "npc", Type: CommandMoveTo})
	buffer.Push(Command{ActorID: "npc", Type: CommandCancel})
	if got := buffer.Pending(CommandMoveTo); got != 1 {
		t.Fatalf("expected one pending move, got %d", got)
	}

	buffer.Push(Command{ActorID: "npc", Type: CommandMoveTo})
	buffer.Push(Command{ActorID: "npc", Type: CommandMoveTo})
	buffer.Push(Command{ActorID: "npc", Type: CommandCancel})

	if got := buffer.Dropped(CommandMoveTo); got != 2 {
		t.Fatalf("expected two dropped moves, got %d", got)
	}
	if got := buffer.Dropped(CommandCancel); got != 1 {
		t.Fatalf("expected one dropped cancel, got %d", got)
	}
	snapshot := metrics.Snapshot()
	if got := snapshot[telemetry.MetricCommandOverflow]; got != 3 {
		t.Fatalf("expected overflow total 3, got %d", got)
	}
	if got := snapshot[telemetry.MetricCommandOverflow+"_moveto"]; got != 2 {
		t.Fatalf("expected per-type moveto overflow 2, got %d", got)
	}

	buffer.Drain()
	if buffer.Pending(CommandMoveTo) != 0 || buffer.Pending(CommandCancel) != 0 {
		t.Fatalf("expected pending counts cleared by drain")
	}
	if buffer.Dropped(CommandMoveTo) != 2 {
		t.Fatalf("expected drop counts to survive drain")
	}
}
