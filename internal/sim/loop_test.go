package sim

import (
	"testing"
	"time"
)

type recordingCore struct {
	applied [][]Command
	steps   []LoopTickContext
}

func (c *recordingCore) Apply(_ LoopTickContext, cmds []Command) {
	c.applied = append(c.applied, cmds)
}

func (c *recordingCore) Step(ctx LoopTickContext) {
	c.steps = append(c.steps, ctx)
}

func TestLoopAdvanceAppliesStagedCommands(t *testing.T) {
	core := &recordingCore{}
	loop := NewLoop(core, LoopConfig{CommandCapacity: 4}, Deps{}, LoopHooks{})
	for _, actor := range []string{"a", "b"} {
		if ok, reason := loop.Enqueue(Command{ActorID: actor, Type: CommandCancel}); !ok {
			t.Fatalf("enqueue %s rejected: %s", actor, reason)
		}
	}

	result := loop.Advance(LoopTickContext{Tick: 7, Delta: 0.1})
	if result.Tick != 7 || result.Commands != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(core.applied) != 1 || len(core.applied[0]) != 2 || len(core.steps) != 1 {
		t.Fatalf("expected one apply with both commands and one step, got %+v", core)
	}
	if loop.Pending() != 0 {
		t.Fatalf("expected empty queue after advance")
	}
}

func TestLoopEnqueueThrottlesPerActor(t *testing.T) {
	var drops []string
	loop := NewLoop(&recordingCore{}, LoopConfig{CommandCapacity: 8, PerActorLimit: 2}, Deps{}, LoopHooks{
		OnCommandDrop: func(reason string, _ Command) { drops = append(drops, reason) },
	})
	for i := 0; i < 2; i++ {
		if ok, _ := loop.Enqueue(Command{ActorID: "npc-1"}); !ok {
			t.Fatalf("expected command %d accepted", i)
		}
	}
	if ok, reason := loop.Enqueue(Command{ActorID: "npc-1"}); ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected queue limit rejection, got %v %q", ok, reason)
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "npc-2"}); !ok {
		t.Fatalf("expected other actor accepted")
	}

	loop.Advance(LoopTickContext{Tick: 1})
	if ok, _ := loop.Enqueue(Command{ActorID: "npc-1"}); !ok {
		t.Fatalf("expected per-actor count reset after advance")
	}
	if len(drops) != 1 || drops[0] != CommandRejectQueueLimit {
		t.Fatalf("unexpected drops %v", drops)
	}
}

func TestLoopEnqueueRejectsWhenFull(t *testing.T) {
	loop := NewLoop(&recordingCore{}, LoopConfig{CommandCapacity: 1}, Deps{}, LoopHooks{})
	loop.Enqueue(Command{ActorID: "a"})
	if ok, reason := loop.Enqueue(Command{ActorID: "b"}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue full rejection, got %v %q", ok, reason)
	}
}

func TestLoopRunTicksUntilStopped(t *testing.T) {
	core := &recordingCore{}
	results := make(chan LoopStepResult, 8)
	loop := NewLoop(core, LoopConfig{TickRate: 200, CatchupMaxTicks: 2, CommandCapacity: 4}, Deps{}, LoopHooks{
		AfterStep: func(r LoopStepResult) {
			select {
			case results <- r:
			default:
			}
		},
	})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		loop.Run(stop)
		close(done)
	}()

	var first, second LoopStepResult
	for i, dst := range []*LoopStepResult{&first, &second} {
		select {
		case *dst = <-results:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tick %d", i+1)
		}
	}
	close(stop)
	<-done

	if first.Tick != 1 || second.Tick != 2 {
		t.Fatalf("expected sequential ticks, got %d and %d", first.Tick, second.Tick)
	}
	if second.Delta <= 0 || second.Delta > second.MaxDelta {
		t.Fatalf("expected clamped positive delta, got %f (max %f)", second.Delta, second.MaxDelta)
	}
}
