package ecs

import (
	"reflect"
	"testing"
)

func TestStoreChangedSinceTracksReplacements(t *testing.T) {
	w := NewWorld()
	store := NewStore[int](w)
	a, b := w.Spawn(), w.Spawn()

	var cursor Cursor
	store.Set(a, 1)
	since := cursor.Begin(w)
	if got := store.ChangedSince(since); !reflect.DeepEqual(got, []Entity{a}) {
		t.Fatalf("expected first pass to see %v, got %v", a, got)
	}

	since = cursor.Begin(w)
	if got := store.ChangedSince(since); len(got) != 0 {
		t.Fatalf("expected no changes without writes, got %v", got)
	}

	store.Set(b, 2)
	store.Set(a, 3)
	since = cursor.Begin(w)
	if got := store.ChangedSince(since); !reflect.DeepEqual(got, []Entity{a, b}) {
		t.Fatalf("expected replacement and insert, got %v", got)
	}
}

func TestCursorSeesWritesMadeDuringItsOwnRun(t *testing.T) {
	w := NewWorld()
	store := NewStore[string](w)
	e := w.Spawn()

	var cursor Cursor
	since := cursor.Begin(w)
	store.Set(e, "written while running")
	if got := store.ChangedSince(since); len(got) != 1 {
		t.Fatalf("expected write to be visible immediately, got %v", got)
	}

	since = cursor.Begin(w)
	if got := store.ChangedSince(since); !reflect.DeepEqual(got, []Entity{e}) {
		t.Fatalf("expected write made during previous run on next run, got %v", got)
	}
}

func TestStoreRemoveRecordsRemoval(t *testing.T) {
	w := NewWorld()
	store := NewStore[struct{}](w)
	e := w.Spawn()

	if store.Remove(e) {
		t.Fatalf("expected removing an absent component to report false")
	}

	var cursor Cursor
	store.Set(e, struct{}{})
	since := cursor.Begin(w)
	if !store.Remove(e) {
		t.Fatalf("expected removal to report true")
	}
	if store.Has(e) {
		t.Fatalf("expected component to be gone")
	}
	if got := store.RemovedSince(since); !reflect.DeepEqual(got, []Entity{e}) {
		t.Fatalf("expected removal to be tracked, got %v", got)
	}
	if got := store.ChangedSince(since); len(got) != 0 {
		t.Fatalf("expected removed component to drop out of change set, got %v", got)
	}
}

func TestDespawnEvictsEveryStore(t *testing.T) {
	w := NewWorld()
	ints := NewStore[int](w)
	names := NewStore[string](w)
	e := w.Spawn()
	ints.Set(e, 4)
	names.Set(e, "npc")

	w.Despawn(e)

	if w.Alive(e) {
		t.Fatalf("expected entity to be dead")
	}
	if ints.Has(e) || names.Has(e) {
		t.Fatalf("expected components to be evicted")
	}
}

func TestStoreEntitiesSorted(t *testing.T) {
	w := NewWorld()
	store := NewStore[int](w)
	var spawned []Entity
	for i := 0; i < 5; i++ {
		spawned = append(spawned, w.Spawn())
	}
	for i := len(spawned) - 1; i >= 0; i-- {
		store.Set(spawned[i], i)
	}
	if got := store.Entities(); !reflect.DeepEqual(got, spawned) {
		t.Fatalf("expected ascending order %v, got %v", spawned, got)
	}
}

func TestCommandsFlushRunsNestedPushes(t *testing.T) {
	var cmds Commands
	var order []int
	cmds.Push(func() {
		order = append(order, 1)
		cmds.Push(func() { order = append(order, 3) })
	})
	cmds.Push(func() { order = append(order, 2) })

	if applied := cmds.Flush(); applied != 3 {
		t.Fatalf("expected 3 commands applied, got %d", applied)
	}
	if !reflect.DeepEqual(order, []int{1, 2, 3}) {
		t.Fatalf("unexpected order %v", order)
	}
	if cmds.Len() != 0 {
		t.Fatalf("expected empty buffer after flush")
	}
}

func TestEventsDrain(t *testing.T) {
	var q Events[string]
	q.Send("a")
	q.Send("b")
	if got := q.Drain(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected drain %v", got)
	}
	if got := q.Drain(); got != nil {
		t.Fatalf("expected nil after drain, got %v", got)
	}
}
