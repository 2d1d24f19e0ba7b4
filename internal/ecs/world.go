package ecs

import "sync"

// Entity is an opaque handle. Zero is never allocated.
type Entity uint64

type tracker interface {
	evict(e Entity)
}

// World owns entity allocation, the change counter shared by every store and
// the deferred command buffer.
type World struct {
	mu       sync.Mutex
	nextID   Entity
	alive    map[Entity]struct{}
	change   uint64
	tick     uint64
	trackers []tracker
	commands Commands
}

// NewWorld creates an empty world at tick zero.
func NewWorld() *World {
	return &World{alive: make(map[Entity]struct{})}
}

// Spawn allocates a new live entity.
func (w *World) Spawn() Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	e := w.nextID
	w.alive[e] = struct{}{}
	return e
}

// Despawn removes every component of e and marks it dead.
func (w *World) Despawn(e Entity) {
	w.mu.Lock()
	_, ok := w.alive[e]
	delete(w.alive, e)
	trackers := append([]tracker(nil), w.trackers...)
	w.mu.Unlock()
	if !ok {
		return
	}
	for _, t := range trackers {
		t.evict(e)
	}
}

// Alive reports whether e was spawned and not despawned.
func (w *World) Alive(e Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.alive[e]
	return ok
}

// Len reports the number of live entities.
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.alive)
}

// Tick returns the current simulation tick.
func (w *World) Tick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

// AdvanceTick increments and returns the simulation tick.
func (w *World) AdvanceTick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick++
	return w.tick
}

// Commands returns the deferred command buffer.
func (w *World) Commands() *Commands {
	return &w.commands
}

// ChangeStamp returns the most recent write stamp.
func (w *World) ChangeStamp() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.change
}

func (w *World) stamp() uint64 {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.change++
	return w.change
}

func (w *World) register(t tracker) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trackers = append(w.trackers, t)
}

// Cursor remembers the last change stamp a system observed. Each call to Begin
// returns the stamp to filter against and moves the cursor to the present, so
// writes made while the system runs are visible on its next run.
type Cursor struct {
	last uint64
}

// Begin returns the stamp recorded by the previous call.
func (c *Cursor) Begin(w *World) uint64 {
	since := c.last
	c.last = w.ChangeStamp()
	return since
}
