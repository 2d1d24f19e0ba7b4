package ecs

import "sync"

// Commands defers structural changes until the pipeline reaches a flush
// point between steps. Producers may push from any goroutine; Flush is called
// by the tick owner only.
type Commands struct {
	mu    sync.Mutex
	queue []func()
}

// Push stages fn for the next flush.
func (c *Commands) Push(fn func()) {
	if c == nil || fn == nil {
		return
	}
	c.mu.Lock()
	c.queue = append(c.queue, fn)
	c.mu.Unlock()
}

// Flush runs staged commands in FIFO order. Commands pushed while flushing
// run in the same flush.
func (c *Commands) Flush() int {
	if c == nil {
		return 0
	}
	applied := 0
	for {
		c.mu.Lock()
		pending := c.queue
		c.queue = nil
		c.mu.Unlock()
		if len(pending) == 0 {
			return applied
		}
		for _, fn := range pending {
			fn()
			applied++
		}
	}
}

// Len reports the number of staged commands.
func (c *Commands) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Events is a per-tick queue of typed events with a single consumer.
type Events[T any] struct {
	mu      sync.Mutex
	pending []T
}

// Send appends an event.
func (q *Events[T]) Send(event T) {
	q.mu.Lock()
	q.pending = append(q.pending, event)
	q.mu.Unlock()
}

// Drain returns and clears every pending event.
func (q *Events[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.pending
	q.pending = nil
	return events
}
