package sim

import (
	"strings"
	"sync"

	"realm-nav/server/internal/telemetry"
)

// CommandBuffer is the ring that stages navigation commands between the
// network handlers and the tick. Producers may be concurrent; Drain is
// called only from the simulation goroutine.
type CommandBuffer struct {
	mu      sync.Mutex
	ring    []Command
	head    int
	size    int
	pending map[CommandType]int
	dropped map[CommandType]uint64
	metrics telemetry.Metrics
}

func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		ring:    make([]Command, capacity),
		pending: make(map[CommandType]int),
		dropped: make(map[CommandType]uint64),
		metrics: metrics,
	}
}

func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Push stages cmd. A full ring rejects it and counts the drop against the
// command's type, so a flood of MoveTo requests is distinguishable from
// lost Cancels.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == len(b.ring) {
		b.dropped[cmd.Type]++
		if b.metrics != nil {
			b.metrics.Add(telemetry.MetricCommandOverflow, 1)
			b.metrics.Add(overflowMetric(cmd.Type), 1)
		}
		return false
	}
	b.ring[(b.head+b.size)%len(b.ring)] = cmd
	b.size++
	b.pending[cmd.Type]++
	b.publishLocked()
	return true
}

// Drain hands back every staged command oldest first and empties the ring.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return nil
	}
	out := make([]Command, 0, b.size)
	for i := 0; i < b.size; i++ {
		slot := (b.head + i) % len(b.ring)
		out = append(out, b.ring[slot])
		b.ring[slot] = Command{}
	}
	b.head, b.size = 0, 0
	clear(b.pending)
	b.publishLocked()
	return out
}

func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Pending reports how many staged commands have the given type.
func (b *CommandBuffer) Pending(typ CommandType) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[typ]
}

// Dropped reports how many commands of the given type the ring rejected.
func (b *CommandBuffer) Dropped(typ CommandType) uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped[typ]
}

func (b *CommandBuffer) publishLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(telemetry.MetricCommandOccupancy, uint64(b.size))
}

func overflowMetric(typ CommandType) string {
	if typ == "" {
		return telemetry.MetricCommandOverflow + "_unknown"
	}
	return telemetry.MetricCommandOverflow + "_" + strings.ToLower(string(typ))
}
