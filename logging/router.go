package logging

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// Router fans published events out to its sinks. Publish never blocks the
// simulation: a full queue drops the event and counts it.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger
	fields   map[string]any
	floors   map[string]Severity

	queue   chan Event
	stop    chan struct{}
	workers []*sinkWorker
	wg      sync.WaitGroup
	closed  atomic.Bool

	metrics      Metrics
	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	nextDropLog  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// NewRouter starts dispatching to the sinks named in cfg.EnabledSinks. Every
// enabled sink must be present in sinks.
func NewRouter(cfg Config, clock Clock, fallback *log.Logger, sinks map[string]Sink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultConfig().BufferSize
	}

	names := append([]string(nil), cfg.EnabledSinks...)
	sort.Strings(names)
	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: fallback,
		fields:   cfg.CloneFields(),
		floors:   cfg.CategorySeverity,
		queue:    make(chan Event, size),
		stop:     make(chan struct{}),
	}
	for _, name := range names {
		sink := sinks[name]
		if sink == nil {
			return nil, fmt.Errorf("logging: sink %q enabled but not provided", name)
		}
		r.workers = append(r.workers, &sinkWorker{
			name:     name,
			sink:     sink,
			backlog:  make(chan Event, min(max(size, 32), 1024)),
			fallback: fallback,
		})
	}

	r.wg.Add(1 + len(r.workers))
	go r.dispatch()
	for _, w := range r.workers {
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(w)
	}
	return r, nil
}

// Admits reports whether an event of the given category and severity passes
// the router's thresholds.
func (r *Router) Admits(category string, severity Severity) bool {
	if floor, ok := r.floors[category]; ok {
		return severity >= floor
	}
	return severity >= r.cfg.MinimumSeverity
}

func (r *Router) dispatch() {
	defer func() {
		for _, w := range r.workers {
			close(w.backlog)
		}
		r.wg.Done()
	}()
	for {
		select {
		case event := <-r.queue:
			r.route(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.route(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) route(event Event) {
	if !r.Admits(event.Category, event.Severity) {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)

	r.eventsTotal.Add(1)
	r.metrics.TelemetryAdd("log_events_"+event.Severity.String(), 1)
	if event.Category != "" {
		r.metrics.TelemetryAdd("log_events_category_"+event.Category, 1)
	}
	for _, w := range r.workers {
		w.offer(event)
	}
}

func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped(event)
	}
}

func (r *Router) dropped(event Event) {
	r.droppedTotal.Add(1)
	r.metrics.TelemetryAdd("log_events_dropped", 1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = DefaultConfig().DropWarnInterval
	}
	now := r.clock.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now >= next && r.nextDropLog.CompareAndSwap(next, now+int64(interval)) {
		r.fallback.Printf("queue full, dropping %s at tick %d", event.Type, event.Tick)
	}
}

// Close drains queued events into the sinks and closes them. Calls after the
// first return nil.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	var first error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && first == nil {
			first = fmt.Errorf("close sink %s: %w", w.name, err)
		}
	}
	return first
}

func (r *Router) Stats() RouterStats {
	return RouterStats{EventsTotal: r.eventsTotal.Load(), DroppedTotal: r.droppedTotal.Load()}
}

// Metrics returns the counters maintained by the router. Other components
// record their own counters here too.
func (r *Router) Metrics() *Metrics {
	return &r.metrics
}

func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

// sinkWorker serialises writes to one sink. A failing sink is retried with
// exponential backoff capped at 32s.
type sinkWorker struct {
	name     string
	sink     Sink
	backlog  chan Event
	fallback *log.Logger
	failures int
}

func (w *sinkWorker) offer(event Event) {
	select {
	case w.backlog <- cloneForFields(event):
	default:
		w.fallback.Printf("sink %s backlog full, dropping %s", w.name, event.Type)
	}
}

func (w *sinkWorker) run() {
	for event := range w.backlog {
		err := w.sink.Write(event)
		if err == nil {
			w.failures = 0
			continue
		}
		w.failures++
		delay := time.Duration(1<<min(w.failures, 5)) * time.Second
		w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
		time.Sleep(delay)
	}
}
