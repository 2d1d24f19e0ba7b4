// Package telemetry defines the narrow logging and metrics surfaces handed to
// simulation and transport components.
package telemetry

import (
	"fmt"
	"log"

	"realm-nav/server/logging"
)

// Metric keys published by the simulation.
const (
	MetricTicks            = "sim_ticks_total"
	MetricTickMicros       = "sim_tick_duration_micros"
	MetricEntities         = "nav_entities"
	MetricNavigating       = "nav_corridors_active"
	MetricClients          = "net_clients"
	MetricCommandOverflow  = "sim_command_buffer_overflow_total"
	MetricCommandOccupancy = "sim_command_buffer_occupancy"
)

type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts a function to Logger. A nil LoggerFunc discards.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f != nil {
		f(format, args...)
	}
}

// WrapLogger adapts a standard library logger. A nil logger discards.
func WrapLogger(logger *log.Logger) Logger {
	return stdLogger{logger}
}

type stdLogger struct{ l *log.Logger }

func (s stdLogger) Printf(format string, args ...any) {
	if s.l != nil {
		s.l.Printf(format, args...)
	}
}

// StandardLogger exposes the wrapped logger as the router fallback.
func (s stdLogger) StandardLogger() *log.Logger { return s.l }

// Prefixed tags every line written through logger with component.
func Prefixed(logger Logger, component string) Logger {
	if logger == nil {
		return LoggerFunc(nil)
	}
	tag := "[" + component + "] "
	return LoggerFunc(func(format string, args ...any) {
		logger.Printf("%s", tag+fmt.Sprintf(format, args...))
	})
}

type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics publishes into the router's telemetry counters.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	return routerMetrics{metrics}
}

type routerMetrics struct{ m *logging.Metrics }

func (r routerMetrics) Add(key string, delta uint64) {
	if r.m != nil {
		r.m.TelemetryAdd(key, delta)
	}
}

func (r routerMetrics) Store(key string, value uint64) {
	if r.m != nil {
		r.m.TelemetryStore(key, value)
	}
}

// Gauges is the per-tick population of a world.
type Gauges struct {
	Entities   int
	Navigating int
	Clients    int
}

// Publish stores g into m. A nil m is ignored.
func (g Gauges) Publish(m Metrics) {
	if m == nil {
		return
	}
	m.Store(MetricEntities, uint64(g.Entities))
	m.Store(MetricNavigating, uint64(g.Navigating))
	m.Store(MetricClients, uint64(g.Clients))
}
