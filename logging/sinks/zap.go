package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"realm-nav/server/logging"
)

// Zap forwards events to a zap logger, one structured line per event.
type Zap struct {
	logger *zap.Logger
}

// NewZap builds a production or development zap logger depending on cfg.
func NewZap(cfg logging.ZapConfig) (*Zap, error) {
	build := zap.NewProduction
	if cfg.Development {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		return nil, err
	}
	return &Zap{logger: logger}, nil
}

// NewZapWithLogger wraps an existing logger.
func NewZapWithLogger(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

func (s *Zap) Write(event logging.Event) error {
	fields := []zap.Field{
		zap.Uint64("tick", event.Tick),
		zap.String("actor", formatEntity(event.Actor)),
	}
	if event.Category != "" {
		fields = append(fields, zap.String("category", event.Category))
	}
	if !event.Time.IsZero() {
		fields = append(fields, zap.Time("eventTime", event.Time))
	}
	if len(event.Targets) > 0 {
		fields = append(fields, zap.Any("targets", event.Targets))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if len(event.Extra) > 0 {
		fields = append(fields, zap.Any("extra", event.Extra))
	}
	if event.TraceID != "" {
		fields = append(fields, zap.String("traceId", event.TraceID))
	}
	s.logger.Check(zapLevel(event.Severity), string(event.Type)).Write(fields...)
	return nil
}

// Close flushes buffered entries. Sync reports spurious errors for terminal
// outputs, so its result is dropped.
func (s *Zap) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}

func zapLevel(sev logging.Severity) zapcore.Level {
	switch sev {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
