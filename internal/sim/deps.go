package sim

import (
	"realm-nav/server/internal/telemetry"
	"realm-nav/server/logging"
)

// Deps carries shared infrastructure dependencies required by the loop.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
}
