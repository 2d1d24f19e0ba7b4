package navigation

import (
	"context"

	"realm-nav/server/logging"
)

const (
	// EventCorridorFound is emitted when a fresh corridor is attached to an entity.
	EventCorridorFound logging.EventType = "navigation.corridor_found"
	// EventRetargeted is emitted when an existing corridor absorbs a new destination.
	EventRetargeted logging.EventType = "navigation.retargeted"
	// EventFailed is emitted when navigation stops without reaching the destination.
	EventFailed logging.EventType = "navigation.failed"
	// EventFinished is emitted when an entity arrives.
	EventFinished logging.EventType = "navigation.finished"
	// EventCallbackFailed is emitted when a status callback returns an error.
	EventCallbackFailed logging.EventType = "navigation.callback_failed"
)

// CorridorFoundPayload describes a newly built corridor.
type CorridorFoundPayload struct {
	Target         [3]float32 `json:"target"`
	Polygons       int        `json:"polygons"`
	PathengineTile int32      `json:"pathengineTile"`
}

// RetargetPayload describes a corridor whose target moved.
type RetargetPayload struct {
	Requested [3]float32 `json:"requested"`
	Reached   [3]float32 `json:"reached"`
}

// StatusPayload carries the status tag sent to the entity's callback.
type StatusPayload struct {
	Status string     `json:"status"`
	Target [3]float32 `json:"target"`
}

// CallbackFailedPayload captures a callback error.
type CallbackFailedPayload struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// CorridorFound publishes a debug event for a new corridor.
func CorridorFound(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CorridorFoundPayload, extra map[string]any) {
	publish(ctx, pub, EventCorridorFound, logging.SeverityDebug, tick, actor, payload, extra)
}

// Retargeted publishes a debug event when a corridor is reused.
func Retargeted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RetargetPayload, extra map[string]any) {
	publish(ctx, pub, EventRetargeted, logging.SeverityDebug, tick, actor, payload, extra)
}

// Failed publishes a warning when navigation is abandoned.
func Failed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StatusPayload, extra map[string]any) {
	publish(ctx, pub, EventFailed, logging.SeverityWarn, tick, actor, payload, extra)
}

// Finished publishes an info event on arrival.
func Finished(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StatusPayload, extra map[string]any) {
	publish(ctx, pub, EventFinished, logging.SeverityInfo, tick, actor, payload, extra)
}

// CallbackFailed publishes a warning for a callback error. Navigation
// continues regardless.
func CallbackFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CallbackFailedPayload, extra map[string]any) {
	publish(ctx, pub, EventCallbackFailed, logging.SeverityWarn, tick, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}
