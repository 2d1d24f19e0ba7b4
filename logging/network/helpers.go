package network

import (
	"context"

	"realm-nav/server/logging"
)

const (
	// EventClientAttached is emitted when a websocket client is bound to an avatar.
	EventClientAttached logging.EventType = "network.client_attached"
	// EventClientDetached is emitted when a websocket client goes away.
	EventClientDetached logging.EventType = "network.client_detached"
	// EventSendFailed is emitted when a packet could not be queued for a client.
	EventSendFailed logging.EventType = "network.send_failed"
)

// ClientPayload identifies a client session.
type ClientPayload struct {
	ClientID string `json:"clientId"`
	AvatarID uint64 `json:"avatarId"`
	Reason   string `json:"reason,omitempty"`
}

// SendFailedPayload captures a dropped packet.
type SendFailedPayload struct {
	ClientID string `json:"clientId"`
	AvatarID uint64 `json:"avatarId"`
	Bytes    int    `json:"bytes"`
	Error    string `json:"error"`
}

// ClientAttached publishes an info event for a new client session.
func ClientAttached(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ClientPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientAttached,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// ClientDetached publishes an info event when a client session ends.
func ClientDetached(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ClientPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientDetached,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// SendFailed publishes a warning for a packet that never reached the client.
func SendFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SendFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSendFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
