package ws

import (
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"realm-nav/server"
	"realm-nav/server/internal/net/intake"
	"realm-nav/server/internal/net/proto"
	"realm-nav/server/internal/telemetry"
)

type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades client connections and spawns one avatar per session.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := telemetry.Prefixed(cfg.Logger, "ws")

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle serves one client connection until it disconnects. The avatar spawns
// at the x, y and z query parameters when present.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	spawn, err := spawnPosition(r)
	if err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}

	session := newSession(conn)
	entity, clientID, avatarID := h.hub.AttachClient(session, spawn)
	defer h.hub.DetachClient(entity, "disconnected")

	welcome, err := proto.EncodeWelcome(clientID, avatarID, h.hub.Tick())
	if err != nil {
		h.logger.Printf("failed to marshal welcome for %s: %v", clientID, err)
		return
	}
	if err := session.SendText(welcome); err != nil {
		return
	}

	stage := intake.CommandContext{
		Queue:     h.hub,
		HasClient: func(string) bool { return h.hub.HasClient(entity) },
	}

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", clientID, err)
			continue
		}

		switch msg.Type {
		case proto.TypePosition:
			if _, ok, reason := intake.StageClientMessage(stage, clientID, avatarID, msg); !ok {
				h.logger.Printf("position from %s dropped: %s", clientID, reason)
			}
		case proto.TypeHeartbeat:
			now := time.Now()
			if _, ok := h.hub.UpdateHeartbeat(entity, now, msg.SentAt); !ok {
				return
			}
			ack, err := proto.EncodeHeartbeat(now.UnixMilli(), msg.SentAt)
			if err != nil {
				h.logger.Printf("failed to marshal heartbeat ack for %s: %v", clientID, err)
				continue
			}
			if err := session.SendText(ack); err != nil {
				return
			}
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, clientID)
		}
	}
}

func spawnPosition(r *nethttp.Request) (mgl32.Vec3, error) {
	var pos mgl32.Vec3
	query := r.URL.Query()
	for axis, key := range []string{"x", "y", "z"} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return pos, err
		}
		pos[axis] = float32(value)
	}
	return pos, nil
}
