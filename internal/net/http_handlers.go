package net

import (
	"errors"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server"
	"realm-nav/server/internal/net/ws"
	"realm-nav/server/internal/sim"
	"realm-nav/server/internal/telemetry"
)

type HTTPHandlerConfig struct {
	Logger telemetry.Logger
	// Telemetry returns the counters published under /diagnostics.
	Telemetry func() map[string]uint64
}

type handlers struct {
	hub       *server.Hub
	logger    telemetry.Logger
	telemetry func() map[string]uint64
}

type errorResponse struct {
	Error string `json:"error"`
}

type spawnRequest struct {
	AvatarID uint64    `json:"avatarId"`
	Position *sim.Vec3 `json:"position" binding:"required"`
	MoverID  uint16    `json:"moverId"`
	Script   string    `json:"script"`
}

type moveRequest struct {
	Destination *sim.Vec3 `json:"destination" binding:"required"`
	Speed       float32   `json:"speed" binding:"required,gt=0"`
}

type acceptedResponse struct {
	Status   string `json:"status"`
	AvatarID uint64 `json:"avatarId"`
	Tick     uint64 `json:"tick"`
}

// NewHTTPHandler builds the admin and client routes of hub.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{hub: hub, logger: logger, telemetry: cfg.Telemetry}
	sessions := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})

	router.GET("/health", func(ctx *gin.Context) {
		ctx.String(nethttp.StatusOK, "ok")
	})
	router.GET("/diagnostics", h.diagnostics)
	router.GET("/ws", gin.WrapF(sessions.Handle))

	mesh := router.Group("/navmesh")
	mesh.GET("/bounds", h.navmeshBounds)
	mesh.GET("/floor", h.navmeshFloor)
	mesh.GET("/tile", h.navmeshTile)

	entities := router.Group("/entities")
	entities.POST("", h.spawnEntity)
	entities.GET("/:id", h.getEntity)
	entities.POST("/:id/move", h.moveEntity)
	entities.POST("/:id/cancel", h.entityCommand(sim.CommandCancel))
	entities.POST("/:id/deactivate", h.entityCommand(sim.CommandDeactivate))

	return router
}

func (h *handlers) diagnostics(ctx *gin.Context) {
	var counters map[string]uint64
	if h.telemetry != nil {
		counters = h.telemetry()
	}
	ctx.JSON(nethttp.StatusOK, gin.H{
		"status":          "ok",
		"serverTime":      time.Now().UnixMilli(),
		"heartbeatMillis": server.HeartbeatInterval().Milliseconds(),
		"hub":             h.hub.Diagnostics(),
		"telemetry":       counters,
	})
}

func (h *handlers) navmeshBounds(ctx *gin.Context) {
	bounds := h.hub.Navmesh().Bounds()
	if bounds.Empty() {
		ctx.JSON(nethttp.StatusNotFound, errorResponse{Error: "navmesh has no tiles"})
		return
	}
	ctx.JSON(nethttp.StatusOK, bounds)
}

func (h *handlers) navmeshFloor(ctx *gin.Context) {
	pos, ok := queryVec(ctx, "x", "y", "z")
	if !ok {
		return
	}
	height, found := h.hub.Navmesh().FloorHeight(pos)
	if !found {
		ctx.JSON(nethttp.StatusNotFound, errorResponse{Error: "no floor at position"})
		return
	}
	ctx.JSON(nethttp.StatusOK, gin.H{"height": height})
}

func (h *handlers) navmeshTile(ctx *gin.Context) {
	pos, ok := queryVec(ctx, "x", "y", "z")
	if !ok {
		return
	}
	ctx.JSON(nethttp.StatusOK, gin.H{"tile": h.hub.Navmesh().PathengineTileForPos(pos)})
}

func (h *handlers) spawnEntity(ctx *gin.Context) {
	var req spawnRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(nethttp.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.AvatarID == 0 {
		req.AvatarID = h.hub.NextAvatarID()
	}
	h.enqueue(ctx, sim.Command{
		AvatarID: req.AvatarID,
		Type:     sim.CommandSpawn,
		Spawn: &sim.SpawnCommand{
			AvatarID: req.AvatarID,
			Position: *req.Position,
			MoverID:  req.MoverID,
			Script:   req.Script,
		},
	})
}

func (h *handlers) getEntity(ctx *gin.Context) {
	avatarID, ok := avatarParam(ctx)
	if !ok {
		return
	}
	state, found := h.hub.Entity(avatarID)
	if !found {
		ctx.JSON(nethttp.StatusNotFound, errorResponse{Error: "unknown entity"})
		return
	}
	ctx.JSON(nethttp.StatusOK, state)
}

func (h *handlers) moveEntity(ctx *gin.Context) {
	avatarID, ok := avatarParam(ctx)
	if !ok {
		return
	}
	var req moveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(nethttp.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.enqueue(ctx, sim.Command{
		AvatarID: avatarID,
		Type:     sim.CommandMoveTo,
		MoveTo:   &sim.MoveToCommand{Destination: *req.Destination, Speed: req.Speed},
	})
}

func (h *handlers) entityCommand(kind sim.CommandType) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		avatarID, ok := avatarParam(ctx)
		if !ok {
			return
		}
		h.enqueue(ctx, sim.Command{AvatarID: avatarID, Type: kind})
	}
}

func (h *handlers) enqueue(ctx *gin.Context, cmd sim.Command) {
	cmd.ActorID = "http:" + ctx.ClientIP()
	if err := h.hub.Enqueue(cmd); err != nil {
		status := nethttp.StatusInternalServerError
		if errors.Is(err, server.ErrQueueRejected) {
			status = nethttp.StatusServiceUnavailable
		}
		h.logger.Printf("[http] %s for avatar %d rejected: %v", cmd.Type, cmd.AvatarID, err)
		ctx.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(nethttp.StatusAccepted, acceptedResponse{Status: "queued", AvatarID: cmd.AvatarID, Tick: h.hub.Tick()})
}

func avatarParam(ctx *gin.Context) (uint64, bool) {
	avatarID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || avatarID == 0 {
		ctx.JSON(nethttp.StatusBadRequest, errorResponse{Error: "invalid entity id"})
		return 0, false
	}
	return avatarID, true
}

func queryVec(ctx *gin.Context, keys ...string) (mgl32.Vec3, bool) {
	var pos mgl32.Vec3
	for axis, key := range keys {
		raw := ctx.Query(key)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			ctx.JSON(nethttp.StatusBadRequest, errorResponse{Error: "invalid " + key})
			return pos, false
		}
		pos[axis] = float32(value)
	}
	return pos, true
}
