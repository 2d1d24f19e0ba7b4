package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/oklog/ulid/v2"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/interest"
	"realm-nav/server/internal/nav"
	"realm-nav/server/internal/navmesh"
	"realm-nav/server/internal/replication"
	"realm-nav/server/internal/script"
	"realm-nav/server/internal/sim"
	"realm-nav/server/internal/telemetry"
	"realm-nav/server/internal/world"
	"realm-nav/server/logging"
	"realm-nav/server/logging/lifecycle"
	netlog "realm-nav/server/logging/network"
	simlog "realm-nav/server/logging/simulation"
)

const (
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval
)

var (
	ErrUnknownClient = errors.New("unknown client")
	ErrQueueRejected = errors.New("command rejected")
)

// ClientConn is the outbound half of a connected client session.
type ClientConn interface {
	Send(packet []byte) error
	Close() error
}

// HubConfig carries the collaborators and tuning of a Hub.
type HubConfig struct {
	WorldID  string
	Loop     sim.LoopConfig
	Interest interest.Config
	Scripts  string
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
	Clock    logging.Clock
}

// DefaultHubConfig returns the settings used by tests and local runs.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WorldID:  "default",
		Loop:     sim.DefaultLoopConfig(),
		Interest: interest.DefaultConfig(),
	}
}

type clientState struct {
	id            string
	avatarID      uint64
	conn          ClientConn
	lastHeartbeat time.Time
}

// Hub owns the world of one navmesh: entities, the navigation system, client
// sessions and scripts. The simulation loop is the only writer of world state;
// mu serialises it against diagnostics and client attach.
type Hub struct {
	mu         sync.Mutex
	config     HubConfig
	comps      *world.Components
	navmesh    *navmesh.Navmesh
	nav        *nav.System
	interest   *interest.Manager
	replicator *replication.Replicator
	scripts    *script.Runtime
	watcher    *script.Watcher
	loop       *sim.Loop
	publisher  logging.Publisher
	logger     telemetry.Logger
	metrics    telemetry.Metrics
	clock      logging.Clock
	start      time.Time

	clientsMu sync.RWMutex
	clients   map[ecs.Entity]*clientState

	nextAvatar atomic.Uint64
	tickSeq    atomic.Uint64
	lastTick   atomic.Uint64
	overruns   uint64
}

// NewHub builds a hub over a loaded navmesh.
func NewHub(cfg HubConfig, mesh *navmesh.Navmesh, publisher logging.Publisher) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	comps := world.NewComponents(ecs.NewWorld())
	h := &Hub{
		config:    cfg,
		comps:     comps,
		navmesh:   mesh,
		publisher: publisher,
		logger:    logger,
		metrics:   cfg.Metrics,
		clock:     clock,
		start:     clock.Now(),
		clients:   make(map[ecs.Entity]*clientState),
	}
	h.nav = nav.NewSystem(comps, mesh, publisher)
	h.interest = interest.NewManager(comps, cfg.Interest)
	h.replicator = replication.New(comps, h.interest, h, publisher)
	h.scripts = script.NewRuntime(cfg.Scripts, comps, h.nav, logger)
	h.loop = sim.NewLoop(h, cfg.Loop, sim.Deps{Logger: logger, Metrics: cfg.Metrics, Clock: clock}, sim.LoopHooks{
		NextTick:      h.nextTick,
		AfterStep:     h.afterStep,
		OnCommandDrop: h.commandDropped,
	})
	return h
}

// WatchScripts enables hot reload of the script directory.
func (h *Hub) WatchScripts(w *script.Watcher) {
	h.mu.Lock()
	h.watcher = w
	h.mu.Unlock()
}

// RunSimulation drives the fixed-rate tick loop until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.loop.Run(stop)
}

// Advance runs one tick immediately with the staged commands. It shares the
// tick sequence with RunSimulation.
func (h *Hub) Advance(delta float64) sim.LoopStepResult {
	return h.loop.Advance(sim.LoopTickContext{Tick: h.nextTick(), Now: h.clock.Now(), Delta: delta})
}

func (h *Hub) nextTick() uint64 {
	return h.tickSeq.Add(1)
}

// Enqueue stages a command for the next tick.
func (h *Hub) Enqueue(cmd sim.Command) error {
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = h.clock.Now()
	}
	cmd.OriginTick = h.lastTick.Load()
	if ok, reason := h.loop.Enqueue(cmd); !ok {
		return fmt.Errorf("%w: %s", ErrQueueRejected, reason)
	}
	return nil
}

// NextAvatarID reserves a public avatar id.
func (h *Hub) NextAvatarID() uint64 {
	return h.nextAvatar.Add(1)
}

// Navmesh returns the world navmesh.
func (h *Hub) Navmesh() *navmesh.Navmesh {
	return h.navmesh
}

// Tick returns the last executed tick.
func (h *Hub) Tick() uint64 {
	return h.lastTick.Load()
}

// Apply executes the commands staged since the previous tick.
func (h *Hub) Apply(tick sim.LoopTickContext, cmds []sim.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx := context.Background()
	for _, cmd := range cmds {
		h.applyLocked(ctx, tick.Tick, cmd)
	}
}

func (h *Hub) applyLocked(ctx context.Context, tick uint64, cmd sim.Command) {
	if cmd.Type == sim.CommandSpawn {
		h.spawnLocked(ctx, tick, cmd)
		return
	}
	e, ok := h.comps.FindByAvatar(cmd.AvatarID)
	if !ok {
		h.logger.Printf("[hub] %s for unknown avatar %d", cmd.Type, cmd.AvatarID)
		return
	}
	switch cmd.Type {
	case sim.CommandMoveTo:
		if cmd.MoveTo == nil {
			return
		}
		h.nav.MoveToPosition(e, mgl32.Vec3(cmd.MoveTo.Destination), cmd.MoveTo.Speed, nil)
	case sim.CommandCancel:
		h.nav.CancelMovement(e)
	case sim.CommandDeactivate:
		h.deactivateLocked(ctx, tick, e, cmd.AvatarID, "requested")
	case sim.CommandClientPosition:
		if cmd.Position == nil || !h.comps.Client.Has(e) {
			return
		}
		move, _ := h.comps.Movement.Get(e)
		move.Position = mgl32.Vec3(cmd.Position.Position)
		h.comps.Movement.Set(e, move)
	default:
		h.logger.Printf("[hub] unsupported command %q", cmd.Type)
	}
}

func (h *Hub) spawnLocked(ctx context.Context, tick uint64, cmd sim.Command) {
	spawn := cmd.Spawn
	if spawn == nil {
		return
	}
	avatarID := spawn.AvatarID
	if avatarID == 0 {
		avatarID = h.NextAvatarID()
	}
	if _, exists := h.comps.FindByAvatar(avatarID); exists {
		h.logger.Printf("[hub] spawn rejected: avatar %d already exists", avatarID)
		return
	}
	pos := mgl32.Vec3(spawn.Position)
	e := h.comps.SpawnGameObject(avatarID, pos, spawn.MoverID)
	lifecycle.EntitySpawned(ctx, h.publisher, tick, entityRef(e, logging.EntityKindGameObject), lifecycle.EntitySpawnedPayload{
		AvatarID: avatarID,
		Position: spawn.Position,
		Script:   spawn.Script,
	}, nil)
	if spawn.Script == "" {
		return
	}
	if err := h.scripts.Attach(e, spawn.Script); err != nil {
		h.logger.Printf("[hub] attach script %s to avatar %d: %v", spawn.Script, avatarID, err)
	}
}

func (h *Hub) deactivateLocked(ctx context.Context, tick uint64, e ecs.Entity, avatarID uint64, reason string) {
	if !h.comps.Deactivate(e) {
		return
	}
	h.scripts.Detach(e)
	kind := logging.EntityKindGameObject
	if h.comps.Client.Has(e) {
		kind = logging.EntityKindClient
	}
	lifecycle.EntityDeactivated(ctx, h.publisher, tick, entityRef(e, kind), lifecycle.EntityDeactivatedPayload{
		AvatarID: avatarID,
		Reason:   reason,
	}, nil)
}

// Step runs the navigation pipeline for one tick. Deferred commands are
// flushed between steps so each step observes the previous one's writes.
// Sessions detached during the tick are closed after the lock is released.
func (h *Hub) Step(tick sim.LoopTickContext) {
	h.mu.Lock()
	closing := h.stepLocked(tick)
	h.mu.Unlock()
	closeConns(closing)
}

func (h *Hub) stepLocked(tick sim.LoopTickContext) []ClientConn {
	ctx := context.Background()
	h.lastTick.Store(tick.Tick)
	h.comps.World.AdvanceTick()
	frame := nav.Frame{
		Tick:  tick.Tick,
		Now:   float32(tick.Now.Sub(h.start).Seconds()),
		Delta: float32(tick.Delta),
	}
	cmds := h.comps.World.Commands()

	h.scripts.Poll(h.watcher)
	closing := h.expireClientsLocked(ctx, tick.Tick, tick.Now)
	cmds.Flush()
	h.nav.AcquireTargets(ctx, frame)
	cmds.Flush()
	h.nav.AdvanceCorridors(ctx, frame)
	cmds.Flush()
	h.interest.Update()
	h.replicator.Replicate(ctx, tick.Tick)
	h.nav.Cleanup(ctx, frame)
	cmds.Flush()

	h.clientsMu.RLock()
	clients := len(h.clients)
	h.clientsMu.RUnlock()
	telemetry.Gauges{
		Entities:   h.comps.World.Len(),
		Navigating: len(h.nav.Targets.Entities()),
		Clients:    clients,
	}.Publish(h.metrics)
	return closing
}

func closeConns(conns []ClientConn) {
	for _, conn := range conns {
		conn.Close()
	}
}

func (h *Hub) afterStep(result sim.LoopStepResult) {
	if result.Budget <= 0 || result.Duration <= result.Budget {
		h.overruns = 0
		return
	}
	h.overruns++
	catchUp := 0
	if result.ClampedDelta {
		catchUp = h.config.Loop.CatchupMaxTicks
	}
	simlog.TickBudgetOverrun(context.Background(), h.publisher, result.Tick, simlog.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         h.overruns,
		CatchUpTicks:   catchUp,
	}, nil)
}

func (h *Hub) commandDropped(reason string, cmd sim.Command) {
	simlog.CommandsDropped(context.Background(), h.publisher, h.lastTick.Load(), simlog.CommandsDroppedPayload{
		Dropped:  1,
		Capacity: h.config.Loop.CommandCapacity,
	}, map[string]any{"reason": reason, "type": string(cmd.Type), "actor": cmd.ActorID})
}

// AttachClient spawns the avatar of a new client session at pos and registers
// conn for replication.
func (h *Hub) AttachClient(conn ClientConn, pos mgl32.Vec3) (ecs.Entity, string, uint64) {
	clientID := ulid.Make().String()
	avatarID := h.NextAvatarID()

	h.mu.Lock()
	e := h.comps.SpawnClientAvatar(clientID, avatarID, pos)
	tick := h.lastTick.Load()
	h.clientsMu.Lock()
	h.clients[e] = &clientState{id: clientID, avatarID: avatarID, conn: conn, lastHeartbeat: h.clock.Now()}
	h.clientsMu.Unlock()
	h.mu.Unlock()

	netlog.ClientAttached(context.Background(), h.publisher, tick, entityRef(e, logging.EntityKindClient), netlog.ClientPayload{
		ClientID: clientID,
		AvatarID: avatarID,
	}, nil)
	return e, clientID, avatarID
}

// DetachClient deactivates the client avatar and closes its session.
func (h *Hub) DetachClient(e ecs.Entity, reason string) {
	h.mu.Lock()
	conn := h.detachLocked(context.Background(), h.lastTick.Load(), e, reason)
	h.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// detachLocked removes the client and returns its connection for the caller
// to close once h.mu is released.
func (h *Hub) detachLocked(ctx context.Context, tick uint64, e ecs.Entity, reason string) ClientConn {
	h.clientsMu.Lock()
	state, ok := h.clients[e]
	delete(h.clients, e)
	h.clientsMu.Unlock()
	if !ok {
		return nil
	}
	h.deactivateLocked(ctx, tick, e, state.avatarID, reason)
	netlog.ClientDetached(ctx, h.publisher, tick, entityRef(e, logging.EntityKindClient), netlog.ClientPayload{
		ClientID: state.id,
		AvatarID: state.avatarID,
		Reason:   reason,
	}, nil)
	return state.conn
}

func (h *Hub) expireClientsLocked(ctx context.Context, tick uint64, now time.Time) []ClientConn {
	var stale []ecs.Entity
	h.clientsMu.RLock()
	for e, state := range h.clients {
		if now.Sub(state.lastHeartbeat) > disconnectAfter {
			stale = append(stale, e)
		}
	}
	h.clientsMu.RUnlock()
	var closing []ClientConn
	for _, e := range stale {
		if conn := h.detachLocked(ctx, tick, e, "heartbeat timeout"); conn != nil {
			closing = append(closing, conn)
		}
	}
	return closing
}

// UpdateHeartbeat records a heartbeat for a client and returns the measured
// round trip when the client stamped its message.
func (h *Hub) UpdateHeartbeat(e ecs.Entity, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	state, ok := h.clients[e]
	if !ok {
		return 0, false
	}
	state.lastHeartbeat = receivedAt
	if clientSent <= 0 {
		return 0, true
	}
	rtt := receivedAt.Sub(time.UnixMilli(clientSent))
	if rtt < 0 {
		rtt = 0
	}
	return rtt, true
}

// Send implements replication.Sender over the registered sessions.
func (h *Hub) Send(client ecs.Entity, packet []byte) error {
	h.clientsMu.RLock()
	state, ok := h.clients[client]
	h.clientsMu.RUnlock()
	if !ok || state.conn == nil {
		return fmt.Errorf("%w: entity %d", ErrUnknownClient, client)
	}
	return state.conn.Send(packet)
}

// HasClient reports whether e is a connected client entity.
func (h *Hub) HasClient(e ecs.Entity) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	_, ok := h.clients[e]
	return ok
}

// ClientAvatar returns the avatar id of a connected client entity.
func (h *Hub) ClientAvatar(e ecs.Entity) (uint64, bool) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	state, ok := h.clients[e]
	if !ok {
		return 0, false
	}
	return state.avatarID, true
}

// Diagnostics summarises the hub for the admin surface.
type Diagnostics struct {
	WorldID    string  `json:"worldId"`
	Tick       uint64  `json:"tick"`
	Uptime     float64 `json:"uptimeSeconds"`
	Entities   int     `json:"entities"`
	Active     int     `json:"active"`
	Navigating int     `json:"navigating"`
	Clients    int     `json:"clients"`
	Scripts    int     `json:"scripts"`
	Pending    int     `json:"pendingCommands"`
	MeshID     string  `json:"meshId"`
	Tiles      int     `json:"tiles"`
	Polygons   int     `json:"polygons"`
}

func (h *Hub) Diagnostics() Diagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()
	diag := Diagnostics{
		WorldID:    h.config.WorldID,
		Tick:       h.lastTick.Load(),
		Uptime:     h.clock.Now().Sub(h.start).Seconds(),
		Entities:   h.comps.World.Len(),
		Active:     len(h.comps.Active.Entities()),
		Navigating: len(h.nav.Targets.Entities()),
		Scripts:    h.scripts.Instances(),
		Pending:    h.loop.Pending(),
	}
	h.clientsMu.RLock()
	diag.Clients = len(h.clients)
	h.clientsMu.RUnlock()
	if h.navmesh != nil {
		diag.MeshID = h.navmesh.MeshID()
		diag.Tiles, diag.Polygons = h.navmesh.Stats()
	}
	return diag
}

// EntityState is the observable state of one entity.
type EntityState struct {
	AvatarID   uint64         `json:"avatarId"`
	Position   [3]float32     `json:"position"`
	Active     bool           `json:"active"`
	Navigating bool           `json:"navigating"`
	Pathing    *world.Pathing `json:"pathing,omitempty"`
}

// Entity looks up an entity by avatar id.
func (h *Hub) Entity(avatarID uint64) (EntityState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.comps.FindByAvatar(avatarID)
	if !ok {
		return EntityState{}, false
	}
	move, _ := h.comps.Movement.Get(e)
	state := EntityState{
		AvatarID:   avatarID,
		Position:   move.Position,
		Active:     h.comps.Active.Has(e),
		Navigating: h.nav.Navigating(e),
	}
	if pathing, ok := h.comps.Pathing.Get(e); ok {
		state.Pathing = &pathing
	}
	return state, true
}

func entityRef(e ecs.Entity, kind logging.EntityKind) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(uint64(e), 10), Kind: kind}
}

// HeartbeatInterval is how often clients are expected to send a heartbeat.
func HeartbeatInterval() time.Duration {
	return heartbeatInterval
}
