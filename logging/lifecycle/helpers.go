package lifecycle

import (
	"context"

	"realm-nav/server/logging"
)

const (
	// EventNavmeshLoaded is emitted once the world navmesh is ready.
	EventNavmeshLoaded logging.EventType = "lifecycle.navmesh_loaded"
	// EventEntitySpawned is emitted when an entity enters the world.
	EventEntitySpawned logging.EventType = "lifecycle.entity_spawned"
	// EventEntityDeactivated is emitted when an entity leaves the simulation.
	EventEntityDeactivated logging.EventType = "lifecycle.entity_deactivated"
)

// NavmeshLoadedPayload summarises the loaded mesh.
type NavmeshLoadedPayload struct {
	WorldID  string `json:"worldId"`
	MeshID   string `json:"meshId"`
	Tiles    int    `json:"tiles"`
	Polygons int    `json:"polygons"`
}

// EntitySpawnedPayload records where an entity appeared.
type EntitySpawnedPayload struct {
	AvatarID uint64     `json:"avatarId"`
	Position [3]float32 `json:"position"`
	Script   string     `json:"script,omitempty"`
}

// EntityDeactivatedPayload records why an entity left.
type EntityDeactivatedPayload struct {
	AvatarID uint64 `json:"avatarId"`
	Reason   string `json:"reason"`
}

// NavmeshLoaded publishes an info event for a loaded mesh.
func NavmeshLoaded(ctx context.Context, pub logging.Publisher, tick uint64, payload NavmeshLoadedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventNavmeshLoaded,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld, ID: payload.WorldID},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// EntitySpawned publishes an info event for a new entity.
func EntitySpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EntitySpawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEntitySpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// EntityDeactivated publishes an info event when an entity is deactivated.
func EntityDeactivated(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EntityDeactivatedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEntityDeactivated,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
