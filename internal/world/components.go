package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
)

// Movement is the authoritative transform of an entity. Seconds is the world
// clock at the last write and MoverID selects the client animation profile.
type Movement struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Seconds  float32
	MoverID  uint16
}

// Pathing is the last move order dispatched for an entity. Clients replay it
// to interpolate between StartPos and AnchorPos.
type Pathing struct {
	Backward           bool
	FaceTarget         bool
	AnchorPos          mgl32.Vec3
	StartPos           mgl32.Vec3
	KeepZValue         bool
	ForceFindPath      bool
	IsAbortEarly       bool
	TraverseCosts      int32
	StartTime          float32
	Speed              float32
	Acceleration       float32
	ClientDontCare     bool
	ForcedMovementMode int32
	TargetTile         int32
	WhileObstructed    bool
	MoverKey           uint16
}

// Avatar carries the public identifier clients use to address an entity.
type Avatar struct {
	ID uint64
}

// Active marks an entity that takes part in the simulation.
type Active struct{}

// GameObject tags non-client entities.
type GameObject struct{}

// Client tags the avatar controlled by a connected client.
type Client struct {
	ID string
}

// Components groups the stores shared by every simulation step.
type Components struct {
	World      *ecs.World
	Movement   *ecs.Store[Movement]
	Pathing    *ecs.Store[Pathing]
	Avatar     *ecs.Store[Avatar]
	Active     *ecs.Store[Active]
	GameObject *ecs.Store[GameObject]
	Client     *ecs.Store[Client]
}

func NewComponents(w *ecs.World) *Components {
	return &Components{
		World:      w,
		Movement:   ecs.NewStore[Movement](w),
		Pathing:    ecs.NewStore[Pathing](w),
		Avatar:     ecs.NewStore[Avatar](w),
		Active:     ecs.NewStore[Active](w),
		GameObject: ecs.NewStore[GameObject](w),
		Client:     ecs.NewStore[Client](w),
	}
}

// SpawnGameObject creates an active non-client entity at pos.
func (c *Components) SpawnGameObject(avatarID uint64, pos mgl32.Vec3, moverID uint16) ecs.Entity {
	e := c.World.Spawn()
	c.Movement.Set(e, Movement{Position: pos, Rotation: mgl32.QuatIdent(), MoverID: moverID})
	c.Avatar.Set(e, Avatar{ID: avatarID})
	c.GameObject.Set(e, GameObject{})
	c.Active.Set(e, Active{})
	return e
}

// SpawnClientAvatar creates the active avatar of a connected client.
func (c *Components) SpawnClientAvatar(clientID string, avatarID uint64, pos mgl32.Vec3) ecs.Entity {
	e := c.World.Spawn()
	c.Movement.Set(e, Movement{Position: pos, Rotation: mgl32.QuatIdent()})
	c.Avatar.Set(e, Avatar{ID: avatarID})
	c.Client.Set(e, Client{ID: clientID})
	c.Active.Set(e, Active{})
	return e
}

// Deactivate drops the Active marker. It reports false if e was not active.
func (c *Components) Deactivate(e ecs.Entity) bool {
	return c.Active.Remove(e)
}

// FindByAvatar returns the entity carrying avatarID.
func (c *Components) FindByAvatar(avatarID uint64) (ecs.Entity, bool) {
	for _, e := range c.Avatar.Entities() {
		if avatar, _ := c.Avatar.Get(e); avatar.ID == avatarID {
			return e, true
		}
	}
	return 0, false
}

// FacingRotation returns the yaw rotation looking from one point to another
// on the ground plane. Vertical offset is ignored.
func FacingRotation(from, to mgl32.Vec3) mgl32.Quat {
	dx, dz := to[0]-from[0], to[2]-from[2]
	if dx == 0 && dz == 0 {
		return mgl32.QuatIdent()
	}
	yaw := float32(math.Atan2(float64(dx), float64(dz)))
	return mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0})
}
