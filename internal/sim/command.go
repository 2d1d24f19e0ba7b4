package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandSpawn          CommandType = "Spawn"
	CommandMoveTo         CommandType = "MoveTo"
	CommandCancel         CommandType = "Cancel"
	CommandDeactivate     CommandType = "Deactivate"
	CommandClientPosition CommandType = "ClientPosition"
)

// Vec3 is a world position in command payloads.
type Vec3 [3]float32

// SpawnCommand creates a game object. Script names the behaviour script that
// drives it, if any.
type SpawnCommand struct {
	AvatarID uint64 `json:"avatarId"`
	Position Vec3   `json:"position"`
	MoverID  uint16 `json:"moverId"`
	Script   string `json:"script,omitempty"`
}

// MoveToCommand requests navigation to Destination.
type MoveToCommand struct {
	Destination Vec3    `json:"destination"`
	Speed       float32 `json:"speed"`
}

// PositionCommand teleports a client avatar; clients own their position.
type PositionCommand struct {
	Position Vec3 `json:"position"`
}

// Command represents an intent captured for processing on the next tick.
// ActorID keys per-actor throttling; AvatarID addresses the entity.
type Command struct {
	OriginTick uint64           `json:"originTick"`
	ActorID    string           `json:"actorId"`
	AvatarID   uint64           `json:"avatarId"`
	Type       CommandType      `json:"type"`
	IssuedAt   time.Time        `json:"issuedAt"`
	Spawn      *SpawnCommand    `json:"spawn,omitempty"`
	MoveTo     *MoveToCommand   `json:"moveTo,omitempty"`
	Position   *PositionCommand `json:"position,omitempty"`
}
