// Package intake validates client control messages and stages them as
// simulation commands.
package intake

import (
	"math"
	"time"

	"realm-nav/server/internal/net/proto"
	"realm-nav/server/internal/sim"
)

const (
	RejectInvalidMessage = "invalid_message"
	RejectUnknownActor   = "unknown_actor"
)

// Enqueuer stages a command for the next tick.
type Enqueuer interface {
	Enqueue(cmd sim.Command) error
}

type CommandContext struct {
	Queue     Enqueuer
	HasClient func(string) bool
	Now       func() time.Time
}

// StageClientMessage converts a client position message into a command for
// the client's own avatar and enqueues it.
func StageClientMessage(ctx CommandContext, clientID string, avatarID uint64, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	if msg.Type != proto.TypePosition {
		return zero, false, RejectInvalidMessage
	}
	for _, v := range []float32{msg.X, msg.Y, msg.Z} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return zero, false, RejectInvalidMessage
		}
	}
	if ctx.HasClient != nil && !ctx.HasClient(clientID) {
		return zero, false, RejectUnknownActor
	}

	command := sim.Command{
		ActorID:  clientID,
		AvatarID: avatarID,
		Type:     sim.CommandClientPosition,
		Position: &sim.PositionCommand{Position: sim.Vec3{msg.X, msg.Y, msg.Z}},
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Queue == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if err := ctx.Queue.Enqueue(command); err != nil {
		return zero, false, err.Error()
	}
	return command, true, ""
}
