// Package replication sends Pathing updates to the clients that can see the
// moving entity.
package replication

import (
	"context"
	"strconv"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/interest"
	"realm-nav/server/internal/net/proto"
	"realm-nav/server/internal/world"
	"realm-nav/server/logging"
	netlog "realm-nav/server/logging/network"
)

// Sender delivers an encoded packet to the session of a client avatar.
type Sender interface {
	Send(client ecs.Entity, packet []byte) error
}

// SenderFunc adapts a function into a Sender.
type SenderFunc func(client ecs.Entity, packet []byte) error

func (f SenderFunc) Send(client ecs.Entity, packet []byte) error {
	return f(client, packet)
}

type pair struct {
	client ecs.Entity
	entity ecs.Entity
}

// Replicator owns the change cursor over Pathing.
type Replicator struct {
	comps     *world.Components
	interest  *interest.Manager
	sender    Sender
	publisher logging.Publisher
	cursor    ecs.Cursor
}

func New(comps *world.Components, manager *interest.Manager, sender Sender, publisher logging.Publisher) *Replicator {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Replicator{comps: comps, interest: manager, sender: sender, publisher: publisher}
}

// Replicate sends one packet per (client, entity) pair that needs the
// entity's Pathing: pairs where the Pathing changed since the previous pass
// and pairs the interest manager just transmitted. It returns the number of
// packets handed to the sender.
func (r *Replicator) Replicate(ctx context.Context, tick uint64) int {
	since := r.cursor.Begin(r.comps.World)
	sent := make(map[pair]struct{})

	for _, e := range r.comps.Pathing.ChangedSince(since) {
		for _, client := range r.interest.Interested(e) {
			r.send(ctx, tick, sent, client, e)
		}
	}
	for _, ev := range r.interest.Drain() {
		if r.comps.Pathing.Has(ev.Entity) {
			r.send(ctx, tick, sent, ev.Client, ev.Entity)
		}
	}
	return len(sent)
}

func (r *Replicator) send(ctx context.Context, tick uint64, sent map[pair]struct{}, client, e ecs.Entity) {
	key := pair{client: client, entity: e}
	if _, done := sent[key]; done {
		return
	}
	pathing, ok := r.comps.Pathing.Get(e)
	if !ok {
		return
	}
	avatar, ok := r.comps.Avatar.Get(e)
	if !ok {
		return
	}
	sent[key] = struct{}{}

	packet := proto.EncodeAvatarBehavior(avatar.ID, proto.EncodePathing(pathing))
	if err := r.sender.Send(client, packet); err != nil {
		clientID := ""
		if c, ok := r.comps.Client.Get(client); ok {
			clientID = c.ID
		}
		netlog.SendFailed(ctx, r.publisher, tick, logging.EntityRef{ID: strconv.FormatUint(uint64(client), 10), Kind: logging.EntityKindClient}, netlog.SendFailedPayload{
			ClientID: clientID,
			AvatarID: avatar.ID,
			Bytes:    len(packet),
			Error:    err.Error(),
		}, nil)
	}
}
