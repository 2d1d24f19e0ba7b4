package replication

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/interest"
	"realm-nav/server/internal/net/proto"
	"realm-nav/server/internal/world"
	"realm-nav/server/logging"
	netlog "realm-nav/server/logging/network"
)

type packet struct {
	client   ecs.Entity
	avatarID uint64
	pathing  world.Pathing
}

type captureSender struct {
	t       *testing.T
	packets []packet
	err     error
}

func (s *captureSender) Send(client ecs.Entity, raw []byte) error {
	avatarID, body, err := proto.DecodeAvatarBehavior(raw)
	if err != nil {
		s.t.Fatalf("decode packet: %v", err)
	}
	pathing, err := proto.DecodePathing(body)
	if err != nil {
		s.t.Fatalf("decode pathing: %v", err)
	}
	s.packets = append(s.packets, packet{client: client, avatarID: avatarID, pathing: pathing})
	return s.err
}

func (s *captureSender) countFor(client ecs.Entity) int {
	n := 0
	for _, p := range s.packets {
		if p.client == client {
			n++
		}
	}
	return n
}

type fixture struct {
	comps    *world.Components
	interest *interest.Manager
	sender   *captureSender
	rep      *Replicator
}

func newFixture(t *testing.T, pub logging.Publisher) *fixture {
	comps := world.NewComponents(ecs.NewWorld())
	manager := interest.NewManager(comps, interest.Config{CellSize: 10, Radius: 20})
	sender := &captureSender{t: t}
	return &fixture{comps: comps, interest: manager, sender: sender, rep: New(comps, manager, sender, pub)}
}

func (f *fixture) pass() int {
	f.interest.Update()
	return f.rep.Replicate(context.Background(), 1)
}

func TestDirtyPathingReachesEachInterestedClientOnce(t *testing.T) {
	f := newFixture(t, nil)
	a := f.comps.SpawnClientAvatar("a", 100, mgl32.Vec3{})
	b := f.comps.SpawnClientAvatar("b", 101, mgl32.Vec3{5, 0, 0})
	far := f.comps.SpawnClientAvatar("far", 102, mgl32.Vec3{500, 0, 0})
	npc := f.comps.SpawnGameObject(7, mgl32.Vec3{2, 0, 2}, 0)
	f.pass()
	f.sender.packets = nil

	f.comps.Pathing.Set(npc, world.Pathing{Speed: 10, AnchorPos: mgl32.Vec3{9, 0, 9}})
	f.comps.Pathing.Set(npc, world.Pathing{Speed: 12, AnchorPos: mgl32.Vec3{9, 0, 9}})
	if sent := f.pass(); sent != 2 {
		t.Fatalf("expected 2 packets, got %d", sent)
	}
	if f.sender.countFor(a) != 1 || f.sender.countFor(b) != 1 || f.sender.countFor(far) != 0 {
		t.Fatalf("unexpected fan-out %+v", f.sender.packets)
	}
	for _, p := range f.sender.packets {
		if p.avatarID != 7 || p.pathing.Speed != 12 {
			t.Fatalf("expected latest pathing for avatar 7, got %+v", p)
		}
	}

	f.sender.packets = nil
	if sent := f.pass(); sent != 0 {
		t.Fatalf("expected quiet pass, got %d packets", sent)
	}
}

func TestLateJoinGetsSingleCatchUp(t *testing.T) {
	f := newFixture(t, nil)
	f.comps.SpawnClientAvatar("a", 100, mgl32.Vec3{})
	npc := f.comps.SpawnGameObject(7, mgl32.Vec3{2, 0, 2}, 0)
	f.comps.Pathing.Set(npc, world.Pathing{Speed: 3})
	f.pass()
	f.sender.packets = nil

	late := f.comps.SpawnClientAvatar("late", 101, mgl32.Vec3{4, 0, 0})
	f.pass()
	f.pass()

	if got := f.sender.countFor(late); got != 1 {
		t.Fatalf("expected exactly one catch-up packet, got %d", got)
	}
	if len(f.sender.packets) != 1 {
		t.Fatalf("expected no packets to the existing client, got %+v", f.sender.packets)
	}
}

func TestChangedAndTransmittedInSamePassSendsOnce(t *testing.T) {
	f := newFixture(t, nil)
	client := f.comps.SpawnClientAvatar("a", 100, mgl32.Vec3{})
	npc := f.comps.SpawnGameObject(7, mgl32.Vec3{2, 0, 2}, 0)
	f.comps.Pathing.Set(npc, world.Pathing{Speed: 3})

	f.pass()
	if got := f.sender.countFor(client); got != 1 {
		t.Fatalf("expected a single packet for the pair, got %d", got)
	}
}

func TestSendFailureIsLogged(t *testing.T) {
	var events []logging.Event
	f := newFixture(t, logging.PublisherFunc(func(_ context.Context, e logging.Event) {
		events = append(events, e)
	}))
	f.sender.err = errors.New("session closed")
	f.comps.SpawnClientAvatar("a", 100, mgl32.Vec3{})
	npc := f.comps.SpawnGameObject(7, mgl32.Vec3{2, 0, 2}, 0)
	f.comps.Pathing.Set(npc, world.Pathing{Speed: 3})
	f.pass()

	if len(events) != 1 || events[0].Type != netlog.EventSendFailed {
		t.Fatalf("expected one send failure event, got %+v", events)
	}
	payload := events[0].Payload.(netlog.SendFailedPayload)
	if payload.ClientID != "a" || payload.AvatarID != 7 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}
