// Package interest tracks which entities each connected client can see and
// reports entities that newly became visible to a client.
package interest

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
	"realm-nav/server/internal/world"
)

// Config sizes the interest grid.
type Config struct {
	CellSize float32 `yaml:"cell_size" json:"cell_size"`
	Radius   float32 `yaml:"radius" json:"radius"`
}

func DefaultConfig() Config {
	return Config{CellSize: 64, Radius: 128}
}

// Transmitted reports that Entity entered the interest set of Client.
type Transmitted struct {
	Client ecs.Entity
	Entity ecs.Entity
}

// Manager maintains a per-client interest set around each client avatar.
type Manager struct {
	comps  *world.Components
	radius float32
	grid   *Grid
	placed map[ecs.Entity]mgl32.Vec3
	sets   map[ecs.Entity]map[ecs.Entity]struct{}
	events ecs.Events[Transmitted]
}

func NewManager(comps *world.Components, cfg Config) *Manager {
	if cfg.CellSize <= 0 || cfg.Radius <= 0 {
		cfg = DefaultConfig()
	}
	return &Manager{
		comps:  comps,
		radius: cfg.Radius,
		grid:   NewGrid(cfg.CellSize),
		placed: make(map[ecs.Entity]mgl32.Vec3),
		sets:   make(map[ecs.Entity]map[ecs.Entity]struct{}),
	}
}

// Update re-buckets active entities and recomputes every client's interest
// set. Entities that join a set are queued as Transmitted events.
func (m *Manager) Update() {
	m.syncGrid()

	live := make(map[ecs.Entity]struct{})
	for _, client := range m.comps.Client.Entities() {
		if !m.comps.Active.Has(client) {
			continue
		}
		move, ok := m.comps.Movement.Get(client)
		if !ok {
			continue
		}
		live[client] = struct{}{}

		prev := m.sets[client]
		next := make(map[ecs.Entity]struct{})
		for _, e := range m.grid.Nearby(move.Position, m.radius) {
			pos := m.placed[e]
			if groundDistSq(pos, move.Position) > m.radius*m.radius {
				continue
			}
			next[e] = struct{}{}
			if _, seen := prev[e]; !seen {
				m.events.Send(Transmitted{Client: client, Entity: e})
			}
		}
		m.sets[client] = next
	}
	for client := range m.sets {
		if _, ok := live[client]; !ok {
			delete(m.sets, client)
		}
	}
}

func (m *Manager) syncGrid() {
	seen := make(map[ecs.Entity]struct{})
	for _, e := range m.comps.Active.Entities() {
		move, ok := m.comps.Movement.Get(e)
		if !ok {
			continue
		}
		seen[e] = struct{}{}
		if old, placed := m.placed[e]; placed {
			m.grid.Move(e, old, move.Position)
		} else {
			m.grid.Add(e, move.Position)
		}
		m.placed[e] = move.Position
	}
	for e, pos := range m.placed {
		if _, ok := seen[e]; !ok {
			m.grid.Remove(e, pos)
			delete(m.placed, e)
		}
	}
}

// Drain returns the Transmitted events queued since the previous drain.
func (m *Manager) Drain() []Transmitted {
	return m.events.Drain()
}

// Interested returns the clients whose interest set holds e, in ascending
// order.
func (m *Manager) Interested(e ecs.Entity) []ecs.Entity {
	var clients []ecs.Entity
	for client, set := range m.sets {
		if _, ok := set[e]; ok {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })
	return clients
}

// Visible returns the interest set of client in ascending order.
func (m *Manager) Visible(client ecs.Entity) []ecs.Entity {
	set := m.sets[client]
	out := make([]ecs.Entity, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func groundDistSq(a, b mgl32.Vec3) float32 {
	dx, dz := a[0]-b[0], a[2]-b[2]
	return dx*dx + dz*dz
}
