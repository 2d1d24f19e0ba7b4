package interest

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/ecs"
)

type cellKey struct {
	cx int32
	cz int32
}

// Grid buckets entities into square ground-plane cells. Only the tick owner
// touches it, so there is no locking.
type Grid struct {
	size  float32
	cells map[cellKey]map[ecs.Entity]struct{}
}

// NewGrid returns an empty grid with the given cell edge length.
func NewGrid(size float32) *Grid {
	if size <= 0 {
		size = 1
	}
	return &Grid{size: size, cells: make(map[cellKey]map[ecs.Entity]struct{})}
}

func (g *Grid) coord(v float32) int32 {
	return int32(math.Floor(float64(v / g.size)))
}

func (g *Grid) key(pos mgl32.Vec3) cellKey {
	return cellKey{cx: g.coord(pos[0]), cz: g.coord(pos[2])}
}

// Add places e in the cell containing pos.
func (g *Grid) Add(e ecs.Entity, pos mgl32.Vec3) {
	k := g.key(pos)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[ecs.Entity]struct{})
		g.cells[k] = cell
	}
	cell[e] = struct{}{}
}

// Remove takes e out of the cell containing pos.
func (g *Grid) Remove(e ecs.Entity, pos mgl32.Vec3) {
	k := g.key(pos)
	if cell := g.cells[k]; cell != nil {
		delete(cell, e)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Move re-buckets e when its cell changes.
func (g *Grid) Move(e ecs.Entity, from, to mgl32.Vec3) {
	if g.key(from) == g.key(to) {
		return
	}
	g.Remove(e, from)
	g.Add(e, to)
}

// Nearby returns, in ascending order, the entities of every cell that
// overlaps the square of half-width radius around pos. Callers filter by
// exact distance.
func (g *Grid) Nearby(pos mgl32.Vec3, radius float32) []ecs.Entity {
	span := int32(math.Ceil(float64(radius / g.size)))
	center := g.key(pos)
	var result []ecs.Entity
	for dx := -span; dx <= span; dx++ {
		for dz := -span; dz <= span; dz++ {
			for e := range g.cells[cellKey{cx: center.cx + dx, cz: center.cz + dz}] {
				result = append(result, e)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
