package navmesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/detour"
)

// Geometry is the query surface navigation steps run against.
type Geometry interface {
	NewCorridor(maxPath int) Corridor
	FindNearestPoly(center, extents mgl32.Vec3) (detour.PolyRef, mgl32.Vec3, bool)
	FindPath(startRef, endRef detour.PolyRef, startPos, endPos mgl32.Vec3, maxPath int) ([]detour.PolyRef, error)
}

// Corridor is a per-entity path corridor bound to a Geometry.
type Corridor interface {
	Reset(ref detour.PolyRef, pos mgl32.Vec3)
	SetPath(target mgl32.Vec3, path []detour.PolyRef)
	MovePosition(pos mgl32.Vec3) bool
	MoveTargetPosition(pos mgl32.Vec3) bool
	OptimizePathTopology() bool
	FindCorners(maxCorners int) ([]detour.Corner, error)
	Pos() mgl32.Vec3
	Target() mgl32.Vec3
}

var _ Geometry = (*Navmesh)(nil)

func (n *Navmesh) NewCorridor(maxPath int) Corridor {
	return &guardedCorridor{nm: n, corridor: detour.NewCorridor(maxPath)}
}

func (n *Navmesh) FindNearestPoly(center, extents mgl32.Vec3) (detour.PolyRef, mgl32.Vec3, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ref, pt := n.query.FindNearestPoly(center, extents, n.filter)
	return ref, pt, ref != 0
}

// FindPath returns the polygon chain between two polygons. A path that stops
// short of endRef is still returned; only invalid input fails.
func (n *Navmesh) FindPath(startRef, endRef detour.PolyRef, startPos, endPos mgl32.Vec3, maxPath int) ([]detour.PolyRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	path, _, err := n.query.FindPath(startRef, endRef, startPos, endPos, n.filter, maxPath)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: %d -> %d", detour.ErrNoPath, startRef, endRef)
	}
	return path, nil
}

// guardedCorridor holds the navmesh lock for the duration of each call.
type guardedCorridor struct {
	nm       *Navmesh
	corridor *detour.Corridor
}

func (g *guardedCorridor) Reset(ref detour.PolyRef, pos mgl32.Vec3) {
	g.nm.mu.Lock()
	defer g.nm.mu.Unlock()
	g.corridor.Reset(ref, pos)
}

func (g *guardedCorridor) SetPath(target mgl32.Vec3, path []detour.PolyRef) {
	g.nm.mu.Lock()
	defer g.nm.mu.Unlock()
	g.corridor.SetCorridor(target, path)
}

func (g *guardedCorridor) MovePosition(pos mgl32.Vec3) bool {
	g.nm.mu.Lock()
	defer g.nm.mu.Unlock()
	return g.corridor.MovePosition(pos, g.nm.query, g.nm.filter)
}

func (g *guardedCorridor) MoveTargetPosition(pos mgl32.Vec3) bool {
	g.nm.mu.Lock()
	defer g.nm.mu.Unlock()
	return g.corridor.MoveTargetPosition(pos, g.nm.query, g.nm.filter)
}

func (g *guardedCorridor) OptimizePathTopology() bool {
	g.nm.mu.Lock()
	defer g.nm.mu.Unlock()
	return g.corridor.OptimizePathTopology(g.nm.query, g.nm.filter)
}

func (g *guardedCorridor) FindCorners(maxCorners int) ([]detour.Corner, error) {
	g.nm.mu.Lock()
	defer g.nm.mu.Unlock()
	return g.corridor.FindCorners(g.nm.query, maxCorners)
}

func (g *guardedCorridor) Pos() mgl32.Vec3 {
	g.nm.mu.Lock()
	defer g.nm.mu.Unlock()
	return g.corridor.Pos()
}

func (g *guardedCorridor) Target() mgl32.Vec3 {
	g.nm.mu.Lock()
	defer g.nm.mu.Unlock()
	return g.corridor.Target()
}
