package detour

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	corridorMaxVisited   = 16
	topologyMaxIter      = 32
	topologyMaxResult    = 32
	corridorMinPathCount = 3
)

// Corridor is a sliding window over a polygon path. The first polygon always
// contains Pos and the last one contains Target.
type Corridor struct {
	pos     mgl32.Vec3
	target  mgl32.Vec3
	path    []PolyRef
	maxPath int
}

// NewCorridor allocates a corridor able to hold maxPath polygons.
func NewCorridor(maxPath int) *Corridor {
	return &Corridor{path: make([]PolyRef, 0, maxPath), maxPath: maxPath}
}

// Reset collapses the corridor to a single polygon at pos.
func (c *Corridor) Reset(ref PolyRef, pos mgl32.Vec3) {
	c.path = append(c.path[:0], ref)
	c.pos = pos
	c.target = pos
}

// SetCorridor loads a polygon path ending at target. The path must start at
// the corridor's current first polygon.
func (c *Corridor) SetCorridor(target mgl32.Vec3, path []PolyRef) {
	if len(path) > c.maxPath {
		path = path[:c.maxPath]
	}
	c.path = append(c.path[:0], path...)
	c.target = target
}

func (c *Corridor) Pos() mgl32.Vec3    { return c.pos }
func (c *Corridor) Target() mgl32.Vec3 { return c.target }

// Path returns the current polygon chain. The slice is owned by the corridor.
func (c *Corridor) Path() []PolyRef { return c.path }

func (c *Corridor) FirstPoly() PolyRef {
	if len(c.path) == 0 {
		return 0
	}
	return c.path[0]
}

func (c *Corridor) LastPoly() PolyRef {
	if len(c.path) == 0 {
		return 0
	}
	return c.path[len(c.path)-1]
}

// FindCorners returns up to maxCorners straight path vertices starting at the
// corridor position. Vertices too close to the position are dropped.
func (c *Corridor) FindCorners(q *Query, maxCorners int) ([]Corner, error) {
	if len(c.path) == 0 {
		return nil, ErrInvalidParam
	}
	corners, err := q.FindStraightPath(c.pos, c.target, c.path, maxCorners)
	if err != nil {
		return nil, err
	}
	prune := 0
	for prune < len(corners) && distSqr2D(corners[prune].Pos, c.pos) <= minTargetDistSq {
		prune++
	}
	return corners[prune:], nil
}

// MovePosition slides the corridor position towards npos along the surface
// and trims the polygons left behind. A position that has not moved succeeds
// without touching the path.
func (c *Corridor) MovePosition(npos mgl32.Vec3, q *Query, filter *QueryFilter) bool {
	if len(c.path) == 0 || !q.mesh.IsValidPolyRef(c.path[0]) {
		return false
	}
	if distSqr(npos, c.pos) == 0 {
		return true
	}
	result, visited, err := q.MoveAlongSurface(c.path[0], c.pos, npos, filter, corridorMaxVisited)
	if err != nil {
		return false
	}
	c.path = mergeCorridorStartMoved(c.path, c.maxPath, visited)
	if h, ok := q.mesh.PolyHeight(c.path[0], result); ok {
		result[1] = h
	}
	c.pos = result
	return true
}

// MoveTargetPosition slides the corridor target towards npos along the
// surface and extends or trims the end of the path accordingly.
func (c *Corridor) MoveTargetPosition(npos mgl32.Vec3, q *Query, filter *QueryFilter) bool {
	last := c.LastPoly()
	if !q.mesh.IsValidPolyRef(last) {
		return false
	}
	result, visited, err := q.MoveAlongSurface(last, c.target, npos, filter, corridorMaxVisited)
	if err != nil {
		return false
	}
	c.path = mergeCorridorEndMoved(c.path, c.maxPath, visited)
	if h, ok := q.mesh.PolyHeight(c.LastPoly(), result); ok {
		result[1] = h
	}
	c.target = result
	return true
}

// OptimizePathTopology runs a short bounded search from the corridor start
// towards its end and splices in any shortcut it finds.
func (c *Corridor) OptimizePathTopology(q *Query, filter *QueryFilter) bool {
	if len(c.path) < corridorMinPathCount {
		return false
	}
	res, err := q.FindPartialPath(c.path[0], c.LastPoly(), c.pos, c.target, filter, topologyMaxIter, c.path, topologyMaxResult)
	if err != nil || len(res) == 0 {
		return false
	}
	c.path = mergeCorridorStartShortcut(c.path, c.maxPath, res)
	return true
}

func mergeCorridorStartMoved(path []PolyRef, maxPath int, visited []PolyRef) []PolyRef {
	furthestPath, furthestVisited := -1, -1
outer:
	for i := len(path) - 1; i >= 0; i-- {
		for j := len(visited) - 1; j >= 0; j-- {
			if path[i] == visited[j] {
				furthestPath, furthestVisited = i, j
				break outer
			}
		}
	}
	if furthestPath == -1 {
		return path
	}

	req := len(visited) - furthestVisited
	orig := min(furthestPath+1, len(path))
	size := max(0, len(path)-orig)
	if req+size > maxPath {
		size = maxPath - req
	}
	merged := make([]PolyRef, 0, req+size)
	for i := 0; i < req; i++ {
		merged = append(merged, visited[len(visited)-1-i])
	}
	merged = append(merged, path[orig:orig+size]...)
	return append(path[:0], merged...)
}

func mergeCorridorEndMoved(path []PolyRef, maxPath int, visited []PolyRef) []PolyRef {
	furthestPath, furthestVisited := -1, -1
outer:
	for i := 0; i < len(path); i++ {
		for j := len(visited) - 1; j >= 0; j-- {
			if path[i] == visited[j] {
				furthestPath, furthestVisited = i, j
				break outer
			}
		}
	}
	if furthestPath == -1 {
		return path
	}

	ppos := furthestPath + 1
	vpos := furthestVisited + 1
	count := min(len(visited)-vpos, maxPath-ppos)
	merged := append([]PolyRef(nil), path[:ppos]...)
	if count > 0 {
		merged = append(merged, visited[vpos:vpos+count]...)
	}
	return append(path[:0], merged...)
}

func mergeCorridorStartShortcut(path []PolyRef, maxPath int, visited []PolyRef) []PolyRef {
	furthestPath, furthestVisited := -1, -1
outer:
	for i := len(path) - 1; i >= 0; i-- {
		for j := len(visited) - 1; j >= 0; j-- {
			if path[i] == visited[j] {
				furthestPath, furthestVisited = i, j
				break outer
			}
		}
	}
	if furthestPath == -1 || furthestVisited <= 0 {
		return path
	}

	req := furthestVisited
	orig := furthestPath
	size := max(0, len(path)-orig)
	if req+size > maxPath {
		size = maxPath - req
	}
	merged := make([]PolyRef, 0, req+size)
	merged = append(merged, visited[:req]...)
	merged = append(merged, path[orig:orig+size]...)
	return append(path[:0], merged...)
}
