package detour

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const surfaceSearchNodes = 64

// MoveAlongSurface slides from startPos towards endPos across the surface,
// stopping at walls. It returns the reached position and the polygons
// visited from startRef to the polygon containing the result.
func (q *Query) MoveAlongSurface(startRef PolyRef, startPos, endPos mgl32.Vec3, filter *QueryFilter, maxVisited int) (mgl32.Vec3, []PolyRef, error) {
	if !q.mesh.IsValidPolyRef(startRef) || maxVisited <= 0 {
		return mgl32.Vec3{}, nil, fmt.Errorf("%w: move from %d", ErrInvalidParam, startRef)
	}

	type visit struct {
		ref    PolyRef
		parent int
	}
	nodes := []visit{{ref: startRef, parent: -1}}
	seen := map[PolyRef]bool{startRef: true}

	searchPos := lerp(startPos, endPos, 0.5)
	radius := dist(startPos, endPos)/2 + 0.001
	searchRadSqr := radius * radius

	bestPos := startPos
	bestDist := float32(math.MaxFloat32)
	best := 0

	for head := 0; head < len(nodes); head++ {
		cur := nodes[head]
		tile, poly, _ := q.mesh.TileAndPoly(cur.ref)
		verts := q.mesh.polyVerts(tile, poly)

		if pointInPolyXZ(endPos, verts) {
			best = head
			bestPos = endPos
			break
		}

		n := len(verts)
		for j := 0; j < n; j++ {
			vj, vi := verts[j], verts[(j+1)%n]
			nei := poly.Neis[j]
			if nei != 0 {
				if _, neiPoly, ok := q.mesh.TileAndPoly(nei); !ok || !filter.PassFilter(neiPoly) {
					nei = 0
				}
			}

			if nei == 0 {
				d, t := distPtSegSqr2D(endPos, vj, vi)
				if d < bestDist {
					bestPos = lerp(vj, vi, t)
					bestDist = d
					best = head
				}
				continue
			}
			if seen[nei] || len(nodes) >= surfaceSearchNodes {
				continue
			}
			if d, _ := distPtSegSqr2D(searchPos, vj, vi); d > searchRadSqr {
				continue
			}
			seen[nei] = true
			nodes = append(nodes, visit{ref: nei, parent: head})
		}
	}

	var reversed []PolyRef
	for i := best; i >= 0; i = nodes[i].parent {
		reversed = append(reversed, nodes[i].ref)
	}
	visited := make([]PolyRef, 0, min(len(reversed), maxVisited))
	for i := len(reversed) - 1; i >= 0 && len(visited) < maxVisited; i-- {
		visited = append(visited, reversed[i])
	}

	if h, ok := q.mesh.PolyHeight(nodes[best].ref, bestPos); ok {
		bestPos[1] = h
	}
	return bestPos, visited, nil
}
