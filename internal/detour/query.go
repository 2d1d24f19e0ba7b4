package detour

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	nodeOpen uint8 = 1 << iota
	nodeClosed
)

type node struct {
	ref    PolyRef
	parent int
	pos    mgl32.Vec3
	cost   float32
	total  float32
	flags  uint8
	index  int
}

// nodeQueue orders open nodes by total cost.
type nodeQueue []*node

func (q nodeQueue) Len() int           { return len(q) }
func (q nodeQueue) Less(i, j int) bool { return q[i].total < q[j].total }
func (q nodeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *nodeQueue) Push(x any) {
	n := x.(*node)
	n.index = len(*q)
	*q = append(*q, n)
}
func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	n.index = -1
	return n
}

// Query runs searches against a NavMesh. It reuses its node pool between
// calls and must not be used from more than one goroutine at a time. The pool
// never grows past maxNodes so node pointers stay valid for a whole search.
type Query struct {
	mesh     *NavMesh
	maxNodes int
	nodes    []node
	index    map[PolyRef]int
	open     nodeQueue
}

// NewQuery binds a query to mesh with a search budget of maxNodes.
func NewQuery(mesh *NavMesh, maxNodes int) (*Query, error) {
	if mesh == nil || maxNodes <= 0 {
		return nil, fmt.Errorf("%w: query over %d nodes", ErrInvalidParam, maxNodes)
	}
	return &Query{
		mesh:     mesh,
		maxNodes: maxNodes,
		nodes:    make([]node, 0, maxNodes),
		index:    make(map[PolyRef]int, maxNodes),
	}, nil
}

// Mesh returns the mesh the query is bound to.
func (q *Query) Mesh() *NavMesh {
	return q.mesh
}

func (q *Query) resetNodes() {
	q.nodes = q.nodes[:0]
	clear(q.index)
	q.open = q.open[:0]
}

func (q *Query) node(ref PolyRef) (*node, bool) {
	if i, ok := q.index[ref]; ok {
		return &q.nodes[i], true
	}
	if len(q.nodes) >= q.maxNodes {
		return nil, false
	}
	q.nodes = append(q.nodes, node{ref: ref, parent: -1, index: -1})
	q.index[ref] = len(q.nodes) - 1
	return &q.nodes[len(q.nodes)-1], true
}

// FindNearestPoly returns the polygon nearest to center within the box
// center±extents along with the closest point on it. The reference is zero
// when nothing overlaps the box.
func (q *Query) FindNearestPoly(center, extents mgl32.Vec3, filter *QueryFilter) (PolyRef, mgl32.Vec3) {
	bmin, bmax := center.Sub(extents), center.Add(extents)
	var (
		nearest   PolyRef
		nearestPt mgl32.Vec3
		best      = float32(math.MaxFloat32)
	)
	for ti := 0; ti < q.mesh.MaxTiles(); ti++ {
		tile := q.mesh.Tile(ti)
		if tile == nil {
			continue
		}
		h := tile.Header
		if !overlapBounds(bmin, bmax, mgl32.Vec3(h.BMin), mgl32.Vec3(h.BMax)) {
			continue
		}
		for pi := range tile.Polys {
			poly := &tile.Polys[pi]
			if !filter.PassFilter(poly) {
				continue
			}
			pmin, pmax := q.mesh.polyBounds(tile, poly)
			if !overlapBounds(bmin, bmax, pmin, pmax) {
				continue
			}
			ref := encodePolyRef(ti, pi)
			closest, over, _ := q.mesh.ClosestPointOnPoly(ref, center)
			var d float32
			if over {
				dy := center[1] - closest[1]
				d = dy * dy
			} else {
				d = distSqr(center, closest)
			}
			if d < best {
				best = d
				nearest = ref
				nearestPt = closest
			}
		}
	}
	return nearest, nearestPt
}

// FindPath searches for a polygon chain from startRef to endRef. When the end
// cannot be reached within the node budget the chain to the polygon closest
// to endPos is returned and partial is set.
func (q *Query) FindPath(startRef, endRef PolyRef, startPos, endPos mgl32.Vec3, filter *QueryFilter, maxPath int) (path []PolyRef, partial bool, err error) {
	if !q.mesh.IsValidPolyRef(startRef) || !q.mesh.IsValidPolyRef(endRef) || maxPath <= 0 {
		return nil, false, fmt.Errorf("%w: path %d -> %d", ErrInvalidParam, startRef, endRef)
	}
	if startRef == endRef {
		return []PolyRef{startRef}, false, nil
	}

	lastBest, _ := q.search(startRef, endRef, startPos, endPos, filter, 0)
	path = q.tracePath(lastBest)
	if len(path) > maxPath {
		path = path[:maxPath]
		partial = true
	}
	if path[len(path)-1] != endRef {
		partial = true
	}
	return path, partial, nil
}

// FindPartialPath runs at most maxIter search iterations from startRef
// towards endRef. If the end is not reached, the result leads to the
// furthest polygon of existing that the search visited.
func (q *Query) FindPartialPath(startRef, endRef PolyRef, startPos, endPos mgl32.Vec3, filter *QueryFilter, maxIter int, existing []PolyRef, maxPath int) ([]PolyRef, error) {
	if !q.mesh.IsValidPolyRef(startRef) || !q.mesh.IsValidPolyRef(endRef) || maxPath <= 0 {
		return nil, fmt.Errorf("%w: path %d -> %d", ErrInvalidParam, startRef, endRef)
	}
	if startRef == endRef {
		return []PolyRef{startRef}, nil
	}

	lastBest, reached := q.search(startRef, endRef, startPos, endPos, filter, maxIter)
	target := lastBest
	if !reached {
		for i := len(existing) - 1; i >= 0; i-- {
			if idx, ok := q.index[existing[i]]; ok && q.nodes[idx].flags != 0 {
				target = &q.nodes[idx]
				break
			}
		}
	}
	path := q.tracePath(target)
	if len(path) > maxPath {
		path = path[:maxPath]
	}
	return path, nil
}

// search runs A* and returns the end node when reached, otherwise the node
// with the lowest heuristic. maxIter <= 0 means no iteration limit.
func (q *Query) search(startRef, endRef PolyRef, startPos, endPos mgl32.Vec3, filter *QueryFilter, maxIter int) (*node, bool) {
	q.resetNodes()
	start, _ := q.node(startRef)
	start.pos = startPos
	start.total = dist(startPos, endPos) * heuristicScale
	start.flags = nodeOpen
	heap.Push(&q.open, start)

	lastBest := start
	lastBestHeuristic := start.total

	for iter := 0; q.open.Len() > 0; iter++ {
		if maxIter > 0 && iter >= maxIter {
			break
		}
		best := heap.Pop(&q.open).(*node)
		best.flags = nodeClosed
		if best.ref == endRef {
			return best, true
		}

		_, bestPoly, _ := q.mesh.TileAndPoly(best.ref)
		var parentRef PolyRef
		if best.parent >= 0 {
			parentRef = q.nodes[best.parent].ref
		}
		bestIdx := q.index[best.ref]

		for _, nei := range bestPoly.Neis {
			if nei == 0 || nei == parentRef {
				continue
			}
			_, neiPoly, ok := q.mesh.TileAndPoly(nei)
			if !ok || !filter.PassFilter(neiPoly) {
				continue
			}
			next, ok := q.node(nei)
			if !ok {
				continue
			}
			if next.flags == 0 {
				next.pos, _ = q.mesh.edgeMidpoint(best.ref, nei)
			}

			var cost, heuristic float32
			if nei == endRef {
				cost = best.cost + filter.Cost(best.pos, next.pos, bestPoly) + filter.Cost(next.pos, endPos, neiPoly)
			} else {
				cost = best.cost + filter.Cost(best.pos, next.pos, bestPoly)
				heuristic = dist(next.pos, endPos) * heuristicScale
			}
			total := cost + heuristic

			if next.flags&(nodeOpen|nodeClosed) != 0 && total >= next.total {
				continue
			}

			next.parent = bestIdx
			next.cost = cost
			next.total = total
			if next.flags&nodeOpen != 0 {
				heap.Fix(&q.open, next.index)
			} else {
				next.flags = nodeOpen
				heap.Push(&q.open, next)
			}

			if heuristic < lastBestHeuristic {
				lastBestHeuristic = heuristic
				lastBest = next
			}
		}
	}
	return lastBest, false
}

func (q *Query) tracePath(n *node) []PolyRef {
	var reversed []PolyRef
	for {
		reversed = append(reversed, n.ref)
		if n.parent < 0 {
			break
		}
		n = &q.nodes[n.parent]
	}
	path := make([]PolyRef, len(reversed))
	for i, ref := range reversed {
		path[len(reversed)-1-i] = ref
	}
	return path
}
