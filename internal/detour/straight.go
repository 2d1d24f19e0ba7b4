package detour

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

type cornerList struct {
	corners []Corner
	max     int
}

// add appends a vertex and reports whether the list is full. A vertex equal
// to the previous one replaces its flags and polygon instead.
func (l *cornerList) add(pos mgl32.Vec3, flags StraightPathFlags, ref PolyRef) bool {
	if n := len(l.corners); n > 0 && vequal(l.corners[n-1].Pos, pos) {
		l.corners[n-1].Flags = flags
		l.corners[n-1].Ref = ref
	} else {
		l.corners = append(l.corners, Corner{Pos: pos, Flags: flags, Ref: ref})
	}
	return len(l.corners) >= l.max
}

// FindStraightPath string-pulls the polygon chain path between startPos and
// endPos and returns at most maxCorners vertices, the first being the start.
// The end vertex carries StraightPathEnd and the null polygon.
func (q *Query) FindStraightPath(startPos, endPos mgl32.Vec3, path []PolyRef, maxCorners int) ([]Corner, error) {
	if len(path) == 0 || maxCorners <= 0 || !q.mesh.IsValidPolyRef(path[0]) {
		return nil, fmt.Errorf("%w: straight path over %d polygons", ErrInvalidParam, len(path))
	}
	start, _, _ := q.mesh.ClosestPointOnPoly(path[0], startPos)
	end, _, ok := q.mesh.ClosestPointOnPoly(path[len(path)-1], endPos)
	if !ok {
		return nil, fmt.Errorf("%w: invalid end polygon %d", ErrInvalidParam, path[len(path)-1])
	}

	list := cornerList{max: maxCorners}
	if list.add(start, StraightPathStart, path[0]) {
		return list.corners, nil
	}

	refAt := func(i int) PolyRef {
		if i < len(path) {
			return path[i]
		}
		return 0
	}

	if len(path) > 1 {
		apex, left, right := start, start, start
		apexIndex, leftIndex, rightIndex := 0, 0, 0
		leftRef, rightRef := path[0], path[0]

		for i := 0; i < len(path); i++ {
			var l, r mgl32.Vec3
			if i+1 < len(path) {
				var ok bool
				l, r, ok = q.mesh.portal(path[i], path[i+1])
				if !ok {
					return nil, fmt.Errorf("%w: %d and %d are not adjacent", ErrInvalidParam, path[i], path[i+1])
				}
				if i == 0 {
					if d, _ := distPtSegSqr2D(apex, l, r); d < vertexEpsilon*vertexEpsilon {
						continue
					}
				}
			} else {
				l, r = end, end
			}

			if triArea2D(apex, right, r) <= 0 {
				if vequal(apex, right) || triArea2D(apex, left, r) > 0 {
					right, rightRef, rightIndex = r, refAt(i+1), i
				} else {
					apex, apexIndex = left, leftIndex
					if list.add(apex, 0, leftRef) {
						return list.corners, nil
					}
					left, right = apex, apex
					leftIndex, rightIndex = apexIndex, apexIndex
					i = apexIndex
					continue
				}
			}

			if triArea2D(apex, left, l) >= 0 {
				if vequal(apex, left) || triArea2D(apex, right, l) < 0 {
					left, leftRef, leftIndex = l, refAt(i+1), i
				} else {
					apex, apexIndex = right, rightIndex
					if list.add(apex, 0, rightRef) {
						return list.corners, nil
					}
					left, right = apex, apex
					leftIndex, rightIndex = apexIndex, apexIndex
					i = apexIndex
					continue
				}
			}
		}
	}

	list.add(end, StraightPathEnd, 0)
	return list.corners, nil
}
