package detour

import "github.com/go-gl/mathgl/mgl32"

// QueryFilter decides which polygons are traversable and how much crossing
// them costs.
type QueryFilter struct {
	IncludeFlags uint16
	ExcludeFlags uint16
	AreaCost     [MaxAreas]float32
}

// DefaultQueryFilter includes every polygon carrying at least one flag and
// weighs every area at 1.
func DefaultQueryFilter() *QueryFilter {
	f := &QueryFilter{IncludeFlags: 0xffff}
	for i := range f.AreaCost {
		f.AreaCost[i] = 1
	}
	return f
}

// PassFilter reports whether poly may be visited.
func (f *QueryFilter) PassFilter(poly *Poly) bool {
	return poly.Flags&f.IncludeFlags != 0 && poly.Flags&f.ExcludeFlags == 0
}

// Cost returns the cost of moving from a to b across poly.
func (f *QueryFilter) Cost(a, b mgl32.Vec3, poly *Poly) float32 {
	return dist(a, b) * f.AreaCost[poly.Area]
}
