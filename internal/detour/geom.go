package detour

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const heightEpsilon = 1e-4

// triArea2D returns twice the signed xz area of abc. Positive when c lies to
// the right of a->b.
func triArea2D(a, b, c mgl32.Vec3) float32 {
	abx, abz := b[0]-a[0], b[2]-a[2]
	acx, acz := c[0]-a[0], c[2]-a[2]
	return acx*abz - abx*acz
}

func cross2D(a, b mgl32.Vec3) float32 {
	return a[0]*b[2] - a[2]*b[0]
}

func distSqr2D(a, b mgl32.Vec3) float32 {
	dx, dz := b[0]-a[0], b[2]-a[2]
	return dx*dx + dz*dz
}

func distSqr(a, b mgl32.Vec3) float32 {
	d := b.Sub(a)
	return d.Dot(d)
}

func dist(a, b mgl32.Vec3) float32 {
	return float32(math.Sqrt(float64(distSqr(a, b))))
}

func vequal(a, b mgl32.Vec3) bool {
	const thr = (1.0 / 16384.0) * (1.0 / 16384.0)
	return distSqr(a, b) < thr
}

func overlapBounds(amin, amax, bmin, bmax mgl32.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		if amin[axis] > bmax[axis] || amax[axis] < bmin[axis] {
			return false
		}
	}
	return true
}

// triangleHeight interpolates the height of abc at the xz location of p.
func triangleHeight(p, a, b, c mgl32.Vec3) (float32, bool) {
	v0 := c.Sub(a)
	v1 := b.Sub(a)
	v2 := p.Sub(a)

	dot00 := v0[0]*v0[0] + v0[2]*v0[2]
	dot01 := v0[0]*v1[0] + v0[2]*v1[2]
	dot02 := v0[0]*v2[0] + v0[2]*v2[2]
	dot11 := v1[0]*v1[0] + v1[2]*v1[2]
	dot12 := v1[0]*v2[0] + v1[2]*v2[2]

	denom := dot00*dot11 - dot01*dot01
	if float32(math.Abs(float64(denom))) < heightEpsilon*heightEpsilon {
		return 0, false
	}
	u := (dot11*dot02 - dot01*dot12) / denom
	v := (dot00*dot12 - dot01*dot02) / denom
	if u >= -heightEpsilon && v >= -heightEpsilon && u+v <= 1+heightEpsilon {
		return a[1] + v0[1]*u + v1[1]*v, true
	}
	return 0, false
}

func pointInPolyXZ(p mgl32.Vec3, verts []mgl32.Vec3) bool {
	inside := false
	for i, j := 0, len(verts)-1; i < len(verts); j, i = i, i+1 {
		vi, vj := verts[i], verts[j]
		if (vi[2] > p[2]) != (vj[2] > p[2]) &&
			p[0] < (vj[0]-vi[0])*(p[2]-vi[2])/(vj[2]-vi[2])+vi[0] {
			inside = !inside
		}
	}
	return inside
}

// distPtSegSqr2D returns the squared xz distance from p to segment ab and the
// parameter of the closest point along the segment.
func distPtSegSqr2D(p, a, b mgl32.Vec3) (float32, float32) {
	pqx, pqz := b[0]-a[0], b[2]-a[2]
	dx, dz := p[0]-a[0], p[2]-a[2]
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = mgl32.Clamp(t, 0, 1)
	dx = a[0] + t*pqx - p[0]
	dz = a[2] + t*pqz - p[2]
	return dx*dx + dz*dz, t
}

func closestOnBoundary(p mgl32.Vec3, verts []mgl32.Vec3) mgl32.Vec3 {
	best := float32(math.MaxFloat32)
	var closest mgl32.Vec3
	for i, j := 0, len(verts)-1; i < len(verts); j, i = i, i+1 {
		d, t := distPtSegSqr2D(p, verts[j], verts[i])
		if d < best {
			best = d
			closest = lerp(verts[j], verts[i], t)
		}
	}
	return closest
}

func lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
