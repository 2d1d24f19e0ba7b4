package detour

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Params bounds a NavMesh. Both limits are hard capacities.
type Params struct {
	MaxTiles int
	MaxPolys int
}

// Poly is a runtime polygon. Neis holds, per edge, the polygon across that
// edge or zero for a wall.
type Poly struct {
	Verts []uint16
	Neis  []PolyRef
	Flags uint16
	Area  uint8
}

// MeshTile is one occupied tile slot.
type MeshTile struct {
	Header *TileHeader
	Verts  []mgl32.Vec3
	Polys  []Poly
}

type vertKey [3]int32

type edgeKey struct {
	a, b vertKey
}

type edgeOwner struct {
	ref  PolyRef
	edge int
}

// NavMesh is a fixed-capacity set of tiles.
type NavMesh struct {
	params    Params
	tiles     []*MeshTile
	polyCount int
	edges     map[edgeKey][]edgeOwner
}

// NewNavMesh allocates an empty mesh with the given capacity.
func NewNavMesh(params Params) (*NavMesh, error) {
	if params.MaxTiles <= 0 || params.MaxPolys <= 0 {
		return nil, fmt.Errorf("%w: capacity %+v", ErrInvalidParam, params)
	}
	return &NavMesh{
		params: params,
		tiles:  make([]*MeshTile, params.MaxTiles),
		edges:  make(map[edgeKey][]edgeOwner),
	}, nil
}

// MaxTiles returns the tile slot capacity.
func (m *NavMesh) MaxTiles() int {
	return len(m.tiles)
}

// Tile returns the tile in slot i or nil when the slot is empty.
func (m *NavMesh) Tile(i int) *MeshTile {
	if i < 0 || i >= len(m.tiles) {
		return nil
	}
	return m.tiles[i]
}

// TileCount returns the number of occupied slots.
func (m *NavMesh) TileCount() int {
	count := 0
	for _, tile := range m.tiles {
		if tile != nil {
			count++
		}
	}
	return count
}

// PolyCount returns the number of polygons across all tiles.
func (m *NavMesh) PolyCount() int {
	return m.polyCount
}

// AddTile decodes raw tile data into the first free slot and links its edges
// to any polygons already in the mesh.
func (m *NavMesh) AddTile(raw []byte) (TileRef, error) {
	data, err := DecodeTile(raw)
	if err != nil {
		return 0, err
	}
	slot := -1
	for i, tile := range m.tiles {
		if tile == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, fmt.Errorf("%w: %d tiles", ErrTileCapacity, len(m.tiles))
	}
	if m.polyCount+len(data.Polys) > m.params.MaxPolys {
		return 0, fmt.Errorf("%w: %d + %d > %d", ErrPolyCapacity, m.polyCount, len(data.Polys), m.params.MaxPolys)
	}

	tile := &MeshTile{
		Header: data.Header,
		Verts:  make([]mgl32.Vec3, len(data.Verts)),
		Polys:  make([]Poly, len(data.Polys)),
	}
	for i, v := range data.Verts {
		tile.Verts[i] = mgl32.Vec3{v[0], v[1], v[2]}
	}
	for i, pd := range data.Polys {
		tile.Polys[i] = Poly{
			Verts: append([]uint16(nil), pd.Verts...),
			Neis:  make([]PolyRef, len(pd.Verts)),
			Flags: pd.Flags,
			Area:  pd.Area,
		}
	}
	m.tiles[slot] = tile
	m.polyCount += len(tile.Polys)

	for i := range tile.Polys {
		m.linkPoly(tile, encodePolyRef(slot, i))
	}
	return TileRef(slot + 1), nil
}

func (m *NavMesh) linkPoly(tile *MeshTile, ref PolyRef) {
	_, pi := decodePolyRef(ref)
	poly := &tile.Polys[pi]
	n := len(poly.Verts)
	for j := 0; j < n; j++ {
		key := makeEdgeKey(tile.Verts[poly.Verts[j]], tile.Verts[poly.Verts[(j+1)%n]])
		owners := m.edges[key]
		for _, other := range owners {
			if other.ref == ref {
				continue
			}
			otherPoly := m.poly(other.ref)
			if otherPoly == nil || otherPoly.Neis[other.edge] != 0 || poly.Neis[j] != 0 {
				continue
			}
			otherPoly.Neis[other.edge] = ref
			poly.Neis[j] = other.ref
		}
		m.edges[key] = append(owners, edgeOwner{ref: ref, edge: j})
	}
}

func makeEdgeKey(a, b mgl32.Vec3) edgeKey {
	ka, kb := quantize(a), quantize(b)
	if lessKey(kb, ka) {
		ka, kb = kb, ka
	}
	return edgeKey{a: ka, b: kb}
}

func quantize(v mgl32.Vec3) vertKey {
	const scale = 1 / vertexEpsilon
	return vertKey{
		int32(math.Round(float64(v[0]) * scale)),
		int32(math.Round(float64(v[1]) * scale)),
		int32(math.Round(float64(v[2]) * scale)),
	}
}

func lessKey(a, b vertKey) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (m *NavMesh) poly(ref PolyRef) *Poly {
	_, poly, ok := m.TileAndPoly(ref)
	if !ok {
		return nil
	}
	return poly
}

// TileAndPoly resolves a polygon reference.
func (m *NavMesh) TileAndPoly(ref PolyRef) (*MeshTile, *Poly, bool) {
	if ref == 0 {
		return nil, nil, false
	}
	ti, pi := decodePolyRef(ref)
	tile := m.Tile(ti)
	if tile == nil || pi >= len(tile.Polys) {
		return nil, nil, false
	}
	return tile, &tile.Polys[pi], true
}

// IsValidPolyRef reports whether ref resolves to a polygon.
func (m *NavMesh) IsValidPolyRef(ref PolyRef) bool {
	_, _, ok := m.TileAndPoly(ref)
	return ok
}

func (m *NavMesh) polyVerts(tile *MeshTile, poly *Poly) []mgl32.Vec3 {
	verts := make([]mgl32.Vec3, len(poly.Verts))
	for i, idx := range poly.Verts {
		verts[i] = tile.Verts[idx]
	}
	return verts
}

// PolyHeight returns the surface height of ref at the xz location of pos.
// It fails when pos lies outside the polygon.
func (m *NavMesh) PolyHeight(ref PolyRef, pos mgl32.Vec3) (float32, bool) {
	tile, poly, ok := m.TileAndPoly(ref)
	if !ok {
		return 0, false
	}
	verts := m.polyVerts(tile, poly)
	for i := 1; i+1 < len(verts); i++ {
		if h, ok := triangleHeight(pos, verts[0], verts[i], verts[i+1]); ok {
			return h, true
		}
	}
	return 0, false
}

// ClosestPointOnPoly returns the point of ref closest to pos and whether pos
// lies over the polygon.
func (m *NavMesh) ClosestPointOnPoly(ref PolyRef, pos mgl32.Vec3) (mgl32.Vec3, bool, bool) {
	tile, poly, ok := m.TileAndPoly(ref)
	if !ok {
		return mgl32.Vec3{}, false, false
	}
	verts := m.polyVerts(tile, poly)
	if pointInPolyXZ(pos, verts) {
		if h, ok := m.PolyHeight(ref, pos); ok {
			return mgl32.Vec3{pos[0], h, pos[2]}, true, true
		}
	}
	return closestOnBoundary(pos, verts), false, true
}

// polyBounds returns the axis-aligned bounds of a polygon.
func (m *NavMesh) polyBounds(tile *MeshTile, poly *Poly) (mgl32.Vec3, mgl32.Vec3) {
	bmin := tile.Verts[poly.Verts[0]]
	bmax := bmin
	for _, idx := range poly.Verts[1:] {
		v := tile.Verts[idx]
		for axis := 0; axis < 3; axis++ {
			bmin[axis] = min(bmin[axis], v[axis])
			bmax[axis] = max(bmax[axis], v[axis])
		}
	}
	return bmin, bmax
}

// polyCenter returns the vertex centroid of a polygon.
func (m *NavMesh) polyCenter(tile *MeshTile, poly *Poly) mgl32.Vec3 {
	var c mgl32.Vec3
	for _, idx := range poly.Verts {
		c = c.Add(tile.Verts[idx])
	}
	return c.Mul(1 / float32(len(poly.Verts)))
}

// portal returns the shared edge between from and to oriented as seen when
// walking from -> to.
func (m *NavMesh) portal(from, to PolyRef) (left, right mgl32.Vec3, ok bool) {
	tile, poly, ok := m.TileAndPoly(from)
	if !ok {
		return left, right, false
	}
	n := len(poly.Verts)
	for j := 0; j < n; j++ {
		if poly.Neis[j] != to {
			continue
		}
		p := tile.Verts[poly.Verts[j]]
		q := tile.Verts[poly.Verts[(j+1)%n]]
		mid := p.Add(q).Mul(0.5)
		dir := mid.Sub(m.polyCenter(tile, poly))
		if cross2D(dir, p.Sub(mid)) < 0 {
			return q, p, true
		}
		return p, q, true
	}
	return left, right, false
}

// edgeMidpoint returns the midpoint of the edge of from leading to to.
func (m *NavMesh) edgeMidpoint(from, to PolyRef) (mgl32.Vec3, bool) {
	left, right, ok := m.portal(from, to)
	if !ok {
		return mgl32.Vec3{}, false
	}
	return left.Add(right).Mul(0.5), true
}
