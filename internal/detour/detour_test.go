package detour

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lShape is three 10x10 squares: A at the origin, B east of A and C north of B.
func lShape() TileData {
	return TileData{
		Header: &TileHeader{},
		Verts: [][3]float32{
			{0, 0, 0}, {10, 0, 0}, {20, 0, 0},
			{0, 0, 10}, {10, 0, 10}, {20, 0, 10},
			{10, 0, 20}, {20, 0, 20},
		},
		Polys: []PolyData{
			{Verts: []uint16{0, 1, 4, 3}, Flags: 1},
			{Verts: []uint16{1, 2, 5, 4}, Flags: 1},
			{Verts: []uint16{4, 5, 7, 6}, Flags: 1},
		},
	}
}

func square(x0, z0 float32) TileData {
	return TileData{
		Header: &TileHeader{},
		Verts: [][3]float32{
			{x0, 0, z0}, {x0 + 10, 0, z0}, {x0 + 10, 0, z0 + 10}, {x0, 0, z0 + 10},
		},
		Polys: []PolyData{{Verts: []uint16{0, 1, 2, 3}, Flags: 1}},
	}
}

var (
	polyA = encodePolyRef(0, 0)
	polyB = encodePolyRef(0, 1)
	polyC = encodePolyRef(0, 2)
)

func newTestQuery(t *testing.T, tiles ...TileData) *Query {
	t.Helper()
	mesh, err := NewNavMesh(Params{MaxTiles: 8, MaxPolys: 64})
	require.NoError(t, err)
	for _, tile := range tiles {
		raw, err := EncodeTile(tile)
		require.NoError(t, err)
		_, err = mesh.AddTile(raw)
		require.NoError(t, err)
	}
	q, err := NewQuery(mesh, 2048)
	require.NoError(t, err)
	return q
}

func TestAddTileLinksAcrossTiles(t *testing.T) {
	q := newTestQuery(t, square(0, 0), square(10, 0))
	west := encodePolyRef(0, 0)
	east := encodePolyRef(1, 0)

	require.Equal(t, 2, q.Mesh().TileCount())
	assert.Equal(t, east, q.Mesh().Tile(0).Polys[0].Neis[1])
	assert.Equal(t, west, q.Mesh().Tile(1).Polys[0].Neis[3])
	assert.Equal(t, PolyRef(0), q.Mesh().Tile(0).Polys[0].Neis[0], "outer edge is a wall")
}

func TestAddTileCapacity(t *testing.T) {
	mesh, err := NewNavMesh(Params{MaxTiles: 1, MaxPolys: 64})
	require.NoError(t, err)
	raw, err := EncodeTile(square(0, 0))
	require.NoError(t, err)
	_, err = mesh.AddTile(raw)
	require.NoError(t, err)
	_, err = mesh.AddTile(raw)
	assert.ErrorIs(t, err, ErrTileCapacity)

	mesh, err = NewNavMesh(Params{MaxTiles: 4, MaxPolys: 2})
	require.NoError(t, err)
	raw, err = EncodeTile(lShape())
	require.NoError(t, err)
	_, err = mesh.AddTile(raw)
	assert.ErrorIs(t, err, ErrPolyCapacity)
}

func TestDecodeTileRejectsMalformedData(t *testing.T) {
	_, err := DecodeTile([]byte{0xc1, 0x00})
	assert.ErrorIs(t, err, ErrMalformedTile)

	bad := square(0, 0)
	bad.Polys[0].Verts = []uint16{0, 1, 9}
	_, err = EncodeTile(bad)
	assert.ErrorIs(t, err, ErrMalformedTile)
}

func TestEncodeTileFillsBounds(t *testing.T) {
	raw, err := EncodeTile(lShape())
	require.NoError(t, err)
	data, err := DecodeTile(raw)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{0, 0, 0}, data.Header.BMin)
	assert.Equal(t, [3]float32{20, 0, 20}, data.Header.BMax)
}

func TestFindNearestPoly(t *testing.T) {
	q := newTestQuery(t, lShape())
	filter := DefaultQueryFilter()

	ref, pt := q.FindNearestPoly(mgl32.Vec3{5, 3, 5}, mgl32.Vec3{2, 5, 2}, filter)
	assert.Equal(t, polyA, ref)
	assert.Equal(t, mgl32.Vec3{5, 0, 5}, pt)

	ref, _ = q.FindNearestPoly(mgl32.Vec3{10.5, 0, 5}, mgl32.Vec3{2, 2, 2}, filter)
	assert.Equal(t, polyB, ref, "polygon under the point wins over a neighbour edge")

	ref, _ = q.FindNearestPoly(mgl32.Vec3{100, 0, 100}, mgl32.Vec3{1, 1, 1}, filter)
	assert.Equal(t, PolyRef(0), ref)
}

func TestFindNearestPolyHonoursFilter(t *testing.T) {
	q := newTestQuery(t, lShape())
	filter := DefaultQueryFilter()
	filter.ExcludeFlags = 1

	ref, _ := q.FindNearestPoly(mgl32.Vec3{5, 0, 5}, mgl32.Vec3{2, 2, 2}, filter)
	assert.Equal(t, PolyRef(0), ref)
}

func TestPolyHeight(t *testing.T) {
	q := newTestQuery(t, TileData{
		Header: &TileHeader{},
		Verts:  [][3]float32{{0, 0, 0}, {10, 10, 0}, {10, 10, 10}, {0, 0, 10}},
		Polys:  []PolyData{{Verts: []uint16{0, 1, 2, 3}, Flags: 1}},
	})
	h, ok := q.Mesh().PolyHeight(polyA, mgl32.Vec3{5, 100, 5})
	require.True(t, ok)
	assert.InDelta(t, 5, h, 1e-4)

	_, ok = q.Mesh().PolyHeight(polyA, mgl32.Vec3{50, 0, 5})
	assert.False(t, ok)
}

func TestFindPath(t *testing.T) {
	q := newTestQuery(t, lShape())
	path, partial, err := q.FindPath(polyA, polyC, mgl32.Vec3{5, 0, 5}, mgl32.Vec3{12, 0, 18}, DefaultQueryFilter(), 256)
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, []PolyRef{polyA, polyB, polyC}, path)

	path, partial, err = q.FindPath(polyB, polyB, mgl32.Vec3{15, 0, 5}, mgl32.Vec3{16, 0, 6}, DefaultQueryFilter(), 256)
	require.NoError(t, err)
	assert.False(t, partial)
	assert.Equal(t, []PolyRef{polyB}, path)
}

func TestFindPathToIslandIsPartial(t *testing.T) {
	q := newTestQuery(t, lShape(), square(50, 0))
	island := encodePolyRef(1, 0)

	path, partial, err := q.FindPath(polyA, island, mgl32.Vec3{5, 0, 5}, mgl32.Vec3{55, 0, 5}, DefaultQueryFilter(), 256)
	require.NoError(t, err)
	assert.True(t, partial)
	assert.Equal(t, polyA, path[0])
	assert.NotEqual(t, island, path[len(path)-1])
}

func TestFindPathRejectsInvalidRefs(t *testing.T) {
	q := newTestQuery(t, lShape())
	_, _, err := q.FindPath(0, polyC, mgl32.Vec3{}, mgl32.Vec3{}, DefaultQueryFilter(), 256)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestFindStraightPathTurnsAtInnerCorner(t *testing.T) {
	q := newTestQuery(t, lShape())
	corners, err := q.FindStraightPath(mgl32.Vec3{5, 0, 5}, mgl32.Vec3{12, 0, 18}, []PolyRef{polyA, polyB, polyC}, 8)
	require.NoError(t, err)
	require.Len(t, corners, 3)

	assert.Equal(t, Corner{Pos: mgl32.Vec3{5, 0, 5}, Flags: StraightPathStart, Ref: polyA}, corners[0])
	assert.Equal(t, mgl32.Vec3{10, 0, 10}, corners[1].Pos)
	assert.NotEqual(t, PolyRef(0), corners[1].Ref)
	assert.Equal(t, Corner{Pos: mgl32.Vec3{12, 0, 18}, Flags: StraightPathEnd}, corners[2])

	corners, err = q.FindStraightPath(mgl32.Vec3{5, 0, 5}, mgl32.Vec3{12, 0, 18}, []PolyRef{polyA, polyB, polyC}, 2)
	require.NoError(t, err)
	assert.Len(t, corners, 2)
}

func TestFindStraightPathVisibleEnd(t *testing.T) {
	q := newTestQuery(t, lShape())
	corners, err := q.FindStraightPath(mgl32.Vec3{2, 0, 8}, mgl32.Vec3{18, 0, 2}, []PolyRef{polyA, polyB}, 8)
	require.NoError(t, err)
	require.Len(t, corners, 2)
	assert.Equal(t, mgl32.Vec3{18, 0, 2}, corners[1].Pos)
	assert.Equal(t, StraightPathEnd, corners[1].Flags)
}

func TestCorridorFindCornersPrunesPosition(t *testing.T) {
	q := newTestQuery(t, lShape())
	c := NewCorridor(256)
	c.Reset(polyA, mgl32.Vec3{5, 0, 5})
	c.SetCorridor(mgl32.Vec3{12, 0, 18}, []PolyRef{polyA, polyB, polyC})

	corners, err := c.FindCorners(q, 2)
	require.NoError(t, err)
	require.Len(t, corners, 1)
	assert.Equal(t, mgl32.Vec3{10, 0, 10}, corners[0].Pos)

	c.Reset(polyA, mgl32.Vec3{5, 0, 5})
	corners, err = c.FindCorners(q, 2)
	require.NoError(t, err)
	assert.Empty(t, corners, "a corridor already at its target has no corners")
}

func TestCorridorMovePosition(t *testing.T) {
	q := newTestQuery(t, lShape())
	filter := DefaultQueryFilter()
	c := NewCorridor(256)
	c.Reset(polyA, mgl32.Vec3{5, 0, 5})
	c.SetCorridor(mgl32.Vec3{12, 0, 18}, []PolyRef{polyA, polyB, polyC})

	require.True(t, c.MovePosition(mgl32.Vec3{5, 0, 5}, q, filter), "standing still succeeds")
	assert.Equal(t, []PolyRef{polyA, polyB, polyC}, c.Path())

	require.True(t, c.MovePosition(mgl32.Vec3{15, 0, 5}, q, filter))
	assert.Equal(t, mgl32.Vec3{15, 0, 5}, c.Pos())
	assert.Equal(t, []PolyRef{polyB, polyC}, c.Path())
}

func TestCorridorMovePositionStopsAtWall(t *testing.T) {
	q := newTestQuery(t, lShape())
	c := NewCorridor(256)
	c.Reset(polyA, mgl32.Vec3{5, 0, 5})

	require.True(t, c.MovePosition(mgl32.Vec3{5, 0, -5}, q, DefaultQueryFilter()))
	assert.InDelta(t, 0, c.Pos()[2], 1e-4)
	assert.Equal(t, []PolyRef{polyA}, c.Path())
}

func TestCorridorMoveTargetPosition(t *testing.T) {
	q := newTestQuery(t, lShape())
	c := NewCorridor(256)
	c.Reset(polyA, mgl32.Vec3{5, 0, 5})
	c.SetCorridor(mgl32.Vec3{12, 0, 18}, []PolyRef{polyA, polyB, polyC})

	require.True(t, c.MoveTargetPosition(mgl32.Vec3{15, 0, 5}, q, DefaultQueryFilter()))
	assert.Equal(t, mgl32.Vec3{15, 0, 5}, c.Target())
	assert.Equal(t, []PolyRef{polyA, polyB}, c.Path())
}

func TestCorridorOptimizePathTopology(t *testing.T) {
	q := newTestQuery(t, lShape())
	c := NewCorridor(256)
	c.Reset(polyA, mgl32.Vec3{5, 0, 5})
	c.SetCorridor(mgl32.Vec3{12, 0, 18}, []PolyRef{polyA, polyB})
	assert.False(t, c.OptimizePathTopology(q, DefaultQueryFilter()), "short corridors are left alone")

	c.SetCorridor(mgl32.Vec3{12, 0, 18}, []PolyRef{polyA, polyB, polyC})
	assert.True(t, c.OptimizePathTopology(q, DefaultQueryFilter()))
	assert.Equal(t, []PolyRef{polyA, polyB, polyC}, c.Path())
}

func TestMergeCorridorStartMoved(t *testing.T) {
	path := []PolyRef{1, 2, 3, 4}
	assert.Equal(t, []PolyRef{3, 4}, mergeCorridorStartMoved(path, 16, []PolyRef{1, 2, 3}))

	path = []PolyRef{1, 2, 3}
	assert.Equal(t, []PolyRef{9, 1, 2, 3}, mergeCorridorStartMoved(path, 16, []PolyRef{1, 9}))
}

func TestMergeCorridorStartShortcut(t *testing.T) {
	path := []PolyRef{1, 2, 3, 4, 5}
	assert.Equal(t, []PolyRef{1, 7, 4, 5}, mergeCorridorStartShortcut(path, 16, []PolyRef{1, 7, 4}))
}
