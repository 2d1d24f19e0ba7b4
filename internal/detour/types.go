// Package detour is a small tiled navigation-mesh runtime: polygon tiles with
// automatic cross-tile linking, nearest-polygon and path queries, string
// pulled corner extraction and a sliding path corridor.
//
// Nothing in this package is safe for concurrent use. Callers that share a
// NavMesh/Query pair between goroutines must serialise access themselves.
package detour

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// PolyRef identifies a polygon inside a NavMesh. Zero is the null polygon.
type PolyRef uint32

// TileRef identifies a tile slot inside a NavMesh. Zero is the null tile.
type TileRef uint32

const (
	polyBits = 16
	polyMask = 1<<polyBits - 1
)

func encodePolyRef(tile, poly int) PolyRef {
	return PolyRef((tile+1)<<polyBits | poly)
}

func decodePolyRef(ref PolyRef) (tile, poly int) {
	return int(ref>>polyBits) - 1, int(ref & polyMask)
}

// StraightPathFlags describe the vertices returned by FindStraightPath.
type StraightPathFlags uint8

const (
	StraightPathStart StraightPathFlags = 0x01
	StraightPathEnd   StraightPathFlags = 0x02
)

// Corner is one vertex of a string-pulled path. The end vertex of a path
// always carries the null polygon.
type Corner struct {
	Pos   mgl32.Vec3
	Flags StraightPathFlags
	Ref   PolyRef
}

// MaxAreas is the number of distinct area ids a filter can weigh.
const MaxAreas = 64

var (
	ErrInvalidParam  = errors.New("detour: invalid parameter")
	ErrTileCapacity  = errors.New("detour: tile capacity exceeded")
	ErrPolyCapacity  = errors.New("detour: polygon capacity exceeded")
	ErrMalformedTile = errors.New("detour: malformed tile data")
	ErrNoPath        = errors.New("detour: no path")
)

const (
	vertexEpsilon   = 1e-3
	minTargetDistSq = 0.01 * 0.01
	heuristicScale  = 0.999
)
