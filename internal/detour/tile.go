package detour

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// TileHeader locates a tile in the mesh grid and bounds its geometry.
type TileHeader struct {
	X     int32      `msgpack:"x"`
	Y     int32      `msgpack:"y"`
	Layer int32      `msgpack:"layer"`
	BMin  [3]float32 `msgpack:"bmin"`
	BMax  [3]float32 `msgpack:"bmax"`
}

// PolyData is one convex polygon in tile data. Vertices are indices into the
// tile vertex list, wound consistently.
type PolyData struct {
	Verts []uint16 `msgpack:"verts"`
	Flags uint16   `msgpack:"flags"`
	Area  uint8    `msgpack:"area"`
}

// TileData is the serialised form of a tile.
type TileData struct {
	Header *TileHeader  `msgpack:"header"`
	Verts  [][3]float32 `msgpack:"verts"`
	Polys  []PolyData   `msgpack:"polys"`
}

// EncodeTile serialises tile data. Header bounds are recomputed from the
// vertices when left empty.
func EncodeTile(data TileData) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	if data.Header.BMin == ([3]float32{}) && data.Header.BMax == ([3]float32{}) {
		data.Header.BMin, data.Header.BMax = vertexBounds(data.Verts)
	}
	return msgpack.Marshal(&data)
}

// DecodeTile parses and validates serialised tile data.
func DecodeTile(raw []byte) (*TileData, error) {
	var data TileData
	if err := msgpack.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTile, err)
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

func (d *TileData) validate() error {
	if d.Header == nil {
		return fmt.Errorf("%w: missing header", ErrMalformedTile)
	}
	if len(d.Polys) > polyMask {
		return fmt.Errorf("%w: %d polygons in one tile", ErrMalformedTile, len(d.Polys))
	}
	for i, poly := range d.Polys {
		if len(poly.Verts) < 3 {
			return fmt.Errorf("%w: polygon %d has %d vertices", ErrMalformedTile, i, len(poly.Verts))
		}
		if int(poly.Area) >= MaxAreas {
			return fmt.Errorf("%w: polygon %d area %d out of range", ErrMalformedTile, i, poly.Area)
		}
		for _, v := range poly.Verts {
			if int(v) >= len(d.Verts) {
				return fmt.Errorf("%w: polygon %d references vertex %d of %d", ErrMalformedTile, i, v, len(d.Verts))
			}
		}
	}
	return nil
}

func vertexBounds(verts [][3]float32) (bmin, bmax [3]float32) {
	if len(verts) == 0 {
		return bmin, bmax
	}
	bmin, bmax = verts[0], verts[0]
	for _, v := range verts[1:] {
		for axis := 0; axis < 3; axis++ {
			if v[axis] < bmin[axis] {
				bmin[axis] = v[axis]
			}
			if v[axis] > bmax[axis] {
				bmax[axis] = v[axis]
			}
		}
	}
	return bmin, bmax
}
