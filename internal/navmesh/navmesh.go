// Package navmesh owns the loaded navigation mesh of a world and serialises
// every geometry query against it.
package navmesh

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sasha-s/go-deadlock"

	"realm-nav/server/internal/detour"
	"realm-nav/server/internal/realm"
	"realm-nav/server/internal/telemetry"
)

const (
	MaxTiles       = 128
	MaxPolys       = 32768
	MaxSearchNodes = 2048

	pathengineScale float32 = 1.4305115
)

var ErrNoNavmesh = errors.New("no navigation mesh found")

var floorExtents = mgl32.Vec3{10, 1000, 10}

// Federation maps world positions onto the external pathengine tile grid.
type Federation struct {
	Origin     [3]float32
	TileHeight float32
	TileWidth  float32
	StartX     int32
	StartY     int32
	TileSize   int32
	TilePitch  int32
}

// FederationFromRecord copies the coordinate metadata of a stored mesh.
func FederationFromRecord(rec *realm.NavmeshRecord) Federation {
	return Federation{
		Origin:     rec.Origin,
		TileHeight: rec.TileHeight,
		TileWidth:  rec.TileWidth,
		StartX:     rec.PathengineStartX,
		StartY:     rec.PathengineStartY,
		TileSize:   rec.PathengineTileSize,
		TilePitch:  rec.PathengineTilePitch,
	}
}

// Bounds is an axis-aligned box. An empty box has Min at +Inf and Max at
// -Inf on every axis.
type Bounds struct {
	Min mgl32.Vec3 `json:"min"`
	Max mgl32.Vec3 `json:"max"`
}

func emptyBounds() Bounds {
	inf := float32(math.Inf(1))
	return Bounds{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// Empty reports whether no tile contributed to the box.
func (b Bounds) Empty() bool {
	return b.Min[0] > b.Max[0]
}

func (b *Bounds) expand(bmin, bmax [3]float32) {
	for axis := 0; axis < 3; axis++ {
		b.Min[axis] = min(b.Min[axis], bmin[axis])
		b.Max[axis] = max(b.Max[axis], bmax[axis])
	}
}

// Navmesh is the shared navigation resource of a world. The mesh and query
// are not re-entrant; every access goes through mu.
type Navmesh struct {
	mu         deadlock.Mutex
	mesh       *detour.NavMesh
	query      *detour.Query
	filter     *detour.QueryFilter
	federation Federation
	meshID     string
}

// Load fetches the mesh owned by worldID and every one of its tiles.
func Load(ctx context.Context, store realm.Store, worldID string, logger telemetry.Logger) (*Navmesh, error) {
	rec, err := store.NavmeshByWorld(ctx, worldID)
	if err != nil {
		if errors.Is(err, realm.ErrNotFound) {
			return nil, fmt.Errorf("%w for world %s", ErrNoNavmesh, worldID)
		}
		return nil, err
	}
	records, err := store.TilesByMesh(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	tiles := make([][]byte, 0, len(records))
	for i, record := range records {
		raw, err := base64.StdEncoding.DecodeString(record.Data)
		if err != nil {
			return nil, fmt.Errorf("decode tile %d of mesh %s: %w", i, rec.ID, err)
		}
		tiles = append(tiles, raw)
	}
	nm, err := New(FederationFromRecord(rec), tiles)
	if err != nil {
		return nil, fmt.Errorf("build mesh %s: %w", rec.ID, err)
	}
	nm.meshID = rec.ID
	if logger != nil {
		logger.Printf("[navmesh] loaded mesh %s for world %s (%d tiles, %d polygons)", rec.ID, worldID, nm.mesh.TileCount(), nm.mesh.PolyCount())
	}
	return nm, nil
}

// New builds a mesh from raw tile blobs. Exceeding the tile or polygon
// capacity is an error.
func New(fed Federation, tiles [][]byte) (*Navmesh, error) {
	mesh, err := detour.NewNavMesh(detour.Params{MaxTiles: MaxTiles, MaxPolys: MaxPolys})
	if err != nil {
		return nil, err
	}
	for i, raw := range tiles {
		if _, err := mesh.AddTile(raw); err != nil {
			return nil, fmt.Errorf("add tile %d: %w", i, err)
		}
	}
	query, err := detour.NewQuery(mesh, MaxSearchNodes)
	if err != nil {
		return nil, err
	}
	return &Navmesh{
		mesh:       mesh,
		query:      query,
		filter:     detour.DefaultQueryFilter(),
		federation: fed,
	}, nil
}

func (n *Navmesh) MeshID() string         { return n.meshID }
func (n *Navmesh) Federation() Federation { return n.federation }

// Stats reports the number of loaded tiles and polygons.
func (n *Navmesh) Stats() (tiles, polys int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mesh.TileCount(), n.mesh.PolyCount()
}

// PathengineTileForPos returns the external tile index containing pos.
func (n *Navmesh) PathengineTileForPos(pos mgl32.Vec3) int32 {
	fed := n.federation
	if fed.TileSize == 0 {
		return 0
	}
	tileX := (int32(math.Ceil(float64(pos[2]*pathengineScale))) - fed.StartX) / fed.TileSize
	tileY := (int32(math.Ceil(float64(pos[0]*pathengineScale))) - fed.StartY) / fed.TileSize * fed.TilePitch
	return tileX + tileY
}

// FloorHeight returns the walkable height under pos, if any polygon lies
// within the floor search box.
func (n *Navmesh) FloorHeight(pos mgl32.Vec3) (float32, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ref, nearest := n.query.FindNearestPoly(pos, floorExtents, n.filter)
	if ref == 0 {
		return 0, false
	}
	return n.mesh.PolyHeight(ref, nearest)
}

// Bounds returns the box enclosing every tile header.
func (n *Navmesh) Bounds() Bounds {
	n.mu.Lock()
	defer n.mu.Unlock()
	b := emptyBounds()
	for i := 0; i < n.mesh.MaxTiles(); i++ {
		tile := n.mesh.Tile(i)
		if tile == nil || tile.Header == nil {
			continue
		}
		b.expand(tile.Header.BMin, tile.Header.BMax)
	}
	return b
}
