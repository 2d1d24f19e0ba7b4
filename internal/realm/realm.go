// Package realm is the read contract for navigation data stored by the realm
// data API, with MongoDB and SQL (MySQL, SQLite) backends.
package realm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"realm-nav/server/internal/telemetry"
)

var ErrNotFound = errors.New("realm: record not found")

// NavmeshRecord describes one navigation mesh owned by a world. The
// pathengine fields feed the external tile numbering.
type NavmeshRecord struct {
	ID                  string     `bson:"_id" json:"id"`
	WorldID             string     `bson:"world_id" json:"worldId"`
	Origin              [3]float32 `bson:"origin" json:"origin"`
	TileHeight          float32    `bson:"tile_height" json:"tileHeight"`
	TileWidth           float32    `bson:"tile_width" json:"tileWidth"`
	PathengineStartX    int32      `bson:"pathengine_start_x" json:"pathengineStartX"`
	PathengineStartY    int32      `bson:"pathengine_start_y" json:"pathengineStartY"`
	PathengineTileSize  int32      `bson:"pathengine_tile_size" json:"pathengineTileSize"`
	PathengineTilePitch int32      `bson:"pathengine_tile_pitch" json:"pathengineTilePitch"`
}

// TileRecord carries one base64 encoded tile blob of a mesh.
type TileRecord struct {
	MeshID string `bson:"mesh_id" json:"meshId"`
	Data   string `bson:"data" json:"data"`
}

// Store reads and seeds navigation records.
type Store interface {
	// NavmeshByWorld returns the mesh owned by worldID or ErrNotFound.
	NavmeshByWorld(ctx context.Context, worldID string) (*NavmeshRecord, error)
	// TilesByMesh returns every tile of meshID in no particular order.
	TilesByMesh(ctx context.Context, meshID string) ([]TileRecord, error)
	// ReplaceNavmesh stores mesh and tiles, dropping any previous mesh with
	// the same id or world.
	ReplaceNavmesh(ctx context.Context, mesh NavmeshRecord, tiles []TileRecord) error
	Close(ctx context.Context) error
}

// Options selects and tunes a backend.
type Options struct {
	URL      string
	Database string
	Logger   telemetry.Logger
}

// Open connects to the backend named by the URL scheme: mongodb://,
// mysql:// or sqlite://.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch {
	case strings.HasPrefix(opts.URL, "mongodb://"), strings.HasPrefix(opts.URL, "mongodb+srv://"):
		return NewMongoStore(ctx, opts)
	case strings.HasPrefix(opts.URL, "mysql://"):
		return OpenMySQL(strings.TrimPrefix(opts.URL, "mysql://"), opts.Logger)
	case strings.HasPrefix(opts.URL, "sqlite://"):
		return OpenSQLite(strings.TrimPrefix(opts.URL, "sqlite://"), opts.Logger)
	default:
		return nil, fmt.Errorf("realm: unsupported database url %q", opts.URL)
	}
}
