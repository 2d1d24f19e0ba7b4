// Package meshimport seeds the realm store from hjson mesh descriptions.
package meshimport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/hjson/hjson-go/v4"

	"realm-nav/server/internal/detour"
	"realm-nav/server/internal/realm"
)

// Document is the authoring format of a world mesh.
type Document struct {
	World      string     `json:"world"`
	Mesh       string     `json:"mesh"`
	Federation Federation `json:"federation"`
	Tiles      []Tile     `json:"tiles"`
}

type Federation struct {
	Origin     [3]float32 `json:"origin"`
	TileWidth  float32    `json:"tile_width"`
	TileHeight float32    `json:"tile_height"`
	StartX     int32      `json:"start_x"`
	StartY     int32      `json:"start_y"`
	TileSize   int32      `json:"tile_size"`
	TilePitch  int32      `json:"tile_pitch"`
}

type Tile struct {
	X     int32        `json:"x"`
	Y     int32        `json:"y"`
	Layer int32        `json:"layer"`
	Verts [][3]float32 `json:"verts"`
	Polys []Poly       `json:"polys"`
}

type Poly struct {
	Verts []uint16 `json:"verts"`
	Flags uint16   `json:"flags"`
	Area  uint8    `json:"area"`
}

// Parse decodes an hjson document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := hjson.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse mesh document: %w", err)
	}
	if doc.World == "" {
		return Document{}, errors.New("mesh document: world is required")
	}
	if doc.Mesh == "" {
		doc.Mesh = doc.World + "-navmesh"
	}
	return doc, nil
}

// ReadFile parses the document at path.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read mesh document: %w", err)
	}
	return Parse(data)
}

// Records encodes every tile and returns the store records of doc.
func (doc Document) Records() (realm.NavmeshRecord, []realm.TileRecord, error) {
	mesh := realm.NavmeshRecord{
		ID:                  doc.Mesh,
		WorldID:             doc.World,
		Origin:              doc.Federation.Origin,
		TileHeight:          doc.Federation.TileHeight,
		TileWidth:           doc.Federation.TileWidth,
		PathengineStartX:    doc.Federation.StartX,
		PathengineStartY:    doc.Federation.StartY,
		PathengineTileSize:  doc.Federation.TileSize,
		PathengineTilePitch: doc.Federation.TilePitch,
	}
	tiles := make([]realm.TileRecord, 0, len(doc.Tiles))
	for i, tile := range doc.Tiles {
		raw, err := EncodeTile(tile)
		if err != nil {
			return mesh, nil, fmt.Errorf("tile %d: %w", i, err)
		}
		tiles = append(tiles, realm.TileRecord{MeshID: doc.Mesh, Data: base64.StdEncoding.EncodeToString(raw)})
	}
	return mesh, tiles, nil
}

// EncodeTile converts an authored tile to its binary form.
func EncodeTile(tile Tile) ([]byte, error) {
	data := detour.TileData{
		Header: &detour.TileHeader{X: tile.X, Y: tile.Y, Layer: tile.Layer},
		Verts:  tile.Verts,
		Polys:  make([]detour.PolyData, len(tile.Polys)),
	}
	for i, poly := range tile.Polys {
		data.Polys[i] = detour.PolyData{Verts: poly.Verts, Flags: poly.Flags, Area: poly.Area}
	}
	return detour.EncodeTile(data)
}

// Import writes doc to store, replacing any mesh of the same world.
func Import(ctx context.Context, store realm.Store, doc Document) (tiles int, err error) {
	mesh, records, err := doc.Records()
	if err != nil {
		return 0, err
	}
	if err := store.ReplaceNavmesh(ctx, mesh, records); err != nil {
		return 0, fmt.Errorf("store mesh %s: %w", mesh.ID, err)
	}
	return len(records), nil
}
