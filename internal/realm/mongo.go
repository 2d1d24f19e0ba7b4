package realm

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"realm-nav/server/internal/telemetry"
)

const (
	navmeshCollection = "navmeshes"
	tileCollection    = "navmesh_tiles"
	defaultDatabase   = "realm"
)

// MongoStore reads navigation records from a realm MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger telemetry.Logger
}

// NewMongoStore connects and pings the primary before returning.
func NewMongoStore(ctx context.Context, opts Options) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(opts.URL)
	clientOptions = clientOptions.SetMinPoolSize(2)
	clientOptions = clientOptions.SetMaxPoolSize(16)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	name := opts.Database
	if name == "" {
		name = defaultDatabase
	}
	return &MongoStore{client: client, db: client.Database(name), logger: opts.Logger}, nil
}

func (s *MongoStore) NavmeshByWorld(ctx context.Context, worldID string) (*NavmeshRecord, error) {
	var record NavmeshRecord
	err := s.db.Collection(navmeshCollection).FindOne(ctx, bson.D{{Key: "world_id", Value: worldID}}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find navmesh for world %s: %w", worldID, err)
	}
	return &record, nil
}

func (s *MongoStore) TilesByMesh(ctx context.Context, meshID string) ([]TileRecord, error) {
	cursor, err := s.db.Collection(tileCollection).Find(ctx, bson.D{{Key: "mesh_id", Value: meshID}})
	if err != nil {
		return nil, fmt.Errorf("find tiles for mesh %s: %w", meshID, err)
	}
	defer cursor.Close(ctx)

	var tiles []TileRecord
	for cursor.Next(ctx) {
		var tile TileRecord
		if err := cursor.Decode(&tile); err != nil {
			return nil, fmt.Errorf("decode tile of mesh %s: %w", meshID, err)
		}
		tiles = append(tiles, tile)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate tiles of mesh %s: %w", meshID, err)
	}
	return tiles, nil
}

func (s *MongoStore) ReplaceNavmesh(ctx context.Context, mesh NavmeshRecord, tiles []TileRecord) error {
	meshes := s.db.Collection(navmeshCollection)
	previous := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "_id", Value: mesh.ID}},
		bson.D{{Key: "world_id", Value: mesh.WorldID}},
	}}}
	cursor, err := meshes.Find(ctx, previous)
	if err != nil {
		return fmt.Errorf("find previous navmesh %s: %w", mesh.ID, err)
	}
	var old []NavmeshRecord
	if err := cursor.All(ctx, &old); err != nil {
		return fmt.Errorf("decode previous navmesh %s: %w", mesh.ID, err)
	}
	ids := bson.A{mesh.ID}
	for _, record := range old {
		ids = append(ids, record.ID)
	}
	if _, err := s.db.Collection(tileCollection).DeleteMany(ctx, bson.D{{Key: "mesh_id", Value: bson.D{{Key: "$in", Value: ids}}}}); err != nil {
		return fmt.Errorf("delete tiles of mesh %s: %w", mesh.ID, err)
	}
	if _, err := meshes.DeleteMany(ctx, previous); err != nil {
		return fmt.Errorf("delete navmesh %s: %w", mesh.ID, err)
	}
	if _, err := meshes.InsertOne(ctx, mesh); err != nil {
		return fmt.Errorf("insert navmesh %s: %w", mesh.ID, err)
	}
	if len(tiles) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(tiles))
	for _, tile := range tiles {
		tile.MeshID = mesh.ID
		writes = append(writes, mongo.NewInsertOneModel().SetDocument(tile))
	}
	if _, err := s.db.Collection(tileCollection).BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("insert tiles of mesh %s: %w", mesh.ID, err)
	}
	if s.logger != nil {
		s.logger.Printf("[realm] stored navmesh %s for world %s (%d tiles)", mesh.ID, mesh.WorldID, len(tiles))
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
