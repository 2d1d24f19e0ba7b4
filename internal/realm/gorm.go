package realm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"realm-nav/server/internal/telemetry"
)

type NavmeshGorm struct {
	ID                  string  `gorm:"column:id;type:varchar(64);primaryKey"`
	WorldID             string  `gorm:"column:world_id;type:varchar(64);uniqueIndex"`
	OriginX             float32 `gorm:"column:origin_x"`
	OriginY             float32 `gorm:"column:origin_y"`
	OriginZ             float32 `gorm:"column:origin_z"`
	TileHeight          float32 `gorm:"column:tile_height"`
	TileWidth           float32 `gorm:"column:tile_width"`
	PathengineStartX    int32   `gorm:"column:pathengine_start_x"`
	PathengineStartY    int32   `gorm:"column:pathengine_start_y"`
	PathengineTileSize  int32   `gorm:"column:pathengine_tile_size"`
	PathengineTilePitch int32   `gorm:"column:pathengine_tile_pitch"`
}

func (NavmeshGorm) TableName() string {
	return "navmesh"
}

type TileGorm struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	MeshID string `gorm:"column:mesh_id;type:varchar(64);index"`
	Data   string `gorm:"column:data;type:longtext"`
}

func (TileGorm) TableName() string {
	return "navmesh_tile"
}

// GormStore reads navigation records through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenMySQL connects to a MySQL DSN and migrates the navigation tables.
func OpenMySQL(dsn string, logger telemetry.Logger) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("gorm open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return NewGormStore(db)
}

// OpenSQLite opens (creating if needed) a SQLite file and migrates the
// navigation tables.
func OpenSQLite(path string, logger telemetry.Logger) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("gorm open sqlite: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore migrates the navigation tables on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	for _, table := range []any{new(NavmeshGorm), new(TileGorm)} {
		if err := db.AutoMigrate(table); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return &GormStore{db: db}, nil
}

func newGormLogger(logger telemetry.Logger) gormlogger.Interface {
	if logger == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(logger, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func (s *GormStore) NavmeshByWorld(ctx context.Context, worldID string) (*NavmeshRecord, error) {
	var row NavmeshGorm
	err := s.db.WithContext(ctx).Where("world_id = ?", worldID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find navmesh for world %s: %w", worldID, err)
	}
	return &NavmeshRecord{
		ID:                  row.ID,
		WorldID:             row.WorldID,
		Origin:              [3]float32{row.OriginX, row.OriginY, row.OriginZ},
		TileHeight:          row.TileHeight,
		TileWidth:           row.TileWidth,
		PathengineStartX:    row.PathengineStartX,
		PathengineStartY:    row.PathengineStartY,
		PathengineTileSize:  row.PathengineTileSize,
		PathengineTilePitch: row.PathengineTilePitch,
	}, nil
}

func (s *GormStore) TilesByMesh(ctx context.Context, meshID string) ([]TileRecord, error) {
	var rows []TileGorm
	if err := s.db.WithContext(ctx).Where("mesh_id = ?", meshID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find tiles for mesh %s: %w", meshID, err)
	}
	tiles := make([]TileRecord, 0, len(rows))
	for _, row := range rows {
		tiles = append(tiles, TileRecord{MeshID: row.MeshID, Data: row.Data})
	}
	return tiles, nil
}

func (s *GormStore) ReplaceNavmesh(ctx context.Context, mesh NavmeshRecord, tiles []TileRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var previous []string
		if err := tx.Model(&NavmeshGorm{}).Where("id = ? OR world_id = ?", mesh.ID, mesh.WorldID).Pluck("id", &previous).Error; err != nil {
			return fmt.Errorf("find previous navmesh %s: %w", mesh.ID, err)
		}
		previous = append(previous, mesh.ID)
		if err := tx.Where("mesh_id IN ?", previous).Delete(&TileGorm{}).Error; err != nil {
			return fmt.Errorf("delete tiles of mesh %s: %w", mesh.ID, err)
		}
		if err := tx.Where("id IN ?", previous).Delete(&NavmeshGorm{}).Error; err != nil {
			return fmt.Errorf("delete navmesh %s: %w", mesh.ID, err)
		}
		row := NavmeshGorm{
			ID:                  mesh.ID,
			WorldID:             mesh.WorldID,
			OriginX:             mesh.Origin[0],
			OriginY:             mesh.Origin[1],
			OriginZ:             mesh.Origin[2],
			TileHeight:          mesh.TileHeight,
			TileWidth:           mesh.TileWidth,
			PathengineStartX:    mesh.PathengineStartX,
			PathengineStartY:    mesh.PathengineStartY,
			PathengineTileSize:  mesh.PathengineTileSize,
			PathengineTilePitch: mesh.PathengineTilePitch,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert navmesh %s: %w", mesh.ID, err)
		}
		if len(tiles) == 0 {
			return nil
		}
		rows := make([]TileGorm, 0, len(tiles))
		for _, tile := range tiles {
			rows = append(rows, TileGorm{MeshID: mesh.ID, Data: tile.Data})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert tiles of mesh %s: %w", mesh.ID, err)
		}
		return nil
	})
}

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
