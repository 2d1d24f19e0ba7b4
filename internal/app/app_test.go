package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"realm-nav/server/internal/config"
	"realm-nav/server/internal/meshimport"
	"realm-nav/server/internal/navmesh"
	"realm-nav/server/internal/realm"
	"realm-nav/server/logging"
)

func seededConfig(t *testing.T) config.Config {
	t.Helper()
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "realm.db")
	store, err := realm.Open(ctx, realm.Options{URL: url})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	doc := meshimport.Document{World: "w1", Mesh: "m1", Tiles: []meshimport.Tile{{
		Verts: [][3]float32{{0, 0, 0}, {10, 0, 0}, {10, 0, 10}, {0, 0, 10}},
		Polys: []meshimport.Poly{{Verts: []uint16{0, 1, 2, 3}, Flags: 1}},
	}}}
	if _, err := meshimport.Import(ctx, store, doc); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("close store: %v", err)
	}

	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Database.URL = url
	cfg.World.ID = "w1"
	cfg.Scripting.Dir = t.TempDir()
	cfg.Logging.Sinks = []string{"console"}
	return cfg
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := seededConfig(t)
	cfg.Scripting.Watch = true

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := Run(ctx, cfg, Options{Stdout: &out}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("lifecycle.navmesh_loaded")) {
		t.Fatalf("expected navmesh loaded event on console, got %q", out.String())
	}
}

func TestRunFailsWithoutNavmesh(t *testing.T) {
	cfg := seededConfig(t)
	cfg.World.ID = "missing"
	err := Run(context.Background(), cfg, Options{Stdout: &bytes.Buffer{}})
	if !errors.Is(err, navmesh.ErrNoNavmesh) {
		t.Fatalf("expected ErrNoNavmesh, got %v", err)
	}
}

func TestBuildSinks(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"console", "json", "memory"}
	cfg.JSON.FilePath = filepath.Join(t.TempDir(), "events.jsonl")

	sinks, closeFiles, err := BuildSinks(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	defer closeFiles()
	if len(sinks) != 3 {
		t.Fatalf("expected 3 sinks, got %d", len(sinks))
	}
	if _, err := os.Stat(cfg.JSON.FilePath); err != nil {
		t.Fatalf("expected json log file: %v", err)
	}

	cfg.EnabledSinks = []string{"syslog"}
	if _, _, err := BuildSinks(cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected unknown sink error")
	}
}
