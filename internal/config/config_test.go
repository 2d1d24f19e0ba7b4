package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"realm-nav/server/logging"
)

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := []byte(`
server:
  listen_addr: ":9000"
world:
  id: "w-17"
interest:
  cell_size: 32
  radius: 96
logging:
  sinks: [console, zap]
  minimum_severity: debug
  categories:
    network: warn
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" || cfg.World.ID != "w-17" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Interest.CellSize != 32 || cfg.Interest.Radius != 96 {
		t.Fatalf("unexpected interest config %+v", cfg.Interest)
	}
	if cfg.Simulation.TickRate != Default().Simulation.TickRate {
		t.Fatalf("expected default tick rate kept, got %d", cfg.Simulation.TickRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	router := cfg.RouterConfig()
	if router.MinimumSeverity != logging.SeverityDebug || !router.HasSink("zap") {
		t.Fatalf("unexpected router config %+v", router)
	}
	if router.CategorySeverity[logging.CategoryNetwork] != logging.SeverityWarn {
		t.Fatalf("expected network floor warn, got %v", router.CategorySeverity)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen: x\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"NAV_TICK_RATE":    "30",
		"NAV_DATABASE_URL": "mongodb://db:27017",
		"NAV_WORLD_ID":     "w-2",
		"NAV_LISTEN_ADDR":  ":7000",
		"NAV_LOG_LEVEL":    "warn",
	}
	cfg := Default()
	err := cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Simulation.TickRate != 30 || cfg.Database.URL != "mongodb://db:27017" || cfg.World.ID != "w-2" ||
		cfg.Server.ListenAddr != ":7000" || cfg.Logging.MinimumSeverity != "warn" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	bad := Default()
	if err := bad.ApplyEnv(func(key string) (string, bool) { return "fast", key == "NAV_TICK_RATE" }); err == nil {
		t.Fatalf("expected invalid tick rate error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"tick rate": func(c *Config) { c.Simulation.TickRate = 0 },
		"world":     func(c *Config) { c.World.ID = " " },
		"database":  func(c *Config) { c.Database.URL = "" },
		"severity":  func(c *Config) { c.Logging.MinimumSeverity = "loud" },
		"sink":      func(c *Config) { c.Logging.Sinks = []string{"syslog"} },
		"category":  func(c *Config) { c.Logging.Categories = map[string]string{"navigation": "chatty"} },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSchemaDescribesSections(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties in schema: %s", data)
	}
	for _, section := range []string{"server", "simulation", "database", "world", "interest", "scripting", "logging"} {
		if _, ok := props[section]; !ok {
			t.Fatalf("missing section %s", section)
		}
	}
}
