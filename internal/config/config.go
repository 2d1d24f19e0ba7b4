// Package config loads the server configuration from YAML with environment
// overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"realm-nav/server/internal/interest"
	"realm-nav/server/internal/sim"
	"realm-nav/server/logging"
)

type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	World      WorldConfig      `yaml:"world" json:"world"`
	Interest   interest.Config  `yaml:"interest" json:"interest"`
	Scripting  ScriptingConfig  `yaml:"scripting" json:"scripting"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" jsonschema:"description=HTTP and websocket listen address"`
}

type SimulationConfig struct {
	TickRate        int `yaml:"tick_rate" json:"tick_rate" jsonschema:"minimum=1"`
	CatchupMaxTicks int `yaml:"catchup_max_ticks" json:"catchup_max_ticks"`
	CommandCapacity int `yaml:"command_capacity" json:"command_capacity" jsonschema:"minimum=1"`
	PerActorLimit   int `yaml:"per_actor_limit" json:"per_actor_limit"`
}

type DatabaseConfig struct {
	URL  string `yaml:"url" json:"url" jsonschema:"description=mongodb://, mysql:// or sqlite:// URL of the realm store"`
	Name string `yaml:"name" json:"name,omitempty" jsonschema:"description=Mongo database name"`
}

type WorldConfig struct {
	ID   string `yaml:"id" json:"id" jsonschema:"required"`
	Name string `yaml:"name" json:"name,omitempty"`
}

type ScriptingConfig struct {
	Dir   string `yaml:"dir" json:"dir,omitempty"`
	Watch bool   `yaml:"watch" json:"watch"`
}

type LoggingConfig struct {
	Sinks           []string `yaml:"sinks" json:"sinks" jsonschema:"enum=console,enum=json,enum=zap"`
	MinimumSeverity string   `yaml:"minimum_severity" json:"minimum_severity" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	JSONFile        string   `yaml:"json_file" json:"json_file,omitempty"`
	// Categories overrides minimum_severity per event category.
	Categories  map[string]string `yaml:"categories" json:"categories,omitempty"`
	Development bool              `yaml:"development" json:"development"`
}

// Default returns the configuration used for fields a file leaves out.
func Default() Config {
	loop := sim.DefaultLoopConfig()
	return Config{
		Server: ServerConfig{ListenAddr: ":8080"},
		Simulation: SimulationConfig{
			TickRate:        loop.TickRate,
			CatchupMaxTicks: loop.CatchupMaxTicks,
			CommandCapacity: loop.CommandCapacity,
			PerActorLimit:   loop.PerActorLimit,
		},
		Database:  DatabaseConfig{URL: "sqlite://realm.db"},
		World:     WorldConfig{ID: "default"},
		Interest:  interest.DefaultConfig(),
		Scripting: ScriptingConfig{Dir: "scripts"},
		Logging: LoggingConfig{
			Sinks:           []string{"console"},
			MinimumSeverity: "info",
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the NAV_* environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if raw, ok := lookup("NAV_TICK_RATE"); ok {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid NAV_TICK_RATE=%q: %w", raw, err)
		}
		c.Simulation.TickRate = value
	}
	if raw, ok := lookup("NAV_DATABASE_URL"); ok {
		c.Database.URL = raw
	}
	if raw, ok := lookup("NAV_WORLD_ID"); ok {
		c.World.ID = raw
	}
	if raw, ok := lookup("NAV_LISTEN_ADDR"); ok {
		c.Server.ListenAddr = raw
	}
	if raw, ok := lookup("NAV_LOG_LEVEL"); ok {
		c.Logging.MinimumSeverity = raw
	}
	return nil
}

// Validate reports the first setting the server cannot start with.
func (c Config) Validate() error {
	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("simulation.tick_rate must be positive, got %d", c.Simulation.TickRate)
	}
	if c.Simulation.CommandCapacity <= 0 {
		return fmt.Errorf("simulation.command_capacity must be positive, got %d", c.Simulation.CommandCapacity)
	}
	if strings.TrimSpace(c.World.ID) == "" {
		return errors.New("world.id is required")
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database.url is required")
	}
	if _, err := logging.ParseSeverity(c.Logging.MinimumSeverity); err != nil {
		return err
	}
	for category, name := range c.Logging.Categories {
		if _, err := logging.ParseSeverity(name); err != nil {
			return fmt.Errorf("logging.categories.%s: %w", category, err)
		}
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case "console", "json", "zap":
		default:
			return fmt.Errorf("logging.sinks: unknown sink %q", sink)
		}
	}
	return nil
}

// LoopConfig converts the simulation section.
func (c Config) LoopConfig() sim.LoopConfig {
	loop := sim.DefaultLoopConfig()
	loop.TickRate = c.Simulation.TickRate
	loop.CatchupMaxTicks = c.Simulation.CatchupMaxTicks
	loop.CommandCapacity = c.Simulation.CommandCapacity
	loop.PerActorLimit = c.Simulation.PerActorLimit
	return loop
}

// LoggingConfig converts the logging section for the router.
func (c Config) RouterConfig() logging.Config {
	out := logging.DefaultConfig()
	out.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	out.MinimumSeverity, _ = logging.ParseSeverity(c.Logging.MinimumSeverity)
	out.JSON.FilePath = c.Logging.JSONFile
	out.Zap.Development = c.Logging.Development
	out.Fields = map[string]any{"world": c.World.ID}
	if len(c.Logging.Categories) > 0 {
		out.CategorySeverity = make(map[string]logging.Severity, len(c.Logging.Categories))
		for category, name := range c.Logging.Categories {
			out.CategorySeverity[category], _ = logging.ParseSeverity(name)
		}
	}
	return out
}

// Schema renders the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(&Config{})
	if schema == nil {
		return nil, errors.New("reflect config schema")
	}
	schema.Title = "Navigation server configuration"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config schema: %w", err)
	}
	return append(data, '\n'), nil
}
