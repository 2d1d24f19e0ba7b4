package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	server "realm-nav/server"
	"realm-nav/server/internal/config"
	"realm-nav/server/internal/navmesh"
	servernet "realm-nav/server/internal/net"
	"realm-nav/server/internal/realm"
	"realm-nav/server/internal/script"
	"realm-nav/server/internal/telemetry"
	"realm-nav/server/logging"
	"realm-nav/server/logging/lifecycle"
	loggingSinks "realm-nav/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Logger telemetry.Logger
	Stdout io.Writer
}

// Run serves the world named in cfg until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, opts Options) error {
	telemetryLogger := opts.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	logConfig := cfg.RouterConfig()
	sinks, closeFiles, err := BuildSinks(logConfig, stdout)
	if err != nil {
		return err
	}
	defer closeFiles()

	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, fallbackLogger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	store, err := realm.Open(ctx, realm.Options{URL: cfg.Database.URL, Database: cfg.Database.Name, Logger: telemetryLogger})
	if err != nil {
		return fmt.Errorf("open realm store: %w", err)
	}
	defer store.Close(context.Background())

	mesh, err := navmesh.Load(ctx, store, cfg.World.ID, telemetryLogger)
	if err != nil {
		return fmt.Errorf("load navmesh for world %s: %w", cfg.World.ID, err)
	}
	tiles, polys := mesh.Stats()
	lifecycle.NavmeshLoaded(ctx, router, 0, lifecycle.NavmeshLoadedPayload{
		WorldID:  cfg.World.ID,
		MeshID:   mesh.MeshID(),
		Tiles:    tiles,
		Polygons: polys,
	}, nil)

	hub := server.NewHub(server.HubConfig{
		WorldID:  cfg.World.ID,
		Loop:     cfg.LoopConfig(),
		Interest: cfg.Interest,
		Scripts:  cfg.Scripting.Dir,
		Logger:   telemetryLogger,
		Metrics:  telemetry.WrapMetrics(router.Metrics()),
	}, mesh, router)

	if cfg.Scripting.Watch {
		watcher, err := script.NewWatcher(cfg.Scripting.Dir)
		if err != nil {
			return fmt.Errorf("watch scripts: %w", err)
		}
		defer watcher.Close()
		hub.WatchScripts(watcher)
	}

	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Logger:    telemetryLogger,
		Telemetry: router.Metrics().Snapshot,
	})

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: handler}
	telemetryLogger.Printf("server listening on %s (world %s, mesh %s)", srv.Addr, cfg.World.ID, mesh.MeshID())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// BuildSinks constructs the sinks named in cfg. The returned func closes any
// file the json sink opened.
func BuildSinks(cfg logging.Config, stdout io.Writer) (map[string]logging.Sink, func(), error) {
	sinks := make(map[string]logging.Sink, len(cfg.EnabledSinks))
	var files []*os.File
	closeFiles := func() {
		for _, f := range files {
			f.Close()
		}
	}

	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			sinks[name] = loggingSinks.NewConsoleSink(stdout, cfg.Console)
		case "json":
			var out io.Writer = stdout
			if cfg.JSON.FilePath != "" {
				f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					closeFiles()
					return nil, nil, fmt.Errorf("open json log %s: %w", cfg.JSON.FilePath, err)
				}
				files = append(files, f)
				out = f
			}
			sinks[name] = loggingSinks.NewJSON(out, cfg.JSON)
		case "zap":
			sink, err := loggingSinks.NewZap(cfg.Zap)
			if err != nil {
				closeFiles()
				return nil, nil, fmt.Errorf("build zap sink: %w", err)
			}
			sinks[name] = sink
		case "memory":
			sinks[name] = loggingSinks.NewMemorySink()
		default:
			closeFiles()
			return nil, nil, fmt.Errorf("unknown log sink %q", name)
		}
	}
	return sinks, closeFiles, nil
}
