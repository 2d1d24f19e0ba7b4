package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"realm-nav/server/internal/app"
	"realm-nav/server/internal/config"
	"realm-nav/server/internal/detour"
	"realm-nav/server/internal/meshimport"
	"realm-nav/server/internal/realm"
	"realm-nav/server/internal/telemetry"
)

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func ServeCmd() *cobra.Command {
	var configFile string
	c := &cobra.Command{
		Use:   "serve",
		Short: "run the simulation and http/websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg, app.Options{
				Logger: telemetry.WrapLogger(log.Default()),
				Stdout: cmd.OutOrStdout(),
			})
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "config file")
	return c
}

func SchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "print the json schema of the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func ImportMeshCmd() *cobra.Command {
	var configFile string
	c := &cobra.Command{
		Use:   "import-mesh <file.hjson>",
		Short: "replace a world navmesh in the realm store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			doc, err := meshimport.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := realm.Open(ctx, realm.Options{
				URL:      cfg.Database.URL,
				Database: cfg.Database.Name,
				Logger:   telemetry.WrapLogger(log.Default()),
			})
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			n, err := meshimport.Import(ctx, store, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d tiles into %s for world %s\n", n, doc.Mesh, doc.World)
			return nil
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "config file")
	return c
}

func TileCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "tile",
		Short: "inspect encoded navmesh tiles",
	}
	c.AddCommand(&cobra.Command{
		Use:   "encode <file.hjson>",
		Short: "print every tile of a mesh document as base64",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := meshimport.ReadFile(args[0])
			if err != nil {
				return err
			}
			for _, tile := range doc.Tiles {
				raw, err := meshimport.EncodeTile(tile)
				if err != nil {
					return fmt.Errorf("tile %d,%d: %w", tile.X, tile.Y, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d,%d,%d %s\n", tile.X, tile.Y, tile.Layer, base64.StdEncoding.EncodeToString(raw))
			}
			return nil
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "decode <base64>",
		Short: "print the header and counts of an encoded tile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := base64.StdEncoding.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decode base64: %w", err)
			}
			tile, err := detour.DecodeTile(raw)
			if err != nil {
				return err
			}
			h := tile.Header
			fmt.Fprintf(cmd.OutOrStdout(), "tile %d,%d layer %d bounds %v..%v verts %d polys %d\n",
				h.X, h.Y, h.Layer, h.BMin, h.BMax, len(tile.Verts), len(tile.Polys))
			return nil
		},
	})
	return c
}
