package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "realm-nav",
		Short:         "navigation server for a federated navmesh world",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(ServeCmd(), SchemaCmd(), ImportMeshCmd(), TileCmd())
	return root
}
