package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fbxbatch",
		Short: "Batch FBX processor with automatic texture assignment",
		Long: `fbxbatch downloads packaged FBX assets, wires their loose textures into
material shading graphs by filename convention, normalizes object
transforms, and re-exports a cleaned copy of each asset.

Scene import/export and shading-graph mutation are delegated to an external
3D host runtime reached over a stdio bridge; fbxbatch decides what gets
wired where, and in what order.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newProcessCmd())

	return cmd
}
