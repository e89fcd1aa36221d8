// Package cli implements the spriteforge command-line interface.
//
// Commands:
//   - generate: request a sprite sheet from the generation service
//   - play: play a sheet back in the terminal
//   - serve: expose generation and frame geometry over HTTP
//   - cache: manage the local sheet cache
//
// All commands support --verbose (-v) for debug-level logging and
// --config for an explicit configuration file. Loggers are passed
// through context.Context.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pixeldrift/spriteforge/pkg/buildinfo"
)

// Execute runs the spriteforge CLI and returns an error if any command
// fails. This is the main entry point for the application.
func Execute(ctx context.Context) error {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "spriteforge",
		Short:        "Spriteforge generates and plays sprite-sheet animations",
		Long:         `Spriteforge turns a text prompt and a grid shape into a sprite-sheet animation: it requests a single grid image from a generation service, derives per-frame geometry, and plays the frames back in the terminal with adjustable speed.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/spriteforge/config.toml)")

	root.AddCommand(newGenerateCmd(&configPath))
	root.AddCommand(newPlayCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newCacheCmd(&configPath))

	return root.ExecuteContext(ctx)
}
