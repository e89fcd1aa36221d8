package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pixeldrift/spriteforge/internal/config"
	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
	"github.com/pixeldrift/spriteforge/pkg/sprite"
)

// newPlayCmd creates the play command for sheets already on disk.
func newPlayCmd(configPath *string) *cobra.Command {
	var (
		columns int
		rows    int
		fps     float64
	)

	cmd := &cobra.Command{
		Use:   "play [sheet file]",
		Short: "Play a sprite sheet in the terminal",
		Long: `Play slices a sheet image into frames using the declared grid shape
and animates them in the terminal. Space pauses and resumes, +/- adjust
the speed, r restarts from the first frame.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			applyPlaybackDefaults(cfg, &columns, &rows, &fps)

			c, r := sferrors.ClampGrid(columns, rows)
			sheet, err := sprite.LoadFile(args[0], sprite.Grid{Columns: c, Rows: r})
			if err != nil {
				return fmt.Errorf("could not load sheet: %s", sferrors.UserMessage(err))
			}

			return runPlayer(ctx, sheet, fps, filepath.Base(args[0]))
		},
	}

	cmd.Flags().IntVarP(&columns, "columns", "c", 0, "grid columns (default from config)")
	cmd.Flags().IntVarP(&rows, "rows", "r", 0, "grid rows (default from config)")
	cmd.Flags().Float64Var(&fps, "fps", 0, "playback speed (default from config)")

	return cmd
}

// runPlayer starts the terminal playback surface for a loaded sheet.
func runPlayer(ctx context.Context, sheet *sprite.Sheet, fps float64, title string) error {
	if err := sferrors.ValidateFPS(fps); err != nil {
		return err
	}
	return playSheet(ctx, sheet, fps, title)
}
