package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pixeldrift/spriteforge/internal/config"
	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
	"github.com/pixeldrift/spriteforge/pkg/gen"
	"github.com/pixeldrift/spriteforge/pkg/sprite"
)

// generateOpts holds the command-line flags for the generate command.
type generateOpts struct {
	columns int     // grid columns
	rows    int     // grid rows
	fps     float64 // playback speed when --play is set
	output  string  // output file for the sheet image
	play    bool    // open the player after generating
	refresh bool    // bypass the sheet cache
	noCache bool    // disable caching entirely for this run
}

// newGenerateCmd creates the generate command: prompt in, sheet out.
func newGenerateCmd(configPath *string) *cobra.Command {
	opts := generateOpts{}

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate a sprite sheet from a prompt",
		Long: `Generate requests a single sheet image containing a grid of animation
frames from the generation service. The grid shape is classified into
the nearest aspect ratio the service accepts; the sheet is cached
locally so repeating a prompt does not call the service again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), strings.Join(args, " "), *configPath, &opts)
		},
	}

	cmd.Flags().IntVarP(&opts.columns, "columns", "c", 0, "grid columns (default from config)")
	cmd.Flags().IntVarP(&opts.rows, "rows", "r", 0, "grid rows (default from config)")
	cmd.Flags().Float64Var(&opts.fps, "fps", 0, "playback speed for --play (default from config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the sheet image to this file")
	cmd.Flags().BoolVar(&opts.play, "play", false, "play the sheet after generating")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the cache and regenerate")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not read or write the sheet cache")

	return cmd
}

func runGenerate(ctx context.Context, prompt, configPath string, opts *generateOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyPlaybackDefaults(cfg, &opts.columns, &opts.rows, &opts.fps)

	// Caller-side clamp: the geometry core relies on columns/rows >= 1.
	columns, rows := sferrors.ClampGrid(opts.columns, opts.rows)
	grid := sprite.Grid{Columns: columns, Rows: rows}

	client, closeCache, err := newGenClient(cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer closeCache()

	logger.Debug("composed request",
		"grid", fmt.Sprintf("%dx%d", columns, rows),
		"ratio", sprite.Classify(columns, rows),
		"frames", grid.FrameCount(),
	)

	prog := newProgress(logger)
	spin := newSpinner(ctx, "Requesting sheet from generation service...")
	spin.Start()

	result, err := client.Generate(ctx, gen.Request{Prompt: prompt, Grid: grid, Refresh: opts.refresh})
	if err != nil {
		spin.Stop()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("generation failed: %s", sferrors.UserMessage(err))
	}

	spin.SetMessage("Decoding sheet image...")
	sheet, err := sprite.LoadBytes(result.Image, grid)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("could not load the generated image: %s", sferrors.UserMessage(err))
	}

	prog.done(fmt.Sprintf("Generated %d frames", sheet.Frames))
	printSheetStats(sheet.Frames, sheet.Dims.Width, sheet.Dims.Height, result.Cached)
	printDetail("ratio %s · frame %.1fx%.1f px", result.Ratio, sheet.Geom.FrameWidth, sheet.Geom.FrameHeight)

	if opts.output != "" {
		if err := os.WriteFile(opts.output, result.Image, 0o644); err != nil {
			return fmt.Errorf("write sheet: %w", err)
		}
		printFile(opts.output)
	}

	if opts.play {
		return runPlayer(ctx, sheet, opts.fps, prompt)
	}
	return nil
}

// applyPlaybackDefaults fills unset flags from the configuration.
func applyPlaybackDefaults(cfg config.Config, columns, rows *int, fps *float64) {
	if *columns == 0 {
		*columns = cfg.Playback.Columns
	}
	if *rows == 0 {
		*rows = cfg.Playback.Rows
	}
	if *fps == 0 {
		*fps = cfg.Playback.FPS
	}
}

// newGenClient builds the generation client with the configured cache
// backend. The returned func releases the cache.
func newGenClient(cfg config.Config, noCache bool) (*gen.Client, func(), error) {
	if noCache {
		return gen.NewClient(cfg.Service.BaseURL, cfg.Service.APIKey), func() {}, nil
	}

	store, err := cfg.OpenCache()
	if err != nil {
		return nil, nil, err
	}
	client := gen.NewClient(cfg.Service.BaseURL, cfg.Service.APIKey,
		gen.WithCache(store, cfg.CacheTTL()))
	return client, func() { _ = store.Close() }, nil
}
