package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixeldrift/spriteforge/internal/config"
	"github.com/pixeldrift/spriteforge/internal/server"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// serve command is interrupted.
const shutdownTimeout = 10 * time.Second

// newServeCmd creates the serve command exposing generation and frame
// geometry over HTTP.
func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sheet generation and frame geometry over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			client, closeCache, err := newGenClient(cfg, false)
			if err != nil {
				return err
			}
			defer closeCache()

			store, err := cfg.OpenCache()
			if err != nil {
				return err
			}
			defer store.Close()

			srv := &http.Server{
				Addr:    cfg.Server.Addr,
				Handler: server.New(logger, client, store).Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}
