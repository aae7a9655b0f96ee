package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"golang.org/x/sync/errgroup"

	"linfer.allora.network/internal/app"
	"linfer.allora.network/internal/appconf"
	"linfer.allora.network/internal/logging"
	"linfer.allora.network/internal/restapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve inferences over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconf.Resolve(cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(stderr, cfg.LogLevel)

			application, err := app.New(cfg, logger, nil, nil)
			if err != nil {
				return err
			}
			api := restapi.NewRestAPI(application)
			atexit.Register(api.Close)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
			if err != nil {
				return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
			}

			g, gctx := errgroup.WithContext(ctx)
			if path, _ := cmd.Flags().GetString(appconf.FlagConfig); path != "" {
				g.Go(func() error {
					watchConfig(gctx, cmd, path, application)
					return nil
				})
			}
			g.Go(func() error {
				logger.Info("starting server", "addr", ln.Addr().String(), "env", cfg.Env.String())
				return serveHTTP(gctx, newServer(api.Handler(), logger), ln, logger)
			})
			return g.Wait()
		},
	}
	cmd.SetFlagErrorFunc(returnFlagError)
	return cmd
}

func newServer(handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

// serveHTTP serves on ln until ctx is done, then drains in-flight requests.
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.LogOperation(logger, "server_stopped")
	return nil
}

// watchConfig reloads the model section whenever the config file changes.
// The full precedence chain is re-resolved so flags and the environment keep
// overriding the file.
func watchConfig(ctx context.Context, cmd *cobra.Command, path string, application *app.Application) {
	load := func() (appconf.Config, error) {
		return appconf.Resolve(cmd.Flags())
	}

	if err := appconf.Watch(ctx, path, load, application.Reload, application.Logger); err != nil {
		logging.LogError(application.Logger, "config watch stopped", err,
			slog.String("path", path))
	}
}
