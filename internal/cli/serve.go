package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dupcheck/internal/handler"
	"dupcheck/internal/logging"
	"dupcheck/internal/router"
	"dupcheck/internal/service"
)

// runHistory is how many check runs the review server keeps in memory.
const runHistory = 50

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local review server",
		Long: `Serve starts an HTTP API for uploading candidate batches, reviewing
duplicate decisions, downloading reports and merging unique invoices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(root, func(a *app) error {
				if addr != "" {
					a.cfg.Server.Port = addr
				}
				return runServe(cmd.Context(), a)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.port from config)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	if a.cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := a.checkService(true, false)
	if err != nil {
		return err
	}

	checkH := handler.NewCheckHandler(svc, service.NewRunRegistry(runHistory), a.cfg.Server.MaxUploadMB*1024*1024)
	healthH := handler.NewHealthHandler(a.store)
	logger := logging.WithComponent(a.logger, "http")

	srv := &http.Server{
		Addr:         a.cfg.Server.Port,
		Handler:      router.Setup(logger, a.cfg.CORS.AllowedOrigins, checkH, healthH),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("review server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("review server stopped")
	return nil
}
