package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdimtricp/lostfound/internal/ai"
	"github.com/kdimtricp/lostfound/internal/api"
	"github.com/kdimtricp/lostfound/internal/config"
	"github.com/kdimtricp/lostfound/internal/controller"
	"github.com/kdimtricp/lostfound/internal/logging"
	"github.com/kdimtricp/lostfound/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Campus Lost & Found web service",
	Long: `Serves the lost & found web app. Reports are analysed by the configured
AI provider (gemini, openai or stub) and kept in memory per browser session.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := ai.NewClient(ctx, &cfg.AI, logger)
	if err != nil {
		logger.Error("Failed to initialize AI provider", zap.Error(err))
		return err
	}

	sessions, err := session.NewManager(client, session.Config{
		Backend:     cfg.Store.Backend,
		IdleTimeout: cfg.Store.SessionIdleTimeout,
		Logger:      logger,
		Controller: controller.Options{
			Logger:       logger,
			CallTimeout:  cfg.AI.Timeout,
			MaxImageSize: cfg.MaxImageSize,
		},
	})
	if err != nil {
		return err
	}
	defer sessions.Close()

	app := &api.App{
		Sessions:      sessions,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	}

	srv := newServer(":"+cfg.Port, api.NewRouter(app))

	logger.Info("Server starting",
		zap.String("port", cfg.Port),
		zap.String("provider", client.SourceName()),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Int64("max_upload_size", cfg.MaxUploadSize),
		zap.Int64("max_image_size", cfg.MaxImageSize))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newServer builds the HTTP server. Request contexts end as soon as Shutdown
// starts, so open event streams return instead of holding the drain.
func newServer(addr string, handler http.Handler) *http.Server {
	baseCtx, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}
