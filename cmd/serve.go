package cmd

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

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-skip/internal/config"
	"github.com/Taichi-iskw/yt-skip/internal/handler"
	"github.com/Taichi-iskw/yt-skip/internal/service/cache"
	"github.com/Taichi-iskw/yt-skip/internal/service/coordinator"
	"github.com/Taichi-iskw/yt-skip/internal/service/notify"
	"github.com/Taichi-iskw/yt-skip/internal/service/settings"
	"github.com/Taichi-iskw/yt-skip/internal/service/waiter"
)

// serveCmd runs the local daemon
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis daemon",
	Long: `Run the local HTTP daemon player tabs and the automation surface talk to.
Requests are answered from the cache when possible; otherwise they are queued
for the configured analysis engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ListenAddr = addr
		}
		logger := setupLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		built, err := buildEngine(cfg, logger)
		if err != nil {
			return err
		}

		hub := notify.NewHub()
		notifier := notify.NewNotifier(hub, logger)
		timelineCache := cache.New(store, logger)
		prefs := settings.NewService(store, logger)
		defer prefs.Watch(notifier.SettingsChanged)()
		go hub.RunExpiry(ctx, cfg.SessionIdleTimeout.Std(), time.Minute)

		coord := coordinator.New(
			timelineCache,
			waiter.NewRegistry(),
			notifier,
			built.engine,
			coordinator.Options{
				ReadyTimeout:    cfg.Engine.ReadyTimeout.Std(),
				ResponseTimeout: cfg.Engine.ResponseTimeout.Std(),
				Logger:          logger,
			},
		)
		defer coord.Close()

		h := &handler.Handler{
			Coordinator: coord,
			Cache:       timelineCache,
			Settings:    prefs,
			Hub:         hub,
			Logger:      logger,
		}
		if built.automation != nil {
			h.Automation = built.automation
		}

		// No WriteTimeout: event streams stay open for the life of a tab.
		// Request contexts end with ctx so streams close on shutdown.
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler.Wrap(h.Router(), cfg.AllowedOrigins, os.Stderr),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("daemon listening", "addr", cfg.ListenAddr, "engine", cfg.Engine.Kind, "storage", cfg.Storage.Driver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutdown signal received, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		logger.Info("server stopped cleanly")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides listen_addr)")
	rootCmd.AddCommand(serveCmd)
}
