package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/krockxz/mailflow-relay/internal/api"
	"github.com/krockxz/mailflow-relay/internal/build"
	"github.com/krockxz/mailflow-relay/internal/config"
	"github.com/krockxz/mailflow-relay/internal/logger"
	"github.com/krockxz/mailflow-relay/internal/relay"
	"github.com/krockxz/mailflow-relay/internal/server"
)

// NewServeCmd returns the "serve" subcommand that starts the relay server.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the push notification relay server",
		Long: `Start the relay HTTP server: POST /webhook receives Gmail Pub/Sub
deliveries, GET /events serves cursor-based backfill, and GET /sse streams
new-mail events to connected browser tabs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	return cmd
}

func runServe(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, err := logger.New(cfg.LogDir, cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	log.Info("mailflow relay starting",
		slog.Int("port", cfg.Port),
		slog.String("event_store", cfg.EventStoreURL),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
	)
	if cfg.VerificationToken == "" {
		log.Warn("no verification token configured, webhook signatures will NOT be checked")
	}

	store, err := relay.NewStoreFromURL(cfg.EventStoreURL, relay.StoreOptions{
		MaxEvents: cfg.MaxEvents,
		TTL:       cfg.EventTTL,
	})
	if err != nil {
		return fmt.Errorf("creating event store: %w", err)
	}
	defer func() { _ = store.Close() }()

	// SQL backends enforce the collection TTL lazily on reads; a periodic
	// sweep keeps an idle deployment from holding expired rows.
	if sweeper, ok := store.(relay.Sweeper); ok {
		scheduler, err := startSweeper(ctx, sweeper, cfg.EventTTL, log)
		if err != nil {
			return fmt.Errorf("starting store sweeper: %w", err)
		}
		defer func() { _ = scheduler.Shutdown() }()
	}

	apiSrv := api.New(store, cfg, log)
	srv := server.New(apiSrv, cfg.Port, cfg.CORSAllowedOrigins, log)

	log.Info("server ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	return srv.Run(ctx)
}

// startSweeper schedules a TTL sweep at half the TTL interval.
func startSweeper(ctx context.Context, sweeper relay.Sweeper, ttl time.Duration, log *slog.Logger) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			live, err := sweeper.Sweep(ctx)
			if err != nil {
				log.Error("event store sweep failed", "error", err)
				return
			}
			log.Debug("event store swept", "live_events", live)
		}),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}

	scheduler.Start()
	return scheduler, nil
}
