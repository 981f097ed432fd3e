package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tcontas-backend/internal/bootstrap"
	"tcontas-backend/internal/shared/config"
	"tcontas-backend/internal/shared/storage/db"
	"tcontas-backend/internal/shared/telemetry"
	"tcontas-backend/internal/sweeper"
)

const defaultInterval = time.Hour

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	dryRun := flag.Bool("dry-run", false, "report orphans without deleting them")
	flag.Parse()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildContext(ctx, cfg, bootstrap.WithDBOptions(db.OptionsFromEnv(db.DefaultSweeperOptions())))
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()
	// Without a database every object would look orphaned.
	if app.DB == nil {
		log.Fatal("DATABASE_URL is required for the sweeper")
	}

	sw := &sweeper.Sweeper{
		Store:  app.Store,
		Index:  app.DocumentsRepo,
		Prefix: cfg.SweepPrefix,
		Grace:  cfg.SweepGrace,
		DryRun: *dryRun,
	}

	interval := cfg.SweepEvery
	if interval <= 0 {
		interval = defaultInterval
	}
	telemetry.Info("sweeper.started", map[string]any{"interval": interval.String(), "once": *once, "dryRun": *dryRun})
	runLoop(ctx, interval, *once, func(ctx context.Context) error {
		_, err := sw.Run(ctx)
		return err
	})
	telemetry.Info("sweeper.stopped", nil)
}

// runLoop runs pass immediately and then on every tick until ctx is done.
// Failed passes are logged and retried on the next tick.
func runLoop(ctx context.Context, interval time.Duration, once bool, pass func(context.Context) error) {
	runPass := func() {
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			telemetry.Error("sweeper.pass_failed", map[string]any{"error": err.Error()})
		}
	}

	runPass()
	if once {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runPass()
		}
	}
}
