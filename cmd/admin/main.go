package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"geojungle/internal/app"
	"geojungle/internal/config"
	transport "geojungle/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.SetupLogging(cfg.LogLevel)

	// The public server owns background work unless this process opts in.
	if _, ok := os.LookupEnv("WORKER_ENABLED"); !ok {
		cfg.WorkerEnabled = false
	}
	if _, ok := os.LookupEnv("CRON_ENABLED"); !ok {
		cfg.CronEnabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialise: %v", err)
	}
	defer a.Close()

	if err := a.StartBackground(ctx); err != nil {
		log.Fatalf("Failed to start background jobs: %v", err)
	}

	srv := transport.NewServer("Admin", cfg.AdminPort, transport.NewAdminRouter(a.RouterConfig()), cfg.ShutdownTimeout)
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("Admin server failed")
	}
}
