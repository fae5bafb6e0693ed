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

	srv := transport.NewServer("API", cfg.ServerPort, transport.NewRouter(a.RouterConfig()), cfg.ShutdownTimeout)
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("Server failed")
	}
}
