package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"civicrank/leaderboard"
)

func main() {
	gin.SetMode(gin.ReleaseMode)
	ctx := context.Background()
	app, cleanup, err := BuildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := app.Config
	log := app.Logger

	log.Info("starting civicrank server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter)

	if cfg.Engine.SeedLevels {
		levels, err := app.Service.EnsureDefaultLevels(ctx)
		if err != nil {
			log.Error("failed to seed levels", "error", err)
			os.Exit(1)
		}
		log.Info("level ladder ready", "levels", len(levels))
	}

	seeded, err := leaderboard.Seed(ctx, app.Leaderboard, app.Service, cfg.Engine.LeaderboardSize)
	if err != nil {
		log.Error("failed to load leaderboard", "error", err)
		os.Exit(1)
	}
	log.Info("leaderboard loaded", "users", seeded)

	if app.Scheduler != nil {
		app.Scheduler.Start()
		defer app.Scheduler.Stop()
	}

	srv := app.Server
	go func() {
		log.Info("server listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during server shutdown", "error", err)
		return
	}
	log.Info("server stopped")
}
