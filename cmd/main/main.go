package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hydro-harmonizer/internal/config"
	harmHnd "hydro-harmonizer/internal/harmonize/handler"
	serverhttp "hydro-harmonizer/server/http"
)

func main() {
	cfg := config.Load()
	logger := config.SetupLogger(cfg)

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("profile")
	}
	deps, err := harmHnd.NewDeps(cfg, profile, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init")
	}

	r := serverhttp.NewRouter(deps, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("addr", cfg.Addr()).Str("profile", cfg.ProfilePath).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info().Msg("bye")
}
