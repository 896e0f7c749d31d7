package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pageblocks/api/internal/app"
	"pageblocks/api/internal/config"
	"pageblocks/api/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(os.Stderr, cfg.LogLevel)
	ctx := context.Background()

	rt, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()

	if err := rt.Service.Bootstrap(ctx); err != nil {
		log.Warn().Err(err).Msg("bootstrap error (will retry on next restart)")
	}

	httpServer := app.NewHTTPServer(rt.Service, cfg.CORSOrigin, rt.Hub, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// no WriteTimeout: /api/listen holds websocket connections open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("page blocks API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt.Hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
