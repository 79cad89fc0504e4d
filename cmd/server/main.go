package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/huddlewire/signaling/internal/adapters"
	router "github.com/huddlewire/signaling/internal/adapters/http"
	"github.com/huddlewire/signaling/internal/app"
	"github.com/huddlewire/signaling/internal/bridge"
	"github.com/huddlewire/signaling/internal/config"
	"github.com/huddlewire/signaling/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	store := core.NewStore(ctx, cfg.EmptyEvictionDelay, cfg.SessionTTL)
	defer store.Close()

	var bus core.Bus = bridge.NopBus{}
	if cfg.RedisURL != "" {
		rb, err := bridge.NewRedisBus(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect fan-out bus")
		}
		bus = rb
		log.Info().Str("instance", cfg.InstanceID).Msg("fan-out bridge enabled")
	}
	defer bus.Close()

	hub := adapters.NewHub()
	registry := app.NewRegistry(cfg.LivenessTimeout)

	orch := &app.Orchestrator{
		InstanceID: cfg.InstanceID,
		Store:      store,
		Registry:   registry,
		Transport:  hub,
		Bus:        bus,
	}
	registry.OnExpire(orch.Disconnect)

	if err := orch.StartBridge(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe fan-out bridge")
	}

	sweeper := &app.Sweeper{Orch: orch, Period: cfg.SweepPeriod}
	go sweeper.Run(ctx)

	relay := app.NewRelay(hub)
	ctl := adapters.NewSignalController(cfg, hub, orch, relay)

	r := router.SetupRouter(ctx, cfg, orch, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
