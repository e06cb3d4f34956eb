package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Vote/internal/adapters/http"
	"github.com/dkeye/Vote/internal/app"
	"github.com/dkeye/Vote/internal/app/orch"
	"github.com/dkeye/Vote/internal/config"
	"github.com/dkeye/Vote/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	switch cfg.Mode {
	case "release":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	rooms := app.NewRoomRegistry()
	o := &orch.Orchestrator{
		Sessions: app.NewSessions(),
		Engine:   app.NewEngine(rooms),
		Policy:   app.SimplePolicy{},
		Defaults: domain.RoomOptions{
			ParticipantLimit: cfg.Room.ParticipantLimit,
			HostControlled:   cfg.Room.HostControlled,
		},
		ChatMaxLen: cfg.Chat.MaxLength,
	}
	sweeper := &app.Sweeper{
		Rooms:       rooms,
		Interval:    cfg.Room.SweepInterval,
		IdleTimeout: cfg.Room.IdleTimeout,
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Vote server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}
