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

	router "github.com/vkondrav/pigeon/internal/adapters/http"
	signalws "github.com/vkondrav/pigeon/internal/adapters/signal"
	"github.com/vkondrav/pigeon/internal/app"
	"github.com/vkondrav/pigeon/internal/config"
	"github.com/vkondrav/pigeon/internal/email"
	"github.com/vkondrav/pigeon/internal/media"
	"github.com/vkondrav/pigeon/internal/storage/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Secret == "" {
		log.Fatal().Msg("secret must be configured")
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer store.Close()

	mediaStore, err := media.NewStore(cfg.MediaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.MediaPath).Msg("failed to init media store")
	}

	registry := app.NewRegistry()
	presence := app.NewPresence(registry, store)
	typing := app.NewTyping(registry, cfg.TypingTimeout)
	delivery := app.NewDelivery(registry, store, store)
	calls := app.NewCalls(registry, cfg.RingTimeout)
	statuses := app.NewStatuses(registry, store)

	ws := signalws.NewController(cfg, registry, presence, typing, delivery, calls, store, store)

	h := &router.Handlers{
		Cfg:      cfg,
		Users:    store,
		Convos:   store,
		Messages: store,
		Delivery: delivery,
		Statuses: statuses,
		Media:    mediaStore,
		Mail:     email.New(cfg.ResendAPIKey, cfg.SenderEmail),
	}

	r := router.SetupRouter(cfg, h, ws)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go purgeStatuses(ctx, store)

	go func() {
		log.Info().Str("addr", addr).Msg("pigeon server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited gracefully")
}

// purgeStatuses sweeps expired story posts hourly.
func purgeStatuses(ctx context.Context, store *sqlite.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpiredStatuses(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge statuses")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("expired statuses removed")
			}
		}
	}
}
