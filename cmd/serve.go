package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/senyabanana/engagement-service/internal/auth"
	"github.com/senyabanana/engagement-service/internal/events"
	"github.com/senyabanana/engagement-service/internal/handlers"
	"github.com/senyabanana/engagement-service/internal/repository"
	"github.com/senyabanana/engagement-service/internal/router"
	"github.com/senyabanana/engagement-service/internal/router/config"
	"github.com/senyabanana/engagement-service/internal/services"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server and event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withStore(ctx, func(cfg config.Config, store repository.Store) error {
				return serve(ctx, cfg, store)
			})
		},
	}
}

func newPublisher(cfg config.Config, logger *log.Logger) (events.Publisher, error) {
	if cfg.RedisURL == "" {
		logger.Println("REDIS_URL is not set, domain events go to the log")
		return events.LogPublisher{Logger: logger}, nil
	}
	return events.NewRedisPublisher(cfg.RedisURL, cfg.EventsStream)
}

func serve(ctx context.Context, cfg config.Config, store repository.Store) error {
	logger := newLogger()

	if cfg.JWTSecret == "" && !cfg.AllowActorHeader {
		return errors.New("JWT_SECRET is required unless ALLOW_ACTOR_HEADER is set")
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	requestService := services.NewRequestService(store, logger)
	negotiationService := services.NewNegotiationService(store, logger)

	requestHandler := handlers.NewRequestHandler(requestService, logger, cfg.RequestTimeout)
	negotiationHandler := handlers.NewNegotiationHandler(negotiationService, logger, cfg.RequestTimeout)

	routes := router.InitRoutes(requestHandler, negotiationHandler, auth.Config{
		JWTSecret:        cfg.JWTSecret,
		AllowActorHeader: cfg.AllowActorHeader,
		Logger:           logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	relay := events.NewRelay(store, publisher, logger, cfg.RelayInterval, cfg.RelayBatchSize)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		runRelay(ctx, relay, logger)
	}()

	srv := &http.Server{Addr: cfg.ServerAddress, Handler: routes}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("WARN: server shutdown: %v", err)
		}
	}()

	logger.Printf("server is listening on %s (storage: %s)...", cfg.ServerAddress, cfg.StorageDriver)
	err = srv.ListenAndServe()
	cancel()
	<-relayDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runRelay крутит relay до отмены контекста. Штатная остановка не логируется.
func runRelay(ctx context.Context, relay *events.Relay, logger *log.Logger) {
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("WARN: event relay stopped: %v", err)
	}
}
