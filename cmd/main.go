// Package main runs the envelope budget API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-petr/pet-budget/cmd/httpserver"
	"github.com/go-petr/pet-budget/internal/middleware"
	"github.com/go-petr/pet-budget/pkg/configpkg"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	logger := middleware.CreateLogger(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := httpserver.OpenStore(config)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", config.StoreBackend).Msg("cannot open store")
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("cannot close store")
		}
	}()

	cache, redisClient, err := httpserver.OpenCache(ctx, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to cache")
	}

	if redisClient != nil {
		defer redisClient.Close()
	}

	server, err := httpserver.New(store, cache, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	srv := &http.Server{
		Addr:    config.ServerAddress,
		Handler: server,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("address", config.ServerAddress).
			Str("backend", config.StoreBackend).
			Msg("BUDGET API SERVER HAS STARTED")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}
}
