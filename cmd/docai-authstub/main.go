// Command docai-authstub is a development stand-in for the identity endpoints
// of the document API. It issues HS256 tokens for accounts kept in memory or
// MongoDB.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/documentai/docai/internal/api"
	"github.com/documentai/docai/internal/core/ports"
	"github.com/documentai/docai/internal/core/service"
	"github.com/documentai/docai/internal/infrastructure/db/memory"
	mongostore "github.com/documentai/docai/internal/infrastructure/db/mongo"
	"github.com/documentai/docai/internal/pkg/config"
	"github.com/documentai/docai/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "docai-authstub"})

	if err := serve(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("authstub stopped")
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	var (
		repo      ports.AuthRepository
		readiness = map[string]ports.Pinger{}
	)

	switch cfg.Stub.Users {
	case config.StorageMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		mongoRepo := mongostore.NewAuthRepository(db)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			return err
		}
		repo = mongoRepo
		readiness["mongodb"] = mongoRepo
	default:
		repo = memory.NewAuthRepository()
	}

	authService := service.NewAuthService(repo, cfg.Stub.JWTSecret, cfg.Stub.TokenTTL)
	e := api.NewAuthStubRouter(authService, cfg.Stub.JWTSecret, readiness, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Stub.Addr).Str("users", cfg.Stub.Users).Msg("identity stub listening")
		errCh <- e.Start(cfg.Stub.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
