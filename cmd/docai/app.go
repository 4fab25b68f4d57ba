package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/documentai/docai/internal/api/metrics"
	"github.com/documentai/docai/internal/core/ports"
	"github.com/documentai/docai/internal/core/service"
	boltstore "github.com/documentai/docai/internal/infrastructure/db/bolt"
	memstore "github.com/documentai/docai/internal/infrastructure/db/memory"
	mongostore "github.com/documentai/docai/internal/infrastructure/db/mongo"
	redisstore "github.com/documentai/docai/internal/infrastructure/db/redis"
	"github.com/documentai/docai/internal/infrastructure/http/client"
	"github.com/documentai/docai/internal/infrastructure/queue"
	"github.com/documentai/docai/internal/pkg/config"
)

// sessionStorage is a key/value backend that can also report its health.
type sessionStorage interface {
	ports.KeyValueStore
	ports.Pinger
}

// app holds the wiring shared by every command.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	storage    sessionStorage
	session    *service.SessionStore
	documents  *service.DocumentService
	dispatcher *queue.Dispatcher

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: log, stdin: stdin, stdout: stdout, stderr: stderr}

	storage, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	a.storage = storage

	hc := client.NewHTTPClient(cfg.HTTPTimeout)
	authClient, err := client.NewAuthClient(cfg.APIURL, hc)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.session = service.NewSessionStore(authClient, storage, log,
		service.WithObserver(metrics.SessionObserver{}),
		service.WithCredentialCapture(cfg.CaptureToken),
	)
	a.session.Initialize(ctx)

	docClient, err := client.NewDocumentClient(cfg.APIURL, hc, a.session, cfg.RateLimit)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.documents = service.NewDocumentService(docClient, log, 0)
	a.dispatcher = queue.NewDispatcher(cfg.UploadWorkers, a.documents, log)

	return a, nil
}

// openStorage connects the configured backend for the session keys.
func (a *app) openStorage(ctx context.Context) (sessionStorage, error) {
	cfg := a.cfg
	switch cfg.Storage {
	case config.StorageMemory:
		return memstore.NewKVStore(), nil

	case config.StorageRedis:
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return redisstore.NewKVStore(rdb, cfg.Redis.Prefix, cfg.Redis.TTL), nil

	case config.StorageMongo:
		mc, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return mc.Disconnect(context.Background()) })
		return mongostore.NewKVStore(db), nil

	case config.StorageBolt:
		db, err := boltstore.Open(boltstore.Config{Path: cfg.Bolt.Path})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return boltstore.NewKVStore(db), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}

// Close releases the storage connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close storage")
		}
	}
	a.closers = nil
}
