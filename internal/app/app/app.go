package app

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"fintech/internal/app/config"
	"fintech/internal/app/events"
	"fintech/internal/app/logger"
	"fintech/internal/app/service/account"
	"fintech/internal/app/service/history"
	"fintech/internal/app/service/transfer"
	"fintech/internal/app/session"
	"fintech/internal/app/storage"
	"fintech/internal/app/storage/bolt"
	"fintech/internal/app/storage/jsonfile"
	"fintech/internal/app/storage/postgres"
)

type App struct {
	config    config.Config
	logger    logger.Logger
	store     storage.Store
	accounts  *account.Service
	transfers *transfer.Service
	history   *history.Service
	session   session.Manager
	publisher events.Publisher
	closers   []func() error
	stopOnce  sync.Once
}

func New(ctx context.Context, cfg config.Config, l logger.Logger, migrations embed.FS) (*App, error) {
	a := &App{
		config: cfg,
		logger: l,
	}

	store, err := a.openStore(ctx, migrations)
	if err != nil {
		return nil, fmt.Errorf("store init: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	a.publisher = events.Nop{}
	if cfg.Events.NatsURL != "" {
		p, err := events.NewNATS(cfg.Events.NatsURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("events init: %w", err)
		}
		a.publisher = p
		a.closers = append(a.closers, p.Close)
	}

	a.accounts = account.New(store, account.WithHashCost(cfg.BcryptCost))
	a.transfers = transfer.New(store, transfer.WithPublisher(a.publisher))
	a.history = history.New(store)

	sm, err := a.openSession(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("session init: %w", err)
	}
	a.session = sm

	return a, nil
}

func (a *App) openStore(ctx context.Context, migrations embed.FS) (storage.Store, error) {
	l := a.logger.With().Str("driver", a.config.Storage.Driver).Logger()

	switch a.config.Storage.Driver {
	case config.StorageBolt:
		l.Info().Str("path", a.config.Storage.BoltPath).Msg("Opening store")
		return bolt.New(a.config.Storage.BoltPath)
	case config.StoragePostgres:
		l.Info().Msg("Opening store")
		db, err := postgres.Connect(ctx, a.config.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := applyMigrations(migrations, db.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		return postgres.New(db), nil
	default:
		l.Info().Str("dir", a.config.Storage.DataDir).Msg("Opening store")
		return jsonfile.New(a.config.Storage.DataDir, jsonfile.WithLogger(a.logger))
	}
}

func (a *App) openSession(ctx context.Context) (session.Manager, error) {
	opts := []session.Option{session.WithLifetime(a.config.Session.Lifetime)}

	if a.config.Session.Backend != config.SessionRedis {
		return session.NewMemory(a.config.SecretKey, a.accounts, opts...), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	return session.NewRedis(client, a.config.SecretKey, a.accounts, opts...), nil
}

// close releases resources in reverse order of acquisition
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
}

// Stop releases the store and connections, waiting for the running store unit
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.logger.Info().Msg("Shutting down application")
		a.close()
	})
}
