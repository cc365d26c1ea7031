package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	pg "github.com/lib/pq"

	"fintech/internal/app/apperr"
	"fintech/internal/app/logger"
	"fintech/internal/app/storage"
)

// serialization failures are retried this many times before giving up
const maxAttempts = 3

// storage.Store interface implementation
var _ storage.Store = (*Store)(nil)

type Store struct {
	db *sqlx.DB
}

func (s *Store) LoggerComponent() string {
	return "Postgres.Store"
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Connect opens a connection pool for dsn and checks it
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return db, nil
}

// View implementation of interface storage.Store
func (s *Store) View(ctx context.Context, fn func(storage.Unit) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return apperr.Storage("tx begin", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	return fn(&unit{tx: tx})
}

// Update implementation of interface storage.Store
func (s *Store) Update(ctx context.Context, fn func(storage.Unit) error) error {
	l := logger.Get(ctx, s)

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.update(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
		l.Debug().Err(err).Int("attempt", attempt).Msg("Serialization failure, retrying")
	}

	return err
}

func (s *Store) update(ctx context.Context, fn func(storage.Unit) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return apperr.Storage("tx begin", err)
	}

	if err := fn(&unit{tx: tx, lock: true}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return err
		}
		return apperr.Storage("tx commit", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isSerializationFailure(err error) bool {
	var pgErr *pg.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code) == pgerrcode.SerializationFailure
	}
	return false
}

func isIntegrityViolation(err error) bool {
	var pgErr *pg.Error
	if errors.As(err, &pgErr) {
		return pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code))
	}
	return false
}
