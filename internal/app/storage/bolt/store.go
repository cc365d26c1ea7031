// Package bolt stores users and the ledger in an embedded bolt database.
// Store.Update maps onto a bolt write transaction, so units are serialized and
// all-or-nothing.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"fintech/internal/app/apperr"
	"fintech/internal/app/logger"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
)

var (
	bucketUsers        = []byte("users")
	bucketUsernames    = []byte("usernames")
	bucketTransactions = []byte("transactions")
)

// storage.Store interface implementation
var _ storage.Store = (*Store)(nil)

type Store struct {
	db     *bolt.DB
	logger logger.Logger
}

func (s *Store) LoggerComponent() string {
	return "Bolt.Store"
}

// New opens (or creates) the database file at path
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Storage("bolt dir", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, apperr.Storage("bolt open", err)
	}

	s := &Store{db: db}
	s.logger = logger.Global().Component(s)

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketUsers, bucketUsernames, bucketTransactions} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, apperr.Storage("bolt init", err)
	}

	s.logger.Info().Str("path", path).Msg("Opened")

	return s, nil
}

func (s *Store) View(ctx context.Context, fn func(storage.Unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&unit{tx: tx})
	})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&unit{tx: tx})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// storage.Unit interface implementation
var _ storage.Unit = (*unit)(nil)

type unit struct {
	tx *bolt.Tx
}

func (u *unit) User(ctx context.Context, id string) (*model.User, error) {
	raw := u.tx.Bucket(bucketUsers).Get([]byte(id))
	if raw == nil {
		return nil, apperr.ErrNotFound
	}

	m := &model.User{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, apperr.Storage("decode user", err)
	}
	return m, nil
}

func (u *unit) UserByName(ctx context.Context, name string) (*model.User, error) {
	id := u.tx.Bucket(bucketUsernames).Get([]byte(name))
	if id == nil {
		return nil, apperr.ErrNotFound
	}
	return u.User(ctx, string(id))
}

func (u *unit) CreateUser(ctx context.Context, m *model.User) error {
	names := u.tx.Bucket(bucketUsernames)
	if names.Get([]byte(m.Username)) != nil {
		return fmt.Errorf("create user %q: %w", m.Username, apperr.ErrConflict)
	}
	if u.tx.Bucket(bucketUsers).Get([]byte(m.ID)) != nil {
		return fmt.Errorf("create user id %q: %w", m.ID, apperr.ErrConflict)
	}

	if err := names.Put([]byte(m.Username), []byte(m.ID)); err != nil {
		return storageErr("put username", err)
	}
	return u.putUser(m)
}

func (u *unit) UpdateUser(ctx context.Context, m *model.User) error {
	prev, err := u.User(ctx, m.ID)
	if err != nil {
		return err
	}

	if prev.Username != m.Username {
		names := u.tx.Bucket(bucketUsernames)
		if names.Get([]byte(m.Username)) != nil {
			return fmt.Errorf("rename user %q: %w", m.Username, apperr.ErrConflict)
		}
		if err := names.Delete([]byte(prev.Username)); err != nil {
			return storageErr("delete username", err)
		}
		if err := names.Put([]byte(m.Username), []byte(m.ID)); err != nil {
			return storageErr("put username", err)
		}
	}

	return u.putUser(m)
}

func (u *unit) putUser(m *model.User) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return apperr.Storage("encode user", err)
	}
	if err := u.tx.Bucket(bucketUsers).Put([]byte(m.ID), raw); err != nil {
		return storageErr("put user", err)
	}
	return nil
}

func (u *unit) AppendTransaction(ctx context.Context, m *model.Transaction) error {
	b := u.tx.Bucket(bucketTransactions)

	seq, err := b.NextSequence()
	if err != nil {
		return storageErr("next sequence", err)
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return apperr.Storage("encode transaction", err)
	}

	if err := b.Put(itob(seq), raw); err != nil {
		return storageErr("put transaction", err)
	}
	return nil
}

func (u *unit) TransactionsByUserID(ctx context.Context, userID string) ([]*model.Transaction, error) {
	res := make([]*model.Transaction, 0)

	err := u.tx.Bucket(bucketTransactions).ForEach(func(k, v []byte) error {
		m := &model.Transaction{}
		if err := json.Unmarshal(v, m); err != nil {
			return apperr.Storage("decode transaction", err)
		}
		if m.Involves(userID) {
			res = append(res, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// storageErr keeps bolt's read-only error distinguishable from I/O failures
func storageErr(op string, err error) error {
	if errors.Is(err, bolt.ErrTxNotWritable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperr.Storage(op, err)
}

// itob encodes sequence numbers so keys sort in append order
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
