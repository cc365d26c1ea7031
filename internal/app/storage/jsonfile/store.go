// Package jsonfile keeps users and the ledger in two flat JSON files.
//
// Every unit of work (read or read-modify-write) runs on a single writer
// goroutine, so units never interleave. A unit reads the full files, works on
// the in-memory copy and writes the files back only if it succeeded.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"fintech/internal/app/apperr"
	"fintech/internal/app/logger"
	"fintech/internal/app/storage"
)

type Collection string

const (
	Users        Collection = "users"
	Transactions Collection = "transactions"
)

// storage.Store interface implementation
var _ storage.Store = (*Store)(nil)

type Store struct {
	dir    string
	logger logger.Logger

	jobs   chan job
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

type job struct {
	ctx  context.Context
	fn   func() error
	done chan error
}

type Option func(*Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func (s *Store) LoggerComponent() string {
	return "JSONFile.Store"
}

// New opens the store in dir, creating the directory and empty collections if absent.
// Existing collections must decode.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:    dir,
		logger: *logger.Global(),
		jobs:   make(chan job),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.Component(s)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Storage("data dir", err)
	}

	for _, c := range []Collection{Users, Transactions} {
		_, err := os.Stat(s.path(c))
		if errors.Is(err, fs.ErrNotExist) {
			if err := s.Write(c, []struct{}{}); err != nil {
				return nil, err
			}
			s.logger.Info().Str("collection", string(c)).Msg("Created empty collection")
		}
	}

	// corrupt files are reported here rather than on the first request
	u := newUnit(s, true)
	if err := u.loadUsers(); err != nil {
		return nil, err
	}
	if err := u.loadTransactions(); err != nil {
		return nil, err
	}

	go s.run()

	return s, nil
}

func (s *Store) path(c Collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

// Read collection c into v. An absent file leaves v untouched.
func (s *Store) Read(c Collection, v interface{}) error {
	l := s.logger.With().Str("collection", string(c)).Logger()

	b, err := os.ReadFile(s.path(c))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		l.Error().Err(err).Msg("Read failed")
		return apperr.Storage("read "+string(c), err)
	}

	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}

	if err := json.Unmarshal(b, v); err != nil {
		l.Error().Err(err).Msg("Decode failed")
		return apperr.Storage("decode "+string(c), err)
	}

	return nil
}

// Write overwrites collection c with data
func (s *Store) Write(c Collection, data interface{}) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return apperr.Storage("encode "+string(c), err)
	}

	if err := s.writeRaw(c, b); err != nil {
		s.logger.Error().Err(err).Str("collection", string(c)).Msg("Write failed")
		return apperr.Storage("write "+string(c), err)
	}

	return nil
}

// writeRaw replaces the file through a temp file and rename
func (s *Store) writeRaw(c Collection, b []byte) error {
	f, err := os.CreateTemp(s.dir, string(c)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, s.path(c)); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}

// View runs fn against a read-only unit
func (s *Store) View(ctx context.Context, fn func(storage.Unit) error) error {
	return s.do(ctx, func() error {
		return fn(newUnit(s, true))
	})
}

// Update runs fn and writes back whatever it changed, unless fn failed
func (s *Store) Update(ctx context.Context, fn func(storage.Unit) error) error {
	return s.do(ctx, func() error {
		u := newUnit(s, false)
		if err := fn(u); err != nil {
			return err
		}
		return s.commit(u)
	})
}

func (s *Store) commit(u *unit) error {
	var prevUsers []byte
	if u.usersDirty {
		b, err := os.ReadFile(s.path(Users))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperr.Storage("read users", err)
		}
		prevUsers = b

		if err := s.Write(Users, u.users); err != nil {
			return err
		}
	}

	if u.transactionsDirty {
		if err := s.Write(Transactions, u.transactions); err != nil {
			if u.usersDirty && prevUsers != nil {
				if rerr := s.writeRaw(Users, prevUsers); rerr != nil {
					s.logger.Error().Err(rerr).Msg("Users restore failed")
				}
			}
			return err
		}
	}

	return nil
}

// Close stops the writer after the running unit finishes
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
	return nil
}

func (s *Store) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case j := <-s.jobs:
			j.done <- s.exec(j)
		}
	}
}

func (s *Store) exec(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Unit panicked")
			err = fmt.Errorf("unit panic: %v", r)
		}
	}()

	// the caller gave up while queued
	if err := j.ctx.Err(); err != nil {
		return err
	}

	return j.fn()
}

// do queues fn for the writer and waits for its result
func (s *Store) do(ctx context.Context, fn func() error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-s.stopCh:
		return storage.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.jobs <- j:
	}

	return <-j.done
}
