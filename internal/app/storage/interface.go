package storage

import (
	"context"
	"errors"

	"fintech/internal/app/model"
)

// ErrClosed is returned for units submitted to a closed store
var ErrClosed = errors.New("store closed")

// Unit is a consistent view of users and the ledger.
// Inside Store.Update it is the only way to change either.
type Unit interface {
	// User by id, apperr.ErrNotFound if absent
	User(ctx context.Context, id string) (*model.User, error)
	// UserByName by exact username, apperr.ErrNotFound if absent
	UserByName(ctx context.Context, name string) (*model.User, error)
	// CreateUser a new model.User, apperr.ErrConflict if the username is taken
	CreateUser(ctx context.Context, m *model.User) error
	// UpdateUser replaces the stored user with the same id
	UpdateUser(ctx context.Context, m *model.User) error
	// AppendTransaction to the ledger
	AppendTransaction(ctx context.Context, m *model.Transaction) error
	// TransactionsByUserID returns records where the user is sender or recipient, in ledger order
	TransactionsByUserID(ctx context.Context, userID string) ([]*model.Transaction, error)
}

type Store interface {
	// View runs fn against a read-only unit
	View(ctx context.Context, fn func(Unit) error) error
	// Update runs fn in a serialized unit; changes persist only when fn returns nil
	Update(ctx context.Context, fn func(Unit) error) error
	// Close releases the store
	Close() error
}
