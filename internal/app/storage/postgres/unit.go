package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fintech/internal/app/apperr"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
)

// storage.Unit interface implementation
var _ storage.Unit = (*unit)(nil)

type unit struct {
	tx *sqlx.Tx
	// lock selected user rows until commit
	lock bool
}

const userColumns = `id, username, password, balance, pin, created_at`

func (u *unit) forUpdate() string {
	if u.lock {
		return " FOR UPDATE"
	}
	return ""
}

// User implementation of interface storage.Unit
func (u *unit) User(ctx context.Context, id string) (*model.User, error) {
	SQL := `SELECT ` + userColumns + ` FROM users WHERE id=$1` + u.forUpdate()
	return u.getUser(ctx, SQL, id)
}

// UserByName implementation of interface storage.Unit
func (u *unit) UserByName(ctx context.Context, name string) (*model.User, error) {
	SQL := `SELECT ` + userColumns + ` FROM users WHERE username=$1` + u.forUpdate()
	return u.getUser(ctx, SQL, name)
}

func (u *unit) getUser(ctx context.Context, SQL string, arg interface{}) (*model.User, error) {
	m := &model.User{}
	if err := u.tx.GetContext(ctx, m, SQL, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, wrap("select user", err)
	}
	return m, nil
}

// CreateUser implementation of interface storage.Unit
func (u *unit) CreateUser(ctx context.Context, m *model.User) error {
	const SQL = `
		INSERT INTO users (id, username, password, balance, pin, created_at)
		VALUES (:id, :username, :password, :balance, :pin, :created_at)
`
	if _, err := u.tx.NamedExecContext(ctx, SQL, m); err != nil {
		if isIntegrityViolation(err) {
			return fmt.Errorf("create user %q: %w", m.Username, apperr.ErrConflict)
		}
		return wrap("insert user", err)
	}
	return nil
}

// UpdateUser implementation of interface storage.Unit
func (u *unit) UpdateUser(ctx context.Context, m *model.User) error {
	const SQL = `
		UPDATE users
		SET username=:username, password=:password, balance=:balance, pin=:pin
		WHERE id=:id
`
	res, err := u.tx.NamedExecContext(ctx, SQL, m)
	if err != nil {
		if isIntegrityViolation(err) {
			return fmt.Errorf("update user %q: %w", m.Username, apperr.ErrConflict)
		}
		return wrap("update user", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrap("rows affected", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// AppendTransaction implementation of interface storage.Unit
func (u *unit) AppendTransaction(ctx context.Context, m *model.Transaction) error {
	const SQL = `
		INSERT INTO transactions (id, from_user_id, from_username, to_user_id, to_username, amount, created_at)
		VALUES (:id, :from_user_id, :from_username, :to_user_id, :to_username, :amount, :created_at)
`
	if _, err := u.tx.NamedExecContext(ctx, SQL, m); err != nil {
		if isIntegrityViolation(err) {
			return fmt.Errorf("append transaction %q: %w", m.ID, apperr.ErrConflict)
		}
		return wrap("insert transaction", err)
	}
	return nil
}

// TransactionsByUserID implementation of interface storage.Unit
func (u *unit) TransactionsByUserID(ctx context.Context, userID string) ([]*model.Transaction, error) {
	const SQL = `
		SELECT id, from_user_id, from_username, to_user_id, to_username, amount, created_at
		FROM transactions
		WHERE from_user_id=$1 OR to_user_id=$1
		ORDER BY seq
`
	res := make([]*model.Transaction, 0)
	if err := u.tx.SelectContext(ctx, &res, SQL, userID); err != nil {
		return nil, wrap("select transactions", err)
	}
	return res, nil
}

// wrap keeps serialization failures retryable and turns everything else into a storage error
func wrap(op string, err error) error {
	if isSerializationFailure(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperr.Storage(op, err)
}
