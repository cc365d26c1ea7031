package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	pg "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fintech/internal/app/apperr"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return New(sqlx.NewDb(db, "postgres")), mock
}

var userCols = []string{"id", "username", "password", "balance", "pin", "created_at"}

func TestUserByNameLocksInUpdate(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE username=\$1 FOR UPDATE`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("a1", "alice", "hash", "950.50", "", created))
	mock.ExpectCommit()

	var got *model.User
	err := s.Update(ctx, func(u storage.Unit) error {
		var err error
		got, err = u.UserByName(ctx, "alice")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "a1", got.ID)
	require.True(t, got.Balance.Equal(decimal.RequireFromString("950.50")))
	require.True(t, got.CreatedAt.Equal(created))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserNotFound(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id=\$1$`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(userCols))
	mock.ExpectRollback()

	err := s.View(ctx, func(u storage.Unit) error {
		_, err := u.User(ctx, "nope")
		return err
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserConflict(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pg.Error{Code: pgerrcode.UniqueViolation})
	mock.ExpectRollback()

	err := s.Update(ctx, func(u storage.Unit) error {
		return u.CreateUser(ctx, &model.User{ID: "a1", Username: "alice", Balance: model.StartingBalance})
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserMissing(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Update(ctx, func(u storage.Unit) error {
		return u.UpdateUser(ctx, &model.User{ID: "a1", Username: "alice"})
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)
	date := time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs("t1", "a1", "alice", "b1", "bob", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions\s+WHERE from_user_id=\$1 OR to_user_id=\$1\s+ORDER BY seq`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "from_user_id", "from_username", "to_user_id", "to_username", "amount", "created_at"}).
			AddRow("t1", "a1", "alice", "b1", "bob", "50.00", date))
	mock.ExpectRollback()

	err := s.Update(ctx, func(u storage.Unit) error {
		return u.AppendTransaction(ctx, &model.Transaction{
			ID: "t1", FromUserID: "a1", FromUsername: "alice", ToUserID: "b1", ToUsername: "bob",
			Amount: decimal.NewFromInt(50), Date: date,
		})
	})
	require.NoError(t, err)

	var txs []*model.Transaction
	err = s.View(ctx, func(u storage.Unit) error {
		var err error
		txs, err = u.TransactionsByUserID(ctx, "a1")
		return err
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, "bob", txs[0].ToUsername)
	require.True(t, txs[0].Amount.Equal(decimal.NewFromInt(50)))
	require.True(t, txs[0].Date.Equal(date))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRetriesSerializationFailure(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users`).
		WillReturnError(&pg.Error{Code: pgerrcode.SerializationFailure})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calls := 0
	err := s.Update(ctx, func(u storage.Unit) error {
		calls++
		return u.UpdateUser(ctx, &model.User{ID: "a1", Username: "alice"})
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStorageFailure(t *testing.T) {
	ctx := context.Background()
	s, mock := newMock(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := s.Update(ctx, func(u storage.Unit) error { return nil })
	require.ErrorIs(t, err, apperr.ErrStorage)
	require.NoError(t, mock.ExpectationsWereMet())
}
