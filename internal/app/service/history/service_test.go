package history

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fintech/internal/app/apperr"
	"fintech/internal/app/logger"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
	"fintech/internal/app/storage/jsonfile"
)

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	store, err := jsonfile.New(t.TempDir(), jsonfile.WithLogger(logger.Nop()))
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	tx := func(id, from, to string, minutes int) *model.Transaction {
		return &model.Transaction{
			ID: id, FromUserID: from, FromUsername: from, ToUserID: to, ToUsername: to,
			Amount: decimal.NewFromInt(1), Date: base.Add(time.Duration(minutes) * time.Minute),
		}
	}

	require.NoError(t, store.Update(ctx, func(u storage.Unit) error {
		for _, name := range []string{"a", "b", "c"} {
			if err := u.CreateUser(ctx, &model.User{ID: name, Username: name}); err != nil {
				return err
			}
		}
		for _, m := range []*model.Transaction{
			tx("t1", "a", "b", 1),
			tx("t2", "b", "a", 3),
			tx("t3", "b", "c", 4),
			tx("t4", "c", "a", 2),
			tx("t5", "a", "c", 3),
		} {
			if err := u.AppendTransaction(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}))

	svc := New(store)

	res, err := svc.ListForUser(ctx, "a")
	require.NoError(t, err)

	ids := make([]string, 0, len(res))
	types := make([]model.TransactionType, 0, len(res))
	for _, e := range res {
		ids = append(ids, e.ID)
		types = append(types, e.Type)
	}
	require.Equal(t, []string{"t5", "t2", "t4", "t1"}, ids)
	require.Equal(t, []model.TransactionType{
		model.TransactionTypeSent,
		model.TransactionTypeReceived,
		model.TransactionTypeReceived,
		model.TransactionTypeSent,
	}, types)

	res, err = svc.ListForUser(ctx, "b")
	require.NoError(t, err)
	require.Len(t, res, 3)
	require.Equal(t, "t3", res[0].ID)
}

func TestListForUserEmptyAndUnknown(t *testing.T) {
	ctx := context.Background()
	store, err := jsonfile.New(t.TempDir(), jsonfile.WithLogger(logger.Nop()))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Update(ctx, func(u storage.Unit) error {
		return u.CreateUser(ctx, &model.User{ID: "a", Username: "alice"})
	}))

	svc := New(store)

	res, err := svc.ListForUser(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Empty(t, res)

	_, err = svc.ListForUser(ctx, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
