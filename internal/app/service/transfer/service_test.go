package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintech/internal/app/apperr"
	"fintech/internal/app/events"
	"fintech/internal/app/logger"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
	"fintech/internal/app/storage/jsonfile"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransferCompleted
	err    error
}

func (p *recordingPublisher) PublishTransfer(_ context.Context, e events.TransferCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error {
	return nil
}

var fixedNow = time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)

func setup(t *testing.T, balances map[string]string) storage.Store {
	t.Helper()
	ctx := context.Background()

	store, err := jsonfile.New(t.TempDir(), jsonfile.WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	require.NoError(t, store.Update(ctx, func(u storage.Unit) error {
		for name, balance := range balances {
			err := u.CreateUser(ctx, &model.User{
				ID:       name + "-id",
				Username: name,
				Password: "hash",
				Balance:  decimal.RequireFromString(balance),
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	return store
}

func readState(t *testing.T, store storage.Store, ids ...string) (map[string]decimal.Decimal, []*model.Transaction) {
	t.Helper()
	ctx := context.Background()
	balances := make(map[string]decimal.Decimal)
	var txs []*model.Transaction

	require.NoError(t, store.View(ctx, func(u storage.Unit) error {
		for _, id := range ids {
			m, err := u.User(ctx, id)
			if err != nil {
				return err
			}
			balances[id] = m.Balance
		}
		var err error
		txs, err = u.TransactionsByUserID(ctx, ids[0])
		return err
	}))

	return balances, txs
}

func TestTransfer(t *testing.T) {
	store := setup(t, map[string]string{"alice": "1000", "bob": "1000"})
	pub := &recordingPublisher{}
	svc := New(store, WithPublisher(pub), WithClock(func() time.Time { return fixedNow }))

	res, err := svc.Transfer(context.Background(), Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "50"})
	require.NoError(t, err)
	require.True(t, res.NewBalance.Equal(decimal.NewFromInt(950)))
	require.Equal(t, "alice-id", res.Transaction.FromUserID)
	require.Equal(t, "alice", res.Transaction.FromUsername)
	require.Equal(t, "bob-id", res.Transaction.ToUserID)
	require.Equal(t, "bob", res.Transaction.ToUsername)
	require.True(t, res.Transaction.Amount.Equal(decimal.NewFromInt(50)))
	require.True(t, res.Transaction.Date.Equal(fixedNow))
	require.NotEmpty(t, res.Transaction.ID)

	balances, txs := readState(t, store, "alice-id", "bob-id")
	require.True(t, balances["alice-id"].Equal(decimal.NewFromInt(950)))
	require.True(t, balances["bob-id"].Equal(decimal.NewFromInt(1050)))
	require.Len(t, txs, 1)
	require.Equal(t, res.Transaction.ID, txs[0].ID)

	require.Len(t, pub.events, 1)
	require.Equal(t, res.Transaction.ID, pub.events[0].TransactionID)
}

func TestTransferRounding(t *testing.T) {
	store := setup(t, map[string]string{"alice": "100.10", "bob": "0.05"})
	svc := New(store)

	res, err := svc.Transfer(context.Background(), Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "0.1"})
	require.NoError(t, err)
	require.Equal(t, "100.00", res.NewBalance.StringFixed(2))

	balances, _ := readState(t, store, "alice-id", "bob-id")
	require.Equal(t, "0.15", balances["bob-id"].StringFixed(2))
}

func TestTransferSubCentAmount(t *testing.T) {
	store := setup(t, map[string]string{"alice": "1000", "bob": "1000"})
	svc := New(store)

	res, err := svc.Transfer(context.Background(), Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "10.005"})
	require.NoError(t, err)
	require.Equal(t, "10.01", res.Transaction.Amount.StringFixed(2))
	require.Equal(t, "989.99", res.NewBalance.StringFixed(2))

	balances, txs := readState(t, store, "alice-id", "bob-id")
	require.Equal(t, "1010.01", balances["bob-id"].StringFixed(2))
	require.True(t, balances["alice-id"].Add(balances["bob-id"]).Equal(decimal.NewFromInt(2000)))
	require.Len(t, txs, 1)
}

func TestSelfTransferRecorded(t *testing.T) {
	store := setup(t, map[string]string{"alice": "1000", "bob": "1000"})
	pub := &recordingPublisher{}
	svc := New(store, WithPublisher(pub))

	res, err := svc.Transfer(context.Background(), Request{FromUserID: "alice-id", ToUsername: "alice", Amount: "10"})
	require.NoError(t, err)
	require.True(t, res.NewBalance.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, "alice-id", res.Transaction.FromUserID)
	require.Equal(t, "alice-id", res.Transaction.ToUserID)

	balances, txs := readState(t, store, "alice-id")
	require.True(t, balances["alice-id"].Equal(decimal.NewFromInt(1000)))
	require.Len(t, txs, 1)
	require.Len(t, pub.events, 1)
}

func TestTransferRejected(t *testing.T) {
	tests := []struct {
		name     string
		in       Request
		kind     error
		expected string
	}{
		{"missing amount", Request{FromUserID: "alice-id", ToUsername: "bob"}, apperr.ErrInvalidInput, msgFieldsRequired},
		{"missing recipient", Request{FromUserID: "alice-id", Amount: "10"}, apperr.ErrInvalidInput, msgFieldsRequired},
		{"missing sender", Request{ToUsername: "bob", Amount: "10"}, apperr.ErrInvalidInput, msgFieldsRequired},
		{"not a number", Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "ten"}, apperr.ErrInvalidInput, msgInvalidAmount},
		{"zero", Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "0"}, apperr.ErrInvalidInput, msgInvalidAmount},
		{"negative", Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "-5"}, apperr.ErrInvalidInput, msgInvalidAmount},
		{"sub-cent", Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "0.001"}, apperr.ErrInvalidInput, msgInvalidAmount},
		{"unknown sender", Request{FromUserID: "nobody", ToUsername: "bob", Amount: "10"}, apperr.ErrNotFound, msgSenderNotFound},
		{"unknown recipient", Request{FromUserID: "alice-id", ToUsername: "nobody", Amount: "10"}, apperr.ErrNotFound, msgRecipientNotFound},
		{"self insufficient", Request{FromUserID: "alice-id", ToUsername: "alice", Amount: "1000.01"}, apperr.ErrInsufficientFunds, msgInsufficientBalance},
		{"insufficient", Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "1000.01"}, apperr.ErrInsufficientFunds, msgInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setup(t, map[string]string{"alice": "1000", "bob": "1000"})
			pub := &recordingPublisher{}
			svc := New(store, WithPublisher(pub))

			_, err := svc.Transfer(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.kind)
			require.Equal(t, tt.expected, err.Error())

			balances, txs := readState(t, store, "alice-id", "bob-id")
			require.True(t, balances["alice-id"].Equal(decimal.NewFromInt(1000)))
			require.True(t, balances["bob-id"].Equal(decimal.NewFromInt(1000)))
			require.Empty(t, txs)
			require.Empty(t, pub.events)
		})
	}
}

func TestTransferWholeBalance(t *testing.T) {
	store := setup(t, map[string]string{"alice": "25.50", "bob": "0"})
	svc := New(store)

	res, err := svc.Transfer(context.Background(), Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "25.50"})
	require.NoError(t, err)
	require.True(t, res.NewBalance.IsZero())
}

func TestPublishFailureKeepsTransfer(t *testing.T) {
	store := setup(t, map[string]string{"alice": "1000", "bob": "1000"})
	svc := New(store, WithPublisher(&recordingPublisher{err: errors.New("broker down")}))

	_, err := svc.Transfer(context.Background(), Request{FromUserID: "alice-id", ToUsername: "bob", Amount: "10"})
	require.NoError(t, err)

	_, txs := readState(t, store, "alice-id")
	require.Len(t, txs, 1)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	store := setup(t, map[string]string{"alice": "100", "bob": "100", "carol": "100"})
	svc := New(store)

	names := []string{"alice", "bob", "carol"}
	const rounds = 30

	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for j, from := range names {
			to := names[(j+1)%len(names)]
			wg.Add(1)
			go func(from, to string) {
				defer wg.Done()
				_, err := svc.Transfer(context.Background(), Request{FromUserID: from + "-id", ToUsername: to, Amount: "7.25"})
				if err != nil {
					assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
				}
			}(from, to)
		}
	}
	wg.Wait()

	balances, _ := readState(t, store, "alice-id", "bob-id", "carol-id")
	total := decimal.Zero
	for _, b := range balances {
		require.False(t, b.IsNegative())
		total = total.Add(b)
	}
	require.True(t, total.Equal(decimal.NewFromInt(300)), total.String())
}

func TestParseAmount(t *testing.T) {
	for raw, expected := range map[string]string{
		"50":     "50",
		" 12.5 ": "12.5",
		"12.500": "12.5",
		"0.01":   "0.01",
		"1.005":  "1.01",
		"10.004": "10",
	} {
		d, err := ParseAmount(raw)
		require.NoError(t, err, raw)
		require.True(t, d.Equal(decimal.RequireFromString(expected)), raw)
	}

	for _, raw := range []string{"", "abc", "0", "-1", "0.004", "NaN"} {
		_, err := ParseAmount(raw)
		require.ErrorIs(t, err, apperr.ErrInvalidInput, raw)
	}
}
