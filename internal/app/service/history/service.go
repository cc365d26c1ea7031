package history

import (
	"context"
	"errors"
	"sort"

	"fintech/internal/app/apperr"
	"fintech/internal/app/logger"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
)

type Service struct {
	store storage.Store
}

func (s *Service) LoggerComponent() string {
	return "History.Service"
}

func New(store storage.Store) *Service {
	return &Service{store: store}
}

// ListForUser returns the user's transactions newest first, tagged sent or received
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	var txs []*model.Transaction
	err := s.store.View(ctx, func(u storage.Unit) error {
		if _, err := u.User(ctx, userID); err != nil {
			return err
		}
		var err error
		txs, err = u.TransactionsByUserID(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}

	// ledger order reversed, so equal dates keep the later record first
	res := make([]*model.HistoryEntry, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		res = append(res, &model.HistoryEntry{
			Transaction: *txs[i],
			Type:        txs[i].TypeFor(userID),
		})
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Date.After(res[j].Date)
	})

	l := logger.Get(ctx, s)
	l.Debug().
		Str("user_id", userID).
		Int("count", len(res)).
		Msg("History listed")

	return res, nil
}
