// Package transfer moves balance between two users and records it in the ledger.
//
// A transfer goes Requested -> Validated -> Applied -> Recorded, or stops at
// Rejected on the first failed check. Everything up to Recorded runs inside a
// single store unit.
package transfer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"fintech/internal/app/apperr"
	"fintech/internal/app/events"
	"fintech/internal/app/logger"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
)

type State string

const (
	StateRequested State = "requested"
	StateValidated State = "validated"
	StateApplied   State = "applied"
	StateRecorded  State = "recorded"
	StateRejected  State = "rejected"
)

const (
	msgFieldsRequired      = "From user, to username, and amount are required"
	msgInvalidAmount       = "Invalid transfer amount"
	msgSenderNotFound      = "Sender not found"
	msgRecipientNotFound   = "Recipient not found"
	msgInsufficientBalance = "Insufficient balance"
)

// amounts and balances are kept to cents
const precision = 2

type Request struct {
	FromUserID string
	ToUsername string
	Amount     string
}

type Service struct {
	store     storage.Store
	publisher events.Publisher
	now       func() time.Time
}

func (s *Service) LoggerComponent() string {
	return "Transfer.Service"
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: events.Nop{},
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Transfer debits the sender, credits the recipient and appends the transaction
func (s *Service) Transfer(ctx context.Context, in Request) (*model.TransferResult, error) {
	l := logger.Get(ctx, s).With().
		Str("from_user_id", in.FromUserID).
		Str("to_username", in.ToUsername).
		Str("amount", in.Amount).
		Logger()
	l.Debug().Str("state", string(StateRequested)).Send()

	reject := func(err error) (*model.TransferResult, error) {
		l.Info().Str("state", string(StateRejected)).Err(err).Msg("Transfer rejected")
		return nil, err
	}

	if in.FromUserID == "" || in.ToUsername == "" || strings.TrimSpace(in.Amount) == "" {
		return reject(apperr.Validation(msgFieldsRequired))
	}

	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return reject(err)
	}

	var res *model.TransferResult
	err = s.store.Update(ctx, func(u storage.Unit) error {
		from, err := u.User(ctx, in.FromUserID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.NotFound(msgSenderNotFound)
			}
			return err
		}

		to, err := u.UserByName(ctx, in.ToUsername)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.NotFound(msgRecipientNotFound)
			}
			return err
		}

		if from.Balance.LessThan(amount) {
			return apperr.New(apperr.ErrInsufficientFunds, msgInsufficientBalance)
		}
		l.Debug().Str("state", string(StateValidated)).Send()

		// sending to yourself leaves the balance as is but is still recorded
		if from.ID != to.ID {
			from.Balance = from.Balance.Sub(amount).Round(precision)
			to.Balance = to.Balance.Add(amount).Round(precision)

			if err := u.UpdateUser(ctx, from); err != nil {
				return err
			}
			if err := u.UpdateUser(ctx, to); err != nil {
				return err
			}
		}
		l.Debug().Str("state", string(StateApplied)).Send()

		tx := &model.Transaction{
			ID:           xid.New().String(),
			FromUserID:   from.ID,
			FromUsername: from.Username,
			ToUserID:     to.ID,
			ToUsername:   to.Username,
			Amount:       amount,
			Date:         s.now().UTC(),
		}
		if err := u.AppendTransaction(ctx, tx); err != nil {
			return err
		}

		res = &model.TransferResult{
			NewBalance:  from.Balance,
			Transaction: tx,
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return reject(err)
		}
		l.Error().Err(err).Msg("Transfer failed")
		return nil, err
	}

	l.Info().
		Str("state", string(StateRecorded)).
		Str("transaction_id", res.Transaction.ID).
		Str("new_balance", res.NewBalance.StringFixed(precision)).
		Msg("Transfer recorded")

	if err := s.publisher.PublishTransfer(ctx, events.NewTransferCompleted(res.Transaction)); err != nil {
		l.Warn().Err(err).Msg("Transfer event publish failed")
	}

	return res, nil
}

// ParseAmount accepts a positive decimal and rounds it to cents.
// Amounts that round down to zero are invalid.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !amount.IsPositive() {
		return decimal.Decimal{}, apperr.Validation(msgInvalidAmount)
	}

	amount = amount.Round(precision)
	if !amount.IsPositive() {
		return decimal.Decimal{}, apperr.Validation(msgInvalidAmount)
	}
	return amount, nil
}
