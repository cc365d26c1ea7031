// Package events announces recorded transfers to other services.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintech/internal/app/model"
)

const SubjectTransferCompleted = "transfer.completed"

// TransferCompleted is the payload published after a transfer is recorded
type TransferCompleted struct {
	TransactionID string          `json:"transactionId"`
	FromUserID    string          `json:"fromUserId"`
	FromUsername  string          `json:"fromUsername"`
	ToUserID      string          `json:"toUserId"`
	ToUsername    string          `json:"toUsername"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
}

func NewTransferCompleted(m *model.Transaction) TransferCompleted {
	return TransferCompleted{
		TransactionID: m.ID,
		FromUserID:    m.FromUserID,
		FromUsername:  m.FromUsername,
		ToUserID:      m.ToUserID,
		ToUsername:    m.ToUsername,
		Amount:        m.Amount,
		Date:          m.Date,
	}
}

type Publisher interface {
	PublishTransfer(ctx context.Context, e TransferCompleted) error
	Close() error
}

// Publisher interface implementation
var _ Publisher = Nop{}

// Nop drops every event, used when no broker is configured
type Nop struct{}

func (Nop) PublishTransfer(context.Context, TransferCompleted) error {
	return nil
}

func (Nop) Close() error {
	return nil
}
