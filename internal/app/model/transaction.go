package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable ledger record of one transfer
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	FromUserID   string          `json:"fromUserId" db:"from_user_id"`
	FromUsername string          `json:"fromUsername" db:"from_username"`
	ToUserID     string          `json:"toUserId" db:"to_user_id"`
	ToUsername   string          `json:"toUsername" db:"to_username"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Date         time.Time       `json:"date" db:"created_at"`
}

// Involves reports whether userID is the sender or the recipient
func (t *Transaction) Involves(userID string) bool {
	return t.FromUserID == userID || t.ToUserID == userID
}

type TransactionType string

const (
	TransactionTypeSent     TransactionType = "sent"
	TransactionTypeReceived TransactionType = "received"
)

// TypeFor derives the direction of t as seen by userID
func (t *Transaction) TypeFor(userID string) TransactionType {
	if t.FromUserID == userID {
		return TransactionTypeSent
	}
	return TransactionTypeReceived
}

// HistoryEntry is a transaction tagged relative to the viewer
type HistoryEntry struct {
	Transaction
	Type TransactionType `json:"type"`
}

// TransferResult of a recorded transfer
type TransferResult struct {
	NewBalance  decimal.Decimal
	Transaction *Transaction
}
