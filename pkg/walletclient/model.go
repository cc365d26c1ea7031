package walletclient

import (
	"time"

	"github.com/shopspring/decimal"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Account struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

type Balance struct {
	Balance  decimal.Decimal `json:"balance"`
	Username string          `json:"username"`
}

type Transaction struct {
	ID           string          `json:"id"`
	FromUserID   string          `json:"fromUserId"`
	FromUsername string          `json:"fromUsername"`
	ToUserID     string          `json:"toUserId"`
	ToUsername   string          `json:"toUsername"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	// Type is "sent" or "received", set in history listings only
	Type string `json:"type,omitempty"`
}

// Counterparty returns the other user's name as seen from a history entry
func (t *Transaction) Counterparty() string {
	if t.Type == "sent" {
		return t.ToUsername
	}
	return t.FromUsername
}

type TransferRequest struct {
	FromUserID string          `json:"fromUserId"`
	ToUsername string          `json:"toUsername"`
	Amount     decimal.Decimal `json:"amount"`
}

type TransferResponse struct {
	Message     string          `json:"message"`
	NewBalance  decimal.Decimal `json:"newBalance"`
	Transaction *Transaction    `json:"transaction"`
}

// Dashboard is one refresh of the signed-in user's view
type Dashboard struct {
	Balance      *Balance
	Transactions []*Transaction
}
