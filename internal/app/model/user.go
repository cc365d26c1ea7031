package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// balances and amounts travel as JSON numbers, both on disk and over the wire
	decimal.MarshalJSONWithoutQuotes = true
}

// StartingBalance credited to every new user
var StartingBalance = decimal.NewFromInt(1000)

// User as persisted by the stores. Password and PIN hold bcrypt hashes.
type User struct {
	ID        string          `json:"id" db:"id"`
	Username  string          `json:"username" db:"username"`
	Password  string          `json:"password" db:"password"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	PIN       string          `json:"pin,omitempty" db:"pin"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// Account is the public view of a User
type Account struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

// Account view of the user, without secrets
func (u *User) Account() *Account {
	return &Account{
		ID:       u.ID,
		Username: u.Username,
		Balance:  u.Balance,
	}
}
