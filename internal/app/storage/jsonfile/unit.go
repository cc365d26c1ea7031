package jsonfile

import (
	"context"
	"errors"
	"fmt"

	"fintech/internal/app/apperr"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
)

var errReadOnly = errors.New("read-only unit")

// storage.Unit interface implementation
var _ storage.Unit = (*unit)(nil)

// unit holds the collections loaded for one job; each is read at most once
type unit struct {
	store    *Store
	readOnly bool

	users              []*model.User
	transactions       []*model.Transaction
	usersLoaded        bool
	transactionsLoaded bool
	usersDirty         bool
	transactionsDirty  bool
}

func newUnit(s *Store, readOnly bool) *unit {
	return &unit{store: s, readOnly: readOnly}
}

func (u *unit) loadUsers() error {
	if u.usersLoaded {
		return nil
	}
	if err := u.store.Read(Users, &u.users); err != nil {
		return err
	}
	u.usersLoaded = true
	return nil
}

func (u *unit) loadTransactions() error {
	if u.transactionsLoaded {
		return nil
	}
	if err := u.store.Read(Transactions, &u.transactions); err != nil {
		return err
	}
	u.transactionsLoaded = true
	return nil
}

func (u *unit) User(ctx context.Context, id string) (*model.User, error) {
	if err := u.loadUsers(); err != nil {
		return nil, err
	}
	for _, m := range u.users {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (u *unit) UserByName(ctx context.Context, name string) (*model.User, error) {
	if err := u.loadUsers(); err != nil {
		return nil, err
	}
	for _, m := range u.users {
		if m.Username == name {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (u *unit) CreateUser(ctx context.Context, m *model.User) error {
	if u.readOnly {
		return errReadOnly
	}
	if err := u.loadUsers(); err != nil {
		return err
	}
	for _, e := range u.users {
		if e.Username == m.Username {
			return fmt.Errorf("create user %q: %w", m.Username, apperr.ErrConflict)
		}
		if e.ID == m.ID {
			return fmt.Errorf("create user id %q: %w", m.ID, apperr.ErrConflict)
		}
	}

	cp := *m
	u.users = append(u.users, &cp)
	u.usersDirty = true
	return nil
}

func (u *unit) UpdateUser(ctx context.Context, m *model.User) error {
	if u.readOnly {
		return errReadOnly
	}
	if err := u.loadUsers(); err != nil {
		return err
	}
	for i, e := range u.users {
		if e.ID == m.ID {
			cp := *m
			u.users[i] = &cp
			u.usersDirty = true
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (u *unit) AppendTransaction(ctx context.Context, m *model.Transaction) error {
	if u.readOnly {
		return errReadOnly
	}
	if err := u.loadTransactions(); err != nil {
		return err
	}

	cp := *m
	u.transactions = append(u.transactions, &cp)
	u.transactionsDirty = true
	return nil
}

func (u *unit) TransactionsByUserID(ctx context.Context, userID string) ([]*model.Transaction, error) {
	if err := u.loadTransactions(); err != nil {
		return nil, err
	}

	res := make([]*model.Transaction, 0)
	for _, m := range u.transactions {
		if m.Involves(userID) {
			cp := *m
			res = append(res, &cp)
		}
	}
	return res, nil
}
