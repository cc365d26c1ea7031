package session

import (
	"context"
	"sync"
	"time"

	"fintech/internal/app/logger"
	"fintech/internal/app/model"
)

// session.Manager interface implementation
var _ Manager = (*Memory)(nil)

type (
	Memory struct {
		mu     sync.RWMutex
		tokens tokens
		users  UserReader
		db     MemoryDB
	}
	MemoryDB map[string]MemorySession
)

func (svc *Memory) LoggerComponent() string {
	return "Session.Memory"
}

func NewMemory(secretKey string, users UserReader, opts ...Option) *Memory {
	return &Memory{
		tokens: newTokens(secretKey, opts...),
		users:  users,
		db:     make(MemoryDB),
	}
}

type MemorySession struct {
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// Create method of session.Creator implementation
func (svc *Memory) Create(ctx context.Context, u *model.User) (string, error) {
	l := logger.Get(ctx, svc)
	l.Debug().Str("user_id", u.ID).Msg("Create")

	now := time.Now()
	id, token, exp, err := svc.tokens.issue(now)
	if err != nil {
		l.Error().Err(err).Send()
		return "", err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.db[id] = MemorySession{
		UserID:    u.ID,
		StartedAt: now,
		ExpiresAt: exp,
	}

	return token, nil
}

// Read method of session.Reader implementation
func (svc *Memory) Read(ctx context.Context, tokenString string) (*model.User, error) {
	l := logger.Get(ctx, svc)

	id, err := svc.tokens.parse(tokenString)
	if err != nil {
		l.Debug().Err(err).Msg("Token rejected")
		return nil, err
	}

	svc.mu.Lock()
	s, ok := svc.db[id]
	if ok && s.ExpiresAt.Before(time.Now()) {
		l.Debug().
			Str("session_id", id).
			Str("user_id", s.UserID).
			Msg("Session expired")
		delete(svc.db, id)
		ok = false
	}
	svc.mu.Unlock()

	if !ok {
		return nil, ErrInvalidToken
	}

	u, err := svc.users.User(ctx, s.UserID)
	if err != nil {
		l.Debug().Err(err).Msg("Session user lookup failed")
		return nil, ErrInvalidToken
	}

	return u, nil
}

// Destroy method of session.Destroyer implementation
func (svc *Memory) Destroy(ctx context.Context, tokenString string) error {
	id, err := svc.tokens.parse(tokenString)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, ok := svc.db[id]; !ok {
		return ErrInvalidToken
	}
	delete(svc.db, id)

	l := logger.Get(ctx, svc)
	l.Debug().Str("session_id", id).Msg("Destroyed")

	return nil
}
