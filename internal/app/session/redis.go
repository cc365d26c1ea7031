package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"fintech/internal/app/logger"
	"fintech/internal/app/model"
)

const redisKeyPrefix = "fintech:session:"

// session.Manager interface implementation
var _ Manager = (*Redis)(nil)

// Redis keeps sessions as keys expiring with the token
type Redis struct {
	client *redis.Client
	tokens tokens
	users  UserReader
}

func (svc *Redis) LoggerComponent() string {
	return "Session.Redis"
}

func NewRedis(client *redis.Client, secretKey string, users UserReader, opts ...Option) *Redis {
	return &Redis{
		client: client,
		tokens: newTokens(secretKey, opts...),
		users:  users,
	}
}

func key(id string) string {
	return redisKeyPrefix + id
}

// Create method of session.Creator implementation
func (svc *Redis) Create(ctx context.Context, u *model.User) (string, error) {
	l := logger.Get(ctx, svc)

	now := time.Now()
	id, token, exp, err := svc.tokens.issue(now)
	if err != nil {
		l.Error().Err(err).Send()
		return "", err
	}

	if err := svc.client.Set(ctx, key(id), u.ID, exp.Sub(now)).Err(); err != nil {
		l.Error().Err(err).Msg("Session store failed")
		return "", fmt.Errorf("redis set: %w", err)
	}

	l.Debug().Str("user_id", u.ID).Str("session_id", id).Msg("Create")

	return token, nil
}

// Read method of session.Reader implementation
func (svc *Redis) Read(ctx context.Context, tokenString string) (*model.User, error) {
	l := logger.Get(ctx, svc)

	id, err := svc.tokens.parse(tokenString)
	if err != nil {
		l.Debug().Err(err).Msg("Token rejected")
		return nil, err
	}

	userID, err := svc.client.Get(ctx, key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	u, err := svc.users.User(ctx, userID)
	if err != nil {
		l.Debug().Err(err).Msg("Session user lookup failed")
		return nil, ErrInvalidToken
	}

	return u, nil
}

// Destroy method of session.Destroyer implementation
func (svc *Redis) Destroy(ctx context.Context, tokenString string) error {
	id, err := svc.tokens.parse(tokenString)
	if err != nil {
		return err
	}

	n, err := svc.client.Del(ctx, key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return ErrInvalidToken
	}

	return nil
}
