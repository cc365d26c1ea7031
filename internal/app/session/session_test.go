package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"fintech/internal/app/apperr"
	"fintech/internal/app/model"
)

type users map[string]*model.User

func (m users) User(_ context.Context, id string) (*model.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

var alice = &model.User{ID: "a1", Username: "alice"}

func testManager(t *testing.T, m Manager) {
	ctx := context.Background()

	token, err := m.Create(ctx, alice)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	u, err := m.Read(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "a1", u.ID)

	_, err = m.Read(ctx, token+"x")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Read(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, m.Destroy(ctx, token))
	_, err = m.Read(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, m.Destroy(ctx, token), ErrInvalidToken)
}

func TestMemory(t *testing.T) {
	testManager(t, NewMemory("secret", users{"a1": alice}))
}

func TestMemoryForeignSecret(t *testing.T) {
	ctx := context.Background()
	issuer := NewMemory("one", users{"a1": alice})
	verifier := NewMemory("two", users{"a1": alice})

	token, err := issuer.Create(ctx, alice)
	require.NoError(t, err)

	_, err = verifier.Read(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("secret", users{"a1": alice}, WithLifetime(time.Millisecond))

	token, err := m.Create(ctx, alice)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = m.Read(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryDeletedUser(t *testing.T) {
	ctx := context.Background()
	known := users{"a1": alice}
	m := NewMemory("secret", known)

	token, err := m.Create(ctx, alice)
	require.NoError(t, err)

	delete(known, "a1")
	_, err = m.Read(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	testManager(t, NewRedis(client, "secret", users{"a1": alice}))
}
