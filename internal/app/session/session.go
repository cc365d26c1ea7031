// Package session issues bearer tokens after login and resolves them back to users.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"fintech/internal/app/model"
)

var ErrInvalidToken = errors.New("invalid token")

const defaultTokenLifetime = time.Hour

type (
	Creator interface {
		Create(ctx context.Context, u *model.User) (string, error)
	}
	Reader interface {
		Read(ctx context.Context, token string) (*model.User, error)
	}
	Destroyer interface {
		Destroy(ctx context.Context, token string) error
	}
	Manager interface {
		Creator
		Reader
		Destroyer
	}
)

// UserReader resolves the user a session belongs to
type UserReader interface {
	User(ctx context.Context, id string) (*model.User, error)
}

type Claims struct {
	jwt.StandardClaims
}

type Option func(*tokens)

func WithLifetime(d time.Duration) Option {
	return func(t *tokens) {
		if d > 0 {
			t.lifetime = d
		}
	}
}

func WithIssuer(issuer string) Option {
	return func(t *tokens) {
		t.issuer = issuer
	}
}

// tokens signs and verifies the JWTs shared by all backends
type tokens struct {
	issuer    string
	secretKey []byte
	lifetime  time.Duration
}

func newTokens(secretKey string, opts ...Option) tokens {
	t := tokens{
		issuer:    "fintech",
		secretKey: []byte(secretKey),
		lifetime:  defaultTokenLifetime,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// issue a token for a new session id
func (t tokens) issue(now time.Time) (id, token string, exp time.Time, err error) {
	id = uuid.New().String()
	exp = now.Add(t.lifetime)

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: exp.Unix(),
			Issuer:    t.issuer,
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secretKey)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("jwt encode: %w", err)
	}

	return id, token, exp, nil
}

// parse verifies the token and returns its session id
func (t tokens) parse(tokenString string) (string, error) {
	c := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secretKey, nil
	})
	if err != nil || !token.Valid || c.Id == "" {
		return "", ErrInvalidToken
	}

	return c.Id, nil
}
