// Package account registers users, checks their credentials and manages their secrets.
package account

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"

	"fintech/internal/app/apperr"
	"fintech/internal/app/logger"
	"fintech/internal/app/model"
	"fintech/internal/app/storage"
)

const (
	msgCredentialsRequired = "Username and password are required"
	msgUsernameTaken       = "Username already exists"
	msgInvalidCredentials  = "Invalid credentials"
	msgUserNotFound        = "User not found"
	msgPasswordTooShort    = "Password must be at least 6 characters long"
	msgPasswordTooLong     = "Password must be at most 72 bytes long"
)

// bcrypt input limit
const maxPasswordBytes = 72

var pinRe = regexp.MustCompile(`^[0-9]{4,6}$`)

type Service struct {
	store    storage.Store
	validate *validator.Validate
	hashCost int
	now      func() time.Time
}

func (s *Service) LoggerComponent() string {
	return "Account.Service"
}

type Option func(*Service)

// WithHashCost sets the bcrypt cost used for new hashes
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
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
		store:    store,
		validate: newValidator(),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Register creates a user with the starting balance and returns its id
func (s *Service) Register(ctx context.Context, in Credentials) (string, error) {
	l := logger.Get(ctx, s).With().Str("username", in.Username).Logger()

	if err := s.validateCredentials(in); err != nil {
		l.Debug().Err(err).Msg("Validation failed")
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("password hash: %w", err)
	}

	m := &model.User{
		ID:        xid.New().String(),
		Username:  in.Username,
		Password:  string(hash),
		Balance:   model.StartingBalance,
		CreatedAt: s.now().UTC(),
	}

	err = s.store.Update(ctx, func(u storage.Unit) error {
		_, err := u.UserByName(ctx, m.Username)
		switch {
		case err == nil:
			return apperr.Validation(msgUsernameTaken)
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}
		return u.CreateUser(ctx, m)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return "", apperr.Validation(msgUsernameTaken)
		}
		return "", err
	}

	l.Info().Str("user_id", m.ID).Msg("User registered")

	return m.ID, nil
}

// Login checks the credentials and returns the public view of the user
func (s *Service) Login(ctx context.Context, in Credentials) (*model.Account, error) {
	l := logger.Get(ctx, s).With().Str("username", in.Username).Logger()

	if in.Username == "" || in.Password == "" {
		return nil, apperr.Validation(msgCredentialsRequired)
	}

	var m *model.User
	err := s.store.View(ctx, func(u storage.Unit) error {
		var err error
		m, err = u.UserByName(ctx, in.Username)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			l.Debug().Msg("Unknown user")
			return nil, apperr.Unauthorized(msgInvalidCredentials)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.Password), []byte(in.Password)); err != nil {
		l.Debug().Msg("Password mismatch")
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}

	return m.Account(), nil
}

// Balance returns the account of userID
func (s *Service) Balance(ctx context.Context, userID string) (*model.Account, error) {
	m, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.Account(), nil
}

// User reads the full user record, used by the session manager
func (s *Service) User(ctx context.Context, userID string) (*model.User, error) {
	var m *model.User
	err := s.store.View(ctx, func(u storage.Unit) error {
		var err error
		m, err = u.User(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound(msgUserNotFound)
		}
		return nil, err
	}
	return m, nil
}

// ChangePassword replaces the password after checking the current one
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if utf8.RuneCountInString(next) < 6 {
		return apperr.Validation(msgPasswordTooShort)
	}
	if len(next) > maxPasswordBytes {
		return apperr.Validation(msgPasswordTooLong)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.hashCost)
	if err != nil {
		return fmt.Errorf("password hash: %w", err)
	}

	return s.updateVerified(ctx, userID, current, func(m *model.User) {
		m.Password = string(hash)
	})
}

// SetPIN stores a 4 to 6 digit PIN after checking the password
func (s *Service) SetPIN(ctx context.Context, userID, password, pin string) error {
	if !pinRe.MatchString(pin) {
		return apperr.Validation("PIN must be 4 to 6 digits")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.hashCost)
	if err != nil {
		return fmt.Errorf("pin hash: %w", err)
	}

	return s.updateVerified(ctx, userID, password, func(m *model.User) {
		m.PIN = string(hash)
	})
}

func (s *Service) updateVerified(ctx context.Context, userID, password string, fn func(*model.User)) error {
	l := logger.Get(ctx, s).With().Str("user_id", userID).Logger()

	err := s.store.Update(ctx, func(u storage.Unit) error {
		m, err := u.User(ctx, userID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.NotFound(msgUserNotFound)
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(m.Password), []byte(password)); err != nil {
			return apperr.Unauthorized(msgInvalidCredentials)
		}

		fn(m)
		return u.UpdateUser(ctx, m)
	})
	if err != nil {
		l.Debug().Err(err).Msg("Update rejected")
		return err
	}

	l.Info().Msg("User secrets updated")
	return nil
}

func (s *Service) validateCredentials(in Credentials) error {
	err := s.validate.Struct(in)
	if err == nil {
		if len(in.Password) > maxPasswordBytes {
			return apperr.Validation(msgPasswordTooLong)
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	// a missing field wins over any length rule
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return apperr.Validation(msgCredentialsRequired)
		}
	}

	fe := verrs[0]
	label := strings.ToUpper(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "min":
		return apperr.Validation(fmt.Sprintf("%s must be at least %s characters long", label, fe.Param()))
	case "max":
		return apperr.Validation(fmt.Sprintf("%s must be at most %s characters long", label, fe.Param()))
	}

	return apperr.Validation(fmt.Sprintf("%s is invalid", label))
}
