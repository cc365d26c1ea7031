// Package walletclient talks to the wallet HTTP API.
//
// Transport failures, 5xx responses and calls refused by the open circuit
// breaker all surface as ErrNetwork. API rejections surface as *RemoteError
// carrying the server's message.
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

var ErrNetwork = errors.New("network error, please try again")

type Service struct {
	apiURL     string
	httpClient *http.Client
	logger     zerolog.Logger
	breaker    *gobreaker.CircuitBreaker
	settings   gobreaker.Settings
}

func (s *Service) LoggerComponent() string {
	return "WalletClient.Service"
}

func NewService(apiURL string, opts ...ServiceOption) (*Service, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", apiURL)
	}

	c := &Service{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log.Logger,
		settings: gobreaker.Settings{
			Name:    "wallet-api",
			Timeout: 30 * time.Second,
		},
	}

	for _, o := range opts {
		o(c)
	}

	c.logger = c.logger.With().Str("component", c.LoggerComponent()).Logger()

	onStateChange := c.settings.OnStateChange
	c.settings.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn().
			Str("breaker", name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("Circuit breaker state changed")
		if onStateChange != nil {
			onStateChange(name, from, to)
		}
	}
	c.breaker = gobreaker.NewCircuitBreaker(c.settings)

	return c, nil
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = c
	}
}

// WithBreakerSettings replaces the circuit breaker settings
func WithBreakerSettings(st gobreaker.Settings) ServiceOption {
	return func(s *Service) {
		s.settings = st
	}
}

// Register creates an account and returns the new user id
func (s *Service) Register(ctx context.Context, in Credentials) (string, error) {
	out := struct {
		UserID string `json:"userId"`
	}{}
	if err := s.genericCall(ctx, http.MethodPost, "/api/register", "", in, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// Login returns a session for the credentials
func (s *Service) Login(ctx context.Context, in Credentials) (*Session, error) {
	out := &Session{}
	if err := s.genericCall(ctx, http.MethodPost, "/api/login", "", in, out); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("user_id", out.User.ID).Msg("Login success")

	return out, nil
}

// Me returns the account behind the session token
func (s *Service) Me(ctx context.Context, sess *Session) (*Account, error) {
	out := struct {
		User *Account `json:"user"`
	}{}
	if err := s.genericCall(ctx, http.MethodGet, "/api/me", sess.Token, nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Logout ends the session on the server
func (s *Service) Logout(ctx context.Context, sess *Session) error {
	return s.genericCall(ctx, http.MethodPost, "/api/logout", sess.Token, nil, nil)
}

func (s *Service) Balance(ctx context.Context, sess *Session) (*Balance, error) {
	out := &Balance{}
	endpoint := "/api/balance/" + url.PathEscape(sess.User.ID)
	if err := s.genericCall(ctx, http.MethodGet, endpoint, sess.Token, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transfer sends amount from the session user to toUsername
func (s *Service) Transfer(ctx context.Context, sess *Session, toUsername string, amount decimal.Decimal) (*TransferResponse, error) {
	in := &TransferRequest{
		FromUserID: sess.User.ID,
		ToUsername: toUsername,
		Amount:     amount,
	}
	out := &TransferResponse{}
	if err := s.genericCall(ctx, http.MethodPost, "/api/transfer", sess.Token, in, out); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("to_username", toUsername).
		Str("new_balance", out.NewBalance.String()).
		Msg("Transfer success")

	return out, nil
}

// Transactions returns the session user's history, newest first
func (s *Service) Transactions(ctx context.Context, sess *Session) ([]*Transaction, error) {
	out := struct {
		Transactions []*Transaction `json:"transactions"`
	}{}
	endpoint := "/api/transactions/" + url.PathEscape(sess.User.ID)
	if err := s.genericCall(ctx, http.MethodGet, endpoint, sess.Token, nil, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// Dashboard fetches balance and history together
func (s *Service) Dashboard(ctx context.Context, sess *Session) (*Dashboard, error) {
	b, err := s.Balance(ctx, sess)
	if err != nil {
		return nil, err
	}
	txs, err := s.Transactions(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Balance: b, Transactions: txs}, nil
}

type RemoteError struct {
	Message    string
	StatusCode int
}

func NewRemoteError(message string, statusCode int) *RemoteError {
	return &RemoteError{Message: message, StatusCode: statusCode}
}

func (e *RemoteError) Error() string {
	return e.Message
}

type response struct {
	statusCode int
	body       []byte
}

func (s *Service) genericCall(ctx context.Context, method, endpoint, token string, in interface{}, out interface{}) error {
	l := s.logger.With().Str("http_method", method).Str("endpoint", endpoint).Logger()
	ctx = l.WithContext(ctx)

	v, err := s.breaker.Execute(func() (interface{}, error) {
		res, err := s.request(ctx, method, endpoint, token, in)
		if err != nil {
			return nil, err
		}

		body, err := readAll(res.Body)
		if err != nil {
			return nil, err
		}

		if res.StatusCode >= http.StatusInternalServerError {
			return nil, NewRemoteError(envelopeMessage(body), res.StatusCode)
		}

		return &response{statusCode: res.StatusCode, body: body}, nil
	})
	if err != nil {
		l.Error().Err(err).Msg("Service request failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s", ErrNetwork, err.Error())
	}

	res := v.(*response)
	if res.statusCode >= http.StatusBadRequest {
		msg := envelopeMessage(res.body)
		l.Debug().Int("status", res.statusCode).Str("message", msg).Msg("Service rejected request")
		return NewRemoteError(msg, res.statusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

func (s *Service) request(
	ctx context.Context,
	method string,
	endpoint string,
	token string,
	bodyParams interface{},
) (*http.Response, error) {
	fullURL := s.apiURL + endpoint
	l := zerolog.Ctx(ctx).With().Str("url", fullURL).Logger()

	var rawJSON []byte
	if bodyParams != nil {
		b, err := json.Marshal(bodyParams)
		if err != nil {
			return nil, fmt.Errorf("json encode: %w", err)
		}
		rawJSON = b
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(rawJSON))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	l.Debug().Msg("Doing request")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	return res, nil
}
