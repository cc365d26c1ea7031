package handler

import (
	"context"
	"errors"
	"net/http"

	"fintech/internal/app/apperr"
	"fintech/internal/app/logger"
	"fintech/internal/app/model"
	"fintech/internal/app/service/account"
	"fintech/internal/app/session"
)

type AccountService interface {
	Register(ctx context.Context, in account.Credentials) (string, error)
	Login(ctx context.Context, in account.Credentials) (*model.Account, error)
	Balance(ctx context.Context, userID string) (*model.Account, error)
	User(ctx context.Context, userID string) (*model.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	SetPIN(ctx context.Context, userID, password, pin string) error
}

// AccountService interface implementation
var _ AccountService = (*account.Service)(nil)

type UserHandler struct {
	session  session.Manager
	accounts AccountService
}

func NewUserHandler(accounts AccountService, sm session.Manager) *UserHandler {
	return &UserHandler{
		session:  sm,
		accounts: accounts,
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(r.Context(), "Handler.User.Register")

	in := account.Credentials{}
	if err := readBody(w, r, &in); err != nil {
		log.Debug().Err(err).Msg("Body read failed")
		WriteResponse(w, &envelope{Message: msgInvalidBody}, http.StatusBadRequest)
		return
	}

	id, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeFailure(w, log, err, "Server error during registration")
		return
	}

	out := struct {
		envelope
		UserID string `json:"userId"`
	}{
		envelope: envelope{Success: true, Message: "User registered successfully"},
		UserID:   id,
	}

	WriteResponse(w, out, http.StatusCreated)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(r.Context(), "Handler.User.Login")

	in := account.Credentials{}
	if err := readBody(w, r, &in); err != nil {
		WriteResponse(w, &envelope{Message: msgInvalidBody}, http.StatusBadRequest)
		return
	}

	acc, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		writeFailure(w, log, err, "Server error during login")
		return
	}

	token, err := h.session.Create(r.Context(), &model.User{ID: acc.ID, Username: acc.Username})
	if err != nil {
		writeFailure(w, log, err, "Server error during login")
		return
	}

	out := struct {
		envelope
		User  *model.Account `json:"user"`
		Token string         `json:"token"`
	}{
		envelope: envelope{Success: true, Message: "Login successful"},
		User:     acc,
		Token:    token,
	}

	w.Header().Add("Authorization", "Bearer "+token)

	WriteResponse(w, out, http.StatusOK)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := ReadContextUser(r.Context())
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	out := struct {
		envelope
		User *model.Account `json:"user"`
	}{
		envelope: envelope{Success: true},
		User:     u.Account(),
	}

	WriteResponse(w, out, http.StatusOK)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(r.Context(), "Handler.User.ChangePassword")

	u, err := ReadContextUser(r.Context())
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}{}
	if err := readBody(w, r, &in); err != nil {
		WriteResponse(w, &envelope{Message: msgInvalidBody}, http.StatusBadRequest)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), u.ID, in.CurrentPassword, in.NewPassword); err != nil {
		writeFailure(w, log, err, "Server error changing password")
		return
	}

	WriteResponse(w, &envelope{Success: true, Message: "Password changed"}, http.StatusOK)
}

func (h *UserHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(r.Context(), "Handler.User.SetPIN")

	u, err := ReadContextUser(r.Context())
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		Password string `json:"password"`
		PIN      string `json:"pin"`
	}{}
	if err := readBody(w, r, &in); err != nil {
		WriteResponse(w, &envelope{Message: msgInvalidBody}, http.StatusBadRequest)
		return
	}

	if err := h.accounts.SetPIN(r.Context(), u.ID, in.Password, in.PIN); err != nil {
		writeFailure(w, log, err, "Server error setting PIN")
		return
	}

	WriteResponse(w, &envelope{Success: true, Message: "PIN set"}, http.StatusOK)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	log := logger.Get(r.Context(), "Handler.User.Logout")

	if err := h.session.Destroy(r.Context(), readContextToken(r.Context())); err != nil {
		if errors.Is(err, session.ErrInvalidToken) {
			WriteError(w, apperr.ErrUnauthorized, http.StatusUnauthorized)
			return
		}
		writeFailure(w, log, err, "Server error during logout")
		return
	}

	WriteResponse(w, &envelope{Success: true, Message: "Logged out"}, http.StatusOK)
}
