package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fintech/internal/app/apperr"
	"fintech/internal/app/logger"
	"fintech/internal/app/model"
)

const msgInvalidBody = "Invalid request body"

const maxBodySize = 1 << 20

// readBody into json struct, refusing bodies over maxBodySize
func readBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	_ = r.Body.Close()
	if err != nil {
		return fmt.Errorf("body read: %w", err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

func jsonString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// rawText turns a JSON string or number into its text, empty for null or absent values
func rawText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}

	return s
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// WriteError formatted in json
func WriteError(w http.ResponseWriter, err error, statusCode int) {
	WriteResponse(w, &envelope{Message: err.Error()}, statusCode)
}

// WriteResponse formatted in json
func WriteResponse(w http.ResponseWriter, v interface{}, statusCode int) {
	resBody, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(resBody)
}

// writeFailure maps the error kind to a status; unknown failures become 500 with fallback
func writeFailure(w http.ResponseWriter, l logger.Logger, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		l.Error().Err(err).Msg("Internal error")
		WriteResponse(w, &envelope{Message: fallback}, status)
		return
	}

	l.Debug().Err(err).Int("status", status).Msg("Request rejected")
	WriteResponse(w, &envelope{Message: apperr.Message(err, err.Error())}, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrStorage):
		return http.StatusInternalServerError
	case errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, apperr.ErrInsufficientFunds),
		errors.Is(err, apperr.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type (
	ContextKeyUser  struct{}
	ContextKeyToken struct{}
)

func ReadContextUser(ctx context.Context) (*model.User, error) {
	v := ctx.Value(ContextKeyUser{})
	if user, ok := v.(*model.User); ok {
		return user, nil
	}

	return nil, apperr.ErrUnauthorized
}

func readContextToken(ctx context.Context) string {
	s, _ := ctx.Value(ContextKeyToken{}).(string)
	return s
}
