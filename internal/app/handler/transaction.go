package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fintech/internal/app/logger"
	"fintech/internal/app/model"
	"fintech/internal/app/service/history"
	"fintech/internal/app/service/transfer"
)

type (
	TransferService interface {
		Transfer(ctx context.Context, in transfer.Request) (*model.TransferResult, error)
	}
	HistoryService interface {
		ListForUser(ctx context.Context, userID string) ([]*model.HistoryEntry, error)
	}
)

var (
	_ TransferService = (*transfer.Service)(nil)
	_ HistoryService  = (*history.Service)(nil)
)

type TransactionHandler struct {
	accounts  AccountService
	transfers TransferService
	history   HistoryService
}

func NewTransactionHandler(accounts AccountService, transfers TransferService, history HistoryService) *TransactionHandler {
	return &TransactionHandler{
		accounts:  accounts,
		transfers: transfers,
		history:   history,
	}
}

func (h *TransactionHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Transaction.Balance")

	acc, err := h.accounts.Balance(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		writeFailure(w, l, err, "Server error fetching balance")
		return
	}

	out := struct {
		envelope
		Balance  decimal.Decimal `json:"balance"`
		Username string          `json:"username"`
	}{
		envelope: envelope{Success: true},
		Balance:  acc.Balance,
		Username: acc.Username,
	}

	l.Debug().Msgf("sending balance %s", jsonString(out))
	WriteResponse(w, out, http.StatusOK)
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Transaction.Transfer")

	in := &struct {
		FromUserID string          `json:"fromUserId"`
		ToUsername string          `json:"toUsername"`
		Amount     json.RawMessage `json:"amount"`
	}{}

	if err := readBody(w, r, in); err != nil {
		l.Debug().Err(err).Msg("Body read failed")
		WriteResponse(w, &envelope{Message: msgInvalidBody}, http.StatusBadRequest)
		return
	}

	res, err := h.transfers.Transfer(ctx, transfer.Request{
		FromUserID: in.FromUserID,
		ToUsername: in.ToUsername,
		Amount:     rawText(in.Amount),
	})
	if err != nil {
		writeFailure(w, l, err, "Server error during transfer")
		return
	}

	out := struct {
		envelope
		NewBalance  decimal.Decimal    `json:"newBalance"`
		Transaction *model.Transaction `json:"transaction"`
	}{
		envelope:    envelope{Success: true, Message: "Transfer successful"},
		NewBalance:  res.NewBalance,
		Transaction: res.Transaction,
	}

	WriteResponse(w, out, http.StatusOK)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Transaction.List")

	mm, err := h.history.ListForUser(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		writeFailure(w, l, err, "Server error fetching transactions")
		return
	}

	out := struct {
		envelope
		Transactions []*model.HistoryEntry `json:"transactions"`
	}{
		envelope:     envelope{Success: true},
		Transactions: mm,
	}

	WriteResponse(w, out, http.StatusOK)
}

// Health reports the process is serving
func Health(w http.ResponseWriter, _ *http.Request) {
	WriteResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}
