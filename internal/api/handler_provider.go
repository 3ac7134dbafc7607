package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fastprodman/PointLedger/internal/infra/userlock"
	"github.com/fastprodman/PointLedger/internal/repos/balances"
	"github.com/fastprodman/PointLedger/internal/repos/histories"
	"github.com/fastprodman/PointLedger/internal/services/points"
	"github.com/go-chi/chi/v5"
)

const (
	maxBodyBytes = 1 << 20

	// statusClientClosedRequest is the nginx convention for a caller that
	// went away before the response was ready.
	statusClientClosedRequest = 499
)

// Ledger is the part of points.Service the handlers use.
type Ledger interface {
	GetBalance(ctx context.Context, userID uint64) (balances.Balance, error)
	GetHistory(ctx context.Context, userID uint64) ([]histories.Record, error)
	Charge(ctx context.Context, userID uint64, amount int64) (balances.Balance, error)
	Use(ctx context.Context, userID uint64, amount int64) (balances.Balance, error)
	Audit(ctx context.Context, userID uint64) (points.AuditReport, error)
}

var _ Ledger = (*points.Service)(nil)

// HandlerProvider wraps a Ledger and exposes HTTP handlers.
type HandlerProvider struct {
	svc Ledger
	log *slog.Logger
}

func NewHandler(svc Ledger, log *slog.Logger) *HandlerProvider {
	if log == nil {
		log = slog.Default()
	}

	return &HandlerProvider{svc: svc, log: log}
}

// --- Wire types ---

type balanceResponse struct {
	UserID       uint64 `json:"userId"`
	Point        int64  `json:"point"`
	UpdateMillis int64  `json:"updateMillis"`
}

func newBalanceResponse(b balances.Balance) balanceResponse {
	return balanceResponse{
		UserID:       b.UserID,
		Point:        b.Amount,
		UpdateMillis: b.UpdatedAt.UnixMilli(),
	}
}

type recordResponse struct {
	ID         uint64 `json:"id"`
	UserID     uint64 `json:"userId"`
	Amount     int64  `json:"amount"`
	Type       string `json:"type"`
	TimeMillis int64  `json:"timeMillis"`
}

type auditResponse struct {
	UserID     uint64 `json:"userId"`
	Point      int64  `json:"point"`
	Replayed   int64  `json:"replayed"`
	Records    int    `json:"records"`
	Consistent bool   `json:"consistent"`
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseUserIDFromPath reads `{userId}` from routes like /point/{userId}/charge.
func parseUserIDFromPath(r *http.Request) (uint64, error) {
	idStr := chi.URLParam(r, "userId")
	if idStr == "" {
		return 0, errors.New("missing userId")
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid userId: %w", err)
	}

	if id == 0 {
		return 0, errors.New("invalid userId: must be positive")
	}

	return id, nil
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (int64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var req amountRequest

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, errors.New("empty body")
		}

		return 0, errors.New("invalid JSON")
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return 0, errors.New("invalid JSON: body must hold a single object")
	}

	return req.Amount, nil
}

// writeLedgerError maps service errors onto status codes. Every message names
// the user. Unexpected errors are logged and hidden behind a generic message.
func (h *HandlerProvider) writeLedgerError(w http.ResponseWriter, r *http.Request, userID uint64, err error) {
	var insufficient *points.InsufficientBalanceError

	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusConflict, insufficient.Error())
	case errors.Is(err, points.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, fmt.Sprintf("insufficient balance for user %d", userID))
	case errors.Is(err, points.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"invalid amount for user %d: must be a positive integer that keeps the balance in range", userID))
	case errors.Is(err, userlock.ErrTimeout):
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("ledger busy for user %d, retry later", userID))
	case errors.Is(err, context.Canceled):
		h.log.DebugContext(r.Context(), "ledger request canceled by caller",
			"userId", userID, "requestId", RequestIDFrom(r.Context()))
		writeError(w, statusClientClosedRequest, fmt.Sprintf("request for user %d canceled", userID))
	default:
		h.log.ErrorContext(r.Context(), "ledger request failed",
			"userId", userID, "path", r.URL.Path, "requestId", RequestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error for user %d", userID))
	}
}

// --- Handlers ---

// GetBalanceHandler handles GET /point/{userId}
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	bal, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, r, userID, err)
		return
	}

	writeJSON(w, http.StatusOK, newBalanceResponse(bal))
}

// GetHistoryHandler handles GET /point/{userId}/histories
func (h *HandlerProvider) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	recs, err := h.svc.GetHistory(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, r, userID, err)
		return
	}

	resp := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, recordResponse{
			ID:         rec.ID,
			UserID:     rec.UserID,
			Amount:     rec.Amount,
			Type:       string(rec.Kind),
			TimeMillis: rec.At.UnixMilli(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ChargeHandler handles PATCH /point/{userId}/charge
func (h *HandlerProvider) ChargeHandler(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Charge)
}

// UseHandler handles PATCH /point/{userId}/use
func (h *HandlerProvider) UseHandler(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Use)
}

func (h *HandlerProvider) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, uint64, int64) (balances.Balance, error),
) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	amount, err := decodeAmount(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("user %d: %v", userID, err))
		return
	}

	bal, err := op(r.Context(), userID, amount)
	if err != nil {
		h.writeLedgerError(w, r, userID, err)
		return
	}

	writeJSON(w, http.StatusOK, newBalanceResponse(bal))
}

// AuditHandler handles GET /point/{userId}/audit. A balance that disagrees
// with its history is reported with status 500.
func (h *HandlerProvider) AuditHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	rep, err := h.svc.Audit(r.Context(), userID)
	if err != nil && !errors.Is(err, points.ErrLedgerMismatch) {
		h.writeLedgerError(w, r, userID, err)
		return
	}

	resp := auditResponse{
		UserID:     rep.UserID,
		Point:      rep.Balance,
		Replayed:   rep.Replayed,
		Records:    rep.Records,
		Consistent: err == nil,
	}

	if err != nil {
		h.log.ErrorContext(r.Context(), "ledger audit mismatch",
			"userId", userID, "balance", rep.Balance, "replayed", rep.Replayed)
		writeJSON(w, http.StatusInternalServerError, resp)

		return
	}

	writeJSON(w, http.StatusOK, resp)
}
