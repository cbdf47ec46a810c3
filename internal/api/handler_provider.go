package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastplay/tokenarcade/internal/games"
	"github.com/fastplay/tokenarcade/internal/ledger"
	"github.com/fastplay/tokenarcade/internal/session"
)

// HandlerProvider wraps the ledger service and session manager and exposes
// HTTP handlers.
type HandlerProvider struct {
	deps Deps
}

// NewHandler returns a new handler provider.
func NewHandler(deps Deps) *HandlerProvider {
	return &HandlerProvider{deps: deps}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)

		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")

		return false
	}

	return true
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything
// unmapped surfaces generically; by construction no partial ledger effect
// can exist behind a failed call.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidStake),
		errors.Is(err, session.ErrRoundOutOfSequence),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrMissingKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrUnknownGame):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, session.ErrSessionNotActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func mustAccount(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, ok := accountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return 0, false
	}

	return id, true
}

// --- Handlers ---

// ListGamesHandler handles GET /games
func (h *HandlerProvider) ListGamesHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"games": games.All()})
}

// GetBalanceHandler handles GET /wallet/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mustAccount(w, r)
	if !ok {
		return
	}

	balance, err := h.deps.Ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

// ListEntriesHandler handles GET /wallet/entries
func (h *HandlerProvider) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mustAccount(w, r)
	if !ok {
		return
	}

	entries, err := h.deps.Ledger.Entries(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type purchaseRequest struct {
	Amount     int64  `json:"amount"`
	PurchaseID string `json:"purchaseId"`
}

// PurchaseHandler handles POST /wallet/purchase
func (h *HandlerProvider) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mustAccount(w, r)
	if !ok {
		return
	}

	var req purchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.PurchaseID == "" {
		writeError(w, http.StatusBadRequest, "purchaseId required")
		return
	}

	balance, err := h.deps.Ledger.Purchase(r.Context(), accountID, req.Amount, req.PurchaseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

type lockRequest struct {
	Stake int64 `json:"stake"`
}

// LockStakeHandler handles POST /games/{gameSlug}/lock
func (h *HandlerProvider) LockStakeHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mustAccount(w, r)
	if !ok {
		return
	}

	gameSlug := chi.URLParam(r, "gameSlug")

	var req lockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, balance, err := h.deps.Sessions.Start(r.Context(), accountID, gameSlug, req.Stake)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID,
		"balance":   balance,
	})
}

// GetSessionHandler handles GET /sessions/{sessionId}
func (h *HandlerProvider) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mustAccount(w, r)
	if !ok {
		return
	}

	sess, err := h.deps.Sessions.Get(r.Context(), accountID, chi.URLParam(r, "sessionId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

type chargeRequest struct {
	Round int `json:"round"`
}

// ChargeRoundHandler handles POST /sessions/{sessionId}/charge
func (h *HandlerProvider) ChargeRoundHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mustAccount(w, r)
	if !ok {
		return
	}

	var req chargeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	balance, rounds, err := h.deps.Sessions.ChargeRound(r.Context(), accountID, chi.URLParam(r, "sessionId"), req.Round)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balance":    balance,
		"roundCount": rounds,
	})
}

type settleRequest struct {
	Won        bool  `json:"won"`
	PayoutHint int64 `json:"payoutHint"`
}

// SettleHandler handles POST /sessions/{sessionId}/settle
func (h *HandlerProvider) SettleHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mustAccount(w, r)
	if !ok {
		return
	}

	var req settleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.deps.Sessions.Settle(r.Context(), accountID, chi.URLParam(r, "sessionId"), req.Won, req.PayoutHint)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// AbandonHandler handles POST /sessions/{sessionId}/abandon
func (h *HandlerProvider) AbandonHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mustAccount(w, r)
	if !ok {
		return
	}

	sess, err := h.deps.Sessions.Abandon(r.Context(), accountID, chi.URLParam(r, "sessionId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": sess.Status})
}
