package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastplay/tokenarcade/internal/ledger"
	"github.com/fastplay/tokenarcade/internal/session"
)

// Deps are the collaborators the API exposes over the wire.
type Deps struct {
	Ledger   *ledger.Service
	Sessions *session.Manager
}

// NewRouter constructs the chi router with all API endpoints registered.
// Every wallet and session route runs behind the auth middleware.
func NewRouter(deps Deps) http.Handler {
	h := NewHandler(deps)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/games", h.ListGamesHandler)

	r.Group(func(r chi.Router) {
		r.Use(RequireAccount)

		r.Get("/wallet/balance", h.GetBalanceHandler)
		r.Get("/wallet/entries", h.ListEntriesHandler)
		r.Post("/wallet/purchase", h.PurchaseHandler)

		r.Post("/games/{gameSlug}/lock", h.LockStakeHandler)
		r.Get("/sessions/{sessionId}", h.GetSessionHandler)
		r.Post("/sessions/{sessionId}/charge", h.ChargeRoundHandler)
		r.Post("/sessions/{sessionId}/settle", h.SettleHandler)
		r.Post("/sessions/{sessionId}/abandon", h.AbandonHandler)
	})

	return r
}
