package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fastplay/tokenarcade/internal/api"
	"github.com/fastplay/tokenarcade/internal/ledger"
	ledgermem "github.com/fastplay/tokenarcade/internal/ledger/memory"
	"github.com/fastplay/tokenarcade/internal/session"
	sessionmem "github.com/fastplay/tokenarcade/internal/session/memory"
	"github.com/fastplay/tokenarcade/internal/settle"
)

func newTestServer(t *testing.T, accountID uint64, balance int64) *httptest.Server {
	t.Helper()

	store := ledgermem.New()
	store.Seed(accountID, balance)

	svc := ledger.NewService(store)
	manager := session.NewManager(svc, sessionmem.New(), settle.NewSeededPolicy(9))

	srv := httptest.NewServer(api.NewRouter(api.Deps{Ledger: svc, Sessions: manager}))
	t.Cleanup(srv.Close)

	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, account string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if account != "" {
		req.Header.Set("X-Account-ID", account)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	return resp.StatusCode, payload
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, 1, 100)

	tests := []struct {
		name    string
		account string
	}{
		{"missing_header", ""},
		{"non_numeric", "abc"},
		{"zero_id", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, _ := do(t, srv, http.MethodGet, "/wallet/balance", tt.account, nil)
			if code != http.StatusUnauthorized {
				t.Fatalf("want 401, got %d", code)
			}
		})
	}
}

func TestGamesEndpointIsPublic(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, 1, 0)

	code, payload := do(t, srv, http.MethodGet, "/games", "", nil)
	if code != http.StatusOK {
		t.Fatalf("want 200, got %d", code)
	}

	list, ok := payload["games"].([]any)
	if !ok || len(list) != 6 {
		t.Fatalf("want 6 games, got %v", payload["games"])
	}
}

func TestPurchaseAndBalance(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, 1, 0)

	code, payload := do(t, srv, http.MethodPost, "/wallet/purchase", "1",
		map[string]any{"amount": 500, "purchaseId": "p1"})
	if code != http.StatusOK {
		t.Fatalf("purchase: want 200, got %d (%v)", code, payload)
	}
	if payload["balance"].(float64) != 500 {
		t.Fatalf("balance: want 500, got %v", payload["balance"])
	}

	code, payload = do(t, srv, http.MethodPost, "/wallet/purchase", "1",
		map[string]any{"amount": 500, "purchaseId": ""})
	if code != http.StatusBadRequest {
		t.Fatalf("missing purchaseId: want 400, got %d (%v)", code, payload)
	}

	code, payload = do(t, srv, http.MethodGet, "/wallet/balance", "1", nil)
	if code != http.StatusOK || payload["balance"].(float64) != 500 {
		t.Fatalf("balance read: got %d %v", code, payload)
	}

	// unknown account
	code, _ = do(t, srv, http.MethodGet, "/wallet/balance", "9", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown account: want 404, got %d", code)
	}
}

func TestSessionFlowOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, 1, 100)

	code, payload := do(t, srv, http.MethodPost, "/games/archery-2d/lock", "1",
		map[string]any{"stake": 30})
	if code != http.StatusOK {
		t.Fatalf("lock: want 200, got %d (%v)", code, payload)
	}

	sid, _ := payload["sessionId"].(string)
	if sid == "" {
		t.Fatalf("no session id in %v", payload)
	}
	if payload["balance"].(float64) != 70 {
		t.Fatalf("balance after lock: want 70, got %v", payload["balance"])
	}

	code, payload = do(t, srv, http.MethodPost, "/sessions/"+sid+"/charge", "1",
		map[string]any{"round": 0})
	if code != http.StatusOK || payload["balance"].(float64) != 40 {
		t.Fatalf("charge: got %d %v", code, payload)
	}

	code, payload = do(t, srv, http.MethodPost, "/sessions/"+sid+"/settle", "1",
		map[string]any{"won": true, "payoutHint": 50})
	if code != http.StatusOK {
		t.Fatalf("settle: want 200, got %d (%v)", code, payload)
	}
	if payload["status"].(string) != "won" {
		t.Fatalf("status: want won, got %v", payload["status"])
	}

	payout := int64(payload["payout"].(float64))
	if payout < 36 || payout > 87 {
		t.Fatalf("payout out of bounds: %d", payout)
	}

	first := payload

	code, payload = do(t, srv, http.MethodPost, "/sessions/"+sid+"/settle", "1",
		map[string]any{"won": true, "payoutHint": 50})
	if code != http.StatusOK {
		t.Fatalf("settle retry: want 200, got %d", code)
	}
	if payload["balance"] != first["balance"] || payload["payout"] != first["payout"] {
		t.Fatalf("settle retry diverged: %v vs %v", first, payload)
	}

	// session visible for audit
	code, payload = do(t, srv, http.MethodGet, "/sessions/"+sid, "1", nil)
	if code != http.StatusOK || payload["status"].(string) != "settled" {
		t.Fatalf("session read: got %d %v", code, payload)
	}

	// entries show lock, round charge and payout
	code, payload = do(t, srv, http.MethodGet, "/wallet/entries", "1", nil)
	if code != http.StatusOK {
		t.Fatalf("entries: want 200, got %d", code)
	}

	entries, ok := payload["entries"].([]any)
	if !ok || len(entries) != 3 {
		t.Fatalf("want 3 entries, got %v", payload["entries"])
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, 1, 10)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"zero_stake", "/games/archery-2d/lock", map[string]any{"stake": 0}, http.StatusBadRequest},
		{"stake_over_balance", "/games/archery-2d/lock", map[string]any{"stake": 20}, http.StatusBadRequest},
		{"unknown_game", "/games/nope/lock", map[string]any{"stake": 5}, http.StatusNotFound},
		{"unknown_session_charge", "/sessions/missing/charge", map[string]any{"round": 0}, http.StatusNotFound},
		{"unknown_field", "/games/archery-2d/lock", map[string]any{"stake": 5, "bet": 1}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, _ := do(t, srv, http.MethodPost, tt.path, "1", tt.body)
			if code != tt.want {
				t.Fatalf("want %d, got %d", tt.want, code)
			}
		})
	}
}

func TestInsufficientFundsOnCharge(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, 1, 10)

	code, payload := do(t, srv, http.MethodPost, "/games/stop-the-timer/lock", "1",
		map[string]any{"stake": 10})
	if code != http.StatusOK {
		t.Fatalf("lock: want 200, got %d", code)
	}

	sid := payload["sessionId"].(string)

	code, _ = do(t, srv, http.MethodPost, "/sessions/"+sid+"/charge", "1",
		map[string]any{"round": 0})
	if code != http.StatusConflict {
		t.Fatalf("broke charge: want 409, got %d", code)
	}

	// balance untouched, session still active
	code, payload = do(t, srv, http.MethodGet, "/wallet/balance", "1", nil)
	if code != http.StatusOK || payload["balance"].(float64) != 0 {
		t.Fatalf("balance after failed charge: got %d %v", code, payload)
	}

	code, payload = do(t, srv, http.MethodGet, "/sessions/"+sid, "1", nil)
	if code != http.StatusOK || payload["status"].(string) != "active" {
		t.Fatalf("session after failed charge: got %d %v", code, payload)
	}
}
