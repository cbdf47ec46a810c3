package api

import (
	"context"
	"net/http"
	"strconv"
)

// The auth collaborator in front of this service resolves credentials and
// forwards the authenticated account id in this header. No header means no
// caller identity and no ledger effect.
const accountHeader = "X-Account-ID"

type ctxKey int

const accountKey ctxKey = iota

// RequireAccount rejects requests without a valid account id and stashes
// the id in the request context for handlers.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(accountHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(accountKey).(uint64)

	return id, ok
}
