package bridge

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/storekit/wallet-bridge/internal/common"
	"github.com/storekit/wallet-bridge/internal/obs"
)

// ReplayGuard rejects duplicate provider callbacks. The page script attaches
// a fresh nonce to every callback it forwards; replaying one (retried fetch,
// duplicated tab) must not trigger a second backend round trip, because each
// callback settles exactly once.
type ReplayGuard struct {
	R   *redis.Client
	TTL time.Duration
}

func nonceKey(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return "wallet:cb:" + hex.EncodeToString(sum[:])
}

// Middleware enforces at-most-once delivery for callback endpoints.
func (g ReplayGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce := r.Header.Get("X-Callback-Nonce")
		if nonce == "" || g.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := g.R.SetNX(r.Context(), nonceKey(nonce), "seen", g.TTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "replay store error", nil)
			return
		}
		if !ok {
			if obs.CallbackReplayTotal != nil {
				obs.CallbackReplayTotal.Inc()
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, "{\"error\":{\"code\":\"CALLBACK_REPLAY\",\"message\":\"duplicate callback\"}}")
			return
		}
		next.ServeHTTP(w, r)
	})
}
