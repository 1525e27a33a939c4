package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/vitalscan/vitalscan/monitor/internal/config"
)

// QueryParam is the fallback key location for clients that cannot set
// headers, such as browser WebSocket connections.
const QueryParam = "api_key"

// Guard enforces API key authentication on wrapped handlers. Its settings can
// be swapped at runtime with Set.
//
// Behaviour:
//   - If mode != "apikey" or the resolved key is empty, all requests pass.
//   - Otherwise the request must carry the key in the configured header, or
//     in the api_key query parameter.
//   - A missing or incorrect key returns 401 with a JSON error body.
type Guard struct {
	mu     sync.RWMutex
	mode   string
	header string
	key    string
}

// NewGuard returns a Guard configured from cfg. The key is read from the
// environment variable cfg.KeyEnv now, not per request.
func NewGuard(cfg config.AuthConfig) *Guard {
	g := &Guard{}
	g.Set(cfg)
	return g
}

// Set replaces the guard's settings.
func (g *Guard) Set(cfg config.AuthConfig) {
	header := cfg.Header
	if header == "" {
		header = config.DefaultAuthHeader
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = cfg.Mode
	g.header = header
	g.key = cfg.Key()
}

// Allow reports whether r carries valid credentials.
func (g *Guard) Allow(r *http.Request) bool {
	g.mu.RLock()
	mode, header, key := g.mode, g.header, g.key
	g.mu.RUnlock()

	if mode != "apikey" || key == "" {
		return true
	}
	got := r.Header.Get(header)
	if got == "" {
		got = r.URL.Query().Get(QueryParam)
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}

// Wrap returns next guarded by g.
func (g *Guard) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Allow(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
