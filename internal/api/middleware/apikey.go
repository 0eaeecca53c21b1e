package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/bjjsocial/bjjsocial/internal/api/models"
)

// clientKey is the context key for the authenticated API client.
type clientKey struct{}

// APIKeys maps a client name to its key.
type APIKeys map[string]string

// ParseAPIKeys parses "name:key,name:key". Entries without a name use the
// key's position ("client1", "client2", ...).
func ParseAPIKeys(s string) APIKeys {
	keys := make(APIKeys)
	for i, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, key, ok := strings.Cut(entry, ":")
		if !ok {
			name, key = "client"+strconv.Itoa(i+1), entry
		}
		if key = strings.TrimSpace(key); key != "" {
			keys[strings.TrimSpace(name)] = key
		}
	}
	return keys
}

// RequireAPIKey guards operator endpoints with a bearer API key. With no keys
// configured every request passes.
func RequireAPIKey(keys APIKeys) func(http.Handler) http.Handler {
	digests := make(map[string][32]byte, len(keys))
	for name, key := range keys {
		digests[name] = sha256.Sum256([]byte(key))
	}

	return func(next http.Handler) http.Handler {
		if len(digests) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "

			header := r.Header.Get("Authorization")
			if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "missing bearer API key")
				return
			}

			presented := sha256.Sum256([]byte(header[len(bearerPrefix):]))
			client := ""
			for name, digest := range digests {
				if subtle.ConstantTimeCompare(presented[:], digest[:]) == 1 {
					client = name
				}
			}
			if client == "" {
				writeUnauthorized(w, r, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), clientKey{}, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClient returns the authenticated API client name, or "".
func GetClient(ctx context.Context) string {
	if name, ok := ctx.Value(clientKey{}).(string); ok {
		return name
	}
	return ""
}

// writeUnauthorized writes a 401 problem. The response package imports this
// one, so the problem is built here.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="bjj-export"`)
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}
