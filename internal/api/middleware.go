package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// OwnerHeader carries the authenticated user id set by the fronting
// application.
const OwnerHeader = "X-Owner-ID"

// authMiddleware requires the configured API key on everything but the
// health check. Browsers cannot set headers on a websocket handshake, so
// a token query parameter is accepted as well.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("token")
		if auth := r.Header.Get("Authorization"); auth != "" {
			var ok bool
			token, ok = strings.CutPrefix(auth, "Bearer ")
			if !ok {
				writeUnauthorizedError(w, "invalid authorization header")
				return
			}
		}
		if token == "" {
			writeUnauthorizedError(w, "missing authorization header")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIKey)) != 1 {
			writeUnauthorizedError(w, "invalid api key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()[:8]
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// owner extracts the caller's owner id, writing a 401 when it is absent.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(OwnerHeader)
	if owner == "" {
		owner = r.URL.Query().Get("owner")
	}
	if owner == "" {
		writeUnauthorizedError(w, "missing "+OwnerHeader+" header")
		return "", false
	}
	if err := validateOwner(owner); err != nil {
		writeValidationError(w, err.Error(), nil)
		return "", false
	}
	return owner, true
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(s.cfg.Origins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Origins {
		if origin == allowed {
			return true
		}
	}
	return false
}
