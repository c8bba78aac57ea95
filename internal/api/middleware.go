package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

func (s *SpruceApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *SpruceApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Resolve(r)
		if err != nil {
			if !errors.Is(err, ErrTokenRequired) {
				s.log.Printf("resolve session: %v", err)
			}
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := WithSession(r.Context(), session)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

// apiKeyMiddleware authenticates developer API requests with the
// X-API-Key header. The key's prefix locates the stored hash; the rest
// is verified against it.
func (s *SpruceApp) apiKeyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get("X-API-Key")
		if rawKey == "" || !strings.HasPrefix(rawKey, apiKeyScheme) {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		prefix := apiKeyPrefix(rawKey)
		key, err := s.db.GetApiKeyByPrefix(prefix)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.log.Printf("get api key: %v", err)
			}
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if !verifyPassword(key.KeyHash, rawKey) {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := WithSession(r.Context(), Session{UserId: key.AccountId})
		next(w, r.WithContext(ctx))
	}
}
