package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dan-divy/spruce/internal/database"
)

func TestAuthMiddleware(t *testing.T) {
	t.Run("rejects a request without a credential", func(t *testing.T) {
		app := newTestApp(t, &database.MockSpruceRepository{}, nil)

		called := false
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/api/account", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
		assert.False(t, called, "expected handler to not be called")
	})

	t.Run("attaches the session and disables caching", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("IsTokenRevoked", "jti-1").Return(false, nil).Once()

		app := newTestApp(t, db, nil)

		var gotUserId int
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, []byte("test-signing-key"), testClaims(7, "jti-1")))

		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.Equal(t, 7, gotUserId, "expected session user id in handler context")
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store", "expected caching to be disabled")
	})

	t.Run("rejects a revoked token", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("IsTokenRevoked", "jti-1").Return(true, nil).Once()

		app := newTestApp(t, db, nil)

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler to not be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, []byte("test-signing-key"), testClaims(7, "jti-1")))

		rr := httptest.NewRecorder()
		handler(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})
}

func TestApiKeyMiddleware(t *testing.T) {
	rawKey := "sk_0123456789abcdef0123456789abcdef"

	newKeyedApp := func(t *testing.T, db database.SpruceRepository) *SpruceApp {
		return newTestApp(t, db, nil)
	}

	t.Run("accepts a valid key", func(t *testing.T) {
		keyHash, err := hashPassword(rawKey)
		if err != nil {
			t.Fatalf("failed to hash test key: %v", err)
		}

		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("GetApiKeyByPrefix", apiKeyPrefix(rawKey)).Return(database.ApiKey{
			Id:        1,
			AccountId: 7,
			Prefix:    apiKeyPrefix(rawKey),
			KeyHash:   keyHash,
			CreatedAt: time.Now().UTC(),
		}, nil).Once()

		app := newKeyedApp(t, db)

		var gotUserId int
		handler := app.apiKeyMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
		req.Header.Set("X-API-Key", rawKey)

		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.Equal(t, 7, gotUserId, "expected key owner in handler context")
	})

	t.Run("rejects a missing key", func(t *testing.T) {
		app := newKeyedApp(t, &database.MockSpruceRepository{})

		handler := app.apiKeyMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler to not be called")
		})

		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})

	t.Run("rejects a key with the wrong scheme", func(t *testing.T) {
		app := newKeyedApp(t, &database.MockSpruceRepository{})

		handler := app.apiKeyMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler to not be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
		req.Header.Set("X-API-Key", "pk_0123456789abcdef")

		rr := httptest.NewRecorder()
		handler(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})

	t.Run("rejects a key that does not match the stored hash", func(t *testing.T) {
		otherHash, err := hashPassword("sk_differentkey")
		if err != nil {
			t.Fatalf("failed to hash test key: %v", err)
		}

		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("GetApiKeyByPrefix", apiKeyPrefix(rawKey)).Return(database.ApiKey{
			Id:        1,
			AccountId: 7,
			KeyHash:   otherHash,
		}, nil).Once()

		app := newKeyedApp(t, db)

		handler := app.apiKeyMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler to not be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
		req.Header.Set("X-API-Key", rawKey)

		rr := httptest.NewRecorder()
		handler(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})
}

func TestErrorHandler(t *testing.T) {
	app := newTestApp(t, &database.MockSpruceRepository{}, nil)

	handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
	assert.Equal(t, "close", rr.Header().Get("Connection"), "expected connection to be closed")
}
