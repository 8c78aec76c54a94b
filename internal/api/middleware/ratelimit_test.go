package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/gpstunnel/gpstunnel/internal/api/middleware"
	"github.com/gpstunnel/gpstunnel/internal/auth"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitByIP(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute})(okHandler)

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/search/places", http.NoBody)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, send("203.0.113.1").Code)

	limited := send("203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", limited.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusOK, send("203.0.113.2").Code, "other clients keep their own budget")
}

func TestRateLimitBySession(t *testing.T) {
	r := chi.NewRouter()
	r.With(middleware.RateLimitBySession(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute})).
		Put("/v1/tour-sessions/{sessionId}/location", okHandler)

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodPut, "/v1/tour-sessions/"+session+"/location", http.NoBody)
		req.RemoteAddr = "198.51.100.7:5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("sess_a"))
	assert.Equal(t, http.StatusTooManyRequests, send("sess_a"))
	assert.Equal(t, http.StatusOK, send("sess_b"), "sessions behind one IP are limited independently")
}

func TestRateLimitBySubject(t *testing.T) {
	svc := testJWTService()
	limiter := middleware.RateLimitBySubject(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute})
	handler := middleware.RequireRole(svc, auth.RoleAdmin)(limiter(okHandler))

	send := func(subject string) int {
		token, _, err := svc.IssueToken(subject, auth.RoleAdmin)
		if err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/tour-points", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"))
	assert.Equal(t, http.StatusOK, send("bob"))
}

func TestRateLimitTiers(t *testing.T) {
	assert.Less(t, middleware.MapsRateLimit.RequestLimit, middleware.StandardRateLimit.RequestLimit)
	assert.Less(t, middleware.AdminRateLimit.RequestLimit, middleware.MapsRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.LocationRateLimit.WindowLength)
}
