package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/middleware"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/testutil"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		setupMocks     func(*testutil.MockAuthService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "valid token",
			header: "Bearer good-token",
			setupMocks: func(m *testutil.MockAuthService) {
				m.On("ValidateAccessToken", "good-token").Return("user-1", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "user-1",
		},
		{
			name:           "missing header",
			setupMocks:     func(m *testutil.MockAuthService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "Authorization header required",
		},
		{
			name:           "wrong scheme",
			header:         "Basic abc",
			setupMocks:     func(m *testutil.MockAuthService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "Invalid authorization header format",
		},
		{
			name:   "expired token",
			header: "Bearer old-token",
			setupMocks: func(m *testutil.MockAuthService) {
				m.On("ValidateAccessToken", "old-token").Return("", token.ErrExpired)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "Token expired",
		},
		{
			name:   "bad signature",
			header: "Bearer forged",
			setupMocks: func(m *testutil.MockAuthService) {
				m.On("ValidateAccessToken", "forged").Return("", token.ErrInvalidSignature)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "Invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(testutil.MockAuthService)
			tt.setupMocks(svc)

			r := gin.New()
			r.GET("/me", middleware.NewAuthMiddleware(svc, testutil.TestLogger()).RequireAuth(), func(c *gin.Context) {
				c.String(http.StatusOK, c.GetString(middleware.UserIDKey))
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestRedisRateLimiter(t *testing.T) {
	mr, client := testutil.SetupMiniRedis(t)
	limiter := middleware.NewRateLimiter(client, 3, time.Minute, testutil.TestLogger())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, count, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, int64(i), count)
	}

	allowed, count, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(4), count)

	// other clients have their own budget
	allowed, _, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0))
}

func TestRateLimitMiddleware(t *testing.T) {
	_, client := testutil.SetupMiniRedis(t)
	limiter := middleware.NewRateLimiter(client, 2, time.Minute, testutil.TestLogger())

	r := gin.New()
	r.Use(middleware.RateLimit(limiter, testutil.TestLogger()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
		if i == 0 {
			assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr, client := testutil.SetupMiniRedis(t)
	limiter := middleware.NewRateLimiter(client, 1, time.Minute, testutil.TestLogger())
	mr.Close()

	r := gin.New()
	r.Use(middleware.RateLimit(limiter, testutil.TestLogger()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := middleware.NewNoOpRateLimiter(testutil.TestLogger())
	for i := 0; i < 5; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "client")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.Zero(t, limiter.Limit())
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		wantHSTS   bool
	}{
		{"development", false, false},
		{"production", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.SecurityHeaders(tt.production))
			r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Forwarded-Proto", "https")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
			assert.Equal(t, tt.wantHSTS, w.Header().Get("Strict-Transport-Security") != "")
		})
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		origin          string
		method          string
		wantStatus      int
		wantAllowed     string
		wantCredentials string
	}{
		{"allowed origin", []string{"https://app.example.com"}, "https://app.example.com", http.MethodGet, http.StatusOK, "https://app.example.com", "true"},
		{"foreign origin", []string{"https://app.example.com"}, "https://evil.example.com", http.MethodGet, http.StatusForbidden, "", ""},
		{"no allow list", nil, "https://any.example.com", http.MethodGet, http.StatusOK, "*", ""},
		{"no origin header", []string{"https://app.example.com"}, "", http.MethodGet, http.StatusOK, "", ""},
		{"preflight", []string{"https://app.example.com"}, "https://app.example.com", http.MethodOptions, http.StatusNoContent, "https://app.example.com", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.CORS(tt.origins))
			r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
