package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/api"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/handler"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/identity"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/middleware"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/testutil"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(svc service.AuthService, external identity.ExternalProvider) *gin.Engine {
	logger := testutil.TestLogger()
	return api.SetupRouter(
		testutil.TestConfig(),
		handler.NewAuthHandler(svc, external, false, logger),
		middleware.NewAuthMiddleware(svc, logger),
		middleware.NewNoOpRateLimiter(logger),
		logger,
	)
}

// setupIntegrationRouter wires real services over an in-memory database.
func setupIntegrationRouter(t *testing.T) *gin.Engine {
	db := testutil.SetupTestDB(t)
	clock := testutil.NewClock(time.Now())
	logger := testutil.TestLogger()

	tokens := service.NewTokenService(
		repository.NewRefreshTokenRepository(db),
		testutil.NewSigner(t, clock),
		token.NewHasher(nil),
		service.TokenServiceConfig{},
		logger,
		service.WithClock(clock.Now),
	)
	auth := service.NewAuthService(repository.NewUserRepository(db), tokens, nil, logger)
	return setupRouter(auth, identity.NewDisabledProvider())
}

func doJSON(r *gin.Engine, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	r := setupRouter(new(testutil.MockAuthService), identity.NewDisabledProvider())

	w := doJSON(r, http.MethodGet, testutil.HealthCheckEndpoint, nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestAuthFlow(t *testing.T) {
	r := setupIntegrationRouter(t)

	// signup
	w := doJSON(r, http.MethodPost, testutil.SignupEndpoint, map[string]string{
		"email":    "test@example.com",
		"password": "password123",
		"name":     "Test User",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	signup := decode(t, w)
	userID := signup["user_id"].(string)
	assert.NotEmpty(t, signup["access"])
	assert.NotEmpty(t, signup["refresh"])
	assert.NotEmpty(t, signup["jti"])

	// duplicate signup
	w = doJSON(r, http.MethodPost, testutil.SignupEndpoint, map[string]string{
		"email":    "test@example.com",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// login
	w = doJSON(r, http.MethodPost, testutil.LoginEndpoint, map[string]string{
		"email":    "test@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	login := decode(t, w)
	assert.Equal(t, userID, login["user_id"])

	// me
	w = doJSON(r, http.MethodGet, testutil.MeEndpoint, nil, login["access"].(string))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, decode(t, w)["user_id"])

	// refresh, then replay the consumed token
	original := login["refresh"].(string)
	w = doJSON(r, http.MethodPost, testutil.RefreshEndpoint, map[string]string{"refresh": original}, "")
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decode(t, w)
	assert.NotEqual(t, original, rotated["refresh"])

	w = doJSON(r, http.MethodPost, testutil.RefreshEndpoint, map[string]string{"refresh": original}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// logout the rotated token
	w = doJSON(r, http.MethodPost, testutil.LogoutEndpoint, map[string]string{"refresh": rotated["refresh"].(string)}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = doJSON(r, http.MethodPost, testutil.RefreshEndpoint, map[string]string{"refresh": rotated["refresh"].(string)}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// logout everywhere kills the signup token too
	w = doJSON(r, http.MethodPost, testutil.LogoutAllEndpoint, nil, login["access"].(string))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, testutil.RefreshEndpoint, map[string]string{"refresh": signup["refresh"].(string)}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupValidation(t *testing.T) {
	r := setupRouter(new(testutil.MockAuthService), identity.NewDisabledProvider())

	tests := []struct {
		name string
		body map[string]string
	}{
		{"invalid email", map[string]string{"email": "invalid-email", "password": "password123"}},
		{"short password", map[string]string{"email": "test@example.com", "password": "short"}},
		{"missing email", map[string]string{"password": "password123"}},
		{"missing password", map[string]string{"email": "test@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, testutil.SignupEndpoint, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSignupAcceptsSixCharacterPassword(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "test@example.com"}
	svc := new(testutil.MockAuthService)
	svc.On("Signup", mock.Anything, "test@example.com", "abc123", (*string)(nil)).
		Return(user, &service.TokenPair{AccessToken: "access", RefreshToken: "refresh", TokenID: "jti-1"}, nil)
	r := setupRouter(svc, identity.NewDisabledProvider())

	w := doJSON(r, http.MethodPost, testutil.SignupEndpoint, map[string]string{
		"email":    "test@example.com",
		"password": "abc123",
	}, "")

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	svc.AssertExpectations(t)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{"reuse detected", service.ErrReuseDetected, http.StatusUnauthorized, "Invalid refresh token"},
		{"invalid token", service.ErrInvalidToken, http.StatusUnauthorized, "Invalid refresh token"},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(testutil.MockAuthService)
			svc.On("Refresh", mock.Anything, "raw").Return(nil, tt.err)
			r := setupRouter(svc, identity.NewDisabledProvider())

			w := doJSON(r, http.MethodPost, testutil.RefreshEndpoint, map[string]string{"refresh": "raw"}, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			assert.NotContains(t, w.Body.String(), "connection refused")
			svc.AssertExpectations(t)
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc := new(testutil.MockAuthService)
	svc.On("Login", mock.Anything, "test@example.com", "wrong").Return(nil, nil, service.ErrInvalidCredentials)
	r := setupRouter(svc, identity.NewDisabledProvider())

	w := doJSON(r, http.MethodPost, testutil.LoginEndpoint, map[string]string{
		"email":    "test@example.com",
		"password": "wrong",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
}

func TestLogoutUnknownToken(t *testing.T) {
	svc := new(testutil.MockAuthService)
	svc.On("Logout", mock.Anything, "unknown").Return(repository.ErrTokenNotFound)
	r := setupRouter(svc, identity.NewDisabledProvider())

	w := doJSON(r, http.MethodPost, testutil.LogoutEndpoint, map[string]string{"refresh": "unknown"}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := setupRouter(new(testutil.MockAuthService), identity.NewDisabledProvider())

	for _, path := range []string{testutil.MeEndpoint, testutil.LogoutAllEndpoint} {
		method := http.MethodGet
		if path == testutil.LogoutAllEndpoint {
			method = http.MethodPost
		}
		w := doJSON(r, method, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestGoogleDisabled(t *testing.T) {
	r := setupRouter(new(testutil.MockAuthService), identity.NewDisabledProvider())

	w := doJSON(r, http.MethodGet, testutil.GoogleEndpoint, nil, "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = doJSON(r, http.MethodGet, testutil.GoogleCallbackURL+"?code=abc&state=xyz", nil, "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestGoogleFlow(t *testing.T) {
	external := new(testutil.MockExternalProvider)
	external.On("Enabled").Return(true)
	external.On("AuthCodeURL", mock.AnythingOfType("string")).Return("https://accounts.example.com/consent", nil)

	user := &models.User{ID: "user-1", Email: "g@example.com"}
	svc := new(testutil.MockAuthService)
	svc.On("LoginWithProvider", mock.Anything, external, "abc").Return(user, &service.TokenPair{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenID:      "jti-1",
	}, nil)

	r := setupRouter(svc, external)

	// start sets the state cookie and redirects
	w := doJSON(r, http.MethodGet, testutil.GoogleEndpoint, nil, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://accounts.example.com/consent", w.Header().Get("Location"))

	var state *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "oauth_state" {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)

	// callback with a mismatched state
	req := httptest.NewRequest(http.MethodGet, testutil.GoogleCallbackURL+"?code=abc&state=forged", nil)
	req.AddCookie(state)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// callback with the issued state
	req = httptest.NewRequest(http.MethodGet, testutil.GoogleCallbackURL+"?code=abc&state="+state.Value, nil)
	req.AddCookie(state)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "refresh", body["refresh"])
	assert.Equal(t, "jti-1", body["jti"])

	svc.AssertExpectations(t)
}
