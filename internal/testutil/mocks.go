package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/identity"
)

// ==================== MOCK USER REPOSITORY ====================

// MockUserRepository implements repository.UserRepository for testing
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// ==================== MOCK REFRESH TOKEN REPOSITORY ====================

// MockRefreshTokenRepository implements repository.RefreshTokenRepository for testing
type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Insert(ctx context.Context, token *models.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenRepository) MarkRevoked(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) ClaimForRotation(ctx context.Context, id string, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) MarkRotated(ctx context.Context, id, successorID string) error {
	args := m.Called(ctx, id, successorID)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// ==================== MOCK AUTH SERVICE ====================

// MockAuthService implements service.AuthService for testing
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, email, plaintext string, name *string) (*models.User, *service.TokenPair, error) {
	args := m.Called(ctx, email, plaintext, name)
	return userArg(args, 0), pairArg(args, 1), args.Error(2)
}

func (m *MockAuthService) Login(ctx context.Context, email, plaintext string) (*models.User, *service.TokenPair, error) {
	args := m.Called(ctx, email, plaintext)
	return userArg(args, 0), pairArg(args, 1), args.Error(2)
}

func (m *MockAuthService) LoginWithProvider(ctx context.Context, provider identity.ExternalProvider, code string) (*models.User, *service.TokenPair, error) {
	args := m.Called(ctx, provider, code)
	return userArg(args, 0), pairArg(args, 1), args.Error(2)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return pairArg(args, 0), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockAuthService) LogoutAll(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAuthService) ValidateAccessToken(accessToken string) (string, error) {
	args := m.Called(accessToken)
	return args.String(0), args.Error(1)
}

// ==================== MOCK EXTERNAL PROVIDER ====================

// MockExternalProvider implements identity.ExternalProvider for testing
type MockExternalProvider struct {
	mock.Mock
}

func (m *MockExternalProvider) Name() string {
	return "mock"
}

func (m *MockExternalProvider) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockExternalProvider) AuthCodeURL(state string) (string, error) {
	args := m.Called(state)
	return args.String(0), args.Error(1)
}

func (m *MockExternalProvider) Exchange(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(ctx, code)
	return userArg(args, 0), args.Error(1)
}

func userArg(args mock.Arguments, i int) *models.User {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*models.User)
}

func pairArg(args mock.Arguments, i int) *service.TokenPair {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*service.TokenPair)
}
