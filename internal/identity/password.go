package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/password"
)

// dummyHash is compared against when there is no stored hash, so unknown
// emails and passwordless accounts pay the same bcrypt cost.
var dummyHash = sync.OnceValue(func() string {
	h, err := password.Hash("placeholder-password")
	if err != nil {
		panic(err)
	}
	return h
})

// PasswordProvider authenticates users by email and bcrypt password.
type PasswordProvider struct {
	users  repository.UserRepository
	logger *slog.Logger
	verify func(plaintext, hash string) (bool, error)
}

func NewPasswordProvider(users repository.UserRepository, logger *slog.Logger) *PasswordProvider {
	return &PasswordProvider{users: users, logger: logger, verify: password.Verify}
}

// Authenticate returns the user owning email when plaintext matches.
// Unknown emails, accounts without a password and wrong passwords all
// yield ErrInvalidCredentials.
func (p *PasswordProvider) Authenticate(ctx context.Context, email, plaintext string) (*models.User, error) {
	email = NormalizeEmail(email)

	user, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			p.verify(plaintext, dummyHash())
			p.logger.Warn("⚠️ [Identity] User not found", "email", email)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.HasPassword() {
		p.verify(plaintext, dummyHash())
		p.logger.Warn("⚠️ [Identity] Account has no password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	ok, err := p.verify(plaintext, *user.PasswordHash)
	if err != nil {
		p.logger.Error("❌ [Identity] Stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		p.logger.Warn("⚠️ [Identity] Invalid password", "email", email)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
