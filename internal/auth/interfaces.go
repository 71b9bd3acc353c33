package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lafi-app/lostfound-api/internal/user"
)

// TokenService defines the interface for access token creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(userID uuid.UUID, role user.Role, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// UserDirectory is the persistent store of account records, implemented by
// user.Repository.
type UserDirectory interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByProvider(ctx context.Context, provider user.Provider, providerID string) (*user.User, error)
	GetByVerificationToken(ctx context.Context, token string, now time.Time) (*user.User, error)
	MarkEmailVerified(ctx context.Context, userID uuid.UUID) error
	UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	SetPasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ListActiveResetRequests(ctx context.Context, now time.Time) ([]*user.User, error)
	CompletePasswordReset(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// RateLimiter throttles abuse-prone endpoints, implemented by
// ratelimit.Limiter. The purpose-less methods share the email endpoint
// budget; the WithPurpose variants keep separate budgets per endpoint group.
type RateLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip string) (bool, error)
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequest(ctx context.Context, ip string) error
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}

// ExternalIdentity is the profile an OAuth provider attests to after a
// successful handshake.
type ExternalIdentity struct {
	Provider   user.Provider
	ProviderID string
	Name       string
	Email      string
}

// IdentityProvider resolves an OAuth authorization code into an attested
// identity. Implementations live in internal/oauth.
type IdentityProvider interface {
	Name() user.Provider
	AuthCodeURL(state string) string
	ResolveIdentity(ctx context.Context, code string) (*ExternalIdentity, error)
}
