package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lafi-app/lostfound-api/internal/logging"
	"github.com/lafi-app/lostfound-api/internal/user"
)

var (
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrNameRequired             = errors.New("name is required")
	ErrEmailRequired            = errors.New("email is required")
	ErrPasswordRequired         = errors.New("password is required")
	ErrPasswordTooShort         = errors.New("password must be at least 6 characters")
	ErrInvalidEmailFormat       = errors.New("invalid email format")
	ErrEmailNotVerified         = errors.New("email not verified, please check your inbox")
	ErrEmailTaken               = errors.New("email already registered")
	ErrEmailPendingVerification = errors.New("email already registered, verification pending")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrEmailAlreadyVerified     = errors.New("email already verified")
	ErrResendRejected           = errors.New("unable to resend verification email")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrOAuthEmailMissing        = errors.New("identity provider did not supply an email address")
)

// ProviderConflictError signals that the email belongs to an account owned by
// a different provider. Registration maps it to a conflict, login to a
// forbidden, and the OAuth callback refuses to link the accounts.
type ProviderConflictError struct {
	Provider user.Provider
}

func (e *ProviderConflictError) Error() string {
	return fmt.Sprintf("this email is already registered using %s, please log in with %s", e.Provider, e.Provider)
}

const (
	minPasswordLength         = 6
	verificationTokenLifetime = 1 * time.Hour
	passwordResetLifetime     = 15 * time.Minute
)

// Service handles authentication business logic
type Service struct {
	directory            UserDirectory
	refreshRepo          RefreshTokenRepository
	tokenService         TokenService
	emailService         EmailService
	hasher               *PasswordHasher
	logger               *logging.Logger
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
}

func NewService(
	directory UserDirectory,
	refreshRepo RefreshTokenRepository,
	tokenService TokenService,
	emailService EmailService,
	hasher *PasswordHasher,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	refreshTokenDuration time.Duration,
) *Service {
	return &Service{
		directory:            directory,
		refreshRepo:          refreshRepo,
		tokenService:         tokenService,
		emailService:         emailService,
		hasher:               hasher,
		logger:               logger,
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
	}
}

// NormalizeEmail lowercases and trims an email address. Every flow goes
// through this before touching the directory, which is what makes the email
// uniqueness invariant case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new local account and dispatches a verification email.
func (s *Service) Register(ctx context.Context, name, email, password string) (*user.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	normalizedEmail := NormalizeEmail(email)
	if len(normalizedEmail) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(normalizedEmail); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	// Pre-check so the conflict response can say which kind of account holds
	// the email. Purely advisory: the insert below is the race-safe check.
	existing, err := s.directory.GetByEmail(ctx, normalizedEmail)
	if err == nil {
		if !existing.IsLocal() {
			return nil, &ProviderConflictError{Provider: existing.Provider}
		}
		if existing.EmailVerified {
			return nil, ErrEmailTaken
		}
		return nil, ErrEmailPendingVerification
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := GenerateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}
	verificationExp := time.Now().Add(verificationTokenLifetime)

	newUser, err := s.directory.Create(ctx, &user.User{
		Name:                   strings.TrimSpace(name),
		Email:                  normalizedEmail,
		PasswordHash:           &passwordHash,
		Provider:               user.ProviderLocal,
		Role:                   user.RoleUser,
		EmailVerified:          false,
		EmailVerificationToken: &verificationToken,
		EmailVerificationExp:   &verificationExp,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			// Lost a registration race; the store's uniqueness constraint is
			// the canonical signal
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Send verification email in a goroutine (non-blocking). A send failure
	// never rolls back the account; the user can request a resend.
	go func() {
		emailCtx := context.Background()
		if err := s.emailService.SendVerificationEmail(emailCtx, normalizedEmail, verificationToken); err != nil {
			s.logger.Warn("failed to send verification email", "email", normalizedEmail, "error", err)
		}
	}()

	return newUser, nil
}

// Login authenticates a local user and returns the token pair plus the
// account projection for the response body.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthTokens, *user.User, error) {
	if email == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	existing, err := s.directory.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Deliberately indistinguishable from a wrong password
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !existing.IsLocal() {
		return nil, nil, &ProviderConflictError{Provider: existing.Provider}
	}

	if existing.PasswordHash == nil {
		// A LOCAL account without a hash violates the data invariants; treat
		// as bad credentials but make noise in the log
		s.logger.Error("local account has no password hash", "user_id", existing.ID)
		return nil, nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, *existing.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if !existing.EmailVerified {
		return nil, nil, ErrEmailNotVerified
	}

	tokens, err := s.generateTokens(ctx, existing.ID, existing.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return tokens, existing, nil
}

// LoginWithProvider resolves an attested OAuth identity to an account,
// creating one when neither the external id nor the email is known.
func (s *Service) LoginWithProvider(ctx context.Context, identity *ExternalIdentity) (*AuthTokens, *user.User, error) {
	if identity.Email == "" {
		// No anonymous OAuth accounts
		return nil, nil, ErrOAuthEmailMissing
	}
	normalizedEmail := NormalizeEmail(identity.Email)

	account, err := s.directory.GetByProvider(ctx, identity.Provider, identity.ProviderID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to look up provider identity: %w", err)
		}

		// Unknown external id; refuse to attach to an existing account under
		// a different provider (no silent takeover)
		existing, emailErr := s.directory.GetByEmail(ctx, normalizedEmail)
		if emailErr == nil {
			return nil, nil, &ProviderConflictError{Provider: existing.Provider}
		}
		if !errors.Is(emailErr, user.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to look up email: %w", emailErr)
		}

		providerID := identity.ProviderID
		account, err = s.directory.Create(ctx, &user.User{
			Name:       identity.Name,
			Email:      normalizedEmail,
			Provider:   identity.Provider,
			ProviderID: &providerID,
			Role:       user.RoleUser,
			// The provider attested control of this address
			EmailVerified: true,
		})
		if err != nil {
			if errors.Is(err, user.ErrDuplicateEmail) {
				return nil, nil, &ProviderConflictError{Provider: user.ProviderLocal}
			}
			return nil, nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.Info("created account from provider identity",
			"user_id", account.ID, "provider", identity.Provider)
	}

	tokens, err := s.generateTokens(ctx, account.ID, account.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return tokens, account, nil
}

// RefreshAccessToken rotates the refresh token and mints a new access token.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	rt, err := s.refreshRepo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		if errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if !rt.IsValid() {
		if rt.IsRevoked() {
			return nil, ErrRefreshTokenRevoked
		}
		return nil, ErrRefreshTokenExpired
	}

	// Revoke old refresh token before issuing new ones to prevent reuse
	if err := s.refreshRepo.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	existing, err := s.directory.GetByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	tokens, err := s.generateTokens(ctx, existing.ID, existing.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return tokens, nil
}

// RevokeRefreshToken revokes a refresh token
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return s.refreshRepo.RevokeRefreshToken(ctx, refreshToken)
}

// VerifyEmail redeems a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	existing, err := s.directory.GetByVerificationToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to find user by token: %w", err)
	}

	// A live token on a verified account should not exist; checked anyway
	if existing.EmailVerified {
		return ErrEmailAlreadyVerified
	}

	if err := s.directory.MarkEmailVerified(ctx, existing.ID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Guarded update found no unverified row: a concurrent redemption
			// won the race
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}

	return nil
}

// ResendVerificationEmail reissues the verification token. Unknown emails,
// OAuth accounts, and already-verified accounts all get the same generic
// rejection so the endpoint cannot be used to probe which emails exist.
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	normalizedEmail := NormalizeEmail(email)

	existing, err := s.directory.GetByEmail(ctx, normalizedEmail)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrResendRejected
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !existing.IsLocal() || existing.EmailVerified {
		return ErrResendRejected
	}

	token, err := GenerateRandomToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	expiresAt := time.Now().Add(verificationTokenLifetime)
	if err := s.directory.UpdateVerificationToken(ctx, existing.ID, token, expiresAt); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrResendRejected
		}
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	go func() {
		emailCtx := context.Background()
		if err := s.emailService.SendVerificationEmail(emailCtx, normalizedEmail, token); err != nil {
			s.logger.Warn("failed to resend verification email", "email", normalizedEmail, "error", err)
		}
	}()

	return nil
}

// RequestPasswordReset issues a reset token for a local account. Always
// returns nil so the response cannot reveal whether the email is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	normalizedEmail := NormalizeEmail(email)

	existing, err := s.directory.GetByEmail(ctx, normalizedEmail)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	// OAuth accounts have no password to reset
	if !existing.IsLocal() {
		return nil
	}

	token, err := GenerateRandomToken()
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	// Stored hashed: a leaked directory must not yield redeemable tokens
	tokenHash, err := s.hasher.Hash(token)
	if err != nil {
		s.logger.Warn("failed to hash password reset token", "error", err)
		return nil
	}

	expiresAt := time.Now().Add(passwordResetLifetime)
	if err := s.directory.SetPasswordResetToken(ctx, existing.ID, tokenHash, expiresAt); err != nil {
		s.logger.Warn("failed to store password reset token", "error", err)
		return nil
	}

	go func() {
		emailCtx := context.Background()
		if err := s.emailService.SendPasswordResetEmail(emailCtx, normalizedEmail, token); err != nil {
			s.logger.Warn("failed to send password reset email", "email", normalizedEmail, "error", err)
		}
	}()

	return nil
}

// ResetPassword redeems a reset token and sets the new password. Tokens are
// stored hashed, so redemption tests the presented token against every
// unexpired stored hash rather than looking it up by key.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	candidates, err := s.directory.ListActiveResetRequests(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list reset requests: %w", err)
	}

	var match *user.User
	for _, candidate := range candidates {
		if candidate.PasswordResetToken == nil {
			continue
		}
		if s.hasher.Verify(token, *candidate.PasswordResetToken) {
			match = candidate
			break
		}
	}
	if match == nil {
		return ErrInvalidResetToken
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.directory.CompletePasswordReset(ctx, match.ID, passwordHash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Token already spent by a concurrent redemption
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Revoke all refresh tokens for security
	if err := s.refreshRepo.RevokeAllUserTokens(ctx, match.ID); err != nil {
		s.logger.Warn("failed to revoke all user tokens after password reset", "error", err)
	}

	return nil
}

// generateTokens creates both access and refresh tokens
func (s *Service) generateTokens(ctx context.Context, userID uuid.UUID, role user.Role) (*AuthTokens, error) {
	accessToken, err := s.tokenService.CreateToken(userID, role, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := GenerateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(s.refreshTokenDuration)
	if err := s.refreshRepo.StoreRefreshToken(ctx, userID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenDuration.Seconds()),
	}, nil
}
