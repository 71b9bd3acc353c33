package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/lafi-app/lostfound-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. A unique-constraint violation from the store is
// the canonical duplicate-email signal; any prior existence check is only an
// optimization, so races collapse to ErrDuplicateEmail here.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	dbUser := mapModelToDBUser(u)

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email. Callers must pass the normalized
// (lowercase) form.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByProvider retrieves a user by external identity.
func (r *Repository) GetByProvider(ctx context.Context, provider Provider, providerID string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("provider = ?", string(provider)).
		Where("provider_id = ?", providerID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by provider identity: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByVerificationToken retrieves a user whose verification token matches
// and has not yet expired.
func (r *Repository) GetByVerificationToken(ctx context.Context, token string, now time.Time) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email_verification_token = ?", token).
		Where("email_verification_expires > ?", now).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by verification token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// MarkEmailVerified flips email_verified and clears the token fields. The
// expected-state guard makes concurrent redemptions of the same token a
// single winner: the loser sees zero rows and gets ErrNotFound.
func (r *Repository) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_verified = ?", true).
		Set("email_verification_token = ?", nil).
		Set("email_verification_expires = ?", nil).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("email_verified = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark email as verified: %w", err)
	}

	return requireRowsAffected(result)
}

// UpdateVerificationToken regenerates the verification token for resend.
// Guarded on email_verified = false so a verified account never re-enters
// the pending state.
func (r *Repository) UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_verification_token = ?", token).
		Set("email_verification_expires = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("email_verified = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	return requireRowsAffected(result)
}

// SetPasswordResetToken stores the hashed reset token and its expiry.
func (r *Repository) SetPasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_reset_token = ?", tokenHash).
		Set("password_reset_expires = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set password reset token: %w", err)
	}

	return requireRowsAffected(result)
}

// ListActiveResetRequests returns every user holding an unexpired password
// reset token. Reset tokens are hashed at rest, so redemption has to test the
// presented token against each candidate hash.
func (r *Repository) ListActiveResetRequests(ctx context.Context, now time.Time) ([]*User, error) {
	var dbUsers []*database.User
	err := r.db.NewSelect().
		Model(&dbUsers).
		Where("password_reset_token IS NOT NULL").
		Where("password_reset_expires > ?", now).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list active reset requests: %w", err)
	}

	users := make([]*User, 0, len(dbUsers))
	for _, dbu := range dbUsers {
		users = append(users, mapDBUserToModel(dbu))
	}
	return users, nil
}

// CompletePasswordReset replaces the password hash and clears the reset
// fields. Guarded on the token still being present, so a token is spent
// exactly once.
func (r *Repository) CompletePasswordReset(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("password_reset_token = ?", nil).
		Set("password_reset_expires = ?", nil).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("password_reset_token IS NOT NULL").
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to complete password reset: %w", err)
	}

	return requireRowsAffected(result)
}

// List returns all users ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]*User, error) {
	var dbUsers []*database.User
	err := r.db.NewSelect().
		Model(&dbUsers).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(dbUsers))
	for _, dbu := range dbUsers {
		users = append(users, mapDBUserToModel(dbu))
	}
	return users, nil
}

// UpdateRole changes a user's role.
func (r *Repository) UpdateRole(ctx context.Context, userID uuid.UUID, role Role) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("role = ?", string(role)).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	return requireRowsAffected(result)
}

func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                     dbu.ID,
		Name:                   dbu.Name,
		Email:                  dbu.Email,
		PasswordHash:           dbu.PasswordHash,
		Provider:               Provider(dbu.Provider),
		ProviderID:             dbu.ProviderID,
		Role:                   Role(dbu.Role),
		EmailVerified:          dbu.EmailVerified,
		EmailVerificationToken: dbu.EmailVerificationToken,
		EmailVerificationExp:   dbu.EmailVerificationExp,
		PasswordResetToken:     dbu.PasswordResetToken,
		PasswordResetExp:       dbu.PasswordResetExp,
		CreatedAt:              dbu.CreatedAt,
		UpdatedAt:              dbu.UpdatedAt,
	}
}

func mapModelToDBUser(u *User) *database.User {
	return &database.User{
		ID:                     u.ID,
		Name:                   u.Name,
		Email:                  u.Email,
		PasswordHash:           u.PasswordHash,
		Provider:               string(u.Provider),
		ProviderID:             u.ProviderID,
		Role:                   string(u.Role),
		EmailVerified:          u.EmailVerified,
		EmailVerificationToken: u.EmailVerificationToken,
		EmailVerificationExp:   u.EmailVerificationExp,
		PasswordResetToken:     u.PasswordResetToken,
		PasswordResetExp:       u.PasswordResetExp,
	}
}
