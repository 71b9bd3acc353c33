package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persistence model for the users table.
//
// PasswordHash is null for OAuth accounts; ProviderID is null for local ones.
// PasswordResetToken stores a bcrypt hash of the reset token, never the
// plaintext value.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                     uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name                   string     `bun:"name,notnull"`
	Email                  string     `bun:"email,notnull,unique"`
	PasswordHash           *string    `bun:"password_hash"`
	Provider               string     `bun:"provider,notnull,default:'LOCAL'"`
	ProviderID             *string    `bun:"provider_id"`
	Role                   string     `bun:"role,notnull,default:'USER'"`
	EmailVerified          bool       `bun:"email_verified,notnull,default:false"`
	EmailVerificationToken *string    `bun:"email_verification_token"`
	EmailVerificationExp   *time.Time `bun:"email_verification_expires"`
	PasswordResetToken     *string    `bun:"password_reset_token"`
	PasswordResetExp       *time.Time `bun:"password_reset_expires"`
	CreatedAt              time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}
