package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lafi-app/lostfound-api/internal/logging"
	"github.com/lafi-app/lostfound-api/internal/user"
)

type serviceFixture struct {
	service   *Service
	directory *fakeDirectory
	refresh   *fakeRefreshRepo
	emails    *fakeEmailService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tokenService, err := NewPasetoService([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	directory := newFakeDirectory()
	refresh := newFakeRefreshRepo()
	emails := newFakeEmailService()

	service := NewService(
		directory,
		refresh,
		tokenService,
		emails,
		hasher,
		logging.NewLogger(true),
		15*time.Minute,
		7*24*time.Hour,
	)

	return &serviceFixture{
		service:   service,
		directory: directory,
		refresh:   refresh,
		emails:    emails,
	}
}

func waitForEmail(t *testing.T, ch chan sentEmail) sentEmail {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for email dispatch")
		return sentEmail{}
	}
}

// registerVerified registers a local account and redeems its verification
// token, returning the verification email that was captured.
func (f *serviceFixture) registerVerified(t *testing.T, name, email, password string) {
	t.Helper()
	ctx := context.Background()

	_, err := f.service.Register(ctx, name, email, password)
	require.NoError(t, err)

	sent := waitForEmail(t, f.emails.verifications)
	require.NoError(t, f.service.VerifyEmail(ctx, sent.Token))
}

func TestRegister(t *testing.T) {
	t.Run("creates unverified local account", func(t *testing.T) {
		f := newServiceFixture(t)

		created, err := f.service.Register(context.Background(), "Alice", "Alice@Example.com", "secret1")
		require.NoError(t, err)

		assert.Equal(t, "alice@example.com", created.Email)
		assert.Equal(t, user.ProviderLocal, created.Provider)
		assert.Equal(t, user.RoleUser, created.Role)
		assert.False(t, created.EmailVerified)
		require.NotNil(t, created.PasswordHash)
		assert.NotEqual(t, "secret1", *created.PasswordHash)

		sent := waitForEmail(t, f.emails.verifications)
		assert.Equal(t, "alice@example.com", sent.To)
		assert.NotEmpty(t, sent.Token)
	})

	t.Run("validation errors", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		tests := []struct {
			name     string
			userName string
			email    string
			password string
			wantErr  error
		}{
			{"missing name", "  ", "a@example.com", "secret1", ErrNameRequired},
			{"missing email", "Alice", "", "secret1", ErrEmailRequired},
			{"invalid email", "Alice", "not-an-email", "secret1", ErrInvalidEmailFormat},
			{"missing password", "Alice", "a@example.com", "", ErrPasswordRequired},
			{"short password", "Alice", "a@example.com", "12345", ErrPasswordTooShort},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.service.Register(ctx, tt.userName, tt.email, tt.password)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})

	t.Run("duplicate email is case insensitive", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")

		_, err := f.service.Register(context.Background(), "Mallory", "ALICE@example.com", "other-pass")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("pending registration conflicts distinctly", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, err := f.service.Register(ctx, "Alice", "alice@example.com", "secret1")
		require.NoError(t, err)

		_, err = f.service.Register(ctx, "Alice", "alice@example.com", "secret1")
		assert.ErrorIs(t, err, ErrEmailPendingVerification)
	})

	t.Run("email owned by oauth account reports the provider", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, _, err := f.service.LoginWithProvider(ctx, &ExternalIdentity{
			Provider:   user.ProviderGoogle,
			ProviderID: "goog-1",
			Name:       "Alice",
			Email:      "alice@example.com",
		})
		require.NoError(t, err)

		_, err = f.service.Register(ctx, "Alice", "alice@example.com", "secret1")
		var conflict *ProviderConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, user.ProviderGoogle, conflict.Provider)
	})
}

func TestLogin(t *testing.T) {
	t.Run("succeeds for verified account", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")

		tokens, account, err := f.service.Login(context.Background(), "alice@example.com", "secret1")
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, "Bearer", tokens.TokenType)
		assert.Equal(t, "alice@example.com", account.Email)
	})

	t.Run("email lookup is case insensitive", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")

		_, _, err := f.service.Login(context.Background(), "ALICE@Example.COM", "secret1")
		assert.NoError(t, err)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()

		_, _, errUnknown := f.service.Login(ctx, "nobody@example.com", "secret1")
		_, _, errWrong := f.service.Login(ctx, "alice@example.com", "wrong-pass")

		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	})

	t.Run("rejects unverified account with correct password", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, err := f.service.Register(ctx, "Alice", "alice@example.com", "secret1")
		require.NoError(t, err)

		_, _, err = f.service.Login(ctx, "alice@example.com", "secret1")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	})

	t.Run("rejects password login on oauth account", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, _, err := f.service.LoginWithProvider(ctx, &ExternalIdentity{
			Provider:   user.ProviderFacebook,
			ProviderID: "fb-1",
			Name:       "Bob",
			Email:      "bob@example.com",
		})
		require.NoError(t, err)

		_, _, err = f.service.Login(ctx, "bob@example.com", "whatever1")
		var conflict *ProviderConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, user.ProviderFacebook, conflict.Provider)
	})
}

func TestVerifyEmail(t *testing.T) {
	t.Run("marks account verified", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		created, err := f.service.Register(ctx, "Alice", "alice@example.com", "secret1")
		require.NoError(t, err)

		sent := waitForEmail(t, f.emails.verifications)
		require.NoError(t, f.service.VerifyEmail(ctx, sent.Token))

		verified, err := f.directory.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, verified.EmailVerified)
		assert.Nil(t, verified.EmailVerificationToken)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		f := newServiceFixture(t)
		err := f.service.VerifyEmail(context.Background(), "bogus")
		assert.ErrorIs(t, err, ErrInvalidVerificationToken)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, err := f.service.Register(ctx, "Alice", "alice@example.com", "secret1")
		require.NoError(t, err)
		sent := waitForEmail(t, f.emails.verifications)

		f.directory.expireVerificationToken("alice@example.com")

		err = f.service.VerifyEmail(ctx, sent.Token)
		assert.ErrorIs(t, err, ErrInvalidVerificationToken)
	})

	t.Run("token is single use", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, err := f.service.Register(ctx, "Alice", "alice@example.com", "secret1")
		require.NoError(t, err)
		sent := waitForEmail(t, f.emails.verifications)

		require.NoError(t, f.service.VerifyEmail(ctx, sent.Token))
		err = f.service.VerifyEmail(ctx, sent.Token)
		assert.ErrorIs(t, err, ErrInvalidVerificationToken)
	})
}

func TestResendVerificationEmail(t *testing.T) {
	t.Run("rotates the token", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, err := f.service.Register(ctx, "Alice", "alice@example.com", "secret1")
		require.NoError(t, err)
		first := waitForEmail(t, f.emails.verifications)

		require.NoError(t, f.service.ResendVerificationEmail(ctx, "alice@example.com"))
		second := waitForEmail(t, f.emails.verifications)

		assert.NotEqual(t, first.Token, second.Token)

		// The old token no longer verifies; the new one does
		assert.ErrorIs(t, f.service.VerifyEmail(ctx, first.Token), ErrInvalidVerificationToken)
		assert.NoError(t, f.service.VerifyEmail(ctx, second.Token))
	})

	t.Run("generic rejection for unknown and verified emails", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()

		errUnknown := f.service.ResendVerificationEmail(ctx, "nobody@example.com")
		errVerified := f.service.ResendVerificationEmail(ctx, "alice@example.com")

		assert.ErrorIs(t, errUnknown, ErrResendRejected)
		assert.ErrorIs(t, errVerified, ErrResendRejected)
	})
}

func TestRequestPasswordReset(t *testing.T) {
	t.Run("stores hashed token and emails plaintext", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()

		require.NoError(t, f.service.RequestPasswordReset(ctx, "alice@example.com"))
		sent := waitForEmail(t, f.emails.resets)
		assert.Equal(t, "alice@example.com", sent.To)

		stored, err := f.directory.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, stored.PasswordResetToken)
		assert.NotEqual(t, sent.Token, *stored.PasswordResetToken)
	})

	t.Run("silent for unknown email", func(t *testing.T) {
		f := newServiceFixture(t)
		assert.NoError(t, f.service.RequestPasswordReset(context.Background(), "nobody@example.com"))
		assert.Empty(t, f.emails.resets)
	})

	t.Run("silent for oauth account", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, _, err := f.service.LoginWithProvider(ctx, &ExternalIdentity{
			Provider:   user.ProviderGoogle,
			ProviderID: "goog-1",
			Name:       "Alice",
			Email:      "alice@example.com",
		})
		require.NoError(t, err)

		assert.NoError(t, f.service.RequestPasswordReset(ctx, "alice@example.com"))
		assert.Empty(t, f.emails.resets)

		stored, err := f.directory.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Nil(t, stored.PasswordResetToken)
	})
}

func TestResetPassword(t *testing.T) {
	requestReset := func(t *testing.T, f *serviceFixture) string {
		t.Helper()
		require.NoError(t, f.service.RequestPasswordReset(context.Background(), "alice@example.com"))
		return waitForEmail(t, f.emails.resets).Token
	}

	t.Run("replaces the password", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()
		token := requestReset(t, f)

		require.NoError(t, f.service.ResetPassword(ctx, token, "brand-new-pass"))

		_, _, err := f.service.Login(ctx, "alice@example.com", "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, _, err = f.service.Login(ctx, "alice@example.com", "brand-new-pass")
		assert.NoError(t, err)
	})

	t.Run("revokes existing sessions", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()

		tokens, _, err := f.service.Login(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)

		token := requestReset(t, f)
		require.NoError(t, f.service.ResetPassword(ctx, token, "brand-new-pass"))

		_, err = f.service.RefreshAccessToken(ctx, tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
	})

	t.Run("token is single use", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()
		token := requestReset(t, f)

		require.NoError(t, f.service.ResetPassword(ctx, token, "brand-new-pass"))
		err := f.service.ResetPassword(ctx, token, "another-pass")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()
		token := requestReset(t, f)

		f.directory.expireResetToken("alice@example.com")

		err := f.service.ResetPassword(ctx, token, "brand-new-pass")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})

	t.Run("rejects bogus token", func(t *testing.T) {
		f := newServiceFixture(t)
		err := f.service.ResetPassword(context.Background(), "bogus", "brand-new-pass")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})

	t.Run("validates the new password", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		assert.ErrorIs(t, f.service.ResetPassword(ctx, "any", ""), ErrPasswordRequired)
		assert.ErrorIs(t, f.service.ResetPassword(ctx, "any", "12345"), ErrPasswordTooShort)
	})
}

func TestLoginWithProvider(t *testing.T) {
	identity := &ExternalIdentity{
		Provider:   user.ProviderGoogle,
		ProviderID: "goog-1",
		Name:       "Alice",
		Email:      "Alice@Example.com",
	}

	t.Run("creates verified account on first login", func(t *testing.T) {
		f := newServiceFixture(t)

		tokens, account, err := f.service.LoginWithProvider(context.Background(), identity)
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.Equal(t, "alice@example.com", account.Email)
		assert.Equal(t, user.ProviderGoogle, account.Provider)
		assert.True(t, account.EmailVerified)
		assert.Nil(t, account.PasswordHash)
	})

	t.Run("reuses the account on subsequent logins", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, first, err := f.service.LoginWithProvider(ctx, identity)
		require.NoError(t, err)

		_, second, err := f.service.LoginWithProvider(ctx, identity)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("refuses to attach to a local account", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")

		_, _, err := f.service.LoginWithProvider(context.Background(), identity)
		var conflict *ProviderConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, user.ProviderLocal, conflict.Provider)
	})

	t.Run("refuses to attach to an account under another provider", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()

		_, _, err := f.service.LoginWithProvider(ctx, &ExternalIdentity{
			Provider:   user.ProviderFacebook,
			ProviderID: "fb-1",
			Name:       "Alice",
			Email:      "alice@example.com",
		})
		require.NoError(t, err)

		_, _, err = f.service.LoginWithProvider(ctx, identity)
		var conflict *ProviderConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, user.ProviderFacebook, conflict.Provider)
	})

	t.Run("rejects identity without email", func(t *testing.T) {
		f := newServiceFixture(t)

		_, _, err := f.service.LoginWithProvider(context.Background(), &ExternalIdentity{
			Provider:   user.ProviderFacebook,
			ProviderID: "fb-2",
			Name:       "Phone User",
		})
		assert.ErrorIs(t, err, ErrOAuthEmailMissing)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("rotates the refresh token", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()

		tokens, _, err := f.service.Login(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)

		refreshed, err := f.service.RefreshAccessToken(ctx, tokens.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, refreshed.AccessToken)
		assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

		// The old refresh token is spent
		_, err = f.service.RefreshAccessToken(ctx, tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrRefreshTokenRevoked)

		// The rotated one works
		_, err = f.service.RefreshAccessToken(ctx, refreshed.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.RefreshAccessToken(context.Background(), "bogus")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects revoked token after logout", func(t *testing.T) {
		f := newServiceFixture(t)
		f.registerVerified(t, "Alice", "alice@example.com", "secret1")
		ctx := context.Background()

		tokens, _, err := f.service.Login(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)

		require.NoError(t, f.service.RevokeRefreshToken(ctx, tokens.RefreshToken))

		_, err = f.service.RefreshAccessToken(ctx, tokens.RefreshToken)
		assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
	})
}
