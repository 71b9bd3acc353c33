package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lafi-app/lostfound-api/internal/user"
)

var testTokenKey = []byte("0123456789abcdef0123456789abcdef")

// Both backends satisfy TokenService and must behave identically at this
// level, so the suite runs against each.
func tokenServices(t *testing.T) map[string]TokenService {
	t.Helper()

	pasetoSvc, err := NewPasetoService(testTokenKey)
	require.NoError(t, err)

	jwtSvc, err := NewJWTService(testTokenKey)
	require.NoError(t, err)

	return map[string]TokenService{
		"paseto": pasetoSvc,
		"jwt":    jwtSvc,
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			userID := uuid.New()

			token, err := svc.CreateToken(userID, user.RoleAdmin, time.Minute)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			claims, err := svc.VerifyToken(token)
			require.NoError(t, err)
			assert.Equal(t, userID.String(), claims.UserID)
			assert.Equal(t, user.RoleAdmin, claims.Role)
			assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt, 5*time.Second)
		})
	}
}

func TestTokenService_Expired(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := svc.CreateToken(uuid.New(), user.RoleUser, -time.Minute)
			require.NoError(t, err)

			_, err = svc.VerifyToken(token)
			assert.ErrorIs(t, err, ErrExpiredToken)
		})
	}
}

func TestTokenService_Garbage(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyToken("not-a-token")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_WrongKey(t *testing.T) {
	otherKey := []byte("ffffffffffffffffffffffffffffffff")

	for name := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			var issuer, verifier TokenService
			var err error
			if name == "jwt" {
				issuer, err = NewJWTService(testTokenKey)
				require.NoError(t, err)
				verifier, err = NewJWTService(otherKey)
				require.NoError(t, err)
			} else {
				issuer, err = NewPasetoService(testTokenKey)
				require.NoError(t, err)
				verifier, err = NewPasetoService(otherKey)
				require.NoError(t, err)
			}

			token, err := issuer.CreateToken(uuid.New(), user.RoleUser, time.Minute)
			require.NoError(t, err)

			_, err = verifier.VerifyToken(token)
			assert.Error(t, err)
		})
	}
}

func TestTokenService_KeyLength(t *testing.T) {
	_, err := NewPasetoService([]byte("short"))
	assert.Error(t, err)

	_, err = NewJWTService([]byte("short"))
	assert.Error(t, err)
}

func TestGenerateRandomToken(t *testing.T) {
	first, err := GenerateRandomToken()
	require.NoError(t, err)
	assert.Len(t, first, 64) // 32 bytes hex encoded

	second, err := GenerateRandomToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
