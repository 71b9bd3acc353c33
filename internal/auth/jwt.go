package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lafi-app/lostfound-api/internal/user"
)

// jwtClaims is the HS256 claim set mirroring the PASETO token contents.
type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService is the HS256 TokenService implementation, selectable via
// TOKEN_BACKEND=jwt for deployments that need tokens verifiable by standard
// JWT tooling.
type JWTService struct {
	secret []byte
}

func NewJWTService(secret []byte) (*JWTService, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("signing secret must be exactly 32 bytes, got %d", len(secret))
	}
	return &JWTService{secret: secret}, nil
}

// CreateToken signs an HS256 token carrying the user id (subject) and role.
func (s *JWTService) CreateToken(userID uuid.UUID, role user.Role, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &jwtClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken validates signature and expiry and returns the claims.
func (s *JWTService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	role, ok := user.ParseRole(claims.Role)
	if !ok {
		return nil, ErrInvalidToken
	}

	tc := &TokenClaims{
		UserID: claims.Subject,
		Role:   role,
	}
	if claims.IssuedAt != nil {
		tc.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		tc.ExpiresAt = claims.ExpiresAt.Time
	}
	return tc, nil
}
