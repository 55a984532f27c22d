// internal/auth/auth.go
package auth

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/Corphon/BookFlow/internal/errors"
	"github.com/Corphon/BookFlow/internal/models"
)

const issuer = "bookflow"

// TokenConfig holds the signing key and lifetime of issued tokens.
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

// Claims carries the identity inside a token.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken issues an HS256 token for id.
func GenerateToken(id models.Identity, config *TokenConfig) (string, error) {
	if len(config.Secret) == 0 {
		return "", fmt.Errorf("secret key is required")
	}
	now := time.Now()
	claims := Claims{
		Name: id.Name,
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.Expiration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(config.Secret)
}

// ParseToken validates a token and returns its identity.
func ParseToken(tokenString string, config *TokenConfig) (models.Identity, error) {
	if len(config.Secret) == 0 {
		return models.Identity{}, fmt.Errorf("secret key is required")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Identity{}, apperrors.NewUnauthorizedError("invalid token", err)
	}

	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return models.Identity{}, apperrors.NewUnauthorizedError("invalid token", err)
	}
	return models.Identity{Username: claims.Subject, Name: claims.Name, Role: role}, nil
}

// GenerateSecureKey returns length random bytes.
func GenerateSecureKey(length int) ([]byte, error) {
	if length <= 0 {
		length = 32
	}
	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
