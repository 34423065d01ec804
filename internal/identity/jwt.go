package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/akbarsho/storefront-backend/pkg/config"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// AccessTokenClaims is the typed JWT issued to storefront clients.
type AccessTokenClaims struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC-signed access tokens. Used where a Firebase
// project is not available (local dev, CI).
type JWTVerifier struct {
	cfg      config.AuthConfig
	profiles ProfileReader
}

// NewJWTVerifier validates the configuration and returns the verifier.
func NewJWTVerifier(cfg config.AuthConfig, profiles ProfileReader) (*JWTVerifier, error) {
	if cfg.JWTSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "jwt secret is required")
	}
	if cfg.JWTIssuer == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "jwt issuer is required")
	}
	return &JWTVerifier{cfg: cfg, profiles: profiles}, nil
}

// Verify parses and validates the token, then hydrates profile fields.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (User, error) {
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(v.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(v.cfg.JWTIssuer),
	)
	if err != nil {
		return User{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.Subject == "" {
		return User{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject")
	}

	user := User{
		ID:        claims.Subject,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}
	return hydrateProfile(ctx, v.profiles, user), nil
}

// MintAccessToken issues a signed JWT for the user with the given TTL.
func MintAccessToken(cfg config.AuthConfig, now time.Time, user User, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.JWTIssuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if user.ID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}

	claims := AccessTokenClaims{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
