package identity

import (
	"context"
	"strings"

	"github.com/akbarsho/storefront-backend/pkg/config"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
)

// User is the authenticated principal attached to every request.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// DisplayName renders the denormalized name stored on mirrored orders.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return u.Email
}

// Verifier turns a bearer token into an authenticated user.
type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

// VerifierParams carries everything either verifier mode can need.
type VerifierParams struct {
	Auth     config.AuthConfig
	GCP      config.GCPConfig
	Profiles ProfileReader
}

// NewVerifier selects the verifier by configured mode.
func NewVerifier(ctx context.Context, params VerifierParams) (Verifier, error) {
	switch params.Auth.Mode {
	case config.AuthModeJWT:
		return NewJWTVerifier(params.Auth, params.Profiles)
	case config.AuthModeFirebase:
		return NewFirebaseVerifier(ctx, params.GCP, params.Profiles)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown auth mode "+params.Auth.Mode)
	}
}
