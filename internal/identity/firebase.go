package identity

import (
	"context"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/akbarsho/storefront-backend/pkg/config"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
)

// FirebaseVerifier validates Firebase ID tokens for the configured project.
type FirebaseVerifier struct {
	auth     *firebaseauth.Client
	profiles ProfileReader
}

// NewFirebaseVerifier bootstraps the Firebase Auth client.
func NewFirebaseVerifier(ctx context.Context, gcp config.GCPConfig, profiles ProfileReader) (*FirebaseVerifier, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gcp project id is required")
	}

	var opts []option.ClientOption
	if gcp.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: gcp.ProjectID}, opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initializing firebase app")
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initializing firebase auth")
	}

	return &FirebaseVerifier{auth: authClient, profiles: profiles}, nil
}

// Verify checks the ID token signature and expiry, then hydrates the profile.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (User, error) {
	decoded, err := v.auth.VerifyIDToken(ctx, token)
	if err != nil {
		return User{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	uid := strings.TrimSpace(decoded.UID)
	if uid == "" {
		return User{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no uid")
	}

	user := User{ID: uid}
	if email, ok := decoded.Claims["email"].(string); ok {
		user.Email = strings.TrimSpace(email)
	}
	if name, ok := decoded.Claims["name"].(string); ok {
		name = strings.TrimSpace(name)
		if name != "" {
			parts := strings.SplitN(name, " ", 2)
			user.FirstName = parts[0]
			if len(parts) > 1 {
				user.LastName = parts[1]
			}
		}
	}

	return hydrateProfile(ctx, v.profiles, user), nil
}
