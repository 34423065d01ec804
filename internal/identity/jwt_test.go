package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akbarsho/storefront-backend/pkg/config"
	"github.com/akbarsho/storefront-backend/pkg/docstore"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
)

func authConfig() config.AuthConfig {
	return config.AuthConfig{
		Mode:      config.AuthModeJWT,
		JWTSecret: "test-secret",
		JWTIssuer: "storefront",
	}
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := authConfig()
	user := User{ID: "user-1", Email: "jo@example.com", FirstName: "Jo"}

	token, err := MintAccessToken(cfg, time.Now(), user, time.Hour)
	require.NoError(t, err)

	verifier, err := NewJWTVerifier(cfg, nil)
	require.NoError(t, err)

	got, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.ID)
	require.Equal(t, "jo@example.com", got.Email)
	require.Equal(t, "Jo", got.FirstName)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	cfg := authConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), User{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	verifier, err := NewJWTVerifier(cfg, nil)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeUnauthorized, coded.Code())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	token, err := MintAccessToken(config.AuthConfig{JWTSecret: "other", JWTIssuer: "storefront"}, time.Now(), User{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	verifier, err := NewJWTVerifier(authConfig(), nil)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	require.Error(t, err)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	token, err := MintAccessToken(config.AuthConfig{JWTSecret: "test-secret", JWTIssuer: "someone-else"}, time.Now(), User{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	verifier, err := NewJWTVerifier(authConfig(), nil)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	require.Error(t, err)
}

func TestVerifyHydratesProfileFields(t *testing.T) {
	t.Parallel()

	store := docstore.NewMemoryStore()
	_, err := store.Write(context.Background(), "", "users", "user-1", map[string]any{
		"firstName": "Jordan",
		"lastName":  "Reyes",
		"phone":     "+1-555-0100",
	})
	require.NoError(t, err)

	cfg := authConfig()
	token, err := MintAccessToken(cfg, time.Now(), User{ID: "user-1", Email: "jr@example.com"}, time.Hour)
	require.NoError(t, err)

	verifier, err := NewJWTVerifier(cfg, store)
	require.NoError(t, err)

	got, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "Jordan", got.FirstName)
	require.Equal(t, "Reyes", got.LastName)
	require.Equal(t, "+1-555-0100", got.Phone)
	require.Equal(t, "Jordan Reyes", got.DisplayName())
}

func TestDisplayNameFallsBackToEmail(t *testing.T) {
	t.Parallel()

	u := User{ID: "x", Email: "anon@example.com"}
	require.Equal(t, "anon@example.com", u.DisplayName())
}
