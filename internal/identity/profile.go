package identity

import (
	"context"

	"github.com/akbarsho/storefront-backend/pkg/docstore"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
)

const usersCollection = "users"

// ProfileReader is the slice of the document store the verifiers use to
// hydrate profile fields. A docstore.Store satisfies it.
type ProfileReader interface {
	ReadOne(ctx context.Context, userID, collection, docID string) (*docstore.Document, error)
}

// hydrateProfile fills name and phone from the global users collection.
// A missing profile document is not an error; token claims stand alone.
func hydrateProfile(ctx context.Context, profiles ProfileReader, user User) User {
	if profiles == nil || user.ID == "" {
		return user
	}
	doc, err := profiles.ReadOne(ctx, "", usersCollection, user.ID)
	if err != nil || doc == nil {
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeNotFound {
			return user
		}
		return user
	}
	if v := doc.String("firstName"); v != "" {
		user.FirstName = v
	}
	if v := doc.String("lastName"); v != "" {
		user.LastName = v
	}
	if v := doc.String("phone"); v != "" {
		user.Phone = v
	}
	if user.Email == "" {
		user.Email = doc.String("email")
	}
	return user
}
