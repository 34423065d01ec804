package docstore

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

// FirestoreStore adapts a Cloud Firestore client to the Store contract.
// User-scoped collections live under users/{uid}/{collection}; global
// collections are top-level.
type FirestoreStore struct {
	client *firestore.Client
	logg   *logger.Logger
}

// NewFirestoreStore wraps the provided Firestore client.
func NewFirestoreStore(client *firestore.Client, logg *logger.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "firestore client is required")
	}
	return &FirestoreStore{client: client, logg: logg}, nil
}

func (s *FirestoreStore) col(userID, collection string) *firestore.CollectionRef {
	if userID == "" {
		return s.client.Collection(collection)
	}
	return s.client.Collection("users").Doc(userID).Collection(collection)
}

func (s *FirestoreStore) ReadAll(ctx context.Context, userID, collection string) ([]Document, error) {
	snaps, err := s.col(userID, collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read documents")
	}
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs, nil
}

func (s *FirestoreStore) ReadOne(ctx context.Context, userID, collection, docID string) (*Document, error) {
	snap, err := s.col(userID, collection).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read document")
	}
	return &Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

func (s *FirestoreStore) Write(ctx context.Context, userID, collection, docID string, fields map[string]any) (string, error) {
	ref := s.col(userID, collection).Doc(docID)
	if docID == "" {
		ref = s.col(userID, collection).NewDoc()
	}
	// Overwrite full doc (simple & predictable).
	if _, err := ref.Set(ctx, fields); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write document")
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, userID, collection, docID string) error {
	if _, err := s.col(userID, collection).Doc(docID).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete document")
	}
	return nil
}

func (s *FirestoreStore) Watch(ctx context.Context, userID, collection string, fn ChangeFunc) (CancelFunc, error) {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	iter := s.col(userID, collection).Snapshots(watchCtx)

	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled && s.logg != nil {
					s.logg.Error(watchCtx, "firestore watch terminated", err)
				}
				return
			}
			refs, err := snap.Documents.GetAll()
			if err != nil {
				if s.logg != nil {
					s.logg.Error(watchCtx, "firestore watch read failed", err)
				}
				continue
			}
			docs := make([]Document, 0, len(refs))
			for _, d := range refs {
				docs = append(docs, Document{ID: d.Ref.ID, Fields: d.Data()})
			}
			fn(docs)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
	}, nil
}
