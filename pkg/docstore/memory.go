package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
)

// MemoryStore keeps documents in process memory. It backs tests and local
// development and implements the full Store contract including change feeds.
type MemoryStore struct {
	mu   sync.Mutex
	data map[feedKey]map[string]map[string]any
	seq  map[feedKey]map[string]int
	next int
	hub  *hub
}

// NewMemoryStore builds an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[feedKey]map[string]map[string]any{},
		seq:  map[feedKey]map[string]int{},
		hub:  newHub(),
	}
}

func (s *MemoryStore) ReadAll(ctx context.Context, userID, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read documents")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(feedKey{userID, collection}), nil
}

func (s *MemoryStore) ReadOne(ctx context.Context, userID, collection, docID string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read document")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.data[feedKey{userID, collection}][docID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	return &Document{ID: docID, Fields: copyFields(fields)}, nil
}

func (s *MemoryStore) Write(ctx context.Context, userID, collection, docID string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write document")
	}
	key := feedKey{userID, collection}

	s.mu.Lock()
	if docID == "" {
		docID = uuid.NewString()
	}
	if s.data[key] == nil {
		s.data[key] = map[string]map[string]any{}
		s.seq[key] = map[string]int{}
	}
	if _, ok := s.seq[key][docID]; !ok {
		s.next++
		s.seq[key][docID] = s.next
	}
	s.data[key][docID] = copyFields(fields)
	docs := s.snapshotLocked(key)
	s.mu.Unlock()

	s.hub.broadcast(key, docs)
	return docID, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, collection, docID string) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete document")
	}
	key := feedKey{userID, collection}

	s.mu.Lock()
	_, existed := s.data[key][docID]
	delete(s.data[key], docID)
	delete(s.seq[key], docID)
	docs := s.snapshotLocked(key)
	s.mu.Unlock()

	if existed {
		s.hub.broadcast(key, docs)
	}
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, userID, collection string, fn ChangeFunc) (CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "watch collection")
	}
	key := feedKey{userID, collection}
	id := s.hub.add(key, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.hub.remove(key, id)
		})
	}, nil
}

// snapshotLocked returns the collection in insertion order. Callers hold mu.
func (s *MemoryStore) snapshotLocked(key feedKey) []Document {
	ids := make([]string, 0, len(s.data[key]))
	for id := range s.data[key] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.seq[key][ids[i]] < s.seq[key][ids[j]]
	})

	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, Document{ID: id, Fields: copyFields(s.data[key][id])})
	}
	return docs
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
