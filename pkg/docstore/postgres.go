package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

// Bridge forwards change notifications between API instances so that a watch
// on one instance observes writes made on another. Redis pub/sub implements
// it in production; a nil bridge keeps feeds process-local.
type Bridge interface {
	Publish(ctx context.Context, payload string) error
	Subscribe(fn func(payload string)) (func(), error)
}

type documentRow struct {
	UserID     string `gorm:"column:user_id;primaryKey"`
	Collection string `gorm:"column:collection;primaryKey"`
	DocID      string `gorm:"column:doc_id;primaryKey"`
	Fields     []byte `gorm:"column:fields;type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

// PostgresStore persists documents as JSONB rows through GORM. Row-level
// atomicity stands in for the managed store's per-document atomicity.
type PostgresStore struct {
	db     *gorm.DB
	hub    *hub
	bridge Bridge
	logg   *logger.Logger

	cancelBridge func()
	closeOnce    sync.Once
}

// NewPostgresStore wires the adapter and, when a bridge is supplied, starts
// listening for foreign-instance change notifications.
func NewPostgresStore(db *gorm.DB, bridge Bridge, logg *logger.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gorm db is required")
	}
	s := &PostgresStore{db: db, hub: newHub(), bridge: bridge, logg: logg}
	if bridge != nil {
		cancel, err := bridge.Subscribe(s.onBridgeNotify)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe change feed bridge")
		}
		s.cancelBridge = cancel
	}
	return s, nil
}

// Close stops the bridge subscription.
func (s *PostgresStore) Close() {
	s.closeOnce.Do(func() {
		if s.cancelBridge != nil {
			s.cancelBridge()
		}
	})
}

func (s *PostgresStore) ReadAll(ctx context.Context, userID, collection string) ([]Document, error) {
	var rows []documentRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND collection = ?", userID, collection).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read documents")
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := rowToDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *PostgresStore) ReadOne(ctx context.Context, userID, collection, docID string) (*Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND collection = ? AND doc_id = ?", userID, collection, docID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read document")
	}
	doc, err := rowToDocument(row)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *PostgresStore) Write(ctx context.Context, userID, collection, docID string, fields map[string]any) (string, error) {
	if docID == "" {
		docID = uuid.NewString()
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode document fields")
	}

	row := documentRow{
		UserID:     userID,
		Collection: collection,
		DocID:      docID,
		Fields:     payload,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "collection"}, {Name: "doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fields", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write document")
	}

	s.notify(ctx, userID, collection)
	return docID, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, collection, docID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND collection = ? AND doc_id = ?", userID, collection, docID).
		Delete(&documentRow{})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete document")
	}
	if res.RowsAffected > 0 {
		s.notify(ctx, userID, collection)
	}
	return nil
}

func (s *PostgresStore) Watch(ctx context.Context, userID, collection string, fn ChangeFunc) (CancelFunc, error) {
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

// notify re-reads the collection and fans it out locally, then tells the
// other instances. Local delivery is synchronous on the writer's path so
// observers only ever see durable state.
func (s *PostgresStore) notify(ctx context.Context, userID, collection string) {
	key := feedKey{userID, collection}
	if s.hub.hasWatchers(key) {
		docs, err := s.ReadAll(ctx, userID, collection)
		if err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, "change feed re-read failed", err)
			}
		} else {
			s.hub.broadcast(key, docs)
		}
	}

	if s.bridge != nil {
		if err := s.bridge.Publish(ctx, bridgePayload(userID, collection)); err != nil && s.logg != nil {
			s.logg.Error(ctx, "change feed bridge publish failed", err)
		}
	}
}

func (s *PostgresStore) onBridgeNotify(payload string) {
	userID, collection, ok := parseBridgePayload(payload)
	if !ok {
		return
	}
	key := feedKey{userID, collection}
	if !s.hub.hasWatchers(key) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	docs, err := s.ReadAll(ctx, userID, collection)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "bridge change feed re-read failed", err)
		}
		return
	}
	s.hub.broadcast(key, docs)
}

func rowToDocument(row documentRow) (Document, error) {
	fields := map[string]any{}
	if len(row.Fields) > 0 {
		if err := json.Unmarshal(row.Fields, &fields); err != nil {
			return Document{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode document fields")
		}
	}
	return Document{ID: row.DocID, Fields: fields}, nil
}

func bridgePayload(userID, collection string) string {
	return fmt.Sprintf("%s|%s", userID, collection)
}

func parseBridgePayload(payload string) (userID, collection string, ok bool) {
	parts := strings.SplitN(payload, "|", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
