// Package cursors persists small named values that record how far a
// synchronisation job has progressed.
package cursors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/storage"
)

// Store is a durable key-value store. Get returns common.ErrorNotFound
// for keys never written.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// SQLStore keeps values in the sync_state table.
type SQLStore struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLStore(db dbx.DBTX) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE id = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return []byte(value), nil
}

// Put overwrites the value of key.
func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state (id, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(value), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ObjectStore keeps each value as the object prefix/key, for deployments
// without a database.
type ObjectStore struct {
	store  storage.ObjectStore
	bucket string
	prefix string
}

func NewObjectStore(store storage.ObjectStore, bucket, prefix string) *ObjectStore {
	return &ObjectStore{store: store, bucket: bucket, prefix: prefix}
}

func (s *ObjectStore) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.store.Get(ctx, s.bucket, s.objectKey(key))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorNotFound
	}
	return b, err
}

func (s *ObjectStore) Put(ctx context.Context, key string, value []byte) error {
	return s.store.Put(ctx, s.bucket, s.objectKey(key), value, common.ContentTypeJSON, nil)
}
