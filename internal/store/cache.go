package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"go-insight-pipeline/internal/model"
)

// LoadCacheRecord returns the persisted record for key, or nil when absent.
func (s *Store) LoadCacheRecord(ctx context.Context, key string) (*model.CacheRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM cache_records WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cache record")
	}
	var rec model.CacheRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cache record")
	}
	return &rec, nil
}

// StoreCacheRecord upserts a record. The last writer wins.
func (s *Store) StoreCacheRecord(ctx context.Context, rec model.CacheRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cache record")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_records (key, record, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET record = excluded.record, created_at = excluded.created_at`,
		rec.Key, string(b), created.UTC())
	return eris.Wrap(err, "sqlite: upsert cache record")
}
