package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
)

// Upload stores content under path, replacing any previous blob.
func (s *Store) Upload(ctx context.Context, path string, content []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (path, content, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET content = excluded.content, created_at = excluded.created_at`,
		path, content, time.Now().UTC())
	return eris.Wrapf(err, "sqlite: upload %s", path)
}

// Download returns the blob stored under path, or ErrNotFound.
func (s *Store) Download(ctx context.Context, path string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM blobs WHERE path = ?`, path).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: blob %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: download %s", path)
	}
	return content, nil
}
