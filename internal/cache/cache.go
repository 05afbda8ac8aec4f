// Package cache memoizes pipeline results by content, mode and pipeline
// version.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-insight-pipeline/internal/model"
	"go-insight-pipeline/internal/pipeline"
)

// Backend is an optional persistent tier behind the in-memory map.
type Backend interface {
	LoadCacheRecord(ctx context.Context, key string) (*model.CacheRecord, error)
	StoreCacheRecord(ctx context.Context, rec model.CacheRecord) error
}

// Service is a process-wide result cache. Entries never expire. Concurrent
// writers to the same key are safe; the last one wins.
type Service struct {
	mu      sync.RWMutex
	entries map[string]model.CacheRecord
	backend Backend
	version string
}

// Option configures a Service.
type Option func(*Service)

// WithBackend adds a read-through, write-through persistent tier. Backend
// failures are logged and otherwise ignored.
func WithBackend(b Backend) Option {
	return func(s *Service) { s.backend = b }
}

// WithVersion overrides the pipeline version mixed into keys.
func WithVersion(v string) Option {
	return func(s *Service) { s.version = v }
}

func New(opts ...Option) *Service {
	s := &Service{
		entries: make(map[string]model.CacheRecord),
		version: pipeline.Version,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the hex SHA-256 of (content, mode, version). Each part is
// length-prefixed so no two distinct triples share a preimage.
func (s *Service) Key(content []byte, mode string) string {
	h := sha256.New()
	var n [8]byte
	for _, part := range [][]byte{content, []byte(mode), []byte(s.version)} {
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the record for key. A miss in memory falls through to the
// backend; a backend hit is promoted into memory.
func (s *Service) Get(ctx context.Context, key string) (*model.CacheRecord, bool) {
	s.mu.RLock()
	rec, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return &rec, true
	}
	if s.backend == nil {
		return nil, false
	}

	stored, err := s.backend.LoadCacheRecord(ctx, key)
	if err != nil {
		zap.L().Warn("cache: backend load failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if stored == nil {
		return nil, false
	}

	s.mu.Lock()
	s.entries[key] = *stored
	s.mu.Unlock()
	return stored, true
}

// Set stores rec under key. It never fails.
func (s *Service) Set(ctx context.Context, key string, rec model.CacheRecord) {
	rec.Key = key
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.entries[key] = rec
	s.mu.Unlock()

	if s.backend == nil {
		return
	}
	if err := s.backend.StoreCacheRecord(ctx, rec); err != nil {
		zap.L().Warn("cache: backend store failed", zap.String("key", key), zap.Error(err))
	}
}

// Len returns the number of in-memory entries.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
