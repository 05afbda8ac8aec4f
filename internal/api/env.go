package api

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-insight-pipeline/internal/cache"
	"go-insight-pipeline/internal/config"
	"go-insight-pipeline/internal/enrich"
	"go-insight-pipeline/internal/queue"
	"go-insight-pipeline/internal/storage"
	"go-insight-pipeline/internal/store"
	"go-insight-pipeline/pkg/router"
)

// Env holds the long-lived services behind the HTTP API.
type Env struct {
	Store *store.Store
	Queue *queue.Queue
	addr  string
}

// NewEnv opens the database, wires storage, cache, enrichment and the queue
// from cfg, and reloads persisted jobs. Jobs run until ctx is canceled.
func NewEnv(ctx context.Context, cfg *config.Config) (*Env, error) {
	st, err := store.Open(cfg.Store.Path, store.WithDefaultQuota(cfg.Enrich.DefaultQuota))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	var blobs storage.Storage = st
	if cfg.Storage.Driver == "fs" {
		fs, err := storage.NewFileStorage(cfg.Storage.Dir)
		if err != nil {
			st.Close()
			return nil, err
		}
		blobs = fs
	}

	var cacheOpts []cache.Option
	if cfg.Cache.Persist {
		cacheOpts = append(cacheOpts, cache.WithBackend(st))
	}

	deps := queue.Deps{
		Storage:      blobs,
		Cache:        cache.New(cacheOpts...),
		Entitlements: st,
		Store:        st,
	}
	if cfg.Enrich.Enabled {
		deps.Enricher = enrich.NewClient(cfg.Enrich.Config)
	}

	q := queue.New(ctx, deps, queue.WithRetry(cfg.Queue))
	if _, err := q.Recover(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "api: recover jobs")
	}

	zap.L().Info("api: environment ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("cache_persist", cfg.Cache.Persist),
		zap.Bool("enrich", cfg.Enrich.Enabled),
	)
	return &Env{Store: st, Queue: q, addr: fmt.Sprintf(":%d", cfg.Server.Port)}, nil
}

// Serve blocks serving the API until ctx is canceled. port overrides the
// configured port when positive.
func (e *Env) Serve(ctx context.Context, port int) error {
	addr := e.addr
	if port > 0 {
		addr = fmt.Sprintf(":%d", port)
	}
	r := router.New()
	RegisterRoutes(r, e.Queue)
	return r.Start(ctx, addr)
}

// Close waits for running jobs and closes the database.
func (e *Env) Close() error {
	e.Queue.Wait()
	return e.Store.Close()
}
