// Package queue runs submitted datasets through the pipeline in the
// background and tracks their state.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-insight-pipeline/internal/cache"
	"go-insight-pipeline/internal/enrich"
	"go-insight-pipeline/internal/model"
	"go-insight-pipeline/internal/storage"
	"go-insight-pipeline/internal/store"
)

// Analysis modes mixed into cache keys. A job runs in ModeEnriched only when
// an enricher is configured and its user is entitled, so enriched and plain
// results never share a cache entry.
const (
	ModeStandard = "standard"
	ModeEnriched = "enriched"
)

// JobStore persists job state. store.Store implements it.
type JobStore interface {
	SaveJob(ctx context.Context, job model.Job) error
	ListJobs(ctx context.Context, limit int) ([]model.Job, error)
	SaveJobError(ctx context.Context, jobID string, attempt int, err error) error
	GetJobErrors(ctx context.Context, jobID string) ([]store.JobError, error)
	SaveSnapshot(ctx context.Context, jobID string, snap model.Snapshot) error
	GetSnapshot(ctx context.Context, jobID string, version int) (*model.Snapshot, error)
	AppendOperations(ctx context.Context, jobID string, ops ...model.OperationLog) error
}

// Deps are the collaborators of a Queue. Storage and Cache are required;
// a nil Enricher disables enrichment and a nil Store keeps everything in
// memory.
type Deps struct {
	Storage      storage.Storage
	Cache        *cache.Service
	Enricher     enrich.Enricher
	Entitlements enrich.Entitlements
	Store        JobStore
	Registry     *Registry
}

// Queue accepts jobs and runs one goroutine per job.
type Queue struct {
	ctx          context.Context
	registry     *Registry
	arena        *Arena
	storage      storage.Storage
	cache        *cache.Service
	enricher     enrich.Enricher
	entitlements enrich.Entitlements
	store        JobStore
	retry        model.RetryConfig

	mu       sync.Mutex
	inflight map[string]struct{}
	jobLocks map[string]*sync.Mutex
	wg       sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithRetry overrides the retry policy.
func WithRetry(cfg model.RetryConfig) Option {
	return func(q *Queue) { q.retry = cfg }
}

// New creates a Queue. Jobs run until they finish or ctx is canceled.
func New(ctx context.Context, deps Deps, opts ...Option) *Queue {
	q := &Queue{
		ctx:          ctx,
		registry:     deps.Registry,
		arena:        NewArena(),
		storage:      deps.Storage,
		cache:        deps.Cache,
		enricher:     deps.Enricher,
		entitlements: deps.Entitlements,
		store:        deps.Store,
		retry:        model.DefaultRetryConfig(),
		inflight:     make(map[string]struct{}),
		jobLocks:     make(map[string]*sync.Mutex),
	}
	if q.registry == nil {
		q.registry = NewRegistry()
	}
	if q.cache == nil {
		q.cache = cache.New()
	}
	if q.entitlements == nil {
		q.entitlements = enrich.Unlimited{}
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.retry.MaxAttempts < 1 {
		q.retry.MaxAttempts = 1
	}
	return q
}

// Registry exposes the job registry for reads and subscriptions.
func (q *Queue) Registry() *Registry { return q.registry }

// Submission is a new dataset upload.
type Submission struct {
	JobID    string
	UserID   string
	FileName string
	Content  []byte
}

// Submit uploads the content, registers a PENDING job and pushes it. The
// cache key is assigned by the worker once the user's entitlement is known.
func (q *Queue) Submit(ctx context.Context, sub Submission) (model.Job, error) {
	if sub.JobID == "" {
		return model.Job{}, eris.New("queue: submit without job id")
	}
	if _, ok := q.registry.Get(sub.JobID); ok {
		return model.Job{}, eris.Errorf("queue: job %s already exists", sub.JobID)
	}

	path := storage.UploadPath(sub.JobID, sub.FileName)
	if err := q.storage.Upload(ctx, path, sub.Content); err != nil {
		return model.Job{}, eris.Wrap(err, "queue: upload source")
	}

	now := time.Now().UTC()
	job := model.Job{
		ID:         sub.JobID,
		UserID:     sub.UserID,
		SourcePath: path,
		Status:     model.StatusPending,
		DataStack:  []int{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	q.registry.Put(job)
	q.persist(job)

	q.Push(job.ID, job.SourcePath, job.CacheKey, nil)
	return job, nil
}

// Push enqueues a job and returns immediately. The job runs on its own
// goroutine; onUpdate, if set, receives every partial update in order.
// cacheKey is provisional: each attempt recomputes it from the content and
// the mode the user is entitled to.
//
// Pushing a job that is already in flight, or already finished, is a no-op
// and returns false.
func (q *Queue) Push(jobID, sourcePath, cacheKey string, onUpdate func(model.JobUpdate)) bool {
	q.mu.Lock()
	if _, busy := q.inflight[jobID]; busy {
		q.mu.Unlock()
		zap.L().Debug("queue: job already in flight", zap.String("job_id", jobID))
		return false
	}
	if j, ok := q.registry.Get(jobID); ok && j.Status.Terminal() {
		q.mu.Unlock()
		zap.L().Debug("queue: job already finished", zap.String("job_id", jobID), zap.String("status", string(j.Status)))
		return false
	}
	q.inflight[jobID] = struct{}{}
	q.mu.Unlock()

	if _, ok := q.registry.Get(jobID); !ok {
		now := time.Now().UTC()
		q.registry.Put(model.Job{
			ID:         jobID,
			SourcePath: sourcePath,
			CacheKey:   cacheKey,
			Status:     model.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer func() {
			q.mu.Lock()
			delete(q.inflight, jobID)
			q.mu.Unlock()
		}()
		w := &worker{q: q, jobID: jobID, onUpdate: onUpdate}
		w.run(q.ctx)
	}()
	return true
}

// InFlight reports whether the job is currently being processed.
func (q *Queue) InFlight(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inflight[jobID]
	return ok
}

// Wait blocks until every pushed job has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Get returns a job's current state.
func (q *Queue) Get(jobID string) (model.Job, error) {
	j, ok := q.registry.Get(jobID)
	if !ok {
		return model.Job{}, eris.Wrapf(ErrJobNotFound, "queue: get %s", jobID)
	}
	return j, nil
}

// Errors returns the recorded failed attempts of a job.
func (q *Queue) Errors(ctx context.Context, jobID string) ([]store.JobError, error) {
	if _, err := q.Get(jobID); err != nil {
		return nil, err
	}
	if q.store == nil {
		return []store.JobError{}, nil
	}
	return q.store.GetJobErrors(ctx, jobID)
}

// Recover loads persisted jobs into the registry. Jobs that were still
// running when the process stopped are marked FAILED.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	if q.store == nil {
		return 0, nil
	}
	jobs, err := q.store.ListJobs(ctx, 0)
	if err != nil {
		return 0, eris.Wrap(err, "queue: recover")
	}
	for _, j := range jobs {
		if !j.Status.Terminal() {
			j.Status = model.StatusFailed
			j.Error = "interrupted by restart"
			j.UpdatedAt = time.Now().UTC()
			q.persist(j)
		}
		q.registry.Put(j)
	}
	zap.L().Info("queue: recovered jobs", zap.Int("count", len(jobs)))
	return len(jobs), nil
}

// apply merges an update into the registry, persists the result and forwards
// the update to the job's callback.
func (q *Queue) apply(jobID string, u model.JobUpdate, onUpdate func(model.JobUpdate)) (model.Job, error) {
	job, err := q.registry.Update(jobID, u)
	if err != nil {
		return job, err
	}
	q.persist(job)
	if onUpdate != nil {
		onUpdate(u)
	}
	return job, nil
}

func (q *Queue) persist(job model.Job) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(q.ctx, job); err != nil {
		zap.L().Warn("queue: persist job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// pushSnapshot appends ds to the arena and persists it.
func (q *Queue) pushSnapshot(jobID string, ds model.Dataset, duplicates int) int {
	snap := q.arena.Append(jobID, ds, duplicates)
	if q.store != nil {
		if err := q.store.SaveSnapshot(q.ctx, jobID, snap); err != nil {
			zap.L().Warn("queue: persist snapshot failed", zap.String("job_id", jobID), zap.Int("version", snap.Version), zap.Error(err))
		}
	}
	return snap.Version
}

// snapshot returns a version from the arena, reloading persisted versions
// after a restart.
func (q *Queue) snapshot(ctx context.Context, jobID string, version int) (model.Snapshot, error) {
	if snap, ok := q.arena.Get(jobID, version); ok {
		return snap, nil
	}
	if q.store == nil {
		return model.Snapshot{}, eris.Errorf("queue: snapshot %s@%d missing", jobID, version)
	}
	for v := q.arena.Versions(jobID); v <= version; v++ {
		snap, err := q.store.GetSnapshot(ctx, jobID, v)
		if err != nil {
			return model.Snapshot{}, eris.Wrapf(err, "queue: load snapshot %s@%d", jobID, v)
		}
		q.arena.Restore(jobID, *snap)
	}
	snap, ok := q.arena.Get(jobID, version)
	if !ok {
		return model.Snapshot{}, eris.Errorf("queue: snapshot %s@%d missing", jobID, version)
	}
	return snap, nil
}

func (q *Queue) appendHistory(jobID string, ops ...model.OperationLog) {
	if q.store == nil {
		return
	}
	if err := q.store.AppendOperations(q.ctx, jobID, ops...); err != nil {
		zap.L().Warn("queue: persist history failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (q *Queue) recordError(jobID string, attempt int, err error) {
	if q.store == nil {
		return
	}
	if e := q.store.SaveJobError(q.ctx, jobID, attempt, err); e != nil {
		zap.L().Warn("queue: persist job error failed", zap.String("job_id", jobID), zap.Error(e))
	}
}

// lockJob serializes snapshot stack actions on one job.
func (q *Queue) lockJob(jobID string) func() {
	q.mu.Lock()
	l, ok := q.jobLocks[jobID]
	if !ok {
		l = &sync.Mutex{}
		q.jobLocks[jobID] = l
	}
	q.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// List returns every known job, newest first.
func (q *Queue) List() []model.Job {
	return q.registry.List()
}

// Subscribe streams the job's state after every change. See Registry.Subscribe.
func (q *Queue) Subscribe(jobID string) (<-chan model.Job, func()) {
	return q.registry.Subscribe(jobID)
}
