package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-insight-pipeline/internal/cache"
	"go-insight-pipeline/internal/enrich"
	"go-insight-pipeline/internal/model"
	"go-insight-pipeline/internal/storage"
)

const salesCSV = `region,product,sales,active
east,widget,100,true
west,widget,80,false
east,gadget,,true
north,gadget,60,
west,,40,false
east,widget,100,true
`

// --- mocks ---

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, path string, content []byte) error {
	args := m.Called(ctx, path, content)
	return args.Error(0)
}

func (m *mockStorage) Download(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Insights(ctx context.Context, s *model.DataSummary) (*model.Insights, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Insights), args.Error(1)
}

func (m *mockEnricher) Blueprint(ctx context.Context, s *model.DataSummary) (*model.Blueprint, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blueprint), args.Error(1)
}

// updateLog collects onUpdate callbacks.
type updateLog struct {
	mu      sync.Mutex
	updates []model.JobUpdate
}

func (l *updateLog) add(u model.JobUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
}

func (l *updateLog) retryCounts() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []int
	for _, u := range l.updates {
		if u.RetryCount != nil {
			out = append(out, *u.RetryCount)
		}
	}
	return out
}

func (l *updateLog) statuses() []model.JobStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.JobStatus
	for _, u := range l.updates {
		if u.Status != nil {
			out = append(out, *u.Status)
		}
	}
	return out
}

var fastRetry = model.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}

func newFileQueue(t *testing.T, deps Deps) *Queue {
	t.Helper()
	if deps.Storage == nil {
		fs, err := storage.NewFileStorage(t.TempDir())
		require.NoError(t, err)
		deps.Storage = fs
	}
	return New(context.Background(), deps, WithRetry(fastRetry))
}

func submit(t *testing.T, q *Queue, id, content string) model.Job {
	t.Helper()
	job, err := q.Submit(context.Background(), Submission{JobID: id, UserID: "u1", FileName: "sales.csv", Content: []byte(content)})
	require.NoError(t, err)
	q.Wait()
	got, err := q.Get(job.ID)
	require.NoError(t, err)
	return got
}

// --- retry ---

func TestWorker_RetryExhaustion(t *testing.T) {
	st := new(mockStorage)
	st.On("Download", mock.Anything, "uploads/job-1/data.csv").Return(nil, errors.New("bucket unavailable"))

	q := New(context.Background(), Deps{Storage: st}, WithRetry(fastRetry))
	log := &updateLog{}

	require.True(t, q.Push("job-1", "uploads/job-1/data.csv", "", log.add))
	q.Wait()

	job, err := q.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Equal(t, 2, job.RetryCount)
	assert.Contains(t, job.Error, "bucket unavailable")
	assert.Equal(t, []int{1, 2}, log.retryCounts())
	assert.Equal(t, []model.JobStatus{model.StatusProcessing, model.StatusFailed}, log.statuses())
	st.AssertNumberOfCalls(t, "Download", 3)
}

func TestWorker_RecoversOnRetry(t *testing.T) {
	st := new(mockStorage)
	st.On("Download", mock.Anything, "p.csv").Return(nil, errors.New("flaky")).Once()
	st.On("Download", mock.Anything, "p.csv").Return([]byte(salesCSV), nil)

	q := New(context.Background(), Deps{Storage: st}, WithRetry(fastRetry))
	log := &updateLog{}
	require.True(t, q.Push("job-1", "p.csv", "", log.add))
	q.Wait()

	job, err := q.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Empty(t, job.Error)
	assert.Equal(t, []int{1}, log.retryCounts())
}

func TestWorker_IngestionErrorIsNotRetried(t *testing.T) {
	st := new(mockStorage)
	st.On("Download", mock.Anything, "empty.csv").Return([]byte("\n\n"), nil)

	q := New(context.Background(), Deps{Storage: st}, WithRetry(fastRetry))
	require.True(t, q.Push("job-1", "empty.csv", "", nil))
	q.Wait()

	job, err := q.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Contains(t, job.Error, "ingestion")
	st.AssertNumberOfCalls(t, "Download", 1)
}

// --- idempotency ---

func TestPush_DuplicateWhileInFlightIsNoop(t *testing.T) {
	release := make(chan struct{})
	st := new(mockStorage)
	st.On("Download", mock.Anything, "p.csv").
		Run(func(mock.Arguments) { <-release }).
		Return([]byte(salesCSV), nil)

	q := New(context.Background(), Deps{Storage: st}, WithRetry(fastRetry))

	require.True(t, q.Push("job-1", "p.csv", "", nil))
	assert.True(t, q.InFlight("job-1"))
	assert.False(t, q.Push("job-1", "p.csv", "", nil))

	close(release)
	q.Wait()

	st.AssertNumberOfCalls(t, "Download", 1)
	job, err := q.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, job.Status)

	// Finished jobs are final.
	assert.False(t, q.Push("job-1", "p.csv", "", nil))
}

// --- happy path, enrichment, cache ---

func TestWorker_CompletesWithFallbackDashboard(t *testing.T) {
	q := newFileQueue(t, Deps{})

	job := submit(t, q, "job-1", salesCSV)
	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.Equal(t, []int{0}, job.DataStack)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 5, job.Summary.RowCount)
	assert.Equal(t, 1, job.Summary.DuplicateCount)
	require.NotNil(t, job.Summary.Dashboard)
	assert.NotEmpty(t, job.Summary.Dashboard.KPIs)
	assert.Nil(t, job.Summary.Insights)
}

func TestWorker_EnrichmentFallback(t *testing.T) {
	en := new(mockEnricher)
	en.On("Insights", mock.Anything, mock.Anything).Return(&model.Insights{Summary: "east leads"}, nil)
	en.On("Blueprint", mock.Anything, mock.Anything).Return(nil, errors.New("model overloaded"))

	q := newFileQueue(t, Deps{Enricher: en})

	_, err := q.Submit(context.Background(), Submission{JobID: "job-1", FileName: "s.csv", Content: []byte(salesCSV)})
	require.NoError(t, err)
	q.Wait()

	job, err := q.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, job.Status)
	require.NotNil(t, job.Summary.Insights)
	assert.Equal(t, "east leads", job.Summary.Insights.Summary)
	require.NotNil(t, job.Summary.Dashboard)
	require.Len(t, job.Summary.Dashboard.Charts, 2)
	assert.Equal(t, "Sales by Region", job.Summary.Dashboard.Charts[0].Title)
	en.AssertExpectations(t)
}

func TestWorker_EnrichmentStatuses(t *testing.T) {
	en := new(mockEnricher)
	en.On("Insights", mock.Anything, mock.Anything).Return(&model.Insights{Summary: "ok"}, nil)
	en.On("Blueprint", mock.Anything, mock.Anything).Return(&model.Blueprint{
		KPIs: []model.KPIRef{{Label: "Sales", Column: "sales"}},
	}, nil)

	st := new(mockStorage)
	st.On("Download", mock.Anything, "p.csv").Return([]byte(salesCSV), nil)

	q := New(context.Background(), Deps{Storage: st, Enricher: en}, WithRetry(fastRetry))
	log := &updateLog{}
	require.True(t, q.Push("job-1", "p.csv", "", log.add))
	q.Wait()

	assert.Equal(t, []model.JobStatus{model.StatusProcessing, model.StatusAIReasoning, model.StatusCompleted}, log.statuses())
	job, err := q.Get("job-1")
	require.NoError(t, err)
	require.Len(t, job.Summary.Dashboard.KPIs, 1)
	assert.Equal(t, "70.0", job.Summary.Dashboard.KPIs[0].Value)
}

func TestWorker_NotEntitledSkipsEnrichment(t *testing.T) {
	en := new(mockEnricher)
	q := newFileQueue(t, Deps{Enricher: en, Entitlements: enrich.Disabled{}})

	job := submit(t, q, "job-1", salesCSV)
	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.Nil(t, job.Summary.Insights)
	en.AssertNotCalled(t, "Insights", mock.Anything, mock.Anything)
	en.AssertNotCalled(t, "Blueprint", mock.Anything, mock.Anything)
}

func TestWorker_CacheHitSkipsEnrichment(t *testing.T) {
	en := new(mockEnricher)
	en.On("Insights", mock.Anything, mock.Anything).Return(&model.Insights{Summary: "ok"}, nil).Once()
	en.On("Blueprint", mock.Anything, mock.Anything).Return(nil, errors.New("no")).Once()

	c := cache.New()
	q := newFileQueue(t, Deps{Enricher: en, Cache: c})

	first := submit(t, q, "job-1", salesCSV)
	second := submit(t, q, "job-2", salesCSV)

	assert.Equal(t, first.CacheKey, second.CacheKey)
	assert.Equal(t, model.StatusCompleted, second.Status)
	assert.Equal(t, first.Summary.QualityScore, second.Summary.QualityScore)
	require.NotNil(t, second.Summary.Insights)
	assert.Equal(t, []int{0}, second.DataStack)
	en.AssertExpectations(t)
	assert.Equal(t, 1, c.Len())
}

// paidOnly entitles a single user and counts consumed calls.
type paidOnly struct {
	mu       sync.Mutex
	consumed map[string]int
}

func (p *paidOnly) CanEnrich(_ context.Context, userID string) (bool, error) {
	return userID == "paid", nil
}

func (p *paidOnly) ConsumeEnrichmentCall(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed == nil {
		p.consumed = make(map[string]int)
	}
	p.consumed[userID]++
	return nil
}

func (p *paidOnly) calls(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consumed[userID]
}

func submitAs(t *testing.T, q *Queue, id, userID string) model.Job {
	t.Helper()
	_, err := q.Submit(context.Background(), Submission{JobID: id, UserID: userID, FileName: "sales.csv", Content: []byte(salesCSV)})
	require.NoError(t, err)
	q.Wait()
	job, err := q.Get(id)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, job.Status)
	return job
}

func paidEnricher() *mockEnricher {
	en := new(mockEnricher)
	en.On("Insights", mock.Anything, mock.Anything).Return(&model.Insights{Summary: "paid"}, nil).Once()
	en.On("Blueprint", mock.Anything, mock.Anything).Return(nil, errors.New("no")).Once()
	return en
}

func TestWorker_CacheDoesNotLeakEnrichmentToFreeUsers(t *testing.T) {
	en, ent := paidEnricher(), &paidOnly{}
	q := newFileQueue(t, Deps{Enricher: en, Entitlements: ent})

	paid := submitAs(t, q, "job-paid", "paid")
	free := submitAs(t, q, "job-free", "free")

	require.NotNil(t, paid.Summary.Insights)
	assert.Nil(t, free.Summary.Insights)
	assert.NotEqual(t, paid.CacheKey, free.CacheKey)
	assert.Equal(t, 1, ent.calls("paid"))
	assert.Zero(t, ent.calls("free"))
	en.AssertExpectations(t)
}

func TestWorker_EntitledUserIsEnrichedAfterFreeRun(t *testing.T) {
	en, ent := paidEnricher(), &paidOnly{}
	q := newFileQueue(t, Deps{Enricher: en, Entitlements: ent})

	free := submitAs(t, q, "job-free", "free")
	assert.Nil(t, free.Summary.Insights)
	en.AssertNotCalled(t, "Insights", mock.Anything, mock.Anything)

	paid := submitAs(t, q, "job-paid", "paid")
	require.NotNil(t, paid.Summary.Insights)
	assert.Equal(t, "paid", paid.Summary.Insights.Summary)

	// A second entitled run of the same content is served from the cache.
	again := submitAs(t, q, "job-paid-2", "paid")
	assert.Equal(t, paid.CacheKey, again.CacheKey)
	require.NotNil(t, again.Summary.Insights)
	en.AssertExpectations(t)
	assert.Equal(t, 1, ent.calls("paid"))
}

func TestWorker_EmptyEnrichmentIsNotCached(t *testing.T) {
	en := new(mockEnricher)
	en.On("Insights", mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	en.On("Blueprint", mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	c := cache.New()
	q := newFileQueue(t, Deps{Enricher: en, Cache: c})

	submitAs(t, q, "job-1", "u1")
	submitAs(t, q, "job-2", "u1")

	assert.Zero(t, c.Len())
	en.AssertNumberOfCalls(t, "Insights", 2)
}

// --- snapshot stack ---

func TestUndo_RoundTrip(t *testing.T) {
	q := newFileQueue(t, Deps{})
	ctx := context.Background()

	orig := submit(t, q, "job-1", salesCSV)
	require.Equal(t, model.StatusCompleted, orig.Status)

	cleaned, err := q.Clean(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, cleaned.DataStack)
	for _, c := range cleaned.Summary.Columns {
		assert.Zero(t, c.NullCount, c.Name)
	}

	_, err = q.Clean(ctx, "job-1")
	require.NoError(t, err)

	_, err = q.Undo(ctx, "job-1")
	require.NoError(t, err)
	back, err := q.Undo(ctx, "job-1")
	require.NoError(t, err)

	assert.Equal(t, []int{0}, back.DataStack)
	assert.Equal(t, orig.Summary.Columns, back.Summary.Columns)
	assert.Equal(t, orig.Summary.RowCount, back.Summary.RowCount)
	assert.Equal(t, orig.Summary.DuplicateCount, back.Summary.DuplicateCount)
	assert.Equal(t, orig.Summary.QualityScore, back.Summary.QualityScore)
	assert.Equal(t, orig.Summary.Suggestions, back.Summary.Suggestions)
	assert.Nil(t, back.Summary.Dashboard)

	// History is cumulative: 3 initial entries, 2 cleans, 2 undos.
	assert.Len(t, back.Summary.OperationHistory, len(orig.Summary.OperationHistory)+4)

	// Undo at the bottom of the stack is a no-op.
	again, err := q.Undo(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, back.Summary.OperationHistory, again.Summary.OperationHistory)
}

func TestDeduplicate_PushesVersion(t *testing.T) {
	q := newFileQueue(t, Deps{})
	ctx := context.Background()
	submit(t, q, "job-1", salesCSV)

	job, err := q.Deduplicate(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, job.DataStack)
	// The initial run already removed the only duplicate.
	assert.Equal(t, 1, job.Summary.DuplicateCount)
	assert.Equal(t, "deduplicate", job.Summary.OperationHistory[len(job.Summary.OperationHistory)-1].Action)
}

func TestActions_RequireCompletedJob(t *testing.T) {
	q := newFileQueue(t, Deps{})

	_, err := q.Clean(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrJobNotFound))

	q.Registry().Put(model.Job{ID: "pending", Status: model.StatusPending})
	_, err = q.Undo(context.Background(), "pending")
	assert.True(t, eris.Is(err, ErrNotReady))
}
