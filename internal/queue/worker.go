package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-insight-pipeline/internal/enrich"
	"go-insight-pipeline/internal/model"
	"go-insight-pipeline/internal/pipeline"
)

// worker processes one job: run the pipeline with retries, then enrich.
type worker struct {
	q        *Queue
	jobID    string
	onUpdate func(model.JobUpdate)
	log      *zap.Logger
}

func (w *worker) update(u model.JobUpdate) (model.Job, error) {
	return w.q.apply(w.jobID, u, w.onUpdate)
}

// run is the bounded retry loop. Attempt n that fails is followed by a
// n*BaseDelay wait and a retryCount of n, until MaxAttempts is reached.
func (w *worker) run(ctx context.Context) {
	w.log = zap.L().With(zap.String("job_id", w.jobID))
	start := time.Now()

	processing := model.StatusProcessing
	if _, err := w.update(model.JobUpdate{Status: &processing}); err != nil {
		w.log.Error("queue: cannot start job", zap.Error(err))
		return
	}

	var lastErr error
	for attempt := 1; attempt <= w.q.retry.MaxAttempts; attempt++ {
		err := w.attempt(ctx)
		if err == nil {
			w.log.Info("queue: job completed", zap.Int("attempts", attempt), zap.Duration("duration", time.Since(start)))
			return
		}
		lastErr = err
		w.q.recordError(w.jobID, attempt, err)

		var ingestErr *pipeline.IngestionError
		if errors.As(err, &ingestErr) {
			w.log.Error("queue: input rejected", zap.Error(err))
			break
		}
		if attempt == w.q.retry.MaxAttempts {
			break
		}

		retries := attempt
		msg := err.Error()
		w.log.Warn("queue: attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", w.q.retry.Backoff(attempt)),
			zap.Error(err),
		)
		if _, err := w.update(model.JobUpdate{RetryCount: &retries, Error: &msg}); err != nil {
			w.log.Error("queue: record retry", zap.Error(err))
			return
		}

		timer := time.NewTimer(w.q.retry.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = eris.Wrap(ctx.Err(), "queue: canceled during backoff")
			attempt = w.q.retry.MaxAttempts
		case <-timer.C:
		}
	}

	failed := model.StatusFailed
	msg := "unknown error"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	w.log.Error("queue: job failed", zap.String("error", msg), zap.Duration("duration", time.Since(start)))
	if _, err := w.update(model.JobUpdate{Status: &failed, Error: &msg}); err != nil {
		w.log.Error("queue: record failure", zap.Error(err))
	}
}

// attempt runs one full pass: download, cache lookup, pipeline, enrichment.
func (w *worker) attempt(ctx context.Context) error {
	job, err := w.q.Get(w.jobID)
	if err != nil {
		return err
	}

	content, err := w.q.storage.Download(ctx, job.SourcePath)
	if err != nil {
		return eris.Wrap(err, "queue: download source")
	}
	raw, err := pipeline.LoadFile(job.SourcePath, content)
	if err != nil {
		return err
	}

	entitled := w.entitled(ctx, job.UserID)
	mode := ModeStandard
	if entitled {
		mode = ModeEnriched
	}
	key := w.q.cache.Key(content, mode)
	if _, err := w.update(model.JobUpdate{CacheKey: &key}); err != nil {
		return err
	}
	if rec, ok := w.q.cache.Get(ctx, key); ok && rec.Summary != nil {
		return w.completeFromCache(ctx, raw, rec)
	}

	res, err := pipeline.RunDataset(ctx, raw, pipeline.Options{SkipDashboard: true})
	if err != nil {
		return err
	}

	version := w.q.pushSnapshot(w.jobID, res.Dataset, res.Summary.DuplicateCount)
	w.q.appendHistory(w.jobID, res.Summary.OperationHistory...)
	if _, err := w.update(model.JobUpdate{Summary: res.Summary, DataStack: []int{version}}); err != nil {
		return err
	}

	var (
		insights *model.Insights
		bp       *model.Blueprint
	)
	if entitled {
		insights, bp = w.enrich(ctx, job.UserID, res.Summary)
	}
	// An enriched run that got nothing back is not cached, so the next
	// entitled submission asks again.
	cacheable := !entitled || insights != nil || bp != nil
	if bp == nil {
		fb := pipeline.FallbackBlueprint(res.Columns)
		bp = &fb
	}

	final := *res.Summary
	final.Dashboard = pipeline.ExecuteBlueprint(res.Dataset, res.Columns, *bp)
	final.Insights = insights

	if cacheable {
		w.q.cache.Set(ctx, key, model.CacheRecord{Summary: &final, Insights: insights, Blueprint: bp})
	}

	completed, cleared := model.StatusCompleted, ""
	_, err = w.update(model.JobUpdate{Status: &completed, Summary: &final, Error: &cleared})
	return err
}

// completeFromCache reuses a memoized summary. The working snapshot is still
// rebuilt so the job supports clean and undo.
func (w *worker) completeFromCache(ctx context.Context, raw model.Dataset, rec *model.CacheRecord) error {
	prep, err := pipeline.Prepare(ctx, raw)
	if err != nil {
		return err
	}
	version := w.q.pushSnapshot(w.jobID, prep.Dataset, prep.DuplicateCount)
	w.q.appendHistory(w.jobID, rec.Summary.OperationHistory...)

	summary := *rec.Summary
	w.log.Info("queue: cache hit", zap.String("cache_key", rec.Key))

	completed, cleared := model.StatusCompleted, ""
	_, err = w.update(model.JobUpdate{Status: &completed, Summary: &summary, DataStack: []int{version}, Error: &cleared})
	return err
}

// entitled reports whether this job's user may be enriched. A failed
// entitlement check counts as not entitled.
func (w *worker) entitled(ctx context.Context, userID string) bool {
	if w.q.enricher == nil {
		return false
	}
	ok, err := w.q.entitlements.CanEnrich(ctx, userID)
	if err != nil {
		w.log.Warn("queue: entitlement check failed", zap.Error(err))
		return false
	}
	if !ok {
		w.log.Debug("queue: enrichment not entitled", zap.String("user_id", userID))
	}
	return ok
}

// enrich fans out the insight and blueprint requests and waits for both.
// Failures are logged and yield nil results; they never fail the job. The
// caller has already checked entitlement.
func (w *worker) enrich(ctx context.Context, userID string, summary *model.DataSummary) (*model.Insights, *model.Blueprint) {
	reasoning := model.StatusAIReasoning
	if _, err := w.update(model.JobUpdate{Status: &reasoning}); err != nil {
		w.log.Warn("queue: enter reasoning", zap.Error(err))
		return nil, nil
	}

	res := enrich.Run(ctx, w.q.enricher, summary)
	if res.InsightsErr != nil {
		w.log.Warn("queue: insights unavailable", zap.Error(res.InsightsErr))
	}
	if res.BlueprintErr != nil {
		w.log.Warn("queue: blueprint unavailable, using fallback", zap.Error(res.BlueprintErr))
	}

	if err := w.q.entitlements.ConsumeEnrichmentCall(ctx, userID); err != nil {
		w.log.Warn("queue: consume enrichment call", zap.Error(err))
	}
	return res.Insights, res.Blueprint
}
