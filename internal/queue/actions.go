package queue

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-insight-pipeline/internal/model"
	"go-insight-pipeline/internal/pipeline"
)

// ErrNotReady is returned (wrapped) when a snapshot action targets a job that
// has not completed.
var ErrNotReady = eris.New("queue: job not ready")

// Clean fills nulls and trims text on the current snapshot, pushes the result
// as a new version and re-analyzes it.
func (q *Queue) Clean(ctx context.Context, jobID string) (model.Job, error) {
	return q.transform(ctx, jobID, func(snap model.Snapshot) (model.Dataset, int, model.OperationLog) {
		cols := pipeline.DetectSchema(snap.Dataset)
		cleaned := pipeline.CleanInteractive(snap.Dataset, cols)
		op := pipeline.NewOperationLog(pipeline.ActionClean, "user requested clean",
			fmt.Sprintf("filled %d missing values", countNulls(snap.Dataset)))
		return cleaned, snap.DuplicateCount, op
	})
}

// Deduplicate removes duplicate rows from the current snapshot, pushes the
// result as a new version and re-analyzes it.
func (q *Queue) Deduplicate(ctx context.Context, jobID string) (model.Job, error) {
	return q.transform(ctx, jobID, func(snap model.Snapshot) (model.Dataset, int, model.OperationLog) {
		deduped, removed := pipeline.Deduplicate(snap.Dataset)
		op := pipeline.NewOperationLog(pipeline.ActionDeduplicate, "user requested deduplication",
			fmt.Sprintf("removed %d duplicate rows", removed))
		return deduped, snap.DuplicateCount + removed, op
	})
}

type transformFunc func(snap model.Snapshot) (model.Dataset, int, model.OperationLog)

func (q *Queue) transform(ctx context.Context, jobID string, fn transformFunc) (model.Job, error) {
	unlock := q.lockJob(jobID)
	defer unlock()

	job, snap, err := q.current(ctx, jobID)
	if err != nil {
		return model.Job{}, err
	}

	ds, duplicates, op := fn(snap)
	version := q.pushSnapshot(jobID, ds, duplicates)
	q.appendHistory(jobID, op)

	history := append(append([]model.OperationLog(nil), job.Summary.OperationHistory...), op)
	summary, _ := pipeline.Analyze(ds, duplicates, history)
	summary.Insights = job.Summary.Insights

	stack := append(append([]int(nil), job.DataStack...), version)
	zap.L().Info("queue: snapshot pushed", zap.String("job_id", jobID), zap.String("action", op.Action), zap.Int("version", version))
	return q.apply(jobID, model.JobUpdate{Summary: summary, DataStack: stack}, nil)
}

// Undo pops the current snapshot and re-analyzes the one below it. With a
// single snapshot it is a no-op. The operation history keeps growing and the
// dashboard is dropped.
func (q *Queue) Undo(ctx context.Context, jobID string) (model.Job, error) {
	unlock := q.lockJob(jobID)
	defer unlock()

	job, _, err := q.current(ctx, jobID)
	if err != nil {
		return model.Job{}, err
	}
	if len(job.DataStack) <= 1 {
		return job, nil
	}

	stack := append([]int(nil), job.DataStack[:len(job.DataStack)-1]...)
	snap, err := q.snapshot(ctx, jobID, stack[len(stack)-1])
	if err != nil {
		return model.Job{}, err
	}

	op := pipeline.NewOperationLog(pipeline.ActionUndo, "user requested undo",
		fmt.Sprintf("reverted to version %d", snap.Version))
	q.appendHistory(jobID, op)

	history := append(append([]model.OperationLog(nil), job.Summary.OperationHistory...), op)
	summary, _ := pipeline.Analyze(snap.Dataset, snap.DuplicateCount, history)
	summary.Insights = job.Summary.Insights

	zap.L().Info("queue: snapshot popped", zap.String("job_id", jobID), zap.Int("version", snap.Version))
	return q.apply(jobID, model.JobUpdate{Summary: summary, DataStack: stack}, nil)
}

// Snapshot returns the job's current working dataset.
func (q *Queue) Snapshot(ctx context.Context, jobID string) (model.Snapshot, error) {
	_, snap, err := q.current(ctx, jobID)
	return snap, err
}

// current loads a completed job and the snapshot on top of its stack.
func (q *Queue) current(ctx context.Context, jobID string) (model.Job, model.Snapshot, error) {
	job, err := q.Get(jobID)
	if err != nil {
		return model.Job{}, model.Snapshot{}, err
	}
	if job.Status != model.StatusCompleted || len(job.DataStack) == 0 || job.Summary == nil {
		return model.Job{}, model.Snapshot{}, eris.Wrapf(ErrNotReady, "queue: job %s is %s", jobID, job.Status)
	}
	snap, err := q.snapshot(ctx, jobID, job.DataStack[len(job.DataStack)-1])
	if err != nil {
		return model.Job{}, model.Snapshot{}, err
	}
	return job, snap, nil
}

func countNulls(ds model.Dataset) int {
	n := 0
	for _, r := range ds.Rows {
		for _, h := range ds.Headers {
			if r[h].IsNull() {
				n++
			}
		}
	}
	return n
}
