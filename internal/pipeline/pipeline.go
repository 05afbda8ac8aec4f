package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-insight-pipeline/internal/model"
)

// Version identifies the deterministic pipeline. It is part of every cache
// key, so bumping it invalidates previously cached results.
const Version = "2.1.0"

// Options tunes a pipeline run.
type Options struct {
	// Blueprint renders the dashboard. When nil the rule-based fallback is used.
	Blueprint *model.Blueprint
	// SkipDashboard leaves DataSummary.Dashboard empty.
	SkipDashboard bool
}

// Result is the output of one full run.
type Result struct {
	Summary *model.DataSummary
	// Dataset is the cleaned, typed snapshot the summary was computed from.
	Dataset model.Dataset
	// Columns is the analyzed schema of Dataset.
	Columns []model.ColumnMetadata
}

// ------------------- Pipeline Runner -------------------

// Run executes the full deterministic pipeline over raw delimited text:
// ingest -> deduplicate -> detect -> cast -> analyze -> root cause ->
// summarize -> dashboard. Stages run strictly in sequence.
func Run(ctx context.Context, raw string, opts Options) (*Result, error) {
	ds, err := Load(raw)
	if err != nil {
		return nil, err
	}
	return RunDataset(ctx, ds, opts)
}

// RunDataset runs every stage after ingestion on an already loaded dataset.
func RunDataset(ctx context.Context, raw model.Dataset, opts Options) (*Result, error) {
	start := time.Now()

	prep, err := Prepare(ctx, raw)
	if err != nil {
		return nil, err
	}

	if err := stageCheck(ctx, "analyze"); err != nil {
		return nil, err
	}
	summary, analyzed := Analyze(prep.Dataset, prep.DuplicateCount, prep.History)

	if !opts.SkipDashboard {
		bp := opts.Blueprint
		if bp == nil {
			fb := FallbackBlueprint(analyzed)
			bp = &fb
		}
		summary.Dashboard = ExecuteBlueprint(prep.Dataset, analyzed, *bp)
	}

	zap.L().Info("pipeline run complete",
		zap.Int("raw_rows", raw.Len()),
		zap.Int("rows", summary.RowCount),
		zap.Int("quality_score", summary.QualityScore),
		zap.Duration("duration", time.Since(start)),
	)

	return &Result{Summary: summary, Dataset: prep.Dataset, Columns: analyzed}, nil
}

// Prepared is a deduplicated, typed dataset ready for analysis.
type Prepared struct {
	Dataset        model.Dataset
	DuplicateCount int
	History        []model.OperationLog
}

// Prepare runs the initial cleaning stages: deduplicate, detect, cast. The
// returned history starts with the ingest entry.
func Prepare(ctx context.Context, raw model.Dataset) (*Prepared, error) {
	log := zap.L().With(zap.Int("raw_rows", raw.Len()), zap.Int("columns", len(raw.Headers)))

	history := []model.OperationLog{
		newLog(ActionIngest, "dataset uploaded", fmt.Sprintf("%d rows, %d columns", raw.Len(), len(raw.Headers))),
	}

	if err := stageCheck(ctx, "deduplicate"); err != nil {
		return nil, err
	}
	deduped, dupes := Deduplicate(raw)
	history = append(history, newLog(ActionDeduplicate, "initial clean", fmt.Sprintf("removed %d duplicate rows", dupes)))
	log.Debug("deduplicated", zap.Int("duplicates", dupes))

	if err := stageCheck(ctx, "cast"); err != nil {
		return nil, err
	}
	typed := CastAndFill(deduped, DetectSchema(deduped))
	history = append(history, newLog(ActionCastAndFill, "initial clean", "values cast to inferred column types"))
	log.Debug("cast to inferred types")

	return &Prepared{Dataset: typed, DuplicateCount: dupes, History: history}, nil
}

// Analyze re-runs schema detection, statistics, root cause and the summary
// over an existing snapshot. It is what undo and the interactive actions use;
// it never computes a dashboard.
func Analyze(ds model.Dataset, duplicateCount int, history []model.OperationLog) (*model.DataSummary, []model.ColumnMetadata) {
	cols := AnalyzeColumns(ds, DetectSchema(ds))
	summary := GenerateSummary(SummaryInput{
		Dataset:        ds,
		Columns:        cols,
		DuplicateCount: duplicateCount,
		History:        history,
		RootCause:      AnalyzeRootCause(ds, cols),
	})
	return summary, cols
}

func stageCheck(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "pipeline: %s", stage)
	}
	return nil
}

func newLog(action, reason, details string) model.OperationLog {
	return model.OperationLog{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Reason:    reason,
		Details:   details,
	}
}

// NewOperationLog builds an audit entry stamped with the current time.
func NewOperationLog(action, reason, details string) model.OperationLog {
	return newLog(action, reason, details)
}
