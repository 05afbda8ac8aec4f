// Package enrich produces narrative insights and dashboard blueprints for a
// DataSummary using a language model.
package enrich

import (
	"context"

	"golang.org/x/sync/errgroup"

	"go-insight-pipeline/internal/model"
)

// Enricher is the external reasoning collaborator used by the queue worker.
type Enricher interface {
	Insights(ctx context.Context, summary *model.DataSummary) (*model.Insights, error)
	Blueprint(ctx context.Context, summary *model.DataSummary) (*model.Blueprint, error)
}

// Result is the joined outcome of one Insights and one Blueprint request.
// A failed request leaves its value nil and its error set.
type Result struct {
	Insights     *model.Insights
	Blueprint    *model.Blueprint
	InsightsErr  error
	BlueprintErr error
}

// Run issues the insight and blueprint requests concurrently and waits for
// both. One failing never cancels the other.
func Run(ctx context.Context, en Enricher, summary *model.DataSummary) Result {
	var res Result
	var g errgroup.Group
	g.Go(func() error {
		res.Insights, res.InsightsErr = en.Insights(ctx, summary)
		return nil
	})
	g.Go(func() error {
		res.Blueprint, res.BlueprintErr = en.Blueprint(ctx, summary)
		return nil
	})
	_ = g.Wait()
	if res.InsightsErr != nil {
		res.Insights = nil
	}
	if res.BlueprintErr != nil {
		res.Blueprint = nil
	}
	return res
}

// Entitlements decides whether a user may spend enrichment calls.
type Entitlements interface {
	CanEnrich(ctx context.Context, userID string) (bool, error)
	ConsumeEnrichmentCall(ctx context.Context, userID string) error
}

// Unlimited grants enrichment to every user.
type Unlimited struct{}

func (Unlimited) CanEnrich(context.Context, string) (bool, error) { return true, nil }

func (Unlimited) ConsumeEnrichmentCall(context.Context, string) error { return nil }

// Disabled denies enrichment to every user.
type Disabled struct{}

func (Disabled) CanEnrich(context.Context, string) (bool, error) { return false, nil }

func (Disabled) ConsumeEnrichmentCall(context.Context, string) error { return nil }
