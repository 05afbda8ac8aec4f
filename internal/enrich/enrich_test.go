package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insight-pipeline/internal/model"
)

// rendezvousEnricher only answers once both requests are in flight.
type rendezvousEnricher struct {
	insightsIn, blueprintIn chan struct{}
	blueprintErr            error
}

func (r *rendezvousEnricher) wait(own, other chan struct{}) error {
	close(own)
	select {
	case <-other:
		return nil
	case <-time.After(time.Second):
		return errors.New("requests ran one after the other")
	}
}

func (r *rendezvousEnricher) Insights(ctx context.Context, _ *model.DataSummary) (*model.Insights, error) {
	if err := r.wait(r.insightsIn, r.blueprintIn); err != nil {
		return nil, err
	}
	return &model.Insights{Summary: "ok"}, nil
}

func (r *rendezvousEnricher) Blueprint(ctx context.Context, _ *model.DataSummary) (*model.Blueprint, error) {
	if err := r.wait(r.blueprintIn, r.insightsIn); err != nil {
		return nil, err
	}
	if r.blueprintErr != nil {
		return &model.Blueprint{}, r.blueprintErr
	}
	return &model.Blueprint{KPIs: []model.KPIRef{{Label: "Sales", Column: "sales"}}}, nil
}

func newRendezvous(blueprintErr error) *rendezvousEnricher {
	return &rendezvousEnricher{
		insightsIn:   make(chan struct{}),
		blueprintIn:  make(chan struct{}),
		blueprintErr: blueprintErr,
	}
}

func TestRun_IssuesBothRequestsConcurrently(t *testing.T) {
	res := Run(context.Background(), newRendezvous(nil), testSummary())
	require.NoError(t, res.InsightsErr)
	require.NoError(t, res.BlueprintErr)
	assert.Equal(t, "ok", res.Insights.Summary)
	require.Len(t, res.Blueprint.KPIs, 1)
}

func TestRun_OneFailureKeepsTheOther(t *testing.T) {
	res := Run(context.Background(), newRendezvous(errors.New("overloaded")), testSummary())
	assert.NoError(t, res.InsightsErr)
	assert.NotNil(t, res.Insights)
	assert.EqualError(t, res.BlueprintErr, "overloaded")
	assert.Nil(t, res.Blueprint)
}
