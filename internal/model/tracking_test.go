package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Transitions(t *testing.T) {
	allowed := map[JobStatus][]JobStatus{
		StatusPending:     {StatusPending, StatusProcessing, StatusFailed},
		StatusProcessing:  {StatusProcessing, StatusAIReasoning, StatusCompleted, StatusFailed},
		StatusAIReasoning: {StatusAIReasoning, StatusCompleted, StatusFailed},
	}
	all := []JobStatus{StatusPending, StatusProcessing, StatusAIReasoning, StatusCompleted, StatusFailed}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusAIReasoning.Terminal())
}

func TestJobUpdate_Apply(t *testing.T) {
	stack := []int{0, 1}
	j := Job{ID: "j", Status: StatusPending, DataStack: []int{0}, Error: "boom"}

	retries := 2
	empty := ""
	key := "k1"
	got := JobUpdate{DataStack: stack, CacheKey: &key, RetryCount: &retries, Error: &empty}.Apply(j)

	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, []int{0, 1}, got.DataStack)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "k1", got.CacheKey)
	assert.Empty(t, got.Error)
	assert.Equal(t, "boom", j.Error)

	stack[0] = 9
	assert.Equal(t, 0, got.DataStack[0])

	done := StatusUpdate(StatusCompleted).Apply(got)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 2, done.RetryCount)
}

func TestRetryConfig_Backoff(t *testing.T) {
	c := DefaultRetryConfig()
	assert.Equal(t, 3, c.MaxAttempts)
	assert.Equal(t, time.Second, c.Backoff(1))
	assert.Equal(t, 2*time.Second, c.Backoff(2))

	assert.Zero(t, RetryConfig{MaxAttempts: 1}.Backoff(5))
}
