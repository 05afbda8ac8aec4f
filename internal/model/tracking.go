package model

import "time"

// JobStatus is a state of the job state machine.
type JobStatus string

const (
	StatusPending     JobStatus = "PENDING"
	StatusProcessing  JobStatus = "PROCESSING"
	StatusAIReasoning JobStatus = "AI_REASONING"
	StatusCompleted   JobStatus = "COMPLETED"
	StatusFailed      JobStatus = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the state machine allows s -> next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return !s.Terminal()
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusAIReasoning || next == StatusCompleted || next == StatusFailed
	case StatusAIReasoning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Job is the externally visible state of one submitted dataset.
//
// DataStack lists snapshot versions, bottom first; the last element is the
// current working dataset. The datasets themselves live in the snapshot arena.
type Job struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId,omitempty"`
	SourcePath string       `json:"sourcePath"`
	CacheKey   string       `json:"cacheKey,omitempty"`
	Status     JobStatus    `json:"status"`
	DataStack  []int        `json:"dataStack"`
	Summary    *DataSummary `json:"summary,omitempty"`
	RetryCount int          `json:"retryCount"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// JobUpdate is a partial overlay on a Job. Nil fields are left untouched.
type JobUpdate struct {
	Status     *JobStatus
	Summary    *DataSummary
	DataStack  []int
	CacheKey   *string
	RetryCount *int
	Error      *string
}

// Apply merges u into a copy of j and returns the result.
func (u JobUpdate) Apply(j Job) Job {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Summary != nil {
		j.Summary = u.Summary
	}
	if u.DataStack != nil {
		j.DataStack = append([]int(nil), u.DataStack...)
	}
	if u.CacheKey != nil {
		j.CacheKey = *u.CacheKey
	}
	if u.RetryCount != nil {
		j.RetryCount = *u.RetryCount
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	return j
}

// StatusUpdate builds an update carrying only a status.
func StatusUpdate(s JobStatus) JobUpdate {
	return JobUpdate{Status: &s}
}
