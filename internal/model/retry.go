package model

import "time"

// RetryConfig defines how the queue retries a failed job run.
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"` // total attempts, first try included
	BaseDelay   time.Duration `json:"base_delay" mapstructure:"base_delay"`     // delay before retry n is n*BaseDelay
}

// DefaultRetryConfig matches the queue's production behaviour.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Backoff returns the linear delay to wait after the given failed attempt
// (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * c.BaseDelay
}
