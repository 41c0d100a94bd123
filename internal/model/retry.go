package model

import "time"

// RetryConfig defines the bounded retry around a whole sync.
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	Backoff     time.Duration `json:"backoff"` // fixed wait between attempts
}
