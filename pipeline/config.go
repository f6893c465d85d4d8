package pipeline

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds configuration for pipeline runs.
type Config struct {
	// BatchSize is the number of records read, transformed, and written per
	// batch. It bounds how much of the change stream is in memory at once.
	BatchSize int

	// Workers is the number of concurrent embedding workers per batch.
	Workers int

	// MaxRetries is the maximum number of attempts for operations that fail
	// transiently: source page reads and destination batch writes.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration

	// EmbedTimeout bounds a single embedding call. A record whose embedding
	// does not return in time fails on its own; the rest of the batch is
	// unaffected.
	EmbedTimeout time.Duration

	// LeaseTTL is how long a run's pipeline lease lives without renewal.
	// A crashed runner blocks its pipeline for at most this long.
	LeaseTTL time.Duration

	// ReportInterval is how often progress monitors report (number of records).
	ReportInterval int

	// MaxReportedErrors caps how many per-record failures a run summary
	// retains in detail. The failure count is always complete.
	MaxReportedErrors int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:         500,
		Workers:           runtime.NumCPU(),
		MaxRetries:        3,
		RetryDelay:        1 * time.Second,
		EmbedTimeout:      30 * time.Second,
		LeaseTTL:          5 * time.Minute,
		ReportInterval:    500,
		MaxReportedErrors: 10,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("pipeline config: BatchSize must be positive, got %d", c.BatchSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("pipeline config: Workers must be positive, got %d", c.Workers)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("pipeline config: MaxRetries must be positive, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("pipeline config: RetryDelay must not be negative, got %v", c.RetryDelay)
	}
	if c.EmbedTimeout <= 0 {
		return fmt.Errorf("pipeline config: EmbedTimeout must be positive, got %v", c.EmbedTimeout)
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("pipeline config: LeaseTTL must be positive, got %v", c.LeaseTTL)
	}
	if c.ReportInterval < 1 {
		return fmt.Errorf("pipeline config: ReportInterval must be positive, got %d", c.ReportInterval)
	}
	if c.MaxReportedErrors < 0 {
		return fmt.Errorf("pipeline config: MaxReportedErrors must not be negative, got %d", c.MaxReportedErrors)
	}
	return nil
}
