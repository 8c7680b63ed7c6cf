package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for flush retries.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig returns the default flush retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// ResilientRecorder wraps a Recorder so that Save survives transient SQLite
// contention (busy database, slow disk) via exponential backoff, and stops
// hammering a persistently broken database via a circuit breaker. While the
// breaker is open, Save drops nothing: lines stay buffered in the
// underlying store and flush on the next successful Save.
type ResilientRecorder struct {
	Recorder
	retry   RetryConfig
	breaker *gobreaker.CircuitBreaker
}

// NewResilientRecorder wraps rec with retry and circuit-breaker protection
// on Save.
func NewResilientRecorder(rec Recorder, retry RetryConfig) *ResilientRecorder {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "session-save",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("WARNING: circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Cancellation is the caller's choice, not a database failure.
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return &ResilientRecorder{Recorder: rec, retry: retry, breaker: cb}
}

// Save flushes through the circuit breaker with exponential backoff.
func (r *ResilientRecorder) Save(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.retry.InitialInterval
	bo.MaxInterval = r.retry.MaxInterval
	bo.MaxElapsedTime = r.retry.MaxElapsedTime
	bo.Multiplier = r.retry.Multiplier
	bo.RandomizationFactor = r.retry.RandomizationFactor

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.Recorder.Save(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}
