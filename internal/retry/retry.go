// Package retry runs operations against rate-limited external APIs with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int `mapstructure:"max_attempts"`

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration `mapstructure:"initial_delay"`

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration `mapstructure:"max_delay"`

	// Multiplier grows the delay after every failed attempt.
	Multiplier float64 `mapstructure:"multiplier"`
}

// DefaultConfig returns defaults suited to the EC2 API request limits.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  6,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     20 * time.Second,
		Multiplier:   2.0,
	}
}

// Validate checks that the configuration can drive a backoff.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1, got %g", c.Multiplier)
	}
	return nil
}

func (c Config) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.Multiplier
	b.MaxElapsedTime = 0

	retries := 0
	if c.MaxAttempts > 1 {
		retries = c.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do executes operation, retrying errors for which retryable returns true.
// Any other error is returned immediately. A nil retryable retries every
// error. Each failed attempt is logged.
func Do(
	ctx context.Context,
	cfg Config,
	log logr.Logger,
	operationName string,
	retryable func(error) bool,
	operation func() error,
) error {
	attempt := 0
	op := func() error {
		attempt++
		err := operation()
		if err == nil {
			if attempt > 1 {
				log.V(1).Info("operation succeeded after retries",
					"operation", operationName,
					"attempts", attempt)
			}
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		log.Error(err, "operation failed",
			"operation", operationName,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_retry_delay", next)
	}

	err := backoff.RetryNotify(op, cfg.backOff(ctx), notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if retryable != nil && !retryable(err) {
		return err
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempt, err)
}
