// internal/errors/service.go - Retry service and exit-code mapping
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/barem-scraper/internal/utils"
)

// Service runs operations with bounded retries.
type Service struct {
	retryConfig RetryConfig
	sleep       func(ctx context.Context, d time.Duration) error
	onRetry     func(attempt int, err error, delay time.Duration)
}

// RetryConfig defines retry behavior: MaxRetries further attempts after the
// first, BaseDelay apart.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
}

// FixedRetryConfig retries `retries` times with the same delay in between.
func FixedRetryConfig(retries int, delay time.Duration) RetryConfig {
	return RetryConfig{
		MaxRetries: retries,
		BaseDelay:  delay,
	}
}

// NewServiceWithConfig creates a retry service with cfg
func NewServiceWithConfig(cfg RetryConfig) *Service {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	return &Service{
		retryConfig: cfg,
		sleep:       sleepContext,
	}
}

// WithSleeper replaces the wait between attempts.
func (s *Service) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) *Service {
	if sleep != nil {
		s.sleep = sleep
	}
	return s
}

// OnRetry registers a callback run before each wait. attempt is 1-based and
// names the attempt that just failed.
func (s *Service) OnRetry(fn func(attempt int, err error, delay time.Duration)) *Service {
	s.onRetry = fn
	return s
}

// Config returns the retry configuration.
func (s *Service) Config() RetryConfig {
	return s.retryConfig
}

// ExecuteWithRetry runs operation until it succeeds, returns a permanent
// error, or MaxRetries+1 attempts have failed.
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		attempts++
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !s.shouldRetry(err, attempt) {
			break
		}

		delay := s.retryConfig.BaseDelay
		if s.onRetry != nil {
			s.onRetry(attempt+1, err, delay)
		}

		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}

	var perm *permanentError
	if errors.As(lastErr, &perm) {
		lastErr = perm.err
	}
	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// shouldRetry determines if another attempt is allowed
func (s *Service) shouldRetry(err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries {
		return false
	}
	var perm *permanentError
	return !errors.As(err, &perm)
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so ExecuteWithRetry stops without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetExitCode returns appropriate exit code for error
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch utils.CodeOf(err) {
	case utils.ErrCodeMissingConfig, utils.ErrCodeInvalidConfig:
		return 2 // Configuration error
	case utils.ErrCodeNetworkTimeout, utils.ErrCodeNavigationFailed:
		return 3 // Network error
	case utils.ErrCodeParsingError, utils.ErrCodeSelectorNotFound:
		return 4 // Parsing error
	case utils.ErrCodeAuthFailed:
		return 8 // Authentication error
	case utils.ErrCodeBrowserFailed:
		return 9 // Browser error
	default:
		return 1 // General error
	}
}
