package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/metrics"
)

// RetryConfig controls retries, the breaker and the concurrency limit for
// model calls
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first
	// Default: 3
	MaxRetries int

	// InitialBackoff doubles (by BackoffMultiplier) after each failed attempt up to MaxBackoff.
	// A Retry-After header from the API takes precedence when it is longer.
	// Defaults: 1s, 30s, 2.0
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// Timeout bounds one attempt
	// Default: 60s
	Timeout time.Duration

	// BreakerThreshold consecutive transient failures open the breaker for
	// BreakerCooldown; BreakerProbes successes close it again. 0 disables it.
	// Defaults: 5, 30s, 2
	BreakerThreshold int
	BreakerCooldown  time.Duration
	BreakerProbes    int

	// MaxConcurrentCalls bounds in-flight model calls (0 = unlimited)
	// Default: 3
	MaxConcurrentCalls int
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         3,
		InitialBackoff:     time.Second,
		MaxBackoff:         30 * time.Second,
		BackoffMultiplier:  2.0,
		Timeout:            60 * time.Second,
		BreakerThreshold:   5,
		BreakerCooldown:    30 * time.Second,
		BreakerProbes:      2,
		MaxConcurrentCalls: 3,
	}
}

// withRetry runs fn until it succeeds, fails permanently or runs out of attempts
func (s *Supervisor) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%s: waiting for a call slot: %w", op, err)
		}
		defer s.sem.Release(1)
	}

	wait := s.retry.InitialBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if s.breaker != nil {
			if berr := s.breaker.Allow(); berr != nil {
				metrics.RewriteCalls.WithLabelValues("rejected").Inc()
				return fmt.Errorf("%s: %w", op, berr)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.retry.Timeout)
		err = fn(attemptCtx)
		cancel()

		if err == nil {
			if s.breaker != nil {
				s.breaker.Success()
			}
			metrics.RewriteCalls.WithLabelValues("success").Inc()
			if attempt > 0 {
				logging.Infof("[AI] %s succeeded on attempt %d", op, attempt+1)
			}
			return nil
		}

		if !transient(err) {
			metrics.RewriteCalls.WithLabelValues("failed").Inc()
			return err
		}
		if s.breaker != nil {
			s.breaker.Failure()
		}
		if attempt >= s.retry.MaxRetries {
			break
		}

		delay := wait
		if ra := retryAfter(err); ra > delay {
			delay = ra
		}
		if delay > s.retry.MaxBackoff {
			delay = s.retry.MaxBackoff
		}
		logging.Infof("[AI] %s attempt %d/%d failed, retrying in %v: %v",
			op, attempt+1, s.retry.MaxRetries+1, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			metrics.RewriteCalls.WithLabelValues("failed").Inc()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		wait = time.Duration(float64(wait) * s.retry.BackoffMultiplier)
	}

	metrics.RewriteCalls.WithLabelValues("failed").Inc()
	return fmt.Errorf("%s: gave up after %d attempts: %w", op, s.retry.MaxRetries+1, err)
}

// transient reports whether another attempt may succeed. API errors are
// judged by status; anything else must be a timeout or a dropped connection.
func transient(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
			return true
		}
		return apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryAfter returns the delay requested by a Retry-After header in seconds
func retryAfter(err error) time.Duration {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) || apiErr.Response == nil {
		return 0
	}
	secs, perr := strconv.Atoi(apiErr.Response.Header.Get("Retry-After"))
	if perr != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
