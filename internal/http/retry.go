package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/wireapp/wire-desktop/internal/constants"
)

// ErrorType classifies failures for the retry strategy.
type ErrorType int

const (
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential is an authentication failure (403, expired or invalid SAS/token)
	ErrorTypeCredential
	// ErrorTypeNetwork is a connection level failure (reset, refused, timeout)
	ErrorTypeNetwork
	// ErrorTypeRetryable is a transient server failure (5xx, throttling)
	ErrorTypeRetryable
	// ErrorTypeFatal is never retried (4xx, invalid request, unknown)
	ErrorTypeFatal
)

// Config holds retry parameters for ExecuteWithRetry.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// OnRetry is invoked before each retry attempt
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultConfig returns the retry settings used for uploads.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
	}
}

var (
	credentialMarkers = []string{
		"expired", "invalid token", "expiredtoken", "403", "unauthorized",
		"authentication failed", "authenticationfailed", "invalid sas",
		"signature not valid", "authorization failure",
	}
	networkMarkers = []string{
		"tls handshake timeout", "connection reset", "i/o timeout", "eof",
		"connection refused", "broken pipe", "timeout",
	}
	retryableMarkers = []string{
		"requesttimeout", "internalerror", "serviceunavailable", "slowdown",
		"throttl", "429", "500", "502", "503", "504", "server busy",
		"serverbusy", "operationtimeout", "service unavailable",
	}
)

// ClassifyError determines the error type for retry strategy. Storage SDKs
// report most failures as text, so matching is on the lowercased message.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeFatal
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, credentialMarkers):
		return ErrorTypeCredential
	case containsAny(errStr, networkMarkers):
		return ErrorTypeNetwork
	case containsAny(errStr, retryableMarkers):
		return ErrorTypeRetryable
	}
	return ErrorTypeFatal
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// CalculateBackoff returns exponential backoff with full jitter:
// random(0, min(maxDelay, initialDelay * 2^attempt)).
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}
	return time.Duration(rand.Int63n(int64(base) + 1))
}

// ExecuteWithRetry runs operation until it succeeds, fails fatally, the
// attempts run out, or ctx ends. Credential failures are retried once
// without backoff since presigned URLs may be regenerated by the caller.
func ExecuteWithRetry(ctx context.Context, config Config, operation func() error) error {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	var lastErr error
	credentialRetried := false
	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyError(err)
		if attempt == config.MaxRetries-1 {
			break
		}

		var wait time.Duration
		switch errType {
		case ErrorTypeFatal, ErrorTypeSuccess:
			return err
		case ErrorTypeCredential:
			if credentialRetried {
				return fmt.Errorf("credential error: %w", err)
			}
			credentialRetried = true
		case ErrorTypeNetwork, ErrorTypeRetryable:
			wait = CalculateBackoff(attempt+1, config.InitialDelay, config.MaxDelay)
		}

		// Give up early when the deadline would pass during the wait
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return fmt.Errorf("deadline too short for retry: %w", err)
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, errType)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// ErrorTypeName returns a human-readable name for an ErrorType.
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
