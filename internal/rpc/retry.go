package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/goran-ethernal/ChainIndexor/pkg/config"
)

// isRetryableRPCError reports whether a JSON-RPC error is likely transient
// for an eth_getBlockByNumber/eth_getBlockByHash/eth_getLogs call against a
// public or load-balanced endpoint, as opposed to a permanent failure (bad
// argument, unsupported method) that retrying can't fix.
func isRetryableRPCError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"),
		strings.Contains(errStr, "context deadline exceeded"):
		return true

	case strings.Contains(errStr, "429"),
		strings.Contains(errStr, "too many requests"),
		strings.Contains(errStr, "rate limit"):
		return true

	case strings.Contains(errStr, "502"),
		strings.Contains(errStr, "503"),
		strings.Contains(errStr, "504"),
		strings.Contains(errStr, "bad gateway"),
		strings.Contains(errStr, "service unavailable"),
		strings.Contains(errStr, "gateway timeout"):
		return true

	case strings.Contains(errStr, "connection pool"),
		strings.Contains(errStr, "no available connection"):
		return true
	}

	// Everything else - malformed params, unsupported methods, a log query
	// range the node refuses to serve - is permanent, so fail fast instead
	// of burning retry attempts on an error that will never clear.
	return false
}

// backoffFor computes the exponential backoff duration before the given
// attempt, with +/-25% jitter so a fleet of processes retrying the same
// endpoint after an outage doesn't hit it in lockstep.
func backoffFor(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	if backoff > float64(cfg.MaxBackoff.Duration) {
		backoff = float64(cfg.MaxBackoff.Duration)
	}

	jitterRange := backoff * 0.25
	backoff += (rand.Float64() * 2 * jitterRange) - jitterRange
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

// retryWithBackoff runs fn, retrying on transient RPC errors with
// exponential backoff up to cfg.MaxAttempts. A nil cfg disables retries
// entirely and runs fn exactly once. method is used only to label the
// retry-count metric.
func retryWithBackoff(ctx context.Context, cfg *config.RetryConfig, method string, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	var lastErr error
	started := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", attempt, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryableRPCError(lastErr) {
			return fmt.Errorf("non-retryable error on attempt %d/%d: %w", attempt, cfg.MaxAttempts, lastErr)
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		RPCRetryInc(method)

		if wait := backoffFor(attempt+1, cfg); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff (attempt %d/%d): %w",
					attempt, cfg.MaxAttempts, ctx.Err())
			}
		}
	}

	return fmt.Errorf("all %d attempts to %s failed after %v (last error: %w)",
		cfg.MaxAttempts, method, time.Since(started), lastErr)
}
