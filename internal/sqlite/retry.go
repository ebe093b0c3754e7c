// retry.go provides automatic retry for transient SQLite errors.
//
// The busy_timeout pragma handles SQLITE_BUSY at the connection level, but
// WAL-mode contention can still surface SQLITE_LOCKED and short-read errors
// when a poll cycle and a control-surface call write concurrently. Write
// operations wrap themselves in retryOnContention to absorb those.
package sqlite

import (
	"math/rand"
	"strings"
	"time"
)

type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// retryOnContention executes fn, retrying with exponential backoff and
// jitter while the error looks like transient SQLite contention.
func retryOnContention(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= defaultRetryConfig.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientSQLiteErr(lastErr) {
			return lastErr
		}
		if attempt < defaultRetryConfig.maxRetries {
			time.Sleep(backoffDelay(defaultRetryConfig, attempt))
		}
	}
	return lastErr
}

func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << attempt
	if delay > cfg.maxDelay {
		delay = cfg.maxDelay
	}
	// up to 25% jitter to avoid thundering-herd retries
	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	return delay + jitter
}
