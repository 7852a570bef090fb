package api

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"
)

// Default retry configuration values
const (
	DefaultMaxAttempts             = 3
	DefaultRetryDelay              = 1 * time.Second
	DefaultTimeout                 = 30 * time.Second
	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerResetTime = 30 * time.Second
)

// RetryConfig controls connection-failure retries and the circuit breaker.
// HTTP error statuses and reply codes are never retried.
type RetryConfig struct {
	MaxAttempts             int
	RetryDelay              time.Duration
	Timeout                 time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerResetTime time.Duration
}

// DefaultRetryConfig returns a RetryConfig populated from environment variables
// with fallback to default values.
//
// Environment variables:
//   - EMARSYS_MAX_ATTEMPTS: attempts per request on connection failure (default: 3)
//   - EMARSYS_RETRY_DELAY: fixed delay between attempts (default: "1s")
//   - EMARSYS_TIMEOUT: per-attempt request timeout (default: "30s")
//   - EMARSYS_CIRCUIT_BREAKER_THRESHOLD: consecutive failures before the circuit opens (default: 5)
//   - EMARSYS_CIRCUIT_BREAKER_RESET_TIME: time before an open circuit lets a probe through (default: "30s")
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:             getEnvInt("EMARSYS_MAX_ATTEMPTS", DefaultMaxAttempts),
		RetryDelay:              getEnvDuration("EMARSYS_RETRY_DELAY", DefaultRetryDelay),
		Timeout:                 getEnvDuration("EMARSYS_TIMEOUT", DefaultTimeout),
		CircuitBreakerThreshold: getEnvInt("EMARSYS_CIRCUIT_BREAKER_THRESHOLD", DefaultCircuitBreakerThreshold),
		CircuitBreakerResetTime: getEnvDuration("EMARSYS_CIRCUIT_BREAKER_RESET_TIME", DefaultCircuitBreakerResetTime),
	}
}

func (c RetryConfig) attempts() int {
	if c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

// getEnvInt reads an integer from an environment variable with a default fallback.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration from an environment variable with a default fallback.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// sleepWithContext waits for the duration or returns early on context cancellation.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// circuitBreaker counts consecutive connection failures across requests of
// one transport. After the reset time an open circuit goes half-open and lets
// probe requests through; a success closes it, a failure re-opens it.
type circuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	open        bool
	halfOpen    bool
	threshold   int
	resetTime   time.Duration
	now         func() time.Time
}

func newCircuitBreaker(cfg RetryConfig) *circuitBreaker {
	return &circuitBreaker{
		threshold: cfg.CircuitBreakerThreshold,
		resetTime: cfg.CircuitBreakerResetTime,
		now:       time.Now,
	}
}

func (cb *circuitBreaker) clock() time.Time {
	if cb.now != nil {
		return cb.now()
	}
	return time.Now()
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.open = false
	cb.halfOpen = false
}

// recordFailure returns true if the circuit just opened or re-opened.
func (cb *circuitBreaker) recordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.clock()

	if cb.halfOpen {
		cb.halfOpen = false
		return true
	}

	threshold := cb.threshold
	if threshold <= 0 {
		threshold = DefaultCircuitBreakerThreshold
	}
	if cb.failures >= threshold && !cb.open {
		cb.open = true
		return true
	}
	return false
}

func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open || cb.halfOpen {
		return false
	}

	resetTime := cb.resetTime
	if resetTime <= 0 {
		resetTime = DefaultCircuitBreakerResetTime
	}
	if cb.clock().Sub(cb.lastFailure) >= resetTime {
		cb.halfOpen = true
		return false
	}
	return true
}

func (cb *circuitBreaker) reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.open = false
	cb.halfOpen = false
	cb.lastFailure = time.Time{}
}
