package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/snowcap/emarsys-cli/internal/debug"
)

// TransportResponse is what a Transport hands back for any HTTP status.
type TransportResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs one HTTP exchange. It returns an error only when no
// response was received; HTTP error statuses are not errors at this level.
type Transport interface {
	Send(ctx context.Context, method, url string, header http.Header, body []byte) (*TransportResponse, error)
}

// HTTPTransport is the default Transport on top of net/http. Connection
// failures are retried with a fixed delay and counted by a circuit breaker
// shared by all requests of the transport.
type HTTPTransport struct {
	HTTP           *http.Client
	RetryConfig    RetryConfig
	circuitBreaker *circuitBreaker
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport returns a transport using httpClient, or a TLS 1.2+ client
// with cfg.Timeout when httpClient is nil.
func NewHTTPTransport(httpClient *http.Client, cfg RetryConfig) *HTTPTransport {
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.Timeout)
	}
	return &HTTPTransport{
		HTTP:           httpClient,
		RetryConfig:    cfg,
		circuitBreaker: newCircuitBreaker(cfg),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// SetRetryConfig updates the retry configuration and aligns circuit breaker settings.
func (t *HTTPTransport) SetRetryConfig(cfg RetryConfig) {
	t.RetryConfig = cfg
	if cfg.Timeout > 0 && t.HTTP != nil {
		t.HTTP.Timeout = cfg.Timeout
	}
	if t.circuitBreaker != nil {
		t.circuitBreaker.mu.Lock()
		t.circuitBreaker.threshold = cfg.CircuitBreakerThreshold
		t.circuitBreaker.resetTime = cfg.CircuitBreakerResetTime
		t.circuitBreaker.mu.Unlock()
	}
}

// ResetCircuitBreaker clears failure counts and closes the circuit.
func (t *HTTPTransport) ResetCircuitBreaker() {
	if t.circuitBreaker != nil {
		t.circuitBreaker.reset()
	}
}

func (t *HTTPTransport) Send(ctx context.Context, method, url string, header http.Header, body []byte) (*TransportResponse, error) {
	if t.circuitBreaker != nil && t.circuitBreaker.isOpen() {
		return nil, &CircuitBreakerError{}
	}

	attempts := t.RetryConfig.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := t.do(ctx, method, url, header, body)
		if err == nil {
			if t.circuitBreaker != nil {
				t.circuitBreaker.recordSuccess()
			}
			if debug.IsEnabled(ctx) {
				slog.Debug("request complete", "method", method, "url", url, "status", resp.StatusCode, "attempt", attempt, "duration", time.Since(start))
			}
			return resp, nil
		}

		var be *buildError
		if errors.As(err, &be) {
			return nil, be
		}
		lastErr = err
		if debug.IsEnabled(ctx) {
			slog.Debug("request failed", "method", method, "url", url, "attempt", attempt, "error", err)
		}
		// A cancelled caller is not a connection failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if t.circuitBreaker != nil && t.circuitBreaker.recordFailure() {
			slog.Warn("circuit breaker opened", "failures", t.RetryConfig.CircuitBreakerThreshold)
			break
		}
		if attempt < attempts {
			slog.Info("connection failed, retrying", "delay", t.RetryConfig.RetryDelay, "attempt", attempt+1)
			if err := sleepWithContext(ctx, t.RetryConfig.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (t *HTTPTransport) do(ctx context.Context, method, url string, header http.Header, body []byte) (*TransportResponse, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, &buildError{err: err}
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &TransportResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// buildError marks a request that could not be built; it is not retried.
type buildError struct{ err error }

func (e *buildError) Error() string { return fmt.Sprintf("failed to create request: %v", e.err) }
func (e *buildError) Unwrap() error { return e.err }

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
