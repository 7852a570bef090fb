package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// flakyRoundTripper fails the first n calls with a connection error.
type flakyRoundTripper struct {
	fails int32
	calls atomic.Int32
}

func (f *flakyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.fails {
		return nil, errors.New("connection reset by peer")
	}
	return &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"replyCode":0,"replyText":"OK","data":[]}`)),
		Request:    req,
	}, nil
}

func newFlakyTransport(fails int32, cfg RetryConfig) (*HTTPTransport, *flakyRoundTripper) {
	rt := &flakyRoundTripper{fails: fails}
	return NewHTTPTransport(&http.Client{Transport: rt}, cfg), rt
}

func TestHTTPTransport_RetriesConnectionFailures(t *testing.T) {
	tr, rt := newFlakyTransport(2, RetryConfig{MaxAttempts: 3, RetryDelay: time.Millisecond})

	resp, err := tr.Send(context.Background(), http.MethodGet, "https://api.test/v2/event", http.Header{}, nil)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("unexpected status %d", resp.StatusCode)
	}
	if got := rt.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPTransport_GivesUpAfterMaxAttempts(t *testing.T) {
	tr, rt := newFlakyTransport(10, RetryConfig{MaxAttempts: 2, RetryDelay: time.Millisecond, CircuitBreakerThreshold: 100})

	_, err := tr.Send(context.Background(), http.MethodPost, "https://api.test/v2/contact", http.Header{}, []byte(`{}`))
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected connection error, got %v", err)
	}
	if got := rt.calls.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestHTTPTransport_DoesNotRetryHTTPErrors(t *testing.T) {
	var calls atomic.Int32
	tr := NewHTTPTransport(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: 500, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(`{}`)), Request: req}, nil
	})}, RetryConfig{MaxAttempts: 3, RetryDelay: time.Millisecond})

	resp, err := tr.Send(context.Background(), http.MethodGet, "https://api.test/v2/event", http.Header{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 500 || calls.Load() != 1 {
		t.Errorf("expected a single 500 response, got status %d after %d calls", resp.StatusCode, calls.Load())
	}
}

func TestHTTPTransport_CircuitBreakerOpens(t *testing.T) {
	tr, rt := newFlakyTransport(100, RetryConfig{MaxAttempts: 1, CircuitBreakerThreshold: 2, CircuitBreakerResetTime: time.Hour})

	for i := 0; i < 2; i++ {
		if _, err := tr.Send(context.Background(), http.MethodGet, "https://api.test/v2/event", nil, nil); err == nil {
			t.Fatal("expected failure")
		}
	}
	_, err := tr.Send(context.Background(), http.MethodGet, "https://api.test/v2/event", nil, nil)
	if !IsCircuitBreakerError(err) {
		t.Fatalf("expected circuit breaker error, got %v", err)
	}
	if got := rt.calls.Load(); got != 2 {
		t.Errorf("open circuit must not reach the network, got %d calls", got)
	}

	tr.ResetCircuitBreaker()
	rt.fails = 0
	if _, err := tr.Send(context.Background(), http.MethodGet, "https://api.test/v2/event", nil, nil); err != nil {
		t.Fatalf("expected reset breaker to let the request through, got %v", err)
	}
	if got := rt.calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestHTTPTransport_StopsOnCanceledContext(t *testing.T) {
	tr, rt := newFlakyTransport(10, RetryConfig{MaxAttempts: 5, RetryDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Send(ctx, http.MethodGet, "https://api.test/v2/event", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := rt.calls.Load(); got > 1 {
		t.Errorf("expected at most one attempt, got %d", got)
	}
}

func TestHTTPTransport_InvalidURLNotRetried(t *testing.T) {
	tr, rt := newFlakyTransport(0, RetryConfig{MaxAttempts: 3, RetryDelay: time.Hour})
	_, err := tr.Send(context.Background(), "BAD METHOD", "https://api.test/v2/event", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "failed to create request") {
		t.Fatalf("expected build error, got %v", err)
	}
	if rt.calls.Load() != 0 {
		t.Errorf("expected no network calls, got %d", rt.calls.Load())
	}
}

func TestHTTPTransport_ForwardsHeadersAndBody(t *testing.T) {
	var got *http.Request
	var gotBody string
	tr := NewHTTPTransport(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req
		data, _ := io.ReadAll(req.Body)
		gotBody = string(data)
		return &http.Response{StatusCode: 200, Header: http.Header{"X-Ratelimit-Limit": []string{"5"}}, Body: io.NopCloser(strings.NewReader(`ok`)), Request: req}, nil
	})}, RetryConfig{MaxAttempts: 1})

	h := http.Header{}
	h.Set("X-WSSE", "token")
	resp, err := tr.Send(context.Background(), http.MethodPut, "https://api.test/v2/contact", h, []byte(`{"3":"a"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Method != http.MethodPut || got.Header.Get("X-WSSE") != "token" || gotBody != `{"3":"a"}` {
		t.Errorf("unexpected request %s %v %s", got.Method, got.Header, gotBody)
	}
	if string(resp.Body) != "ok" || resp.Header.Get("X-Ratelimit-Limit") != "5" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestNewHTTPTransport_DefaultClient(t *testing.T) {
	tr := NewHTTPTransport(nil, RetryConfig{Timeout: 7 * time.Second})
	if tr.HTTP == nil || tr.HTTP.Timeout != 7*time.Second {
		t.Fatalf("unexpected default client %+v", tr.HTTP)
	}
	ht, ok := tr.HTTP.Transport.(*http.Transport)
	if !ok || ht.TLSClientConfig == nil || ht.TLSClientConfig.MinVersion == 0 {
		t.Errorf("expected TLS 1.2 minimum on the default transport")
	}

	tr.SetRetryConfig(RetryConfig{Timeout: 3 * time.Second, CircuitBreakerThreshold: 9})
	if tr.HTTP.Timeout != 3*time.Second || tr.circuitBreaker.threshold != 9 {
		t.Errorf("SetRetryConfig not applied: timeout %s threshold %d", tr.HTTP.Timeout, tr.circuitBreaker.threshold)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
