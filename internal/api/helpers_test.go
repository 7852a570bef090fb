package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/snowcap/emarsys-cli/internal/mapping"
)

// testNow is a Wednesday; its WSSE nonce belongs to Friday 2026-10-16.
var testNow = time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)

const testSignature = `UsernameToken Username="api_user", ` +
	`PasswordDigest="YzMxY2VlZDA3MDU1NDZiZjc1YmJkNDYwYzM4OWY4ZDM1ZTBiNjFiMA==", ` +
	`Nonce="a98416fdf2d508eae6771dd2ea1316c7", ` +
	`Created="2026-10-14T10:30:00+0000"`

func testOptions(extra ...Option) []Option {
	opts := []Option{
		WithClock(func() time.Time { return testNow }),
		WithRetryConfig(RetryConfig{MaxAttempts: 1, Timeout: 5 * time.Second}),
		WithMappingLoader(mapping.Embedded()),
	}
	return append(opts, extra...)
}

// newTestClient points a client at an httptest server running handler.
func newTestClient(t *testing.T, handler http.HandlerFunc, extra ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("api_user", "s3cr3t", testOptions(append([]Option{WithBaseURL(srv.URL + "/api/v2/")}, extra...)...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

type recordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// fakeTransport records requests and replays canned responses.
type fakeTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	response *TransportResponse
	err      error
}

func (f *fakeTransport) Send(_ context.Context, method, url string, header http.Header, body []byte) (*TransportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{Method: method, URL: url, Header: header.Clone(), Body: string(body)})
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &TransportResponse{StatusCode: 200, Body: []byte(`{"replyCode":0,"replyText":"OK","data":{}}`)}, nil
}

func (f *fakeTransport) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no request was sent")
	}
	return f.requests[len(f.requests)-1]
}

// newFakeClient returns a client on a fakeTransport with base URL "https://api.test/v2/".
func newFakeClient(t *testing.T, extra ...Option) (*Client, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	c, err := New("api_user", "s3cr3t", testOptions(append([]Option{WithBaseURL("https://api.test/v2"), WithTransport(ft)}, extra...)...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, ft
}

func envelope(status int, body string) *TransportResponse {
	return &TransportResponse{StatusCode: status, Header: http.Header{}, Body: []byte(body)}
}

func readBody(t *testing.T, r *http.Request) string {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}
