package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snowcap/emarsys-cli/internal/debug"
	"github.com/snowcap/emarsys-cli/internal/mapping"
	"github.com/snowcap/emarsys-cli/internal/wsse"
)

// DefaultBaseURL is the Emarsys REST API v2 root.
const DefaultBaseURL = "https://api.emarsys.net/api/v2/"

// maxJSONDepth is the deepest nesting accepted in a reply body.
const maxJSONDepth = 512

// Client is the Emarsys API client. Every resource method funnels through
// Send, which signs the request, calls the Transport and decodes the envelope.
type Client struct {
	BaseURL   string
	Username  string
	UserAgent string

	secret        string
	transport     Transport
	httpClient    *http.Client
	retryConfig   RetryConfig
	loader        mapping.Loader
	extraFields   mapping.Fields
	extraChoices  mapping.Choices
	mapping       *mapping.Store
	now           func() time.Time
	rateLimitMu   sync.Mutex
	lastRateLimit *RateLimitInfo
}

var _ Requester = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL. A trailing slash is added when missing.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.BaseURL = baseURL
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithHTTPClient sets the net/http client used by the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryConfig sets connection-retry and circuit breaker settings of the
// default transport.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithMappingLoader sets where the initial field and choice mappings come from.
func WithMappingLoader(l mapping.Loader) Option {
	return func(c *Client) {
		if l != nil {
			c.loader = l
		}
	}
}

// WithFieldsMapping adds custom field ids on top of the loaded mapping.
func WithFieldsMapping(fields map[string]int) Option {
	return func(c *Client) {
		c.extraFields = append(c.extraFields, mapping.FieldsFromMap(fields)...)
	}
}

// WithChoicesMapping adds custom choice ids on top of the loaded mapping.
func WithChoicesMapping(choices map[string]map[string]int) Option {
	return func(c *Client) {
		c.extraChoices = append(c.extraChoices, mapping.ChoicesFromMap(choices)...)
	}
}

// WithClock overrides the time source of the WSSE signature.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.UserAgent = ua
	}
}

// New creates a client for the given API user.
func New(username, secret string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(username) == "" || secret == "" {
		return nil, newClientError("username and secret are required")
	}

	c := &Client{
		BaseURL:     DefaultBaseURL,
		Username:    username,
		secret:      secret,
		retryConfig: DefaultRetryConfig(),
		loader:      mapping.Embedded(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}

	store, err := mapping.Load(c.loader)
	if err != nil {
		return nil, fmt.Errorf("load field mapping: %w", err)
	}
	store.AddFields(c.extraFields)
	store.AddChoices(c.extraChoices)
	c.mapping = store

	if c.transport == nil {
		c.transport = NewHTTPTransport(c.httpClient, c.retryConfig)
	}
	return c, nil
}

// Mapping returns the field and choice mapping owned by this client.
func (c *Client) Mapping() *mapping.Store {
	return c.mapping
}

// Transport returns the transport requests are sent through.
func (c *Client) Transport() Transport {
	return c.transport
}

func (c *Client) fields() *mapping.Store {
	return c.mapping
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*Response, error) {
	return c.Send(ctx, method, path, body)
}

// Request is a fully built request as Send would issue it.
type Request struct {
	Method string      `json:"method"`
	URL    string      `json:"url"`
	Header http.Header `json:"-"`
	Body   []byte      `json:"-"`
}

// BuildRequest resolves path against BaseURL and encodes body the way Send
// does: JSON for non-GET verbs ("{}" when nil), a path-style query for GET.
func (c *Client) BuildRequest(method, path string, body any) (*Request, error) {
	method = strings.ToUpper(method)
	target := c.BaseURL + strings.TrimPrefix(path, "/")

	var payload []byte
	if method == http.MethodGet {
		query, err := encodeQuery(body)
		if err != nil {
			return nil, err
		}
		if query != "" {
			target = strings.TrimSuffix(target, "/") + "/" + query
		}
	} else {
		var err error
		payload, err = encodeBody(body)
		if err != nil {
			return nil, err
		}
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set(wsse.HeaderName, wsse.Signature(c.Username, c.secret, c.now()))
	if c.UserAgent != "" {
		header.Set("User-Agent", c.UserAgent)
	}
	return &Request{Method: method, URL: target, Header: header, Body: payload}, nil
}

// Send issues method on path (relative to BaseURL) and returns the decoded
// envelope. Transport failures and HTTP statuses >= 400 become *ServerError;
// a malformed envelope is a *ClientError.
func (c *Client) Send(ctx context.Context, method, path string, body any) (*Response, error) {
	req, err := c.BuildRequest(method, path, body)
	if err != nil {
		return nil, err
	}

	var requestID string
	if debug.IsEnabled(ctx) {
		requestID = uuid.NewString()
		slog.Debug("emarsys request", "request_id", requestID, "method", req.Method, "url", req.URL, "body_bytes", len(req.Body))
	}

	resp, err := c.transport.Send(ctx, req.Method, req.URL, req.Header, req.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &ServerError{Message: err.Error(), Err: err}
	}
	c.recordRateLimit(resp.Header)

	if debug.IsEnabled(ctx) {
		slog.Debug("emarsys response", "request_id", requestID, "status", resp.StatusCode, "body_bytes", len(resp.Body))
	}

	if resp.StatusCode >= 400 {
		return nil, errorFromStatus(resp)
	}
	return decodeResponse(resp.Body)
}

func errorFromStatus(resp *TransportResponse) error {
	env, err := ParseResponse(resp.Body)
	if err != nil {
		text := http.StatusText(resp.StatusCode)
		if text == "" {
			text = "request failed"
		}
		return &ServerError{Message: text, StatusCode: resp.StatusCode}
	}
	return &ServerError{Message: env.ReplyText, Code: env.ReplyCode, StatusCode: resp.StatusCode}
}

func decodeResponse(body []byte) (*Response, error) {
	if jsonDepth(body) > maxJSONDepth {
		return nil, newClientError(msgMaxDepth)
	}
	if isNull(body) {
		return nil, &ServerError{Message: "JSON response could not be decoded:\nresponse body is null"}
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, newClientError(msgInvalidResultStructure)
		}
		return nil, &ServerError{Message: "JSON response could not be decoded:\n" + err.Error(), Err: err}
	}
	return NewResponse(payload)
}

// jsonDepth returns the deepest array/object nesting of a JSON text, ignoring
// brackets inside strings.
func jsonDepth(data []byte) int {
	depth, maxDepth := 0, 0
	inString, escaped := false, false
	for _, b := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}', ']':
			depth--
		}
	}
	return maxDepth
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		return v, nil
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		return v, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, newClientError("failed to marshal request body: %v", err)
	}
	if string(data) == "null" {
		return []byte("{}"), nil
	}
	return data, nil
}

// encodeQuery renders GET parameters as key=value pairs sorted by key.
func encodeQuery(body any) (string, error) {
	switch v := body.(type) {
	case nil:
		return "", nil
	case url.Values:
		return v.Encode(), nil
	case string:
		return strings.TrimPrefix(v, "?"), nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", newClientError("failed to encode query parameters: %v", err)
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return "", newClientError("query parameters must be an object, got %s", string(data))
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(keys))
	for _, k := range keys {
		switch pv := params[k].(type) {
		case nil:
			continue
		case []any:
			for _, item := range pv {
				values = append(values, url.QueryEscape(k)+"="+url.QueryEscape(queryValue(item)))
			}
		default:
			values = append(values, url.QueryEscape(k)+"="+url.QueryEscape(queryValue(pv)))
		}
	}
	return strings.Join(values, "&"), nil
}

func queryValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		data, _ := json.Marshal(x)
		return string(data)
	}
}
