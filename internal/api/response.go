package api

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const (
	msgInvalidResultStructure = "Invalid result structure"
	msgMaxDepth               = "JSON response could not be decoded, maximum depth reached."
)

// Response is the envelope every Emarsys reply is wrapped in.
type Response struct {
	ReplyCode ReplyCode       `json:"replyCode"`
	ReplyText string          `json:"replyText"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewResponse validates a decoded reply. replyCode and replyText are required;
// a missing or null data is treated as empty.
func NewResponse(payload map[string]json.RawMessage) (*Response, error) {
	rawCode, ok := payload["replyCode"]
	if !ok || isNull(rawCode) {
		return nil, newClientError(msgInvalidResultStructure)
	}
	rawText, ok := payload["replyText"]
	if !ok || isNull(rawText) {
		return nil, newClientError(msgInvalidResultStructure)
	}

	r := &Response{}
	if err := json.Unmarshal(rawCode, &r.ReplyCode); err != nil {
		return nil, newClientError(msgInvalidResultStructure)
	}
	if err := json.Unmarshal(rawText, &r.ReplyText); err != nil {
		return nil, newClientError(msgInvalidResultStructure)
	}
	if data, ok := payload["data"]; ok && !isNull(data) {
		r.Data = append(json.RawMessage(nil), data...)
	}
	return r, nil
}

// ParseResponse decodes body and validates it as an envelope.
func ParseResponse(body []byte) (*Response, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, newClientError(msgInvalidResultStructure)
	}
	return NewResponse(payload)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// OK reports whether the reply code is 0.
func (r *Response) OK() bool {
	return r.ReplyCode == ReplyOK
}

// WithData returns a copy of r carrying data instead.
func (r *Response) WithData(data any) (*Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Response{ReplyCode: r.ReplyCode, ReplyText: r.ReplyText, Data: raw}, nil
}

// HasData reports whether the reply carried a non-empty data value.
func (r *Response) HasData() bool {
	trimmed := string(bytes.TrimSpace(r.Data))
	return trimmed != "" && trimmed != "[]" && trimmed != "{}" && trimmed != `""`
}

// Decode unmarshals data into dst. Empty data leaves dst untouched.
func (r *Response) Decode(dst any) error {
	if len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, dst); err != nil {
		return newClientError("unexpected data in %q reply: %v", r.ReplyText, err)
	}
	return nil
}

// DataMap returns data as an object. Empty data, including the empty list the
// API returns for "nothing", yields an empty map.
func (r *Response) DataMap() (map[string]any, error) {
	out := map[string]any{}
	if !r.HasData() {
		return out, nil
	}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// DataList returns data as a list.
func (r *Response) DataList() ([]any, error) {
	out := []any{}
	if !r.HasData() {
		return out, nil
	}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup returns the raw value of key in an object data.
func (r *Response) Lookup(key string) (json.RawMessage, bool) {
	if !r.HasData() {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(r.Data, &obj); err != nil {
		return nil, false
	}
	v, ok := obj[key]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}

// ID returns data.id, accepting both numbers and numeric strings. Without an
// id the reply text and code become a *ClientError.
func (r *Response) ID() (int, error) {
	raw, ok := r.Lookup("id")
	if !ok {
		return 0, &ClientError{Message: r.ReplyText, Code: r.ReplyCode}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if id, err := strconv.Atoi(n.String()); err == nil {
			return id, nil
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if id, err := strconv.Atoi(s); err == nil {
			return id, nil
		}
	}
	return 0, newClientError("unexpected id %s in reply", string(raw))
}
