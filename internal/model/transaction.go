package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Transaction is one planned HTTP exchange supplied by the contract-testing
// runner. Only the fields hooks read or write are decoded; everything else the
// runner sent is kept verbatim and written back by MarshalJSON, because the
// runner replaces its copy with whatever the hook worker returns.
type Transaction struct {
	Name     string
	FullPath string
	Request  Request
	Expected Expected

	rest map[string]json.RawMessage
}

// Request is the mutable request part of a Transaction
type Request struct {
	Method  string
	URI     string
	Headers map[string]string
	Body    string

	rest map[string]json.RawMessage
}

// Expected is the expected response of a Transaction. Hooks only read it.
type Expected struct {
	StatusCode StatusCode

	raw json.RawMessage
}

// StatusCode is an HTTP status that decodes from a JSON number or a numeric string
type StatusCode int

// UnmarshalJSON accepts 200, "200" and "" (zero)
func (s *StatusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	if text == "" {
		*s = 0
		return nil
	}
	code, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("invalid status code %q", text)
	}
	*s = StatusCode(code)
	return nil
}

// Header returns the value of the named header, matching names case-insensitively
func (r *Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// SetHeader sets a header, replacing any existing spelling of the same name
func (r *Request) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	for k := range r.Headers {
		if k != name && strings.EqualFold(k, name) {
			delete(r.Headers, k)
		}
	}
	r.Headers[name] = value
}

// SetJSONBody replaces the body with the JSON encoding of v
func (r *Request) SetJSONBody(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	r.Body = string(body)
	return nil
}

// ============================================================================
// JSON encoding
// ============================================================================

// UnmarshalJSON decodes a runner transaction, keeping unknown fields
func (t *Transaction) UnmarshalJSON(data []byte) error {
	rest := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}

	*t = Transaction{}
	if err := takeField(rest, "name", &t.Name); err != nil {
		return err
	}
	if err := takeField(rest, "fullPath", &t.FullPath); err != nil {
		return err
	}
	if err := takeField(rest, "request", &t.Request); err != nil {
		return err
	}
	if err := takeField(rest, "expected", &t.Expected); err != nil {
		return err
	}
	t.rest = rest
	return nil
}

// MarshalJSON encodes the transaction including the fields it did not decode
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.rest)+4)
	for k, v := range t.rest {
		out[k] = v
	}
	out["name"] = t.Name
	out["fullPath"] = t.FullPath
	out["request"] = t.Request
	out["expected"] = t.Expected
	return json.Marshal(out)
}

// UnmarshalJSON decodes the request, keeping unknown fields
func (r *Request) UnmarshalJSON(data []byte) error {
	rest := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}

	*r = Request{}
	if err := takeField(rest, "method", &r.Method); err != nil {
		return err
	}
	if err := takeField(rest, "uri", &r.URI); err != nil {
		return err
	}
	if err := takeField(rest, "headers", &r.Headers); err != nil {
		return err
	}
	if err := takeField(rest, "body", &r.Body); err != nil {
		return err
	}
	r.rest = rest
	return nil
}

// MarshalJSON encodes the request including the fields it did not decode
func (r Request) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.rest)+4)
	for k, v := range r.rest {
		out[k] = v
	}
	headers := r.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	out["method"] = r.Method
	out["uri"] = r.URI
	out["headers"] = headers
	out["body"] = r.Body
	return json.Marshal(out)
}

// UnmarshalJSON reads the status code and keeps the original document
func (e *Expected) UnmarshalJSON(data []byte) error {
	var probe struct {
		StatusCode StatusCode `json:"statusCode"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	e.StatusCode = probe.StatusCode
	e.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes back the original document unchanged
func (e Expected) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	return json.Marshal(map[string]string{"statusCode": strconv.Itoa(int(e.StatusCode))})
}

// takeField decodes rest[key] into v and removes it from rest.
// A missing or null field leaves v untouched.
func takeField(rest map[string]json.RawMessage, key string, v any) error {
	raw, ok := rest[key]
	if !ok {
		return nil
	}
	delete(rest, key)
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid transaction field %q: %w", key, err)
	}
	return nil
}
