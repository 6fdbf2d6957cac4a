// Package helpers provides common test utilities for the hook worker.
//
// This package includes runner transaction builders, a hooks-protocol test
// client and assertion helpers for mutated transactions.
package helpers

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/taskhooks/internal/hookserver"
	"github.com/forgo/taskhooks/internal/model"
)

// ============================================================================
// Transaction Builders
// ============================================================================

// TransactionBuilder helps construct runner transactions for testing. Built
// transactions carry the extra fields a real runner sends, so encoding tests
// see unknown fields too.
type TransactionBuilder struct {
	t       testing.TB
	name    string
	method  string
	path    string
	uri     string
	body    string
	status  int
	headers map[string]string
	extra   map[string]any
	skipped bool
}

// NewTransaction creates a transaction builder. The request uri defaults to path.
func NewTransaction(t testing.TB, name, method, path string) *TransactionBuilder {
	t.Helper()
	return &TransactionBuilder{
		t:      t,
		name:   name,
		method: method,
		path:   path,
		uri:    path,
		status: 200,
		headers: map[string]string{
			"Content-Type": "application/json",
		},
		extra: make(map[string]any),
	}
}

// FromName creates a builder for a "route > summary > status > type" name,
// resolving {id} in the route to 1 and taking the expected status from the name
func FromName(t testing.TB, name, method string) *TransactionBuilder {
	t.Helper()
	parts := strings.Split(name, " > ")
	if len(parts) < 3 {
		t.Fatalf("helpers: transaction name %q is not route > summary > status", name)
	}
	path := strings.ReplaceAll(parts[0], "{id}", "1")
	b := NewTransaction(t, name, method, path)
	if code, err := strconv.Atoi(parts[2]); err == nil {
		b.status = code
	}
	return b
}

// WithURI sets request.uri separately from fullPath
func (b *TransactionBuilder) WithURI(uri string) *TransactionBuilder {
	b.uri = uri
	return b
}

// WithBody sets the raw request body
func (b *TransactionBuilder) WithBody(body string) *TransactionBuilder {
	b.body = body
	return b
}

// WithHeader adds a request header
func (b *TransactionBuilder) WithHeader(key, value string) *TransactionBuilder {
	b.headers[key] = value
	return b
}

// WithExpectedStatus sets expected.statusCode
func (b *TransactionBuilder) WithExpectedStatus(code int) *TransactionBuilder {
	b.status = code
	return b
}

// WithField sets a top-level runner field the hooks do not interpret
func (b *TransactionBuilder) WithField(key string, value any) *TransactionBuilder {
	b.extra[key] = value
	return b
}

// Skipped marks the transaction as skipped by the runner
func (b *TransactionBuilder) Skipped() *TransactionBuilder {
	b.skipped = true
	return b
}

// Raw returns the transaction as the runner would send it
func (b *TransactionBuilder) Raw() json.RawMessage {
	b.t.Helper()

	doc := map[string]any{
		"name":     b.name,
		"id":       b.method + " (" + strconv.Itoa(b.status) + ") " + b.path,
		"host":     "127.0.0.1",
		"port":     "8080",
		"protocol": "http:",
		"fullPath": b.path,
		"origin": map[string]string{
			"filename":     "api-description.yml",
			"resourceName": strings.SplitN(b.name, " > ", 2)[0],
		},
		"request": map[string]any{
			"method":  b.method,
			"uri":     b.uri,
			"headers": b.headers,
			"body":    b.body,
		},
		"expected": map[string]any{
			"statusCode": strconv.Itoa(b.status),
			"headers":    map[string]string{"Content-Type": "application/json"},
		},
		"skip": b.skipped,
	}
	for k, v := range b.extra {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		b.t.Fatalf("helpers: failed to marshal transaction: %v", err)
	}
	return data
}

// Build returns the decoded transaction
func (b *TransactionBuilder) Build() *model.Transaction {
	b.t.Helper()
	var tx model.Transaction
	if err := json.Unmarshal(b.Raw(), &tx); err != nil {
		b.t.Fatalf("helpers: failed to decode transaction: %v", err)
	}
	return &tx
}

// RawList encodes several transactions as a runner *All payload
func RawList(t testing.TB, builders ...*TransactionBuilder) json.RawMessage {
	t.Helper()
	raws := make([]json.RawMessage, 0, len(builders))
	for _, b := range builders {
		raws = append(raws, b.Raw())
	}
	data, err := json.Marshal(raws)
	if err != nil {
		t.Fatalf("helpers: failed to marshal transactions: %v", err)
	}
	return data
}

// ============================================================================
// Hooks Protocol Client
// ============================================================================

// HookClient plays the runner side of the hooks protocol
type HookClient struct {
	t      testing.TB
	conn   net.Conn
	reader *bufio.Reader
}

// DialHooks connects to a hook server, retrying until it accepts or 5s pass
func DialHooks(t testing.TB, addr string) *HookClient {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			t.Cleanup(func() { conn.Close() })
			return &HookClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
		}
		if time.Now().After(deadline) {
			t.Fatalf("helpers: failed to connect to hook server at %s: %v", addr, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Send writes one message and waits for the reply
func (c *HookClient) Send(event hookserver.Event, data json.RawMessage) hookserver.Message {
	c.t.Helper()

	msg := hookserver.Message{UUID: uuid.NewString(), Event: event, Data: data}
	c.SendRaw(mustJSON(c.t, msg))

	reply := c.Receive()
	if reply.UUID != msg.UUID {
		c.t.Fatalf("helpers: reply uuid %q does not match request %q", reply.UUID, msg.UUID)
	}
	return reply
}

// SendRaw writes line followed by a newline without waiting for a reply
func (c *HookClient) SendRaw(line []byte) {
	c.t.Helper()
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		c.t.Fatalf("helpers: failed to write message: %v", err)
	}
}

// Receive reads the next reply
func (c *HookClient) Receive() hookserver.Message {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.t.Fatalf("helpers: failed to read reply: %v", err)
	}
	var reply hookserver.Message
	if err := json.Unmarshal(line, &reply); err != nil {
		c.t.Fatalf("helpers: malformed reply %q: %v", line, err)
	}
	return reply
}

// Close closes the connection
func (c *HookClient) Close() {
	c.conn.Close()
}

// ============================================================================
// Transaction Execution
// ============================================================================

// Execute sends tx to baseURL the way the runner would after the before hooks
// and returns the response status code
func Execute(t testing.TB, baseURL string, tx *model.Transaction) int {
	t.Helper()

	var body io.Reader
	if tx.Request.Body != "" {
		body = strings.NewReader(tx.Request.Body)
	}
	req, err := http.NewRequest(tx.Request.Method, strings.TrimRight(baseURL, "/")+tx.Request.URI, body)
	if err != nil {
		t.Fatalf("helpers: failed to build request for %q: %v", tx.Name, err)
	}
	for k, v := range tx.Request.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("helpers: request for %q failed: %v", tx.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

// ============================================================================
// Assertion Helpers
// ============================================================================

// DecodeTransaction decodes a reply payload into a transaction
func DecodeTransaction(t testing.TB, data json.RawMessage) *model.Transaction {
	t.Helper()
	var tx model.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		t.Fatalf("helpers: failed to decode transaction: %v", err)
	}
	return &tx
}

// DecodeFields decodes a payload into a generic map, for checking fields the
// model does not know about
func DecodeFields(t testing.TB, data json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("helpers: failed to decode fields: %v", err)
	}
	return out
}

// AssertAuthorization checks the Authorization header of tx
func AssertAuthorization(t testing.TB, tx *model.Transaction, expected string) {
	t.Helper()
	if got := tx.Request.Header("Authorization"); got != expected {
		t.Errorf("expected Authorization %q, got %q", expected, got)
	}
}

// AssertJSONBody checks that the request body decodes to the expected key-value pairs
func AssertJSONBody(t testing.TB, tx *model.Transaction, expected map[string]any) {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal([]byte(tx.Request.Body), &body); err != nil {
		t.Fatalf("helpers: request body is not JSON: %v (body: %s)", err, tx.Request.Body)
	}
	for k, want := range expected {
		got, ok := body[k]
		if !ok {
			t.Errorf("expected body key %q to exist", k)
			continue
		}
		if !jsonEqual(got, want) {
			t.Errorf("body key %q: expected %v, got %v", k, want, got)
		}
	}
}

// ============================================================================
// Utility Helpers
// ============================================================================

func mustJSON(t testing.TB, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("helpers: failed to marshal: %v", err)
	}
	return data
}

// jsonEqual compares two values by their JSON encoding
func jsonEqual(a, b any) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}

// ============================================================================
// Task API Suite
// ============================================================================

// TaskAPISuite returns the transactions the runner derives from the task API
// description, in run order, with the description's example bodies
func TaskAPISuite(t testing.TB) []*TransactionBuilder {
	t.Helper()

	const (
		register   = `{"username":"johndoe","email":"john@example.com","password":"secret123"}`
		login      = `{"email":"john@example.com","password":"secret123"}`
		createTask = `{"title":"Buy groceries","description":"Milk, eggs","status":"pending","priority":"medium"}`
		updateTask = `{"title":"Buy groceries","status":"completed","priority":"low"}`
	)

	suite := []struct {
		name, method, body string
	}{
		{"/register > Register a new user > 201 > application/json", http.MethodPost, register},
		{"/register > Register a new user > 400 > application/json", http.MethodPost, register},
		{"/login > Login user > 200 > application/json", http.MethodPost, login},
		{"/login > Login user > 401 > application/json", http.MethodPost, login},
		{"/tasks > Get user tasks > 200 > application/json", http.MethodGet, ""},
		{"/tasks > Get user tasks > 401 > application/json", http.MethodGet, ""},
		{"/tasks > Create new task > 201 > application/json", http.MethodPost, createTask},
		{"/tasks > Create new task > 400 > application/json", http.MethodPost, createTask},
		{"/tasks > Create new task > 401 > application/json", http.MethodPost, createTask},
		{"/tasks/{id} > Get task by ID > 200 > application/json", http.MethodGet, ""},
		{"/tasks/{id} > Get task by ID > 401 > application/json", http.MethodGet, ""},
		{"/tasks/{id} > Get task by ID > 404 > application/json", http.MethodGet, ""},
		{"/tasks/{id} > Update task > 200 > application/json", http.MethodPut, updateTask},
		{"/tasks/{id} > Update task > 400 > application/json", http.MethodPut, updateTask},
		{"/tasks/{id} > Update task > 401 > application/json", http.MethodPut, updateTask},
		{"/tasks/{id} > Update task > 404 > application/json", http.MethodPut, updateTask},
		{"/tasks/{id} > Delete task > 401 > application/json", http.MethodDelete, ""},
		{"/tasks/{id} > Delete task > 200 > application/json", http.MethodDelete, ""},
		{"/tasks/{id} > Delete task > 404 > application/json", http.MethodDelete, ""},
		{"/logout > Logout user > 401 > application/json", http.MethodPost, ""},
		{"/logout > Logout user > 200 > application/json", http.MethodPost, ""},
	}

	out := make([]*TransactionBuilder, 0, len(suite))
	for _, s := range suite {
		out = append(out, FromName(t, s.name, s.method).WithBody(s.body))
	}
	return out
}
