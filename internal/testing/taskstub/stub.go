package taskstub

import (
	"crypto/rand"
	"crypto/rsa"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/taskhooks/pkg/jwt"
)

// Server is an in-process fake of the task-management service
type Server struct {
	*httptest.Server

	jwt    *jwt.Service
	logger *slog.Logger

	mu         sync.Mutex
	users      map[int]*userRecord
	tasks      map[int]*taskRecord
	revoked    map[string]bool
	failures   []failure
	requests   []Request
	nextUserID int
	nextTaskID int
	opaque     bool
}

// Request is a request the stub received
type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

type userRecord struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	passwordHash []byte
}

type taskRecord struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type failure struct {
	method string
	path   string
	status int
}

// Option configures a Server
type Option func(*options)

type options struct {
	tokenTTL    time.Duration
	opaque      bool
	users       []seedUser
	logger      *slog.Logger
	firstTaskID int
}

type seedUser struct {
	username, email, password string
}

// WithTokenTTL sets the lifetime of issued tokens. A negative TTL issues
// tokens that are already expired.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *options) { o.tokenTTL = ttl }
}

// WithUser registers an account before the server starts
func WithUser(username, email, password string) Option {
	return func(o *options) {
		o.users = append(o.users, seedUser{username, email, password})
	}
}

// WithOpaqueTokens makes login return tokens that are not JWTs
func WithOpaqueTokens() Option {
	return func(o *options) { o.opaque = true }
}

// WithFirstTaskID makes task ids start at id, so low ids such as 1 never exist
func WithFirstTaskID(id int) Option {
	return func(o *options) { o.firstTaskID = id }
}

// WithLogger sets the logger used for request logging
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New starts a stub server and closes it when the test ends
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	o := options{tokenTTL: 24 * time.Hour, firstTaskID: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("taskstub: failed to generate RSA key: %v", err)
	}

	s := &Server{
		jwt:        jwt.NewService(privateKey, "taskstub", o.tokenTTL),
		logger:     o.logger,
		users:      make(map[int]*userRecord),
		tasks:      make(map[int]*taskRecord),
		revoked:    make(map[string]bool),
		nextUserID: 1,
		nextTaskID: o.firstTaskID,
		opaque:     o.opaque,
	}
	for _, u := range o.users {
		if _, err := s.addUser(u.username, u.email, u.password); err != nil {
			t.Fatalf("taskstub: failed to seed user %s: %v", u.email, err)
		}
	}

	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// FailNext makes the next request matching method and path answer with status.
// The path may end in "*" to match a prefix.
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, path: path, status: status})
}

// Requests returns the requests received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the requests received for method and path
func (s *Server) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// UserCount returns the number of registered accounts
func (s *Server) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// HasTask reports whether a task with the given id exists
func (s *Server) HasTask(id string) bool {
	n, err := strconv.Atoi(id)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[n]
	return ok
}

// TaskCount returns the number of stored tasks
func (s *Server) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// addUser stores a new account; it returns errDuplicate if the username or email is taken
func (s *Server) addUser(username, email, password string) (*userRecord, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) || u.Username == username {
			return nil, errDuplicate
		}
	}
	u := &userRecord{
		ID:           s.nextUserID,
		Username:     username,
		Email:        email,
		passwordHash: hash,
	}
	s.users[u.ID] = u
	s.nextUserID++
	return u, nil
}

func (s *Server) findUserByEmail(email string) *userRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

// record logs the request and returns an injected failure status, or 0
func (s *Server) record(r *http.Request) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
	})

	for i, f := range s.failures {
		if f.method != r.Method {
			continue
		}
		if f.path == r.URL.Path || (strings.HasSuffix(f.path, "*") && strings.HasPrefix(r.URL.Path, strings.TrimSuffix(f.path, "*"))) {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			return f.status
		}
	}
	return 0
}
