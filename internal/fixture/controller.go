package fixture

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/forgo/taskhooks/internal/config"
	"github.com/forgo/taskhooks/internal/model"
)

// APIClient is the part of the task service the controller calls
type APIClient interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)
	CreateTask(ctx context.Context, token string, input model.TaskInput) (*model.Task, error)
	DeleteTask(ctx context.Context, token string, id model.ResourceID) error
}

// Config holds the controller dependencies. Zero fields get defaults in New.
type Config struct {
	Client          APIClient
	Matcher         PathMatcher
	Rules           map[string]Rule
	Account         config.AccountConfig
	InvalidToken    string
	PlaceholderPath string
	SeedTask        model.TaskInput
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Controller prepares the task service for a contract run and adjusts each
// transaction before it is sent
type Controller struct {
	client      APIClient
	matcher     PathMatcher
	rules       map[string]Rule
	account     config.AccountConfig
	placeholder string
	seedTask    model.TaskInput
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.Mutex
	lastToken int64
}

// Defaults used when Config leaves a field empty
const (
	DefaultInvalidToken    = "Bearer invalid_token_here"
	DefaultPlaceholderPath = "/tasks/1"
)

// DefaultSeedTask is the task created during setup
var DefaultSeedTask = model.TaskInput{
	Title:       "Test Task for Dredd",
	Description: "This is a test task for Dredd testing",
	Status:      model.TaskStatusPending,
	Priority:    model.TaskPriorityHigh,
}

// New creates a controller. Client is required.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Matcher == nil {
		cfg.Matcher = SubstringMatcher{Prefixes: []string{"/tasks", "/logout"}, Exempt: "/public"}
	}
	if cfg.InvalidToken == "" {
		cfg.InvalidToken = DefaultInvalidToken
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules(cfg.InvalidToken)
	}
	if cfg.PlaceholderPath == "" {
		cfg.PlaceholderPath = DefaultPlaceholderPath
	}
	if cfg.SeedTask.Title == "" {
		cfg.SeedTask = DefaultSeedTask
	}
	if cfg.Account.Prefix == "" {
		cfg.Account.Prefix = "dredd_test_"
	}
	if cfg.Account.EmailDomain == "" {
		cfg.Account.EmailDomain = "test.com"
	}
	if cfg.Account.Password == "" {
		cfg.Account.Password = "test123456"
	}

	return &Controller{
		client:      cfg.Client,
		matcher:     cfg.Matcher,
		rules:       cfg.Rules,
		account:     cfg.Account,
		placeholder: cfg.PlaceholderPath,
		seedTask:    cfg.SeedTask,
		logger:      cfg.Logger,
		now:         cfg.Clock,
	}
}

// ConfigFrom maps the hook worker configuration onto a controller Config
func ConfigFrom(cfg *config.Config, client APIClient, logger *slog.Logger) Config {
	var matcher PathMatcher = SubstringMatcher{Prefixes: cfg.Hooks.ProtectedPaths, Exempt: cfg.Hooks.PublicMarker}
	if cfg.Hooks.PathMatch == config.PathMatchSegment {
		matcher = SegmentMatcher{Prefixes: cfg.Hooks.ProtectedPaths, Exempt: cfg.Hooks.PublicMarker}
	}
	return Config{
		Client:          client,
		Matcher:         matcher,
		Account:         cfg.Account,
		InvalidToken:    cfg.Hooks.InvalidToken,
		PlaceholderPath: cfg.Hooks.PlaceholderPath,
		Logger:          logger,
	}
}

// RuleNames returns the names of all configured rules in sorted order
func (c *Controller) RuleNames() []string {
	names := make([]string, 0, len(c.rules))
	for name := range c.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rule returns the rule for a transaction name
func (c *Controller) Rule(name string) (Rule, bool) {
	r, ok := c.rules[name]
	return r, ok
}

// nextAccountToken returns a millisecond timestamp, bumped so that every call
// returns a larger value than the previous one
func (c *Controller) nextAccountToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok := c.now().UnixMilli()
	if tok <= c.lastToken {
		tok = c.lastToken + 1
	}
	c.lastToken = tok
	return strconv.FormatInt(tok, 10)
}
