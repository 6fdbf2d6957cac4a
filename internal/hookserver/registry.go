package hookserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/forgo/taskhooks/internal/model"
)

// Event names of the hooks-handler protocol
type Event string

const (
	EventBeforeAll            Event = "beforeAll"
	EventBeforeEach           Event = "beforeEach"
	EventBefore               Event = "before"
	EventBeforeEachValidation Event = "beforeEachValidation"
	EventBeforeValidation     Event = "beforeValidation"
	EventAfter                Event = "after"
	EventAfterEach            Event = "afterEach"
	EventAfterAll             Event = "afterAll"
)

var (
	// ErrUnknownEvent is returned for events the registry does not handle
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidData is returned when a message payload is not a transaction
	ErrInvalidData = errors.New("invalid transaction data")
)

// Message is one protocol message. Replies reuse the request UUID and Event.
type Message struct {
	UUID  string          `json:"uuid"`
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SuiteHook runs once for the whole suite with every transaction
type SuiteHook func(ctx context.Context, txs []*model.Transaction) error

// TransactionHook runs for a single transaction and may modify it
type TransactionHook func(ctx context.Context, tx *model.Transaction) error

// Registry holds hooks by event. It is not safe for registration while a
// server is dispatching.
type Registry struct {
	beforeAll            []SuiteHook
	afterAll             []SuiteHook
	beforeEach           []TransactionHook
	beforeEachValidation []TransactionHook
	afterEach            []TransactionHook
	before               map[string][]TransactionHook
	beforeValidation     map[string][]TransactionHook
	after                map[string][]TransactionHook
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		before:           make(map[string][]TransactionHook),
		beforeValidation: make(map[string][]TransactionHook),
		after:            make(map[string][]TransactionHook),
	}
}

// BeforeAll registers a hook run once before the first transaction
func (r *Registry) BeforeAll(h SuiteHook) {
	r.beforeAll = append(r.beforeAll, h)
}

// AfterAll registers a hook run once after the last transaction
func (r *Registry) AfterAll(h SuiteHook) {
	r.afterAll = append(r.afterAll, h)
}

// BeforeEach registers a hook run before every transaction
func (r *Registry) BeforeEach(h TransactionHook) {
	r.beforeEach = append(r.beforeEach, h)
}

func (r *Registry) AfterEach(h TransactionHook) {
	r.afterEach = append(r.afterEach, h)
}

func (r *Registry) BeforeEachValidation(h TransactionHook) {
	r.beforeEachValidation = append(r.beforeEachValidation, h)
}

// Before registers a hook for the transaction with the given name
func (r *Registry) Before(name string, h TransactionHook) {
	r.before[name] = append(r.before[name], h)
}

func (r *Registry) BeforeValidation(name string, h TransactionHook) {
	r.beforeValidation[name] = append(r.beforeValidation[name], h)
}

func (r *Registry) After(name string, h TransactionHook) {
	r.after[name] = append(r.after[name], h)
}

// Dispatch runs the hooks for msg and returns the reply. The reply is always
// usable: on error it carries the data as received (or as far as hooks got).
// Hook errors are joined and returned alongside the reply.
//
// beforeEach also runs the named before hooks, beforeEachValidation the named
// beforeValidation hooks and afterEach runs the named after hooks first.
func (r *Registry) Dispatch(ctx context.Context, msg Message) (Message, error) {
	reply := msg

	switch msg.Event {
	case EventBeforeAll, EventAfterAll:
		var txs []*model.Transaction
		if err := json.Unmarshal(msg.Data, &txs); err != nil {
			return reply, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		hooks := r.beforeAll
		if msg.Event == EventAfterAll {
			hooks = r.afterAll
		}
		var errs []error
		for _, h := range hooks {
			if err := h(ctx, txs); err != nil {
				errs = append(errs, err)
			}
		}
		data, err := json.Marshal(txs)
		if err != nil {
			return reply, err
		}
		reply.Data = data
		return reply, errors.Join(errs...)

	case EventBeforeEach, EventBefore, EventBeforeEachValidation, EventBeforeValidation,
		EventAfter, EventAfterEach:
		var tx model.Transaction
		if err := json.Unmarshal(msg.Data, &tx); err != nil {
			return reply, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		var errs []error
		for _, h := range r.transactionHooks(msg.Event, tx.Name) {
			if err := h(ctx, &tx); err != nil {
				errs = append(errs, err)
			}
		}
		data, err := json.Marshal(tx)
		if err != nil {
			return reply, err
		}
		reply.Data = data
		return reply, errors.Join(errs...)

	default:
		return reply, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
}

// transactionHooks returns the hooks to run for a single-transaction event, in order
func (r *Registry) transactionHooks(event Event, name string) []TransactionHook {
	var hooks []TransactionHook
	switch event {
	case EventBeforeEach:
		hooks = append(hooks, r.beforeEach...)
		hooks = append(hooks, r.before[name]...)
	case EventBefore:
		hooks = append(hooks, r.before[name]...)
	case EventBeforeEachValidation:
		hooks = append(hooks, r.beforeEachValidation...)
		hooks = append(hooks, r.beforeValidation[name]...)
	case EventBeforeValidation:
		hooks = append(hooks, r.beforeValidation[name]...)
	case EventAfterEach:
		hooks = append(hooks, r.after[name]...)
		hooks = append(hooks, r.afterEach...)
	case EventAfter:
		hooks = append(hooks, r.after[name]...)
	}
	return hooks
}
