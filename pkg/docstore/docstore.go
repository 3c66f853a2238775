// Package docstore is a small transactional document store: named collections of JSON
// documents with point reads, equality queries, optimistic transactions and capped write
// batches. Two backends exist, an in-memory one for tests and local runs and a PostgreSQL
// one that keeps every document in a JSONB column.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MaxBatchWrites is the number of operations a single WriteBatch accepts.
const MaxBatchWrites = 500

var (
	ErrNotFound       = errors.New("docstore: document not found")
	ErrAlreadyExists  = errors.New("docstore: document already exists")
	ErrConflict       = errors.New("docstore: transaction conflict")
	ErrReadAfterWrite = errors.New("docstore: transactions require all reads before any writes")
	ErrBatchFull      = errors.New("docstore: batch write limit reached")
)

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// NewRef builds a document reference.
func NewRef(collection, id string) Ref {
	return Ref{Collection: collection, ID: id}
}

func (r Ref) String() string {
	return r.Collection + "/" + r.ID
}

// Document is a stored document with its concurrency version.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Ref returns the reference of the document.
func (d *Document) Ref() Ref {
	return Ref{Collection: d.Collection, ID: d.ID}
}

// DataTo decodes the document payload into dst.
func (d *Document) DataTo(dst interface{}) error {
	if d == nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(d.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", d.Ref(), err)
	}
	return nil
}

// Op is a query comparison operator.
type Op string

const (
	OpEqual Op = "=="
	OpIn    Op = "in"
)

// Filter restricts a query on a top-level document field.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Eq matches documents whose field equals value. A nil value matches null or absent fields.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// In matches documents whose field equals any of values.
func In(field string, values ...interface{}) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

func (f Filter) candidates() ([]interface{}, error) {
	switch f.Op {
	case OpEqual:
		return []interface{}{f.Value}, nil
	case OpIn:
		values, ok := f.Value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("docstore: filter %q: in operator needs a value list", f.Field)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("docstore: filter %q: unsupported operator %q", f.Field, f.Op)
	}
}

// Fields is a shallow patch applied by Update; keys are top-level document fields.
type Fields map[string]interface{}

// Store is the contract consumed by repositories.
type Store interface {
	Get(ctx context.Context, ref Ref) (*Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]*Document, error)
	Create(ctx context.Context, ref Ref, data interface{}) error
	Set(ctx context.Context, ref Ref, data interface{}) error
	Update(ctx context.Context, ref Ref, fields Fields) error
	// RunTransaction executes fn with optimistic concurrency. Reads are validated at
	// commit and fn is re-run on conflict up to the configured attempt limit. An error
	// returned by fn aborts without retry and nothing is written.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Batch() WriteBatch
	Close() error
}

// Tx is the handle passed to a transaction function.
type Tx interface {
	// Get returns ErrNotFound for absent documents; absence is still tracked for conflicts.
	Get(ref Ref) (*Document, error)
	// GetAll returns one entry per ref, nil where the document is absent.
	GetAll(refs ...Ref) ([]*Document, error)
	Create(ref Ref, data interface{}) error
	Set(ref Ref, data interface{}) error
	Update(ref Ref, fields Fields) error
}

// WriteBatch groups up to MaxBatchWrites writes committed atomically.
type WriteBatch interface {
	Set(ref Ref, data interface{}) error
	Update(ref Ref, fields Fields) error
	Len() int
	Commit(ctx context.Context) error
}

// Options tune transaction behaviour shared by all backends.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	// Observer, when set, is told how many attempts a transaction took and how it ended.
	Observer func(attempts int, err error)
}

// Option mutates Options.
type Option func(*Options)

// WithMaxAttempts bounds how often a conflicting transaction is retried.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// WithRetryDelay sets the base pause between attempts; it grows linearly per attempt.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.RetryDelay = d
		}
	}
}

// WithObserver registers a transaction outcome callback, used for metrics.
func WithObserver(fn func(attempts int, err error)) Option {
	return func(o *Options) {
		o.Observer = fn
	}
}

func buildOptions(opts []Option) Options {
	o := Options{MaxAttempts: 5, RetryDelay: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func encode(data interface{}) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("docstore: encode: documents must be JSON objects")
	}
	return raw, nil
}

// merge applies a shallow patch to an encoded document.
func merge(data json.RawMessage, fields Fields) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("docstore: merge: %w", err)
		}
	}
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("docstore: merge field %q: %w", key, err)
		}
		doc[key] = raw
	}
	return json.Marshal(doc)
}
