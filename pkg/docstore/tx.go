package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type writeKind int

const (
	writeCreate writeKind = iota + 1
	writeSet
	writeUpdate
)

type write struct {
	kind   writeKind
	ref    Ref
	data   []byte
	fields Fields
}

// backend is what a concrete store provides to the shared transaction runner.
type backend interface {
	read(ctx context.Context, ref Ref) (*Document, error)
	// commit applies writes atomically if every read version is still current.
	// A version of 0 records that the document was absent.
	commit(ctx context.Context, reads map[Ref]int64, writes []write) error
}

type transaction struct {
	ctx    context.Context
	be     backend
	reads  map[Ref]int64
	writes []write
}

func newTransaction(ctx context.Context, be backend) *transaction {
	return &transaction{ctx: ctx, be: be, reads: map[Ref]int64{}}
}

func (t *transaction) Get(ref Ref) (*Document, error) {
	if len(t.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	doc, err := t.be.read(t.ctx, ref)
	if errors.Is(err, ErrNotFound) {
		t.track(ref, 0)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.track(ref, doc.Version)
	return doc, nil
}

func (t *transaction) track(ref Ref, version int64) {
	// the first observed version wins so a document read twice cannot mask a change
	if _, seen := t.reads[ref]; !seen {
		t.reads[ref] = version
	}
}

func (t *transaction) GetAll(refs ...Ref) ([]*Document, error) {
	docs := make([]*Document, len(refs))
	for i, ref := range refs {
		doc, err := t.Get(ref)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}
	return docs, nil
}

func (t *transaction) Create(ref Ref, data interface{}) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, write{kind: writeCreate, ref: ref, data: raw})
	return nil
}

func (t *transaction) Set(ref Ref, data interface{}) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, write{kind: writeSet, ref: ref, data: raw})
	return nil
}

func (t *transaction) Update(ref Ref, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	t.writes = append(t.writes, write{kind: writeUpdate, ref: ref, fields: fields})
	return nil
}

var tracer = otel.Tracer("github.com/noah-isme/mentormatch-api/pkg/docstore")

func runTransaction(ctx context.Context, be backend, opts Options, fn func(context.Context, Tx) error) (err error) {
	ctx, span := tracer.Start(ctx, "docstore.RunTransaction")
	attempts := 0
	defer func() {
		span.SetAttributes(attribute.Int("docstore.tx.attempts", attempts))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if opts.Observer != nil {
			opts.Observer(attempts, err)
		}
	}()

	for attempts < opts.MaxAttempts {
		attempts++
		tx := newTransaction(ctx, be)
		if err = fn(ctx, tx); err != nil {
			return err
		}
		if len(tx.writes) == 0 {
			return nil
		}
		err = be.commit(ctx, tx.reads, tx.writes)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if attempts < opts.MaxAttempts {
			if werr := wait(ctx, time.Duration(attempts)*opts.RetryDelay); werr != nil {
				return werr
			}
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts", ErrConflict, attempts)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// batch buffers writes for a single atomic commit without a read set.
type batch struct {
	be     backend
	writes []write
}

func (b *batch) Set(ref Ref, data interface{}) error {
	if len(b.writes) >= MaxBatchWrites {
		return ErrBatchFull
	}
	raw, err := encode(data)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, write{kind: writeSet, ref: ref, data: raw})
	return nil
}

func (b *batch) Update(ref Ref, fields Fields) error {
	if len(b.writes) >= MaxBatchWrites {
		return ErrBatchFull
	}
	b.writes = append(b.writes, write{kind: writeUpdate, ref: ref, fields: fields})
	return nil
}

func (b *batch) Len() int {
	return len(b.writes)
}

func (b *batch) Commit(ctx context.Context) error {
	if len(b.writes) == 0 {
		return nil
	}
	err := b.be.commit(ctx, nil, b.writes)
	b.writes = nil
	return err
}
