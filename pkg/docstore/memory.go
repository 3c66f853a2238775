package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps documents in process memory. It honours the same versioning and
// conflict rules as the PostgreSQL backend.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]map[string]*Document
	opts  Options
	clock func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		docs:  map[string]map[string]*Document{},
		opts:  buildOptions(opts),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Get(ctx context.Context, ref Ref) (*Document, error) {
	return m.read(ctx, ref)
}

func (m *MemoryStore) read(ctx context.Context, ref Ref) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted, err := compileFilters(filters)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Document, 0)
	for _, doc := range m.docs[collection] {
		ok, err := matches(doc.Data, wanted)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, cloneDoc(doc))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) Create(ctx context.Context, ref Ref, data interface{}) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	return m.commit(ctx, nil, []write{{kind: writeCreate, ref: ref, data: raw}})
}

func (m *MemoryStore) Set(ctx context.Context, ref Ref, data interface{}) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	return m.commit(ctx, nil, []write{{kind: writeSet, ref: ref, data: raw}})
}

func (m *MemoryStore) Update(ctx context.Context, ref Ref, fields Fields) error {
	return m.commit(ctx, nil, []write{{kind: writeUpdate, ref: ref, fields: fields}})
}

func (m *MemoryStore) RunTransaction(ctx context.Context, fn func(context.Context, Tx) error) error {
	return runTransaction(ctx, m, m.opts, fn)
}

func (m *MemoryStore) Batch() WriteBatch {
	return &batch{be: m}
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) commit(ctx context.Context, reads map[Ref]int64, writes []write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for ref, version := range reads {
		current := int64(0)
		if doc, ok := m.docs[ref.Collection][ref.ID]; ok {
			current = doc.Version
		}
		if current != version {
			return ErrConflict
		}
	}

	now := m.clock()
	staged := map[Ref]*Document{}
	lookup := func(ref Ref) *Document {
		if doc, ok := staged[ref]; ok {
			return doc
		}
		if doc, ok := m.docs[ref.Collection][ref.ID]; ok {
			return cloneDoc(doc)
		}
		return nil
	}

	for _, w := range writes {
		existing := lookup(w.ref)
		switch w.kind {
		case writeCreate:
			if existing != nil {
				return ErrAlreadyExists
			}
			staged[w.ref] = &Document{Collection: w.ref.Collection, ID: w.ref.ID, Data: w.data, Version: 1, CreatedAt: now, UpdatedAt: now}
		case writeSet:
			if existing == nil {
				staged[w.ref] = &Document{Collection: w.ref.Collection, ID: w.ref.ID, Data: w.data, Version: 1, CreatedAt: now, UpdatedAt: now}
				continue
			}
			existing.Data = w.data
			existing.Version++
			existing.UpdatedAt = now
			staged[w.ref] = existing
		case writeUpdate:
			if existing == nil {
				return ErrNotFound
			}
			merged, err := merge(existing.Data, w.fields)
			if err != nil {
				return err
			}
			existing.Data = merged
			existing.Version++
			existing.UpdatedAt = now
			staged[w.ref] = existing
		}
	}

	for ref, doc := range staged {
		coll, ok := m.docs[ref.Collection]
		if !ok {
			coll = map[string]*Document{}
			m.docs[ref.Collection] = coll
		}
		coll[ref.ID] = doc
	}
	return nil
}

func cloneDoc(doc *Document) *Document {
	clone := *doc
	clone.Data = append(json.RawMessage(nil), doc.Data...)
	return &clone
}

type compiledFilter struct {
	field  string
	values [][]byte
}

func compileFilters(filters []Filter) ([]compiledFilter, error) {
	out := make([]compiledFilter, 0, len(filters))
	for _, f := range filters {
		candidates, err := f.candidates()
		if err != nil {
			return nil, err
		}
		cf := compiledFilter{field: f.Field}
		for _, v := range candidates {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			cf.values = append(cf.values, raw)
		}
		out = append(out, cf)
	}
	return out, nil
}

var jsonNull = []byte("null")

func matches(data json.RawMessage, filters []compiledFilter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, err
	}
	for _, f := range filters {
		actual, ok := fields[f.field]
		if !ok {
			actual = jsonNull
		}
		if !containsRaw(f.values, actual) {
			return false, nil
		}
	}
	return true, nil
}

func containsRaw(candidates [][]byte, actual []byte) bool {
	for _, c := range candidates {
		if bytes.Equal(c, actual) {
			return true
		}
	}
	return false
}
