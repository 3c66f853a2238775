package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore persists documents in the documents table, one JSONB row per document.
type PostgresStore struct {
	db    *sqlx.DB
	opts  Options
	clock func() time.Time
}

// NewPostgresStore wraps an open database handle. The schema is created by the
// database migrations.
func NewPostgresStore(db *sqlx.DB, opts ...Option) *PostgresStore {
	return &PostgresStore{
		db:    db,
		opts:  buildOptions(opts),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

type documentRow struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Data       []byte    `db:"data"`
	Version    int64     `db:"version"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r documentRow) toDocument() *Document {
	return &Document{
		Collection: r.Collection,
		ID:         r.ID,
		Data:       json.RawMessage(r.Data),
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

const selectDocument = `SELECT collection, id, data, version, created_at, updated_at FROM documents`

func (p *PostgresStore) Get(ctx context.Context, ref Ref) (*Document, error) {
	return p.read(ctx, ref)
}

func (p *PostgresStore) read(ctx context.Context, ref Ref) (*Document, error) {
	var row documentRow
	query := selectDocument + ` WHERE collection = $1 AND id = $2`
	if err := p.db.GetContext(ctx, &row, query, ref.Collection, ref.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return row.toDocument(), nil
}

func (p *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]*Document, error) {
	conditions := []string{"collection = $1"}
	args := []interface{}{collection}

	for _, f := range filters {
		candidates, err := f.candidates()
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return []*Document{}, nil
		}
		alternatives := make([]string, 0, len(candidates))
		for _, v := range candidates {
			raw, err := json.Marshal(map[string]interface{}{f.Field: v})
			if err != nil {
				return nil, err
			}
			args = append(args, string(raw))
			alternatives = append(alternatives, fmt.Sprintf("data @> $%d::jsonb", len(args)))
		}
		conditions = append(conditions, "("+strings.Join(alternatives, " OR ")+")")
	}

	query := selectDocument + " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY created_at, id"
	var rows []documentRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	docs := make([]*Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toDocument())
	}
	return docs, nil
}

func (p *PostgresStore) Create(ctx context.Context, ref Ref, data interface{}) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	return p.commit(ctx, nil, []write{{kind: writeCreate, ref: ref, data: raw}})
}

func (p *PostgresStore) Set(ctx context.Context, ref Ref, data interface{}) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	return p.commit(ctx, nil, []write{{kind: writeSet, ref: ref, data: raw}})
}

func (p *PostgresStore) Update(ctx context.Context, ref Ref, fields Fields) error {
	return p.commit(ctx, nil, []write{{kind: writeUpdate, ref: ref, fields: fields}})
}

func (p *PostgresStore) RunTransaction(ctx context.Context, fn func(context.Context, Tx) error) error {
	return runTransaction(ctx, p, p.opts, fn)
}

func (p *PostgresStore) Batch() WriteBatch {
	return &batch{be: p}
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

const (
	lockVersionQuery = `SELECT version FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`
	insertQuery      = `INSERT INTO documents (collection, id, data, version, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, 1, $4, $4) ON CONFLICT (collection, id) DO NOTHING`
	upsertQuery = `INSERT INTO documents (collection, id, data, version, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, 1, $4, $4)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, version = documents.version + 1, updated_at = EXCLUDED.updated_at`
	patchQuery = `UPDATE documents SET data = data || $3::jsonb, version = version + 1, updated_at = $4
WHERE collection = $1 AND id = $2`
)

func (p *PostgresStore) commit(ctx context.Context, reads map[Ref]int64, writes []write) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// lock in a stable order so concurrent committers cannot deadlock on each other
	refs := make([]Ref, 0, len(reads))
	for ref := range reads {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Collection == refs[j].Collection {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].Collection < refs[j].Collection
	})
	for _, ref := range refs {
		var current int64
		if err = tx.GetContext(ctx, &current, lockVersionQuery, ref.Collection, ref.ID); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return translate(err)
			}
			current, err = 0, nil
		}
		if current != reads[ref] {
			return ErrConflict
		}
	}

	now := p.clock()
	for _, w := range writes {
		if err = p.apply(ctx, tx, w, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return translate(err)
	}
	return nil
}

func (p *PostgresStore) apply(ctx context.Context, tx *sqlx.Tx, w write, now time.Time) error {
	switch w.kind {
	case writeCreate:
		res, err := tx.ExecContext(ctx, insertQuery, w.ref.Collection, w.ref.ID, string(w.data), now)
		if err != nil {
			return translate(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrAlreadyExists
		}
	case writeSet:
		if _, err := tx.ExecContext(ctx, upsertQuery, w.ref.Collection, w.ref.ID, string(w.data), now); err != nil {
			return translate(err)
		}
	case writeUpdate:
		patch, err := json.Marshal(w.fields)
		if err != nil {
			return fmt.Errorf("docstore: encode patch: %w", err)
		}
		res, err := tx.ExecContext(ctx, patchQuery, w.ref.Collection, w.ref.ID, string(patch), now)
		if err != nil {
			return translate(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// translate maps serialization failures and deadlocks to ErrConflict so they are retried.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		}
	}
	return err
}
