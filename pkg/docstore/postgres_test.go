package docstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentColumns = []string{"collection", "id", "data", "version", "created_at", "updated_at"}

func newMockStore(t *testing.T, opts ...Option) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock"), opts...), mock
}

func expectRead(mock sqlmock.Sqlmock, ref Ref, version int64) {
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(selectDocument+` WHERE collection = $1 AND id = $2`)).
		WithArgs(ref.Collection, ref.ID).
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow(ref.Collection, ref.ID, []byte(`{"id":"`+ref.ID+`","value":1}`), version, now, now))
}

func TestPostgresStoreGet(t *testing.T) {
	store, mock := newMockStore(t)
	ref := NewRef("counters", "c1")
	expectRead(mock, ref, 3)

	doc, err := store.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc.Version)
	var c counter
	require.NoError(t, doc.DataTo(&c))
	assert.Equal(t, 1, c.Value)

	mock.ExpectQuery(regexp.QuoteMeta(selectDocument)).
		WithArgs("counters", "missing").
		WillReturnRows(sqlmock.NewRows(documentColumns))
	_, err = store.Get(context.Background(), NewRef("counters", "missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreQueryBuildsContainmentFilters(t *testing.T) {
	store, mock := newMockStore(t)
	expected := selectDocument + ` WHERE collection = $1 AND (data @> $2::jsonb) AND (data @> $3::jsonb OR data @> $4::jsonb) ORDER BY created_at, id`
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(expected)).
		WithArgs("applications", `{"status":"pending"}`, `{"supervisorId":"a"}`, `{"supervisorId":"b"}`).
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("applications", "app-1", []byte(`{"id":"app-1"}`), int64(1), now, now))

	docs, err := store.Query(context.Background(), "applications", Eq("status", "pending"), In("supervisorId", "a", "b"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "app-1", docs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreQueryEmptyInShortCircuits(t *testing.T) {
	store, mock := newMockStore(t)
	docs, err := store.Query(context.Background(), "applications", In("status"))
	require.NoError(t, err)
	assert.Empty(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreTransactionCommits(t *testing.T) {
	store, mock := newMockStore(t)
	ref := NewRef("counters", "c1")
	expectRead(mock, ref, 2)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockVersionQuery)).
		WithArgs("counters", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)))
	mock.ExpectExec(regexp.QuoteMeta(patchQuery)).
		WithArgs("counters", "c1", `{"value":2}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Update(ref, Fields{"value": 2})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreTransactionConflict(t *testing.T) {
	store, mock := newMockStore(t, WithMaxAttempts(1))
	ref := NewRef("counters", "c1")
	expectRead(mock, ref, 2)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockVersionQuery)).
		WithArgs("counters", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
	mock.ExpectRollback()

	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Update(ref, Fields{"value": 2})
	})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRetriesSerializationFailure(t *testing.T) {
	store, mock := newMockStore(t, WithRetryDelay(0))
	ref := NewRef("counters", "c1")

	expectRead(mock, ref, 2)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockVersionQuery)).
		WithArgs("counters", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)))
	mock.ExpectExec(regexp.QuoteMeta(patchQuery)).
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	expectRead(mock, ref, 2)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockVersionQuery)).
		WithArgs("counters", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)))
	mock.ExpectExec(regexp.QuoteMeta(patchQuery)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calls := 0
	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		calls++
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Update(ref, Fields{"value": 5})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateExisting(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WithArgs("counters", "c1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Create(context.Background(), NewRef("counters", "c1"), counter{ID: "c1"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(patchQuery)).
		WithArgs("counters", "c1", `{"value":1}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Update(context.Background(), NewRef("counters", "c1"), Fields{"value": 1})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
