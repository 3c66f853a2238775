package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// Collection names.
const (
	CollectionStudents                      = "students"
	CollectionSupervisors                   = "supervisors"
	CollectionApplications                  = "applications"
	CollectionPartnershipRequests           = "partnership_requests"
	CollectionSupervisorPartnershipRequests = "supervisor_partnership_requests"
	CollectionProjects                      = "projects"
	CollectionUsers                         = "users"
	CollectionAuditLogs                     = "audit_logs"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = docstore.ErrNotFound

// documentRepository gives typed access to one collection.
type documentRepository[T any] struct {
	store      docstore.Store
	collection string
	identify   func(*T, string)
	idOf       func(*T) string
}

func newDocumentRepository[T any](store docstore.Store, collection string, idOf func(*T) string, identify func(*T, string)) *documentRepository[T] {
	return &documentRepository[T]{store: store, collection: collection, identify: identify, idOf: idOf}
}

// Ref returns a document handle usable inside a transaction.
func (r *documentRepository[T]) Ref(id string) docstore.Ref {
	return docstore.NewRef(r.collection, id)
}

// FindByID loads one document; ErrNotFound when absent.
func (r *documentRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	doc, err := r.store.Get(ctx, r.Ref(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find %s %s: %w", r.collection, id, err)
	}
	return r.decode(doc)
}

// FindAll lists documents matching every filter.
func (r *documentRepository[T]) FindAll(ctx context.Context, filters ...docstore.Filter) ([]T, error) {
	docs, err := r.store.Query(ctx, r.collection, filters...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.collection, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *entity)
	}
	return out, nil
}

// Create stores entity, assigning an id when it has none, and returns the id.
func (r *documentRepository[T]) Create(ctx context.Context, entity *T) (string, error) {
	id := r.prepare(entity)
	if err := r.store.Create(ctx, r.Ref(id), entity); err != nil {
		return "", fmt.Errorf("create %s: %w", r.collection, err)
	}
	return id, nil
}

// Update patches top-level fields of an existing document.
func (r *documentRepository[T]) Update(ctx context.Context, id string, fields docstore.Fields) error {
	if err := r.store.Update(ctx, r.Ref(id), fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update %s %s: %w", r.collection, id, err)
	}
	return nil
}

// Save overwrites the whole document.
func (r *documentRepository[T]) Save(ctx context.Context, entity *T) error {
	id := r.prepare(entity)
	if err := r.store.Set(ctx, r.Ref(id), entity); err != nil {
		return fmt.Errorf("save %s %s: %w", r.collection, id, err)
	}
	return nil
}

// GetTx reads a document inside a transaction; ErrNotFound when absent.
func (r *documentRepository[T]) GetTx(tx docstore.Tx, id string) (*T, error) {
	doc, err := tx.Get(r.Ref(id))
	if err != nil {
		return nil, err
	}
	return r.decode(doc)
}

// CreateTx queues the creation of entity inside a transaction and returns its id.
func (r *documentRepository[T]) CreateTx(tx docstore.Tx, entity *T) (string, error) {
	id := r.prepare(entity)
	if err := tx.Create(r.Ref(id), entity); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateTx queues a patch inside a transaction.
func (r *documentRepository[T]) UpdateTx(tx docstore.Tx, id string, fields docstore.Fields) error {
	return tx.Update(r.Ref(id), fields)
}

func (r *documentRepository[T]) prepare(entity *T) string {
	id := r.idOf(entity)
	if id == "" {
		id = uuid.NewString()
		r.identify(entity, id)
	}
	return id
}

func (r *documentRepository[T]) decode(doc *docstore.Document) (*T, error) {
	var entity T
	if err := doc.DataTo(&entity); err != nil {
		return nil, err
	}
	r.identify(&entity, doc.ID)
	return &entity, nil
}
