package repository

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/docstore"
)

// UserRepository provides access to login accounts.
type UserRepository struct {
	*documentRepository[models.User]
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{newDocumentRepository(store, CollectionUsers,
		func(u *models.User) string { return u.ID },
		func(u *models.User, id string) { u.ID = id },
	)}
}

// FindByEmail returns a user by email address, compared case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := r.FindAll(ctx, docstore.Eq("email", strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

// UpdateLastLogin stamps the last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return r.Update(ctx, id, docstore.Fields{"last_login": ts, "updated_at": ts})
}
