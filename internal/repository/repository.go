package repository

import (
	"context"
	"database/sql"
	"time"

	"smarthome_sync/internal/models"
)

// Journal is the append-only log of finished optimistic mutations.
type Journal interface {
	Record(ctx context.Context, e models.MutationEvent) error
	List(ctx context.Context, f Filter) ([]models.MutationEvent, error)
}

// Filter narrows a journal listing. Zero fields match everything.
type Filter struct {
	From       time.Time
	To         time.Time
	Outcome    string
	EntityKind string
}

// Authorization stores backend simulator accounts.
type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type Repository struct {
	Journal Journal
	Auth    Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Journal: NewMutationLogSQLite(db),
		Auth:    NewUserRepository(db),
	}
}
