package registry

import (
	"context"

	"github.com/kuberos-io/kuberos/internal/db"
)

// Repository persists registry credentials. It is a thin wrapper over the generic db
// repository; every domain package that needs one (internal/fleet, internal/deployment, ...)
// follows the same shape.
type Repository struct {
	pool db.Queryer
}

func NewRepository(pool db.Queryer) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id any) (*Credential, error) {
	return db.Find[Credential](ctx, r.pool, id)
}

func (r *Repository) List(ctx context.Context) ([]Credential, error) {
	return db.FindAll[Credential](ctx, r.pool)
}

func (r *Repository) Create(ctx context.Context, c Credential) (*Credential, error) {
	return db.Create[Credential](ctx, r.pool, c)
}

func (r *Repository) Delete(ctx context.Context, id any) (int64, error) {
	return db.Delete[Credential](ctx, r.pool, id)
}
