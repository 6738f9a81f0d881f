package deployment

import (
	"context"

	"github.com/stephenafamo/bob/dialect/psql"

	"github.com/kuberos-io/kuberos/internal/db"
)

// Repository persists the Deployment/DeploymentEvent/DeploymentJob aggregate.
type Repository struct {
	pool db.Queryer
}

func NewRepository(pool db.Queryer) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetDeployment(ctx context.Context, id any) (*Deployment, error) {
	return db.Find[Deployment](ctx, r.pool, id)
}

func (r *Repository) ListActiveDeployments(ctx context.Context) ([]Deployment, error) {
	return db.Search[Deployment](ctx, r.pool, psql.Quote("active").EQ(psql.Arg(true)))
}

func (r *Repository) SaveDeployment(ctx context.Context, d Deployment) (*Deployment, error) {
	return db.Create[Deployment](ctx, r.pool, d)
}

func (r *Repository) UpdateDeployment(ctx context.Context, id any, d Deployment) (*Deployment, error) {
	return db.Update[Deployment](ctx, r.pool, id, d)
}

func (r *Repository) ListJobsByDeployment(ctx context.Context, deploymentID any) ([]DeploymentJob, error) {
	return db.Search[DeploymentJob](ctx, r.pool, psql.Quote("deployment_id").EQ(psql.Arg(deploymentID)))
}

func (r *Repository) GetJob(ctx context.Context, id any) (*DeploymentJob, error) {
	return db.Find[DeploymentJob](ctx, r.pool, id)
}

func (r *Repository) SaveJob(ctx context.Context, j DeploymentJob) (*DeploymentJob, error) {
	return db.Create[DeploymentJob](ctx, r.pool, j)
}

func (r *Repository) UpdateJob(ctx context.Context, id any, j DeploymentJob) (*DeploymentJob, error) {
	return db.Update[DeploymentJob](ctx, r.pool, id, j)
}

func (r *Repository) ListEventsByDeployment(ctx context.Context, deploymentID any) ([]DeploymentEvent, error) {
	return db.Search[DeploymentEvent](ctx, r.pool, psql.Quote("deployment_id").EQ(psql.Arg(deploymentID)))
}

func (r *Repository) SaveEvent(ctx context.Context, e DeploymentEvent) (*DeploymentEvent, error) {
	return db.Create[DeploymentEvent](ctx, r.pool, e)
}

func (r *Repository) UpdateEvent(ctx context.Context, id any, e DeploymentEvent) (*DeploymentEvent, error) {
	return db.Update[DeploymentEvent](ctx, r.pool, id, e)
}
