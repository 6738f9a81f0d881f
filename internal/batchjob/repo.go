package batchjob

import (
	"context"

	"github.com/stephenafamo/bob/dialect/psql"

	"github.com/kuberos-io/kuberos/internal/db"
)

// Repository persists the BatchJobDeployment/BatchJobGroup/KuberosJob aggregate.
type Repository struct {
	pool db.Queryer
}

func NewRepository(pool db.Queryer) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetDeployment(ctx context.Context, id any) (*BatchJobDeployment, error) {
	return db.Find[BatchJobDeployment](ctx, r.pool, id)
}

func (r *Repository) ListActiveDeployments(ctx context.Context) ([]BatchJobDeployment, error) {
	return db.Search[BatchJobDeployment](ctx, r.pool, psql.Quote("active").EQ(psql.Arg(true)))
}

func (r *Repository) SaveDeployment(ctx context.Context, d BatchJobDeployment) (*BatchJobDeployment, error) {
	return db.Create[BatchJobDeployment](ctx, r.pool, d)
}

func (r *Repository) UpdateDeployment(ctx context.Context, id any, d BatchJobDeployment) (*BatchJobDeployment, error) {
	return db.Update[BatchJobDeployment](ctx, r.pool, id, d)
}

// DeleteDeployment hard-deletes a BatchJobDeployment row. Callers must ensure the deployment
// has already reached a terminal status (batchctl's CLEANING step owns the live teardown of
// its groups/jobs); the schema's ON DELETE CASCADE removes its BatchJobGroup rows and their
// KuberosJob rows with it.
func (r *Repository) DeleteDeployment(ctx context.Context, id any) (int64, error) {
	return db.Delete[BatchJobDeployment](ctx, r.pool, id)
}

func (r *Repository) ListGroupsByDeployment(ctx context.Context, deploymentID any) ([]BatchJobGroup, error) {
	return db.Search[BatchJobGroup](ctx, r.pool, psql.Quote("deployment_id").EQ(psql.Arg(deploymentID)))
}

func (r *Repository) SaveGroup(ctx context.Context, g BatchJobGroup) (*BatchJobGroup, error) {
	return db.Create[BatchJobGroup](ctx, r.pool, g)
}

func (r *Repository) ListJobsByGroup(ctx context.Context, groupID any) ([]KuberosJob, error) {
	return db.Search[KuberosJob](ctx, r.pool, psql.Quote("group_id").EQ(psql.Arg(groupID)))
}

func (r *Repository) GetJob(ctx context.Context, id any) (*KuberosJob, error) {
	return db.Find[KuberosJob](ctx, r.pool, id)
}

func (r *Repository) GetGroup(ctx context.Context, id any) (*BatchJobGroup, error) {
	return db.Find[BatchJobGroup](ctx, r.pool, id)
}

func (r *Repository) SaveJob(ctx context.Context, j KuberosJob) (*KuberosJob, error) {
	return db.Create[KuberosJob](ctx, r.pool, j)
}

func (r *Repository) UpdateJob(ctx context.Context, id any, j KuberosJob) (*KuberosJob, error) {
	return db.Update[KuberosJob](ctx, r.pool, id, j)
}
