// Package db is the generic Postgres persistence layer every domain repository
// (internal/fleet, internal/registry, internal/deployment, internal/batchjob, internal/taskq)
// is built on, grounded on the teacher's internal/service/common/db and
// internal/service/common/utils packages: a pgxpool connection pool, a golang-migrate
// migration runner, and a small set of generic Find/Search/Create/Update/Delete helpers built
// on stephenafamo/bob's psql query builder.
package db

// Model is implemented by every persisted record type. TableName names the backing table;
// PrimaryKey names its primary-key column.
type Model interface {
	TableName() string
	PrimaryKey() string
}
