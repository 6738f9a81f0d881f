// Package taskq is the durable task queue spec.md §5 calls for: a Postgres table popped with
// `SELECT ... FOR UPDATE SKIP LOCKED`, generalizing the teacher's per-record transactional
// update pattern (internal/db's pgx transactions) from a single-row update to a queue pop.
package taskq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TableName is the queue's backing table, created by migrations/*.sql.
const TableName = "tasks"

// Task is one durable unit of work: a reconcile tick for a deployment job, a batch-job
// scheduling pass, or a cluster sync, identified by Kind and carrying an opaque JSON payload.
type Task struct {
	ID        int64
	Kind      string
	Payload   json.RawMessage
	RunAfter  time.Time
	LockedBy  string
	LockedAt  *time.Time
	Attempts  int
	LastError string
}

// Pool is the subset of *pgxpool.Pool the queue needs: transaction begin, since a pop must
// lock and delete/reschedule a row atomically.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Queue is a Postgres-backed durable work queue.
type Queue struct {
	pool Pool
}

func NewQueue(pool Pool) *Queue {
	return &Queue{pool: pool}
}

// Enqueue inserts a new task of the given kind, runnable after delay has elapsed.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any, delay time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling task payload: %w", err)
	}

	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning enqueue transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO `+TableName+` (kind, payload, run_after, attempts) VALUES ($1, $2, now() + $3, 0)`,
		kind, raw, delay)
	if err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}
	return tx.Commit(ctx)
}

// Pop locks and returns the oldest runnable task of one of the given kinds (or any kind when
// none are given), using `SELECT ... FOR UPDATE SKIP LOCKED` so concurrent workers never
// contend on the same row, then marks it locked by workerID. Returns nil, nil when no task is
// currently runnable.
func (q *Queue) Pop(ctx context.Context, workerID string, kinds ...string) (*Task, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning pop transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	selectSQL := `SELECT id, kind, payload, run_after, attempts, last_error FROM ` + TableName + `
		WHERE run_after <= now() AND locked_by IS NULL`
	args := []any{}
	if len(kinds) > 0 {
		selectSQL += ` AND kind = ANY($1)`
		args = append(args, kinds)
	}
	selectSQL += ` ORDER BY run_after ASC LIMIT 1 FOR UPDATE SKIP LOCKED`

	var t Task
	var lastError *string
	row := tx.QueryRow(ctx, selectSQL, args...)
	if err := row.Scan(&t.ID, &t.Kind, &t.Payload, &t.RunAfter, &t.Attempts, &lastError); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("popping task: %w", err)
	}
	if lastError != nil {
		t.LastError = *lastError
	}

	if _, err := tx.Exec(ctx, `UPDATE `+TableName+` SET locked_by = $1, locked_at = now() WHERE id = $2`, workerID, t.ID); err != nil {
		return nil, fmt.Errorf("locking task %d: %w", t.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing pop: %w", err)
	}

	t.LockedBy = workerID
	return &t, nil
}

// Complete deletes a finished task - spec.md §5's "deletes the row (done)" outcome.
func (q *Queue) Complete(ctx context.Context, taskID int64) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning complete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM `+TableName+` WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("completing task %d: %w", taskID, err)
	}
	return tx.Commit(ctx)
}

// Reschedule unlocks a task and bumps its attempts/last_error, setting run_after to after
// delay - spec.md §5's "re-enqueues it at <backoff>" outcome.
func (q *Queue) Reschedule(ctx context.Context, taskID int64, delay time.Duration, taskErr error) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning reschedule transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	errMsg := ""
	if taskErr != nil {
		errMsg = taskErr.Error()
	}
	_, err = tx.Exec(ctx,
		`UPDATE `+TableName+` SET locked_by = NULL, locked_at = NULL, run_after = now() + $1,
			attempts = attempts + 1, last_error = $2 WHERE id = $3`,
		delay, errMsg, taskID)
	if err != nil {
		return fmt.Errorf("rescheduling task %d: %w", taskID, err)
	}
	return tx.Commit(ctx)
}
