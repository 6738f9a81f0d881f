package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/kuberos-io/kuberos/internal/taskq"
	"github.com/kuberos-io/kuberos/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolCompletesASuccessfulTask(t *testing.T) {
	g := NewWithT(t)

	mock, err := pgxmock.NewPool()
	g.Expect(err).NotTo(HaveOccurred())
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "kind", "payload", "run_after", "attempts", "last_error"}).
		AddRow(int64(1), "deploy.reconcile", []byte(`{}`), time.Now(), 0, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, kind, payload, run_after, attempts, last_error FROM tasks`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE tasks SET locked_by`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tasks`).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	var handled int32
	var wg sync.WaitGroup
	wg.Add(1)

	q := taskq.NewQueue(mock)
	p := worker.NewPool(q, discardLogger(), 1, 5*time.Millisecond, 5*time.Millisecond)
	p.Register("deploy.reconcile", func(ctx context.Context, task *taskq.Task) error {
		atomic.AddInt32(&handled, 1)
		wg.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, "test-worker")

	waitOrTimeout(&wg, 2*time.Second)
	cancel()
	p.Wait()

	g.Expect(atomic.LoadInt32(&handled)).To(Equal(int32(1)))
}

func TestPoolReschedulesAFailedTask(t *testing.T) {
	g := NewWithT(t)

	mock, err := pgxmock.NewPool()
	g.Expect(err).NotTo(HaveOccurred())
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "kind", "payload", "run_after", "attempts", "last_error"}).
		AddRow(int64(2), "batch.tick", []byte(`{}`), time.Now(), 0, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, kind, payload, run_after, attempts, last_error FROM tasks`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE tasks SET locked_by`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tasks SET locked_by = NULL`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	var wg sync.WaitGroup
	wg.Add(1)

	q := taskq.NewQueue(mock)
	p := worker.NewPool(q, discardLogger(), 1, 5*time.Millisecond, time.Hour)
	p.Register("batch.tick", func(ctx context.Context, task *taskq.Task) error {
		defer wg.Done()
		return errors.New("node unreachable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, "test-worker")

	waitOrTimeout(&wg, 2*time.Second)
	cancel()
	p.Wait()
}

func waitOrTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
