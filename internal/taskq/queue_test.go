package taskq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/kuberos-io/kuberos/internal/taskq"
)

func TestTaskqSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "taskq Suite")
}

var _ = Describe("durable task queue", func() {
	var (
		ctx  context.Context
		mock pgxmock.PgxPoolIface
		q    *taskq.Queue
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		mock, err = pgxmock.NewPool()
		Expect(err).NotTo(HaveOccurred())
		q = taskq.NewQueue(mock)
	})

	AfterEach(func() {
		mock.Close()
	})

	It("enqueues a task inside a transaction", func() {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO tasks`).WithArgs("deploy.reconcile", pgxmock.AnyArg(), 30*time.Second).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err := q.Enqueue(ctx, "deploy.reconcile", map[string]string{"deployment_id": "d-1"}, 30*time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("rolls back when the insert fails", func() {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO tasks`).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := q.Enqueue(ctx, "deploy.reconcile", map[string]string{}, 0)
		Expect(err).To(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("pops the oldest runnable task and locks it", func() {
		rows := pgxmock.NewRows([]string{"id", "kind", "payload", "run_after", "attempts", "last_error"}).
			AddRow(int64(7), "deploy.reconcile", []byte(`{"deployment_id":"d-1"}`), time.Now(), 0, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, kind, payload, run_after, attempts, last_error FROM tasks`).
			WithArgs([]string{"deploy.reconcile", "batch.tick"}).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE tasks SET locked_by`).WithArgs("worker-1", int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		task, err := q.Pop(ctx, "worker-1", "deploy.reconcile", "batch.tick")
		Expect(err).NotTo(HaveOccurred())
		Expect(task).NotTo(BeNil())
		Expect(task.ID).To(Equal(int64(7)))
		Expect(task.LockedBy).To(Equal("worker-1"))
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("returns nil, nil when nothing is runnable", func() {
		rows := pgxmock.NewRows([]string{"id", "kind", "payload", "run_after", "attempts", "last_error"})

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id, kind, payload, run_after, attempts, last_error FROM tasks`).
			WillReturnRows(rows)
		mock.ExpectRollback()

		task, err := q.Pop(ctx, "worker-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(task).To(BeNil())
	})

	It("completes a task by deleting its row", func() {
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM tasks`).WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		err := q.Complete(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("reschedules a task with backoff and records the error", func() {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE tasks SET locked_by = NULL`).
			WithArgs(10*time.Second, "executor unreachable", int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := q.Reschedule(ctx, 7, 10*time.Second, errors.New("executor unreachable"))
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})
})
