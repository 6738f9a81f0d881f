package db_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/kuberos-io/kuberos/internal/db"
)

func TestDbSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "db repository Suite")
}

type widget struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

func (widget) TableName() string  { return "widgets" }
func (widget) PrimaryKey() string { return "id" }

var _ = Describe("generic repository helpers", func() {
	var (
		ctx  context.Context
		mock pgxmock.PgxPoolIface
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		mock, err = pgxmock.NewPool()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mock.Close()
	})

	It("finds a record by primary key", func() {
		rows := pgxmock.NewRows([]string{"id", "name"}).AddRow("w-1", "bolt")
		mock.ExpectQuery(`SELECT .* FROM widgets`).WillReturnRows(rows)

		found, err := db.Find[widget](ctx, mock, "w-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Name).To(Equal("bolt"))
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("returns ErrNotFound when no row matches", func() {
		rows := pgxmock.NewRows([]string{"id", "name"})
		mock.ExpectQuery(`SELECT .* FROM widgets`).WillReturnRows(rows)

		_, err := db.Find[widget](ctx, mock, "missing")
		Expect(err).To(MatchError(db.ErrNotFound))
	})

	It("returns an empty slice, not an error, when the table is empty", func() {
		rows := pgxmock.NewRows([]string{"id", "name"})
		mock.ExpectQuery(`SELECT .* FROM widgets`).WillReturnRows(rows)

		found, err := db.FindAll[widget](ctx, mock)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
	})

	It("inserts a record and returns the stored row", func() {
		rows := pgxmock.NewRows([]string{"id", "name"}).AddRow("w-2", "nut")
		mock.ExpectQuery(`INSERT INTO widgets`).WillReturnRows(rows)

		created, err := db.Create[widget](ctx, mock, widget{ID: "w-2", Name: "nut"})
		Expect(err).NotTo(HaveOccurred())
		Expect(created.ID).To(Equal("w-2"))
	})

	It("deletes a record and reports rows affected", func() {
		mock.ExpectExec(`DELETE FROM widgets`).WillReturnResult(pgxmock.NewResult("DELETE", 1))

		affected, err := db.Delete[widget](ctx, mock, "w-2")
		Expect(err).NotTo(HaveOccurred())
		Expect(affected).To(Equal(int64(1)))
	})
})
