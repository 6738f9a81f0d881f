package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
)

// ErrNotFound is returned by Find and its callers when no record matches the requested key.
var ErrNotFound = errors.New("record not found")

// Queryer is the subset of *pgxpool.Pool (and pgx.Tx) every repository function needs. It
// exists so tests can substitute pashagolub/pgxmock's pool mock without a live database.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// dbTags maps each exported field of record's struct type to its `db:"..."` tag, skipping
// fields tagged "-" and those with no tag at all.
func dbTags(record any) map[string]string {
	tags := make(map[string]string)
	st := reflect.TypeOf(record)
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	for i := 0; i < st.NumField(); i++ {
		tag := st.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		tags[st.Field(i).Name] = tag
	}
	return tags
}

func columns(tags map[string]string) []any {
	cols := make([]any, 0, len(tags))
	for _, tag := range tags {
		cols = append(cols, tag)
	}
	return cols
}

// columnsAndValues returns the column names and corresponding values of record's non-zero
// fields, in matching order - the set of columns an insert or update should touch.
func columnsAndValues(record any) ([]string, []any) {
	v := reflect.ValueOf(record)
	st := v.Type()

	var cols []string
	var vals []any
	for i := 0; i < st.NumField(); i++ {
		tag := st.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		field := v.Field(i)
		if field.IsZero() {
			continue
		}
		cols = append(cols, tag)
		vals = append(vals, field.Interface())
	}
	return cols, vals
}

// Find retrieves the record of type T whose primary key equals key, or ErrNotFound if none
// exists.
func Find[T Model](ctx context.Context, pool Queryer, key any) (*T, error) {
	var record T
	tags := dbTags(record)

	sql, args, err := psql.Select(
		sm.Columns(columns(tags)...),
		sm.From(record.TableName()),
		sm.Where(psql.Quote(record.PrimaryKey()).EQ(psql.Arg(key))),
	).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query for %s: %w", record.TableName(), err)
	}

	rows, _ := pool.Query(ctx, sql, args...)
	found, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s: %w", record.TableName(), err)
	}
	return &found, nil
}

// FindAll retrieves every record of type T, or an empty slice if the table is empty.
func FindAll[T Model](ctx context.Context, pool Queryer) ([]T, error) {
	return Search[T](ctx, pool, nil)
}

// Search retrieves every record of type T matching expression, or every record when
// expression is nil.
func Search[T Model](ctx context.Context, pool Queryer, expression bob.Expression) ([]T, error) {
	var record T
	tags := dbTags(record)

	mods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(columns(tags)...),
		sm.From(record.TableName()),
	}
	if expression != nil {
		mods = append(mods, sm.Where(expression))
	}

	sql, args, err := psql.Select(mods...).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query for %s: %w", record.TableName(), err)
	}

	rows, _ := pool.Query(ctx, sql, args...)
	records, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", record.TableName(), err)
	}
	return records, nil
}

// Create inserts record and returns the stored row, including any column defaulted by the
// database (e.g. a generated primary key or timestamp).
func Create[T Model](ctx context.Context, pool Queryer, record T) (*T, error) {
	cols, vals := columnsAndValues(record)

	query := psql.Insert(im.Into(record.TableName()), im.Returning("*"))
	query.Expression.Columns = cols
	query.Apply(im.Values(psql.Arg(vals...)))

	sql, args, err := query.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query for %s: %w", record.TableName(), err)
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", record.TableName(), err)
	}
	inserted, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted %s row: %w", record.TableName(), err)
	}
	return &inserted, nil
}

// Update overwrites the non-zero columns of record for the row matching key, returning the
// stored row.
func Update[T Model](ctx context.Context, pool Queryer, key any, record T) (*T, error) {
	tags := dbTags(record)
	cols, vals := columnsAndValues(record)

	mods := []bob.Mod[*dialect.UpdateQuery]{
		um.Table(record.TableName()),
		um.Where(psql.Quote(record.PrimaryKey()).EQ(psql.Arg(key))),
		um.Returning(columns(tags)...),
	}
	for i, col := range cols {
		mods = append(mods, um.SetCol(col).ToArg(vals[i]))
	}

	sql, args, err := psql.Update(mods...).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query for %s: %w", record.TableName(), err)
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", record.TableName(), err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read updated %s row: %w", record.TableName(), err)
	}
	return &updated, nil
}

// Delete removes the row of type T matching key and reports how many rows were affected (0
// if none matched).
func Delete[T Model](ctx context.Context, pool Queryer, key any) (int64, error) {
	var record T
	sql, args, err := psql.Delete(
		dm.From(record.TableName()),
		dm.Where(psql.Quote(record.PrimaryKey()).EQ(psql.Arg(key))),
	).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query for %s: %w", record.TableName(), err)
	}

	result, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", record.TableName(), err)
	}
	return result.RowsAffected(), nil
}
