package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"liftlog/internal/model"
	"liftlog/internal/store/migrate"
)

// Record is one row of a typed table, keyed by column name. Values are
// the driver's natural Go types (string, int64, float64, nil); []byte
// from the driver is converted to string on scan.
type Record map[string]any

// ID returns the record's primary key.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Marker returns the record's change marker.
func (r Record) Marker() int64 {
	switch v := r["changed_at"].(type) {
	case int64:
		return v
	case float64:
		// JSON-decoded records carry numbers as float64.
		return int64(v)
	}
	return 0
}

// Status returns the record's sync status tag.
func (r Record) Status() model.SyncStatus {
	st, _ := r["sync_status"].(string)
	return model.SyncStatus(st)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func checkTable(reg *migrate.Registry, table string) ([]string, error) {
	cols := reg.Columns(table)
	if cols == nil {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return cols, nil
}

func checkColumn(cols []string, name string) error {
	for _, c := range cols {
		if c == name {
			return nil
		}
	}
	return fmt.Errorf("unknown column %q", name)
}

func getRecord(ctx context.Context, q querier, reg *migrate.Registry, table, id string, includeDeleted bool) (Record, error) {
	cols, err := checkTable(reg, table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(cols, ", "), table)
	if !includeDeleted && checkColumn(cols, "sync_status") == nil {
		query += " AND sync_status != 'deleted'"
	}
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", table, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get %s %s: %w", table, id, err)
		}
		return nil, ErrNotFound
	}
	return scanRecord(rows, cols)
}

func queryRecords(ctx context.Context, q querier, reg *migrate.Registry, table string, spec Query) ([]Record, error) {
	cols, err := checkTable(reg, table)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(cols, spec.Conds, spec.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(cols, ", "), table, where)
	if spec.OrderBy != "" {
		if err := checkColumn(cols, spec.OrderBy); err != nil {
			return nil, err
		}
		query += " ORDER BY " + spec.OrderBy
		if spec.Desc {
			query += " DESC"
		}
	}
	if spec.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, spec.Limit)
	}
	if spec.Offset > 0 {
		if spec.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, spec.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return out, nil
}

func countRecords(ctx context.Context, q querier, reg *migrate.Registry, table string, conds []Cond, includeDeleted bool) (int, error) {
	cols, err := checkTable(reg, table)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(cols, conds, includeDeleted)
	if err != nil {
		return 0, err
	}
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where)
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

func insertRecord(ctx context.Context, q querier, reg *migrate.Registry, table string, rec Record) error {
	cols, err := checkTable(reg, table)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(rec))
	marks := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec))
	// Iterate registry order so generated SQL is stable.
	for _, c := range cols {
		v, ok := rec[c]
		if !ok {
			continue
		}
		names = append(names, c)
		marks = append(marks, "?")
		args = append(args, v)
	}
	for k := range rec {
		if err := checkColumn(cols, k); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func updateRecord(ctx context.Context, q querier, reg *migrate.Registry, table, id string, changes Record) error {
	cols, err := checkTable(reg, table)
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(changes))
	args := make([]any, 0, len(changes)+1)
	for _, c := range cols {
		v, ok := changes[c]
		if !ok || c == "id" {
			continue
		}
		sets = append(sets, c+" = ?")
		args = append(args, v)
	}
	for k := range changes {
		if err := checkColumn(cols, k); err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", table, id, err)
	}
	return nil
}

func upsertRecord(ctx context.Context, q querier, reg *migrate.Registry, table string, rec Record) error {
	cols, err := checkTable(reg, table)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(rec))
	marks := make([]string, 0, len(rec))
	sets := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec))
	for _, c := range cols {
		v, ok := rec[c]
		if !ok {
			continue
		}
		names = append(names, c)
		marks = append(marks, "?")
		args = append(args, v)
		if c != "id" {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	for k := range rec {
		if err := checkColumn(cols, k); err != nil {
			return fmt.Errorf("upsert into %s: %w", table, err)
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		table, strings.Join(names, ", "), strings.Join(marks, ", "), strings.Join(sets, ", "))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

func deleteRow(ctx context.Context, q querier, table, id string) error {
	if _, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", table, id, err)
	}
	return nil
}

func scanRecord(rows *sql.Rows, cols []string) (Record, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	rec := make(Record, len(cols))
	for i, c := range cols {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[c] = v
	}
	return rec, nil
}
