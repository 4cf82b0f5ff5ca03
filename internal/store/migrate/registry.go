// Package migrate declares table layouts per schema version and applies
// the ordered upgrade steps that bring a database file to the current
// version.
//
// The registry is validated when built: an unknown column type, a step
// targeting a table that no earlier version created, or a duplicate
// column is a SchemaError at load time, never a deferred query failure.
// Applying the full ordered sequence from version 0 produces the same
// final schema as applying it from any intermediate version forward.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"

	"liftlog/internal/apperr"
)

// ColumnType is the storage class of a column.
type ColumnType string

const (
	Text    ColumnType = "TEXT"
	Integer ColumnType = "INTEGER"
	Real    ColumnType = "REAL"
	Blob    ColumnType = "BLOB"
)

func (t ColumnType) valid() bool {
	switch t {
	case Text, Integer, Real, Blob:
		return true
	}
	return false
}

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	// Default is a literal SQL default expression. Required when adding a
	// NOT NULL column to an existing table.
	Default string
}

func (c Column) def() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(string(c.Type))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

// Index describes a secondary index created together with its table.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Step is one migration step: either a CreateTable or an AddColumns.
type Step interface {
	// check validates the step against the schema built so far and
	// extends it. schema maps table name to its column set.
	check(schema map[string]map[string]bool) error
	// statements returns the SQL to execute for this step.
	statements() []string
}

// CreateTable creates a new table. The first column is the primary key.
type CreateTable struct {
	Name    string
	Columns []Column
	Indexes []Index
}

func (s CreateTable) check(schema map[string]map[string]bool) error {
	if s.Name == "" {
		return apperr.Schema("create table with empty name")
	}
	if _, ok := schema[s.Name]; ok {
		return apperr.Schema("table %s created twice", s.Name)
	}
	if len(s.Columns) == 0 {
		return apperr.Schema("table %s has no columns", s.Name)
	}
	cols := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if !c.Type.valid() {
			return apperr.Schema("table %s column %s has unknown type %q", s.Name, c.Name, c.Type)
		}
		if cols[c.Name] {
			return apperr.Schema("table %s declares column %s twice", s.Name, c.Name)
		}
		cols[c.Name] = true
	}
	for _, idx := range s.Indexes {
		for _, ic := range idx.Columns {
			if !cols[ic] {
				return apperr.Schema("index %s on %s references unknown column %s", idx.Name, s.Name, ic)
			}
		}
	}
	schema[s.Name] = cols
	return nil
}

func (s CreateTable) statements() []string {
	defs := make([]string, 0, len(s.Columns))
	for i, c := range s.Columns {
		d := c.def()
		if i == 0 {
			d += " PRIMARY KEY"
		}
		defs = append(defs, "\t"+d)
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n%s\n)", s.Name, strings.Join(defs, ",\n"))}
	for _, idx := range s.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)",
			unique, idx.Name, s.Name, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}

// AddColumns appends columns to an existing table.
type AddColumns struct {
	Table   string
	Columns []Column
}

func (s AddColumns) check(schema map[string]map[string]bool) error {
	cols, ok := schema[s.Table]
	if !ok {
		return apperr.Schema("add column targets non-existent table %s", s.Table)
	}
	if len(s.Columns) == 0 {
		return apperr.Schema("add column step on %s has no columns", s.Table)
	}
	for _, c := range s.Columns {
		if !c.Type.valid() {
			return apperr.Schema("table %s column %s has unknown type %q", s.Table, c.Name, c.Type)
		}
		if cols[c.Name] {
			return apperr.Schema("table %s already has column %s", s.Table, c.Name)
		}
		if !c.Nullable && c.Default == "" {
			return apperr.Schema("adding NOT NULL column %s.%s requires a default", s.Table, c.Name)
		}
		cols[c.Name] = true
	}
	return nil
}

func (s AddColumns) statements() []string {
	stmts := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.Table, c.def()))
	}
	return stmts
}

// Migration is the ordered set of steps for one schema version.
// A version with no steps is a valid placeholder.
type Migration struct {
	Version int
	Steps   []Step
}

// Registry holds the validated, version-ordered migration sequence.
type Registry struct {
	migrations []Migration
	tables     map[string][]string // table -> column names in declaration order
}

// NewRegistry validates the migrations and returns a Registry.
// Versions must be unique and positive; they are applied in ascending
// order regardless of argument order.
func NewRegistry(migrations ...Migration) (*Registry, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	seen := make(map[int]bool)
	schema := make(map[string]map[string]bool)
	tables := make(map[string][]string)
	for _, m := range sorted {
		if m.Version <= 0 {
			return nil, apperr.Schema("migration version must be positive, got %d", m.Version)
		}
		if seen[m.Version] {
			return nil, apperr.Schema("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
		for _, step := range m.Steps {
			if err := step.check(schema); err != nil {
				return nil, err
			}
			switch s := step.(type) {
			case CreateTable:
				for _, c := range s.Columns {
					tables[s.Name] = append(tables[s.Name], c.Name)
				}
			case AddColumns:
				for _, c := range s.Columns {
					tables[s.Table] = append(tables[s.Table], c.Name)
				}
			}
		}
	}
	return &Registry{migrations: sorted, tables: tables}, nil
}

// CurrentVersion returns the highest registered schema version.
func (r *Registry) CurrentVersion() int {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

// Tables returns the names of all tables in the final schema, sorted.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Columns returns the column names of a table in declaration order, or
// nil if the table does not exist in the final schema.
func (r *Registry) Columns(table string) []string {
	return r.tables[table]
}

// Apply brings the database from its recorded version (PRAGMA
// user_version) to the current version. Each version is applied in its
// own transaction; a failure leaves the database at the last fully
// applied version.
func (r *Registry) Apply(ctx context.Context, db *sql.DB, logger *log.Logger) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current > r.CurrentVersion() {
		return apperr.Schema("database version %d is newer than registry version %d", current, r.CurrentVersion())
	}

	for _, m := range r.migrations {
		if m.Version <= current {
			continue
		}
		if err := r.applyOne(ctx, db, m); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", m.Version, err)
		}
		if logger != nil {
			logger.Printf("migrated schema to version %d (%d steps)", m.Version, len(m.Steps))
		}
	}
	return nil
}

func (r *Registry) applyOne(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, step := range m.Steps {
		for _, stmt := range step.statements() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("step %q: %w", stmt, err)
			}
		}
	}
	// PRAGMA user_version does not support bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}
