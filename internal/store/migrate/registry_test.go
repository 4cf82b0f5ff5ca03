package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liftlog/internal/apperr"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func simpleTable(name string) CreateTable {
	return CreateTable{
		Name: name,
		Columns: []Column{
			{Name: "id", Type: Text},
			{Name: "name", Type: Text},
		},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name       string
		migrations []Migration
		wantErr    string
	}{
		{
			name:       "non-positive version",
			migrations: []Migration{{Version: 0, Steps: []Step{simpleTable("a")}}},
			wantErr:    "must be positive",
		},
		{
			name: "duplicate version",
			migrations: []Migration{
				{Version: 1, Steps: []Step{simpleTable("a")}},
				{Version: 1, Steps: []Step{simpleTable("b")}},
			},
			wantErr: "duplicate migration version",
		},
		{
			name: "unknown column type",
			migrations: []Migration{{Version: 1, Steps: []Step{
				CreateTable{Name: "a", Columns: []Column{{Name: "id", Type: "VARCHAR"}}},
			}}},
			wantErr: "unknown type",
		},
		{
			name: "table created twice",
			migrations: []Migration{
				{Version: 1, Steps: []Step{simpleTable("a")}},
				{Version: 2, Steps: []Step{simpleTable("a")}},
			},
			wantErr: "created twice",
		},
		{
			name: "duplicate column",
			migrations: []Migration{{Version: 1, Steps: []Step{
				CreateTable{Name: "a", Columns: []Column{
					{Name: "id", Type: Text},
					{Name: "id", Type: Text},
				}},
			}}},
			wantErr: "twice",
		},
		{
			name: "add column to missing table",
			migrations: []Migration{{Version: 1, Steps: []Step{
				AddColumns{Table: "ghost", Columns: []Column{{Name: "x", Type: Text}}},
			}}},
			wantErr: "non-existent table",
		},
		{
			name: "not null without default",
			migrations: []Migration{
				{Version: 1, Steps: []Step{simpleTable("a")}},
				{Version: 2, Steps: []Step{
					AddColumns{Table: "a", Columns: []Column{{Name: "x", Type: Integer}}},
				}},
			},
			wantErr: "requires a default",
		},
		{
			name: "index on unknown column",
			migrations: []Migration{{Version: 1, Steps: []Step{
				CreateTable{
					Name:    "a",
					Columns: []Column{{Name: "id", Type: Text}},
					Indexes: []Index{{Name: "idx_a_x", Columns: []string{"x"}}},
				},
			}}},
			wantErr: "unknown column",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.migrations...)
			require.Error(t, err)
			var serr *apperr.SchemaError
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRegistryColumnsInDeclarationOrder(t *testing.T) {
	reg, err := NewRegistry(
		Migration{Version: 1, Steps: []Step{simpleTable("a")}},
		Migration{Version: 2, Steps: []Step{
			AddColumns{Table: "a", Columns: []Column{{Name: "extra", Type: Real, Nullable: true}}},
		}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "extra"}, reg.Columns("a"))
	assert.Nil(t, reg.Columns("ghost"))
	assert.Equal(t, 2, reg.CurrentVersion())
	assert.Equal(t, []string{"a"}, reg.Tables())
}

func TestRegistryOrdersVersions(t *testing.T) {
	// Argument order must not matter.
	reg, err := NewRegistry(
		Migration{Version: 2, Steps: []Step{
			AddColumns{Table: "a", Columns: []Column{{Name: "x", Type: Text, Nullable: true}}},
		}},
		Migration{Version: 1, Steps: []Step{simpleTable("a")}},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.CurrentVersion())
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplyFreshAndIdempotent(t *testing.T) {
	reg, err := NewRegistry(
		Migration{Version: 1, Steps: []Step{simpleTable("a")}},
		Migration{Version: 2},
		Migration{Version: 3, Steps: []Step{
			AddColumns{Table: "a", Columns: []Column{{Name: "x", Type: Integer, Default: "0"}}},
		}},
	)
	require.NoError(t, err)

	db := openDB(t)
	ctx := context.Background()
	require.NoError(t, reg.Apply(ctx, db, nil))

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, 3, version)

	// All declared columns exist.
	_, err = db.Exec("INSERT INTO a (id, name, x) VALUES ('1', 'one', 7)")
	require.NoError(t, err)

	// Re-applying is a no-op.
	require.NoError(t, reg.Apply(ctx, db, nil))
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM a").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestApplyFromIntermediateVersion(t *testing.T) {
	v1 := Migration{Version: 1, Steps: []Step{simpleTable("a")}}
	v2 := Migration{Version: 2, Steps: []Step{
		AddColumns{Table: "a", Columns: []Column{{Name: "x", Type: Integer, Default: "0"}}},
	}}

	db := openDB(t)
	ctx := context.Background()

	regV1, err := NewRegistry(v1)
	require.NoError(t, err)
	require.NoError(t, regV1.Apply(ctx, db, nil))

	// Rows written at v1 survive the upgrade and see the new default.
	_, err = db.Exec("INSERT INTO a (id, name) VALUES ('1', 'one')")
	require.NoError(t, err)

	regV2, err := NewRegistry(v1, v2)
	require.NoError(t, err)
	require.NoError(t, regV2.Apply(ctx, db, nil))

	var x int
	require.NoError(t, db.QueryRow("SELECT x FROM a WHERE id = '1'").Scan(&x))
	assert.Equal(t, 0, x)
}

func TestApplyRejectsNewerDatabase(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	_, err := db.Exec("PRAGMA user_version = 9")
	require.NoError(t, err)

	reg, err := NewRegistry(Migration{Version: 1, Steps: []Step{simpleTable("a")}})
	require.NoError(t, err)

	err = reg.Apply(ctx, db, nil)
	require.Error(t, err)
	var serr *apperr.SchemaError
	assert.ErrorAs(t, err, &serr)
}

func TestAppRegistryValid(t *testing.T) {
	reg := App()
	assert.Positive(t, reg.CurrentVersion())
	for _, table := range reg.Tables() {
		assert.NotEmpty(t, reg.Columns(table))
	}
	// Syncable tables all carry the sync metadata columns.
	assert.Contains(t, reg.Columns("workout_plans"), "sync_status")
	assert.Contains(t, reg.Columns("workout_plans"), "changed_at")
	assert.NotContains(t, reg.Columns("sync_state"), "sync_status")
}
