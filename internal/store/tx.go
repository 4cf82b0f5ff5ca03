package store

import (
	"context"
	"database/sql"
	"fmt"

	"liftlog/internal/apperr"
	"liftlog/internal/model"
)

// txKey marks a context as being inside a Write call. Nesting detection
// rides on the context so a repository helper deep in a call chain fails
// fast instead of deadlocking on the writer lock.
type txKey struct{}

// Write runs fn inside a single transaction. All mutations commit
// together or not at all; the first error from fn rolls everything back
// and is returned unchanged. Writers are serialized; calling Write from
// inside another Write (same context chain) fails with a
// TransactionError rather than silently serializing.
func (s *Store) Write(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if ctx.Value(txKey{}) != nil {
		return &apperr.TransactionError{Detail: "nested write: a transaction is already open on this connection"}
	}

	touched, err := s.write(ctx, fn)
	if err != nil {
		return err
	}
	s.listeners.notify(touched)
	return nil
}

func (s *Store) write(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (map[string]bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &Tx{s: s, tx: sqlTx, touched: make(map[string]bool)}
	defer sqlTx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tx.touched, nil
}

// Tx is the mutation handle passed to Write callbacks. It also exposes
// reads so a transaction can observe its own uncommitted writes.
type Tx struct {
	s       *Store
	tx      *sql.Tx
	touched map[string]bool
}

// Get returns the live record with the given id, seeing uncommitted
// writes of this transaction.
func (t *Tx) Get(ctx context.Context, table, id string) (Record, error) {
	return getRecord(ctx, t.tx, t.s.reg, table, id, false)
}

// GetAny returns the record regardless of sync status.
func (t *Tx) GetAny(ctx context.Context, table, id string) (Record, error) {
	return getRecord(ctx, t.tx, t.s.reg, table, id, true)
}

// Query runs a predicate query inside the transaction.
func (t *Tx) Query(ctx context.Context, table string, q Query) ([]Record, error) {
	return queryRecords(ctx, t.tx, t.s.reg, table, q)
}

// Count counts live records inside the transaction.
func (t *Tx) Count(ctx context.Context, table string, conds ...Cond) (int, error) {
	return countRecords(ctx, t.tx, t.s.reg, table, conds, false)
}

// Create inserts rec as a locally created record: its change marker is
// initialized and its status set to 'created'. rec must carry an id.
func (t *Tx) Create(ctx context.Context, table string, rec Record) error {
	if rec.ID() == "" {
		return fmt.Errorf("create into %s: record has no id", table)
	}
	rec = rec.Clone()
	rec["changed_at"] = model.NextMarker(0)
	rec["sync_status"] = string(model.StatusCreated)
	if err := insertRecord(ctx, t.tx, t.s.reg, table, rec); err != nil {
		return err
	}
	t.touched[table] = true
	return nil
}

// Update applies changes to the record and bumps its sync metadata: the
// change marker advances monotonically and the status moves to 'updated'
// unless the record is still 'created' (a never-pushed record stays
// created). Returns ErrNotFound for a missing or deleted record.
func (t *Tx) Update(ctx context.Context, table, id string, changes Record) error {
	cur, err := t.Get(ctx, table, id)
	if err != nil {
		return err
	}
	changes = changes.Clone()
	changes["changed_at"] = model.NextMarker(cur.Marker())
	if cur.Status() == model.StatusCreated {
		changes["sync_status"] = string(model.StatusCreated)
	} else {
		changes["sync_status"] = string(model.StatusUpdated)
	}
	if err := updateRecord(ctx, t.tx, t.s.reg, table, id, changes); err != nil {
		return err
	}
	t.touched[table] = true
	return nil
}

// Delete removes the record from the caller's point of view. A record
// that was never pushed ('created') is hard-deleted outright — the
// remote has never seen it, so there is nothing to announce. Any other
// record is marked 'deleted' and retained until a successful push
// purges it. Returns ErrNotFound for a missing or already deleted record.
func (t *Tx) Delete(ctx context.Context, table, id string) error {
	cur, err := t.Get(ctx, table, id)
	if err != nil {
		return err
	}
	if cur.Status() == model.StatusCreated {
		if err := deleteRow(ctx, t.tx, table, id); err != nil {
			return err
		}
	} else {
		changes := Record{
			"changed_at":  model.NextMarker(cur.Marker()),
			"sync_status": string(model.StatusDeleted),
		}
		if err := updateRecord(ctx, t.tx, t.s.reg, table, id, changes); err != nil {
			return err
		}
	}
	t.touched[table] = true
	return nil
}

// HardDelete removes the row permanently, whatever its status. Used for
// sync-driven deletions (the remote already cascaded server-side) and
// for purging acknowledged deletes. No error if the row does not exist.
func (t *Tx) HardDelete(ctx context.Context, table, id string) error {
	if _, err := checkTable(t.s.reg, table); err != nil {
		return err
	}
	if err := deleteRow(ctx, t.tx, table, id); err != nil {
		return err
	}
	t.touched[table] = true
	return nil
}

// PutSynced writes rec exactly as given with status 'synced', replacing
// any existing row with the same id. The change marker is taken from the
// record, not bumped: this is how resolved remote state and push
// acknowledgments are recorded without re-dirtying the row.
func (t *Tx) PutSynced(ctx context.Context, table string, rec Record) error {
	if rec.ID() == "" {
		return fmt.Errorf("put into %s: record has no id", table)
	}
	rec = rec.Clone()
	rec["sync_status"] = string(model.StatusSynced)
	if err := upsertRecord(ctx, t.tx, t.s.reg, table, rec); err != nil {
		return err
	}
	t.touched[table] = true
	return nil
}

// MarkStatus rewrites only the record's status tag, leaving the change
// marker untouched. Used by the push path to acknowledge records.
func (t *Tx) MarkStatus(ctx context.Context, table, id string, status model.SyncStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid sync status %q", status)
	}
	if _, err := checkTable(t.s.reg, table); err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET sync_status = ? WHERE id = ?", table)
	if _, err := t.tx.ExecContext(ctx, query, string(status), id); err != nil {
		return fmt.Errorf("failed to mark %s %s: %w", table, id, err)
	}
	t.touched[table] = true
	return nil
}

// GetState reads a sync_state value. Missing keys return "".
func (t *Tx) GetState(ctx context.Context, key string) (string, error) {
	return getState(ctx, t.tx, key)
}

// SetState writes a sync_state value.
func (t *Tx) SetState(ctx context.Context, key, value string) error {
	query := "INSERT INTO sync_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value"
	if _, err := t.tx.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// GetState reads a sync_state value outside a transaction.
func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	return getState(ctx, s.db, key)
}

func getState(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM sync_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}
