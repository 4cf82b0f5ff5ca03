package sync

import (
	"context"
	"errors"
	"log"

	"liftlog/internal/model"
	"liftlog/internal/store"
)

// applyPulled folds remote changes into the local store in one
// transaction. Resolution is whole-record last-write-wins on the
// change marker:
//
//   - no local row, or local row is clean: the remote record lands as
//     synced.
//   - local row is dirty with an older marker: the remote record wins
//     and replaces it, clearing the dirty state.
//   - local row is dirty with a newer or equal marker: the local row
//     wins; the remote record is dropped and the local edit pushes
//     later this cycle.
//
// Remote deletions are unconditional: a deleted id removes the local
// row outright, dirty or not, because the tombstone carries no marker
// to compare against. Creations apply parent-first, deletions
// child-first, so ordering never fabricates an orphan.
func applyPulled(ctx context.Context, s *store.Store, logger *log.Logger, changes Changes) error {
	return s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		for _, table := range Tables {
			tc, ok := changes[table]
			if !ok {
				continue
			}
			for _, rec := range append(append([]store.Record{}, tc.Created...), tc.Updated...) {
				if err := applyRemoteUpsert(ctx, tx, logger, table, rec); err != nil {
					return err
				}
			}
		}
		for i := len(Tables) - 1; i >= 0; i-- {
			table := Tables[i]
			tc, ok := changes[table]
			if !ok {
				continue
			}
			for _, id := range tc.Deleted {
				if err := applyRemoteDelete(ctx, tx, logger, table, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func applyRemoteUpsert(ctx context.Context, tx *store.Tx, logger *log.Logger, table string, remote store.Record) error {
	local, err := tx.GetAny(ctx, table, remote.ID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return tx.PutSynced(ctx, table, remote)
		}
		return err
	}
	if local.Status().IsDirty() && local.Marker() >= remote.Marker() {
		logger.Printf("conflict on %s/%s: local marker %d >= remote %d, keeping local",
			table, remote.ID(), local.Marker(), remote.Marker())
		return nil
	}
	return tx.PutSynced(ctx, table, remote)
}

func applyRemoteDelete(ctx context.Context, tx *store.Tx, logger *log.Logger, table, id string) error {
	local, err := tx.GetAny(ctx, table, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if local.Status().IsDirty() && local.Status() != model.StatusDeleted {
		logger.Printf("conflict on %s/%s: remote deleted, discarding local edit", table, id)
	}
	return tx.HardDelete(ctx, table, id)
}
