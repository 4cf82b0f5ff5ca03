package sync

import (
	"context"
	"errors"

	"liftlog/internal/model"
	"liftlog/internal/repo"
	"liftlog/internal/store"
)

// Tables lists the syncable tables in parent-before-child order, so a
// receiver applying creations in order never sees a child without its
// parent. Deletions are applied in reverse.
var Tables = []string{
	repo.TableUsers,
	repo.TableExercises,
	repo.TableWorkoutPlans,
	repo.TablePlanDays,
	repo.TablePlanDayExercises,
	repo.TableWorkouts,
	repo.TableWorkoutExercises,
	repo.TableExerciseSets,
}

// wireRecord strips the local-only sync_status column; the marker
// travels, the status is local bookkeeping.
func wireRecord(rec store.Record) store.Record {
	out := rec.Clone()
	delete(out, "sync_status")
	return out
}

// collectDirty gathers every dirty record into wire buckets, one query
// per table.
func collectDirty(ctx context.Context, s *store.Store) (Changes, error) {
	changes := make(Changes, len(Tables))
	for _, table := range Tables {
		recs, err := s.Query(ctx, table, store.Query{
			Conds: []store.Cond{
				store.Neq("sync_status", string(model.StatusSynced)),
			},
			IncludeDeleted: true,
			OrderBy:        "changed_at",
		})
		if err != nil {
			return nil, err
		}
		var tc TableChanges
		for _, rec := range recs {
			switch rec.Status() {
			case model.StatusCreated:
				tc.Created = append(tc.Created, wireRecord(rec))
			case model.StatusUpdated:
				tc.Updated = append(tc.Updated, wireRecord(rec))
			case model.StatusDeleted:
				tc.Deleted = append(tc.Deleted, rec.ID())
			}
		}
		if !tc.Empty() {
			changes[table] = tc
		}
	}
	return changes, nil
}

// markPushed settles the pushed records after a successful push: dirty
// rows whose marker has not moved since the snapshot become synced,
// and acknowledged deletions are purged. Rows mutated again while the
// push was in flight stay dirty for the next cycle.
func markPushed(ctx context.Context, s *store.Store, pushed Changes) error {
	return s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		for table, tc := range pushed {
			for _, rec := range append(append([]store.Record{}, tc.Created...), tc.Updated...) {
				cur, err := tx.GetAny(ctx, table, rec.ID())
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					return err
				}
				if cur.Marker() != rec.Marker() {
					continue
				}
				if err := tx.MarkStatus(ctx, table, rec.ID(), model.StatusSynced); err != nil {
					return err
				}
			}
			for _, id := range tc.Deleted {
				if err := tx.HardDelete(ctx, table, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
