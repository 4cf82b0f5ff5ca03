package repo

import (
	"context"
	"fmt"
	"time"

	"liftlog/internal/apperr"
	"liftlog/internal/auth"
	"liftlog/internal/model"
	"liftlog/internal/store"
)

// CreatePlanDay appends a day to the plan. The new day takes the next
// order index; the 14-day cap is checked inside the same transaction
// that writes, so concurrent appends cannot overshoot it.
func (r *Repo) CreatePlanDay(ctx context.Context, p auth.Principal, planID, name, dayLabel string) (*model.PlanDay, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	id := newID()
	trimmed, err := model.ValidateName(name, model.MaxDayNameLen, "day", id)
	if err != nil {
		return nil, err
	}
	err = r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := ownPlan(ctx, tx, p, planID); err != nil {
			return err
		}
		count, err := tx.Count(ctx, TablePlanDays, store.Eq("plan_id", planID))
		if err != nil {
			return err
		}
		if count >= MaxDaysPerPlan {
			return &apperr.LimitError{
				Message:   fmt.Sprintf("a plan holds at most %d days", MaxDaysPerPlan),
				Limit:     MaxDaysPerPlan,
				Requested: 1,
				Remaining: 0,
			}
		}
		now := fmtTime(time.Now())
		return tx.Create(ctx, TablePlanDays, store.Record{
			"id":          id,
			"plan_id":     planID,
			"name":        trimmed,
			"day_label":   nullableStr(dayLabel),
			"order_index": int64(count),
			"created_at":  now,
			"updated_at":  now,
		})
	})
	if err != nil {
		return nil, dbErr("create plan day", err)
	}
	rec, err := r.s.Get(ctx, TablePlanDays, id)
	if err != nil {
		return nil, dbErr("create plan day", err)
	}
	return dayFromRecord(rec), nil
}

// GetPlanDay returns a day of a plan owned by the principal.
func (r *Repo) GetPlanDay(ctx context.Context, p auth.Principal, dayID string) (*model.PlanDay, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	rec, err := ownDay(ctx, r.s, p, dayID)
	if err != nil {
		return nil, dbErr("get plan day", err)
	}
	return dayFromRecord(rec), nil
}

// ListPlanDays returns a plan's days in order.
func (r *Repo) ListPlanDays(ctx context.Context, p auth.Principal, planID string) ([]*model.PlanDay, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if _, err := ownPlan(ctx, r.s, p, planID); err != nil {
		return nil, dbErr("list plan days", err)
	}
	recs, err := r.s.Query(ctx, TablePlanDays, store.Query{
		Conds:   []store.Cond{store.Eq("plan_id", planID)},
		OrderBy: "order_index",
	})
	if err != nil {
		return nil, dbErr("list plan days", err)
	}
	days := make([]*model.PlanDay, 0, len(recs))
	for _, rec := range recs {
		days = append(days, dayFromRecord(rec))
	}
	return days, nil
}

// RenamePlanDay changes a day's name and optional label.
func (r *Repo) RenamePlanDay(ctx context.Context, p auth.Principal, dayID, name, dayLabel string) (*model.PlanDay, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	trimmed, err := model.ValidateName(name, model.MaxDayNameLen, "day", dayID)
	if err != nil {
		return nil, err
	}
	err = r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := ownDay(ctx, tx, p, dayID); err != nil {
			return err
		}
		return tx.Update(ctx, TablePlanDays, dayID, store.Record{
			"name":       trimmed,
			"day_label":  nullableStr(dayLabel),
			"updated_at": fmtTime(time.Now()),
		})
	})
	if err != nil {
		return nil, dbErr("rename plan day", err)
	}
	return r.GetPlanDay(ctx, p, dayID)
}

// ReorderPlanDays rewrites the order of a plan's days. dayIDs must be a
// permutation of the plan's current day IDs; anything else is rejected
// before a single row is touched.
func (r *Repo) ReorderPlanDays(ctx context.Context, p auth.Principal, planID string, dayIDs []string) error {
	if err := requireUser(p); err != nil {
		return err
	}
	return dbErr("reorder plan days", r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := ownPlan(ctx, tx, p, planID); err != nil {
			return err
		}
		current, err := tx.Query(ctx, TablePlanDays, store.Query{
			Conds: []store.Cond{store.Eq("plan_id", planID)},
		})
		if err != nil {
			return err
		}
		if err := checkPermutation(current, dayIDs, "day"); err != nil {
			return err
		}
		now := fmtTime(time.Now())
		for i, dayID := range dayIDs {
			if err := tx.Update(ctx, TablePlanDays, dayID, store.Record{
				"order_index": int64(i),
				"updated_at":  now,
			}); err != nil {
				return err
			}
		}
		return nil
	}))
}

// checkPermutation verifies ids is exactly the set of IDs in current.
func checkPermutation(current []store.Record, ids []string, what string) error {
	if len(ids) != len(current) {
		return apperr.Validation(
			"reorder must list every "+what+" exactly once",
			"reorder got %d %s ids, table holds %d", len(ids), what, len(current))
	}
	have := make(map[string]bool, len(current))
	for _, rec := range current {
		have[rec.ID()] = true
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !have[id] {
			return apperr.Validation(
				"reorder refers to an unknown "+what,
				"unknown %s id in reorder: %s", what, id)
		}
		if seen[id] {
			return apperr.Validation(
				"reorder lists a "+what+" twice",
				"duplicate %s id in reorder: %s", what, id)
		}
		seen[id] = true
	}
	return nil
}

// resequence rewrites order_index densely from zero over recs, which
// must already be sorted by the old order.
func resequence(ctx context.Context, tx *store.Tx, table string, recs []store.Record) error {
	now := fmtTime(time.Now())
	for i, rec := range recs {
		if intVal(rec["order_index"]) == i {
			continue
		}
		if err := tx.Update(ctx, table, rec.ID(), store.Record{
			"order_index": int64(i),
			"updated_at":  now,
		}); err != nil {
			return err
		}
	}
	return nil
}
