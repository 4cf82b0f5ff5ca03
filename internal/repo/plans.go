package repo

import (
	"context"
	"time"

	"liftlog/internal/auth"
	"liftlog/internal/model"
	"liftlog/internal/store"
)

// CreatePlan creates an inactive plan with the given name. The name is
// trimmed and length-checked before any write happens.
func (r *Repo) CreatePlan(ctx context.Context, p auth.Principal, name string) (*model.WorkoutPlan, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	id := newID()
	trimmed, err := model.ValidateName(name, model.MaxPlanNameLen, "plan", id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	err = r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		return tx.Create(ctx, TableWorkoutPlans, store.Record{
			"id":         id,
			"user_id":    p.UserID,
			"name":       trimmed,
			"is_active":  int64(0),
			"cover_url":  nil,
			"created_at": fmtTime(now),
			"updated_at": fmtTime(now),
		})
	})
	if err != nil {
		return nil, dbErr("create plan", err)
	}
	r.logger.Printf("created plan %s (%q)", id, trimmed)
	return r.GetPlan(ctx, p, id)
}

// GetPlan returns a plan owned by the principal.
func (r *Repo) GetPlan(ctx context.Context, p auth.Principal, planID string) (*model.WorkoutPlan, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	rec, err := ownPlan(ctx, r.s, p, planID)
	if err != nil {
		return nil, dbErr("get plan", err)
	}
	return planFromRecord(rec), nil
}

// ListPlans returns the principal's plans, newest first.
func (r *Repo) ListPlans(ctx context.Context, p auth.Principal) ([]*model.WorkoutPlan, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	recs, err := r.s.Query(ctx, TableWorkoutPlans, store.Query{
		Conds:   []store.Cond{store.Eq("user_id", p.UserID)},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		return nil, dbErr("list plans", err)
	}
	plans := make([]*model.WorkoutPlan, 0, len(recs))
	for _, rec := range recs {
		plans = append(plans, planFromRecord(rec))
	}
	return plans, nil
}

// RenamePlan changes a plan's name.
func (r *Repo) RenamePlan(ctx context.Context, p auth.Principal, planID, name string) (*model.WorkoutPlan, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	trimmed, err := model.ValidateName(name, model.MaxPlanNameLen, "plan", planID)
	if err != nil {
		return nil, err
	}
	err = r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := ownPlan(ctx, tx, p, planID); err != nil {
			return err
		}
		return tx.Update(ctx, TableWorkoutPlans, planID, store.Record{
			"name":       trimmed,
			"updated_at": fmtTime(time.Now()),
		})
	})
	if err != nil {
		return nil, dbErr("rename plan", err)
	}
	return r.GetPlan(ctx, p, planID)
}

// SetActivePlan marks the given plan active and deactivates any other
// active plan of the same user. Both writes land in one transaction so
// no reader ever observes two active plans.
func (r *Repo) SetActivePlan(ctx context.Context, p auth.Principal, planID string) error {
	if err := requireUser(p); err != nil {
		return err
	}
	return dbErr("set active plan", r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		rec, err := ownPlan(ctx, tx, p, planID)
		if err != nil {
			return err
		}
		if intToBool(rec["is_active"]) {
			return nil
		}
		active, err := tx.Query(ctx, TableWorkoutPlans, store.Query{
			Conds: []store.Cond{
				store.Eq("user_id", p.UserID),
				store.Eq("is_active", int64(1)),
			},
		})
		if err != nil {
			return err
		}
		now := fmtTime(time.Now())
		for _, other := range active {
			if err := tx.Update(ctx, TableWorkoutPlans, other.ID(), store.Record{
				"is_active":  int64(0),
				"updated_at": now,
			}); err != nil {
				return err
			}
		}
		return tx.Update(ctx, TableWorkoutPlans, planID, store.Record{
			"is_active":  int64(1),
			"updated_at": now,
		})
	}))
}

// ActivePlan returns the principal's active plan, or store.ErrNotFound
// when no plan is active.
func (r *Repo) ActivePlan(ctx context.Context, p auth.Principal) (*model.WorkoutPlan, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	recs, err := r.s.Query(ctx, TableWorkoutPlans, store.Query{
		Conds: []store.Cond{
			store.Eq("user_id", p.UserID),
			store.Eq("is_active", int64(1)),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, dbErr("get active plan", err)
	}
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	return planFromRecord(recs[0]), nil
}
