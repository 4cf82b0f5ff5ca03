package repo

import (
	"context"
	"time"

	"liftlog/internal/apperr"
	"liftlog/internal/auth"
	"liftlog/internal/model"
	"liftlog/internal/store"
)

// DayExerciseInput describes one exercise to place on a day.
type DayExerciseInput struct {
	ExerciseID      string `json:"exercise_id"`
	TargetSets      int    `json:"target_sets"`
	TargetReps      int    `json:"target_reps"`
	RestSecOverride *int   `json:"rest_sec_override,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (in DayExerciseInput) validate(dayID string) error {
	if in.ExerciseID == "" {
		return apperr.Validation(
			"an exercise must be selected",
			"empty exercise_id for day %s", dayID)
	}
	if in.TargetSets < 1 || in.TargetReps < 1 {
		return apperr.Validation(
			"target sets and reps must be at least 1",
			"non-positive targets for exercise %s on day %s: sets=%d reps=%d",
			in.ExerciseID, dayID, in.TargetSets, in.TargetReps)
	}
	return nil
}

// AddDayExercise places a single exercise on a day. It is the batch of
// one; all validation runs through the same path as AddDayExercises.
func (r *Repo) AddDayExercise(ctx context.Context, p auth.Principal, dayID string, in DayExerciseInput) (*model.PlanDayExercise, error) {
	created, err := r.AddDayExercises(ctx, p, dayID, []DayExerciseInput{in})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// ListDayExercises returns a day's exercises in order.
func (r *Repo) ListDayExercises(ctx context.Context, p auth.Principal, dayID string) ([]*model.PlanDayExercise, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if _, err := ownDay(ctx, r.s, p, dayID); err != nil {
		return nil, dbErr("list day exercises", err)
	}
	recs, err := r.s.Query(ctx, TablePlanDayExercises, store.Query{
		Conds:   []store.Cond{store.Eq("plan_day_id", dayID)},
		OrderBy: "order_index",
	})
	if err != nil {
		return nil, dbErr("list day exercises", err)
	}
	out := make([]*model.PlanDayExercise, 0, len(recs))
	for _, rec := range recs {
		out = append(out, dayExerciseFromRecord(rec))
	}
	return out, nil
}

// UpdateDayExercise changes the targets, rest override, or notes of a
// placed exercise. The exercise itself and its position stay put.
func (r *Repo) UpdateDayExercise(ctx context.Context, p auth.Principal, dayExerciseID string, in DayExerciseInput) (*model.PlanDayExercise, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		rec, err := tx.Get(ctx, TablePlanDayExercises, dayExerciseID)
		if err != nil {
			return err
		}
		dayID := strVal(rec["plan_day_id"])
		if _, err := ownDay(ctx, tx, p, dayID); err != nil {
			return err
		}
		check := in
		if check.ExerciseID == "" {
			check.ExerciseID = strVal(rec["exercise_id"])
		}
		if err := check.validate(dayID); err != nil {
			return err
		}
		if check.ExerciseID != strVal(rec["exercise_id"]) {
			return apperr.Validation(
				"the exercise of a placement cannot change",
				"update attempted to swap exercise %s for %s on row %s",
				strVal(rec["exercise_id"]), check.ExerciseID, dayExerciseID)
		}
		return tx.Update(ctx, TablePlanDayExercises, dayExerciseID, store.Record{
			"target_sets":       int64(in.TargetSets),
			"target_reps":       int64(in.TargetReps),
			"rest_sec_override": nullableInt(in.RestSecOverride),
			"notes":             nullableStr(in.Notes),
			"updated_at":        fmtTime(time.Now()),
		})
	})
	if err != nil {
		return nil, dbErr("update day exercise", err)
	}
	rec, err := r.s.Get(ctx, TablePlanDayExercises, dayExerciseID)
	if err != nil {
		return nil, dbErr("update day exercise", err)
	}
	return dayExerciseFromRecord(rec), nil
}

// RemoveDayExercise deletes a placed exercise and closes the gap in the
// day's order so order_index stays dense.
func (r *Repo) RemoveDayExercise(ctx context.Context, p auth.Principal, dayExerciseID string) error {
	if err := requireUser(p); err != nil {
		return err
	}
	return dbErr("remove day exercise", r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		rec, err := tx.Get(ctx, TablePlanDayExercises, dayExerciseID)
		if err != nil {
			return err
		}
		dayID := strVal(rec["plan_day_id"])
		if _, err := ownDay(ctx, tx, p, dayID); err != nil {
			return err
		}
		if err := tx.Delete(ctx, TablePlanDayExercises, dayExerciseID); err != nil {
			return err
		}
		remaining, err := tx.Query(ctx, TablePlanDayExercises, store.Query{
			Conds:   []store.Cond{store.Eq("plan_day_id", dayID)},
			OrderBy: "order_index",
		})
		if err != nil {
			return err
		}
		return resequence(ctx, tx, TablePlanDayExercises, remaining)
	}))
}

// ReorderDayExercises rewrites the order of a day's exercises. ids must
// be a permutation of the day's current placement IDs.
func (r *Repo) ReorderDayExercises(ctx context.Context, p auth.Principal, dayID string, ids []string) error {
	if err := requireUser(p); err != nil {
		return err
	}
	return dbErr("reorder day exercises", r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := ownDay(ctx, tx, p, dayID); err != nil {
			return err
		}
		current, err := tx.Query(ctx, TablePlanDayExercises, store.Query{
			Conds: []store.Cond{store.Eq("plan_day_id", dayID)},
		})
		if err != nil {
			return err
		}
		if err := checkPermutation(current, ids, "exercise"); err != nil {
			return err
		}
		now := fmtTime(time.Now())
		for i, id := range ids {
			if err := tx.Update(ctx, TablePlanDayExercises, id, store.Record{
				"order_index": int64(i),
				"updated_at":  now,
			}); err != nil {
				return err
			}
		}
		return nil
	}))
}

// ExerciseCountsByDay returns the number of exercises on each of the
// given days in one query. Days with no exercises map to zero.
func (r *Repo) ExerciseCountsByDay(ctx context.Context, p auth.Principal, planID string, dayIDs []string) (map[string]int, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if _, err := ownPlan(ctx, r.s, p, planID); err != nil {
		return nil, dbErr("count day exercises", err)
	}
	counts := make(map[string]int, len(dayIDs))
	for _, id := range dayIDs {
		counts[id] = 0
	}
	if len(dayIDs) == 0 {
		return counts, nil
	}
	vals := make([]any, len(dayIDs))
	for i, id := range dayIDs {
		vals[i] = id
	}
	recs, err := r.s.Query(ctx, TablePlanDayExercises, store.Query{
		Conds: []store.Cond{store.In("plan_day_id", vals...)},
	})
	if err != nil {
		return nil, dbErr("count day exercises", err)
	}
	for _, rec := range recs {
		counts[strVal(rec["plan_day_id"])]++
	}
	return counts, nil
}
