package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"liftlog/internal/apperr"
	"liftlog/internal/auth"
	"liftlog/internal/model"
	"liftlog/internal/store"
)

// AddDayExercises places several exercises on a day in one transaction.
// The whole batch is validated before any row is written: duplicate
// exercises (within the batch or against the day) and the per-day cap
// both reject the batch with zero writes.
func (r *Repo) AddDayExercises(ctx context.Context, p auth.Principal, dayID string, inputs []DayExerciseInput) ([]*model.PlanDayExercise, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperr.Validation(
			"select at least one exercise to add",
			"empty batch for day %s", dayID)
	}
	var createdIDs []string
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := ownDay(ctx, tx, p, dayID); err != nil {
			return err
		}
		existing, err := tx.Query(ctx, TablePlanDayExercises, store.Query{
			Conds: []store.Cond{store.Eq("plan_day_id", dayID)},
		})
		if err != nil {
			return err
		}
		if len(existing)+len(inputs) > MaxExercisesPerDay {
			return &apperr.LimitError{
				Message: fmt.Sprintf(
					"a day holds at most %d exercises", MaxExercisesPerDay),
				Limit:     MaxExercisesPerDay,
				Requested: len(inputs),
				Remaining: MaxExercisesPerDay - len(existing),
			}
		}
		placed := make(map[string]bool, len(existing)+len(inputs))
		for _, rec := range existing {
			placed[strVal(rec["exercise_id"])] = true
		}
		var dups []string
		for _, in := range inputs {
			if err := in.validate(dayID); err != nil {
				return err
			}
			if placed[in.ExerciseID] {
				dups = append(dups, in.ExerciseID)
				continue
			}
			placed[in.ExerciseID] = true
			if _, err := tx.Get(ctx, TableExercises, in.ExerciseID); err != nil {
				return err
			}
		}
		if len(dups) > 0 {
			return apperr.Validation(
				fmt.Sprintf("%d of the selected exercises are already on this day", len(dups)),
				"%d duplicate exercises on day %s: %s",
				len(dups), dayID, strings.Join(dups, ", "))
		}
		// All inputs checked; now write.
		now := fmtTime(time.Now())
		next := len(existing)
		createdIDs = make([]string, 0, len(inputs))
		for i, in := range inputs {
			id := newID()
			if err := tx.Create(ctx, TablePlanDayExercises, store.Record{
				"id":                id,
				"plan_day_id":       dayID,
				"exercise_id":       in.ExerciseID,
				"order_index":       int64(next + i),
				"target_sets":       int64(in.TargetSets),
				"target_reps":       int64(in.TargetReps),
				"rest_sec_override": nullableInt(in.RestSecOverride),
				"notes":             nullableStr(in.Notes),
				"created_at":        now,
				"updated_at":        now,
			}); err != nil {
				return err
			}
			createdIDs = append(createdIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, dbErr("add day exercises", err)
	}
	r.logger.Printf("added %d exercises to day %s", len(createdIDs), dayID)
	out := make([]*model.PlanDayExercise, 0, len(createdIDs))
	for _, id := range createdIDs {
		rec, err := r.s.Get(ctx, TablePlanDayExercises, id)
		if err != nil {
			return nil, dbErr("add day exercises", err)
		}
		out = append(out, dayExerciseFromRecord(rec))
	}
	return out, nil
}
