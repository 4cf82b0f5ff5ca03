package repo

import (
	"context"
	"fmt"

	"liftlog/internal/auth"
	"liftlog/internal/store"
)

// The schema declares no ON DELETE CASCADE. Deletes fan out here,
// child rows before parents, inside one transaction, so every deleted
// row gets its own sync tombstone and a failed cascade leaves nothing
// half-removed.

// DeletePlan deletes a plan, its days, and their exercise placements.
func (r *Repo) DeletePlan(ctx context.Context, p auth.Principal, planID string) error {
	if err := requireUser(p); err != nil {
		return err
	}
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := ownPlan(ctx, tx, p, planID); err != nil {
			return err
		}
		days, err := tx.Query(ctx, TablePlanDays, store.Query{
			Conds: []store.Cond{store.Eq("plan_id", planID)},
		})
		if err != nil {
			return err
		}
		for _, day := range days {
			if err := deleteDayRows(ctx, tx, day.ID()); err != nil {
				return err
			}
		}
		if err := tx.Delete(ctx, TableWorkoutPlans, planID); err != nil {
			return err
		}
		return verifyNoOrphans(ctx, tx, TablePlanDays, "plan_id", planID)
	})
	if err != nil {
		return dbErr("delete plan", err)
	}
	r.logger.Printf("deleted plan %s", planID)
	return nil
}

// DeletePlanDay deletes a day and its exercise placements, then closes
// the gap in the plan's day order.
func (r *Repo) DeletePlanDay(ctx context.Context, p auth.Principal, dayID string) error {
	if err := requireUser(p); err != nil {
		return err
	}
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		day, err := ownDay(ctx, tx, p, dayID)
		if err != nil {
			return err
		}
		planID := strVal(day["plan_id"])
		if err := deleteDayRows(ctx, tx, dayID); err != nil {
			return err
		}
		if err := verifyNoOrphans(ctx, tx, TablePlanDayExercises, "plan_day_id", dayID); err != nil {
			return err
		}
		remaining, err := tx.Query(ctx, TablePlanDays, store.Query{
			Conds:   []store.Cond{store.Eq("plan_id", planID)},
			OrderBy: "order_index",
		})
		if err != nil {
			return err
		}
		return resequence(ctx, tx, TablePlanDays, remaining)
	})
	if err != nil {
		return dbErr("delete plan day", err)
	}
	r.logger.Printf("deleted day %s", dayID)
	return nil
}

// DeleteWorkout deletes a workout with its exercises and sets.
func (r *Repo) DeleteWorkout(ctx context.Context, p auth.Principal, workoutID string) error {
	if err := requireUser(p); err != nil {
		return err
	}
	return dbErr("delete workout", r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if _, err := ownWorkout(ctx, tx, p, workoutID); err != nil {
			return err
		}
		wes, err := tx.Query(ctx, TableWorkoutExercises, store.Query{
			Conds: []store.Cond{store.Eq("workout_id", workoutID)},
		})
		if err != nil {
			return err
		}
		for _, we := range wes {
			sets, err := tx.Query(ctx, TableExerciseSets, store.Query{
				Conds: []store.Cond{store.Eq("workout_exercise_id", we.ID())},
			})
			if err != nil {
				return err
			}
			for _, set := range sets {
				if err := tx.Delete(ctx, TableExerciseSets, set.ID()); err != nil {
					return err
				}
			}
			if err := tx.Delete(ctx, TableWorkoutExercises, we.ID()); err != nil {
				return err
			}
		}
		if err := tx.Delete(ctx, TableWorkouts, workoutID); err != nil {
			return err
		}
		return verifyNoOrphans(ctx, tx, TableWorkoutExercises, "workout_id", workoutID)
	}))
}

// deleteDayRows deletes a day's exercise placements and then the day.
func deleteDayRows(ctx context.Context, tx *store.Tx, dayID string) error {
	placements, err := tx.Query(ctx, TablePlanDayExercises, store.Query{
		Conds: []store.Cond{store.Eq("plan_day_id", dayID)},
	})
	if err != nil {
		return err
	}
	for _, rec := range placements {
		if err := tx.Delete(ctx, TablePlanDayExercises, rec.ID()); err != nil {
			return err
		}
	}
	return tx.Delete(ctx, TablePlanDays, dayID)
}

// verifyNoOrphans fails the transaction if any live child row still
// points at the deleted parent.
func verifyNoOrphans(ctx context.Context, tx *store.Tx, table, fkCol, parentID string) error {
	n, err := tx.Count(ctx, table, store.Eq(fkCol, parentID))
	if err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("cascade left %d orphan rows in %s for %s", n, table, parentID)
	}
	return nil
}
