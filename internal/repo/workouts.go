package repo

import (
	"context"
	"time"

	"liftlog/internal/apperr"
	"liftlog/internal/auth"
	"liftlog/internal/model"
	"liftlog/internal/store"
)

// StartWorkout opens a training session, optionally tied to a plan day.
// Only one session per user may be open at a time.
func (r *Repo) StartWorkout(ctx context.Context, p auth.Principal, planDayID string) (*model.Workout, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	id := newID()
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		open, err := tx.Query(ctx, TableWorkouts, store.Query{
			Conds: []store.Cond{
				store.Eq("user_id", p.UserID),
				store.IsNull("completed_at"),
			},
			Limit: 1,
		})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return apperr.Validation(
				"finish the current workout before starting another",
				"workout %s is still open for user %s", open[0].ID(), p.UserID)
		}
		var planID, dayID any
		if planDayID != "" {
			day, err := ownDay(ctx, tx, p, planDayID)
			if err != nil {
				return err
			}
			planID = strVal(day["plan_id"])
			dayID = planDayID
		}
		now := time.Now()
		return tx.Create(ctx, TableWorkouts, store.Record{
			"id":           id,
			"user_id":      p.UserID,
			"plan_id":      planID,
			"plan_day_id":  dayID,
			"started_at":   fmtTime(now),
			"completed_at": nil,
			"notes":        nil,
			"created_at":   fmtTime(now),
			"updated_at":   fmtTime(now),
		})
	})
	if err != nil {
		return nil, dbErr("start workout", err)
	}
	r.logger.Printf("started workout %s", id)
	return r.GetWorkout(ctx, p, id)
}

// CompleteWorkout closes a session, stamping its completion time and
// optional notes. Completing an already completed workout is an error.
func (r *Repo) CompleteWorkout(ctx context.Context, p auth.Principal, workoutID, notes string) (*model.Workout, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		rec, err := ownWorkout(ctx, tx, p, workoutID)
		if err != nil {
			return err
		}
		if rec["completed_at"] != nil {
			return apperr.Validation(
				"this workout is already finished",
				"workout %s already completed", workoutID)
		}
		return tx.Update(ctx, TableWorkouts, workoutID, store.Record{
			"completed_at": fmtTime(time.Now()),
			"notes":        nullableStr(notes),
			"updated_at":   fmtTime(time.Now()),
		})
	})
	if err != nil {
		return nil, dbErr("complete workout", err)
	}
	return r.GetWorkout(ctx, p, workoutID)
}

// GetWorkout returns a workout owned by the principal.
func (r *Repo) GetWorkout(ctx context.Context, p auth.Principal, workoutID string) (*model.Workout, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	rec, err := ownWorkout(ctx, r.s, p, workoutID)
	if err != nil {
		return nil, dbErr("get workout", err)
	}
	return workoutFromRecord(rec), nil
}

// ActiveWorkout returns the principal's open session, or
// store.ErrNotFound when none is open.
func (r *Repo) ActiveWorkout(ctx context.Context, p auth.Principal) (*model.Workout, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	recs, err := r.s.Query(ctx, TableWorkouts, store.Query{
		Conds: []store.Cond{
			store.Eq("user_id", p.UserID),
			store.IsNull("completed_at"),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, dbErr("get active workout", err)
	}
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	return workoutFromRecord(recs[0]), nil
}

// ListWorkouts returns the principal's workouts, newest first.
func (r *Repo) ListWorkouts(ctx context.Context, p auth.Principal, limit, offset int) ([]*model.Workout, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	recs, err := r.s.Query(ctx, TableWorkouts, store.Query{
		Conds:   []store.Cond{store.Eq("user_id", p.UserID)},
		OrderBy: "started_at",
		Desc:    true,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, dbErr("list workouts", err)
	}
	out := make([]*model.Workout, 0, len(recs))
	for _, rec := range recs {
		out = append(out, workoutFromRecord(rec))
	}
	return out, nil
}

// AddWorkoutExercise appends an exercise to an open workout.
func (r *Repo) AddWorkoutExercise(ctx context.Context, p auth.Principal, workoutID, exerciseID string) (*model.WorkoutExercise, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	id := newID()
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		rec, err := ownWorkout(ctx, tx, p, workoutID)
		if err != nil {
			return err
		}
		if rec["completed_at"] != nil {
			return apperr.Validation(
				"this workout is already finished",
				"add exercise to completed workout %s", workoutID)
		}
		if _, err := tx.Get(ctx, TableExercises, exerciseID); err != nil {
			return err
		}
		count, err := tx.Count(ctx, TableWorkoutExercises, store.Eq("workout_id", workoutID))
		if err != nil {
			return err
		}
		now := fmtTime(time.Now())
		return tx.Create(ctx, TableWorkoutExercises, store.Record{
			"id":          id,
			"workout_id":  workoutID,
			"exercise_id": exerciseID,
			"order_index": int64(count),
			"created_at":  now,
			"updated_at":  now,
		})
	})
	if err != nil {
		return nil, dbErr("add workout exercise", err)
	}
	rec, err := r.s.Get(ctx, TableWorkoutExercises, id)
	if err != nil {
		return nil, dbErr("add workout exercise", err)
	}
	return workoutExerciseFromRecord(rec), nil
}

// ListWorkoutExercises returns a workout's exercises in order.
func (r *Repo) ListWorkoutExercises(ctx context.Context, p auth.Principal, workoutID string) ([]*model.WorkoutExercise, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if _, err := ownWorkout(ctx, r.s, p, workoutID); err != nil {
		return nil, dbErr("list workout exercises", err)
	}
	recs, err := r.s.Query(ctx, TableWorkoutExercises, store.Query{
		Conds:   []store.Cond{store.Eq("workout_id", workoutID)},
		OrderBy: "order_index",
	})
	if err != nil {
		return nil, dbErr("list workout exercises", err)
	}
	out := make([]*model.WorkoutExercise, 0, len(recs))
	for _, rec := range recs {
		out = append(out, workoutExerciseFromRecord(rec))
	}
	return out, nil
}

// SetInput describes one performed set.
type SetInput struct {
	WeightKg  float64  `json:"weight_kg"`
	Reps      int      `json:"reps"`
	RIR       *int     `json:"rir,omitempty"`
	RPE       *float64 `json:"rpe,omitempty"`
	IsWarmup  bool     `json:"is_warmup"`
	IsFailure bool     `json:"is_failure"`
}

func (in SetInput) validate(workoutExerciseID string) error {
	if in.WeightKg < 0 || in.Reps < 0 {
		return apperr.Validation(
			"weight and reps cannot be negative",
			"negative set values for %s: weight=%f reps=%d",
			workoutExerciseID, in.WeightKg, in.Reps)
	}
	if in.RPE != nil && (*in.RPE < 0 || *in.RPE > 10) {
		return apperr.Validation(
			"RPE must be between 0 and 10",
			"rpe out of range for %s: %f", workoutExerciseID, *in.RPE)
	}
	return nil
}

// LogSet records a performed set under a workout exercise, taking the
// next set index.
func (r *Repo) LogSet(ctx context.Context, p auth.Principal, workoutExerciseID string, in SetInput) (*model.ExerciseSet, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if err := in.validate(workoutExerciseID); err != nil {
		return nil, err
	}
	id := newID()
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		we, err := tx.Get(ctx, TableWorkoutExercises, workoutExerciseID)
		if err != nil {
			return err
		}
		if _, err := ownWorkout(ctx, tx, p, strVal(we["workout_id"])); err != nil {
			return err
		}
		count, err := tx.Count(ctx, TableExerciseSets, store.Eq("workout_exercise_id", workoutExerciseID))
		if err != nil {
			return err
		}
		now := fmtTime(time.Now())
		return tx.Create(ctx, TableExerciseSets, store.Record{
			"id":                  id,
			"workout_exercise_id": workoutExerciseID,
			"set_index":           int64(count),
			"weight_kg":           in.WeightKg,
			"reps":                int64(in.Reps),
			"rir":                 nullableInt(in.RIR),
			"rpe":                 nullableFloat(in.RPE),
			"is_warmup":           boolToInt(in.IsWarmup),
			"is_failure":          boolToInt(in.IsFailure),
			"created_at":          now,
			"updated_at":          now,
		})
	})
	if err != nil {
		return nil, dbErr("log set", err)
	}
	rec, err := r.s.Get(ctx, TableExerciseSets, id)
	if err != nil {
		return nil, dbErr("log set", err)
	}
	return setFromRecord(rec), nil
}

// UpdateSet edits a previously logged set.
func (r *Repo) UpdateSet(ctx context.Context, p auth.Principal, setID string, in SetInput) (*model.ExerciseSet, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if err := in.validate(setID); err != nil {
		return nil, err
	}
	err := r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := r.ownSet(ctx, tx, p, setID); err != nil {
			return err
		}
		return tx.Update(ctx, TableExerciseSets, setID, store.Record{
			"weight_kg":  in.WeightKg,
			"reps":       int64(in.Reps),
			"rir":        nullableInt(in.RIR),
			"rpe":        nullableFloat(in.RPE),
			"is_warmup":  boolToInt(in.IsWarmup),
			"is_failure": boolToInt(in.IsFailure),
			"updated_at": fmtTime(time.Now()),
		})
	})
	if err != nil {
		return nil, dbErr("update set", err)
	}
	rec, err := r.s.Get(ctx, TableExerciseSets, setID)
	if err != nil {
		return nil, dbErr("update set", err)
	}
	return setFromRecord(rec), nil
}

// DeleteSet removes a logged set and renumbers the later sets of the
// same workout exercise.
func (r *Repo) DeleteSet(ctx context.Context, p auth.Principal, setID string) error {
	if err := requireUser(p); err != nil {
		return err
	}
	return dbErr("delete set", r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		rec, err := tx.Get(ctx, TableExerciseSets, setID)
		if err != nil {
			return err
		}
		if err := r.ownSet(ctx, tx, p, setID); err != nil {
			return err
		}
		weID := strVal(rec["workout_exercise_id"])
		if err := tx.Delete(ctx, TableExerciseSets, setID); err != nil {
			return err
		}
		remaining, err := tx.Query(ctx, TableExerciseSets, store.Query{
			Conds:   []store.Cond{store.Eq("workout_exercise_id", weID)},
			OrderBy: "set_index",
		})
		if err != nil {
			return err
		}
		now := fmtTime(time.Now())
		for i, set := range remaining {
			if intVal(set["set_index"]) == i {
				continue
			}
			if err := tx.Update(ctx, TableExerciseSets, set.ID(), store.Record{
				"set_index":  int64(i),
				"updated_at": now,
			}); err != nil {
				return err
			}
		}
		return nil
	}))
}

// ListSets returns the sets of a workout exercise in order.
func (r *Repo) ListSets(ctx context.Context, p auth.Principal, workoutExerciseID string) ([]*model.ExerciseSet, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	we, err := r.s.Get(ctx, TableWorkoutExercises, workoutExerciseID)
	if err != nil {
		return nil, dbErr("list sets", err)
	}
	if _, err := ownWorkout(ctx, r.s, p, strVal(we["workout_id"])); err != nil {
		return nil, dbErr("list sets", err)
	}
	recs, err := r.s.Query(ctx, TableExerciseSets, store.Query{
		Conds:   []store.Cond{store.Eq("workout_exercise_id", workoutExerciseID)},
		OrderBy: "set_index",
	})
	if err != nil {
		return nil, dbErr("list sets", err)
	}
	out := make([]*model.ExerciseSet, 0, len(recs))
	for _, rec := range recs {
		out = append(out, setFromRecord(rec))
	}
	return out, nil
}

// ownSet walks set -> workout exercise -> workout and checks ownership.
func (r *Repo) ownSet(ctx context.Context, rd reader, p auth.Principal, setID string) error {
	rec, err := rd.Get(ctx, TableExerciseSets, setID)
	if err != nil {
		return err
	}
	we, err := rd.Get(ctx, TableWorkoutExercises, strVal(rec["workout_exercise_id"]))
	if err != nil {
		return err
	}
	_, err = ownWorkout(ctx, rd, p, strVal(we["workout_id"]))
	return err
}
