// Package repo implements the typed, validated, authorized operations
// over the local store: workout plans, plan days, day exercises,
// workouts, sets, and the seeded exercise library.
//
// Entities are created through these operations only, never by writing
// the store directly. Every mutating operation checks the authenticated
// principal first and validates its input before touching the store;
// multi-row operations (batch adds, reorders, cascade deletes) run in a
// single store transaction.
package repo

import (
	"context"
	"errors"
	"log"
	"os"

	"liftlog/internal/apperr"
	"liftlog/internal/auth"
	"liftlog/internal/store"

	"github.com/google/uuid"
)

// Table names.
const (
	TableUsers            = "users"
	TableWorkoutPlans     = "workout_plans"
	TablePlanDays         = "plan_days"
	TablePlanDayExercises = "plan_day_exercises"
	TableExercises        = "exercises"
	TableWorkouts         = "workouts"
	TableWorkoutExercises = "workout_exercises"
	TableExerciseSets     = "exercise_sets"
)

// Capacity limits enforced before any batch write.
const (
	MaxDaysPerPlan     = 14
	MaxExercisesPerDay = 30
)

// Repo exposes the entity operations. It holds no per-call state: the
// store handle lives here, the principal is passed to every call.
type Repo struct {
	s      *store.Store
	logger *log.Logger
}

// New creates a Repo over the store. If logger is nil a default stderr
// logger is used.
func New(s *store.Store, logger *log.Logger) *Repo {
	if logger == nil {
		logger = log.New(os.Stderr, "[repo] ", log.LstdFlags)
	}
	return &Repo{s: s, logger: logger}
}

// Store returns the underlying store handle.
func (r *Repo) Store() *store.Store { return r.s }

func newID() string { return uuid.New().String() }

// dbErr wraps a storage failure into a DatabaseError named after the
// failed operation. Not-found and the typed errors pass through so
// callers can still classify them.
func dbErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return apperr.Database(op, err)
}

// requireUser rejects calls with no authenticated principal.
func requireUser(p auth.Principal) error {
	if p.UserID == "" {
		return &apperr.AuthError{Message: "sign in required"}
	}
	return nil
}

// reader is the common read surface of Store and Tx, so ownership checks
// can run inside or outside a transaction.
type reader interface {
	Get(ctx context.Context, table, id string) (store.Record, error)
	Query(ctx context.Context, table string, q store.Query) ([]store.Record, error)
	Count(ctx context.Context, table string, conds ...store.Cond) (int, error)
}

// ownPlan loads a plan and verifies the principal owns it.
func ownPlan(ctx context.Context, rd reader, p auth.Principal, planID string) (store.Record, error) {
	rec, err := rd.Get(ctx, TableWorkoutPlans, planID)
	if err != nil {
		return nil, err
	}
	if owner, _ := rec["user_id"].(string); owner != p.UserID {
		return nil, &apperr.AuthError{Message: "plan belongs to another user"}
	}
	return rec, nil
}

// ownDay loads a day and verifies the principal owns its plan.
func ownDay(ctx context.Context, rd reader, p auth.Principal, dayID string) (store.Record, error) {
	rec, err := rd.Get(ctx, TablePlanDays, dayID)
	if err != nil {
		return nil, err
	}
	planID, _ := rec["plan_id"].(string)
	if _, err := ownPlan(ctx, rd, p, planID); err != nil {
		return nil, err
	}
	return rec, nil
}

// ownWorkout loads a workout and verifies ownership.
func ownWorkout(ctx context.Context, rd reader, p auth.Principal, workoutID string) (store.Record, error) {
	rec, err := rd.Get(ctx, TableWorkouts, workoutID)
	if err != nil {
		return nil, err
	}
	if owner, _ := rec["user_id"].(string); owner != p.UserID {
		return nil, &apperr.AuthError{Message: "workout belongs to another user"}
	}
	return rec, nil
}
