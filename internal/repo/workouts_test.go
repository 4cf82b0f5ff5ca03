package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liftlog/internal/apperr"
	"liftlog/internal/store"
)

func TestStartAndCompleteWorkout(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	w, err := r.StartWorkout(ctx, testUser, "")
	require.NoError(t, err)
	assert.True(t, w.IsActive())
	assert.Nil(t, w.PlanID)

	active, err := r.ActiveWorkout(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, w.ID, active.ID)

	done, err := r.CompleteWorkout(ctx, testUser, w.ID, "good session")
	require.NoError(t, err)
	assert.False(t, done.IsActive())
	assert.Equal(t, "good session", done.Notes)
	require.NotNil(t, done.CompletedAt)

	_, err = r.ActiveWorkout(ctx, testUser)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Completing twice is rejected.
	_, err = r.CompleteWorkout(ctx, testUser, w.ID, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestStartWorkoutOnlyOneOpen(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.StartWorkout(ctx, testUser, "")
	require.NoError(t, err)

	_, err = r.StartWorkout(ctx, testUser, "")
	assert.True(t, apperr.IsValidation(err))

	// Another user's open workout does not block this one.
	_, err = r.StartWorkout(ctx, otherUser, "")
	assert.NoError(t, err)
}

func TestStartWorkoutFromPlanDay(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	plan, err := r.CreatePlan(ctx, testUser, "Split")
	require.NoError(t, err)
	day, err := r.CreatePlanDay(ctx, testUser, plan.ID, "Push", "")
	require.NoError(t, err)

	w, err := r.StartWorkout(ctx, testUser, day.ID)
	require.NoError(t, err)
	require.NotNil(t, w.PlanID)
	require.NotNil(t, w.PlanDayID)
	assert.Equal(t, plan.ID, *w.PlanID)
	assert.Equal(t, day.ID, *w.PlanDayID)

	// A day of someone else's plan is rejected.
	otherPlan, err := r.CreatePlan(ctx, otherUser, "Theirs")
	require.NoError(t, err)
	otherDay, err := r.CreatePlanDay(ctx, otherUser, otherPlan.ID, "Push", "")
	require.NoError(t, err)
	_, err = r.CompleteWorkout(ctx, testUser, w.ID, "")
	require.NoError(t, err)
	_, err = r.StartWorkout(ctx, testUser, otherDay.ID)
	assert.True(t, apperr.IsAuth(err))
}

func TestLogSetsSequence(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	exIDs := seedExercises(t, r, 1)

	w, err := r.StartWorkout(ctx, testUser, "")
	require.NoError(t, err)
	we, err := r.AddWorkoutExercise(ctx, testUser, w.ID, exIDs[0])
	require.NoError(t, err)

	weights := []float64{60, 80, 100}
	for i, kg := range weights {
		set, err := r.LogSet(ctx, testUser, we.ID, SetInput{WeightKg: kg, Reps: 8})
		require.NoError(t, err)
		assert.Equal(t, i, set.SetIndex)
	}

	sets, err := r.ListSets(ctx, testUser, we.ID)
	require.NoError(t, err)
	require.Len(t, sets, 3)
	assert.Equal(t, 100.0, sets[2].WeightKg)
}

func TestDeleteSetRenumbers(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	exIDs := seedExercises(t, r, 1)

	w, err := r.StartWorkout(ctx, testUser, "")
	require.NoError(t, err)
	we, err := r.AddWorkoutExercise(ctx, testUser, w.ID, exIDs[0])
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		set, err := r.LogSet(ctx, testUser, we.ID, SetInput{WeightKg: 100, Reps: 5})
		require.NoError(t, err)
		ids = append(ids, set.ID)
	}

	require.NoError(t, r.DeleteSet(ctx, testUser, ids[0]))

	sets, err := r.ListSets(ctx, testUser, we.ID)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	for i, s := range sets {
		assert.Equal(t, i, s.SetIndex)
	}
}

func TestUpdateSetValidation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	exIDs := seedExercises(t, r, 1)

	w, err := r.StartWorkout(ctx, testUser, "")
	require.NoError(t, err)
	we, err := r.AddWorkoutExercise(ctx, testUser, w.ID, exIDs[0])
	require.NoError(t, err)
	set, err := r.LogSet(ctx, testUser, we.ID, SetInput{WeightKg: 100, Reps: 5})
	require.NoError(t, err)

	rpe := 8.5
	rir := 2
	updated, err := r.UpdateSet(ctx, testUser, set.ID, SetInput{
		WeightKg: 102.5, Reps: 5, RPE: &rpe, RIR: &rir, IsFailure: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 102.5, updated.WeightKg)
	require.NotNil(t, updated.RPE)
	assert.Equal(t, 8.5, *updated.RPE)
	require.NotNil(t, updated.RIR)
	assert.Equal(t, 2, *updated.RIR)
	assert.True(t, updated.IsFailure)

	bad := 11.0
	_, err = r.UpdateSet(ctx, testUser, set.ID, SetInput{WeightKg: 100, Reps: 5, RPE: &bad})
	assert.True(t, apperr.IsValidation(err))

	_, err = r.LogSet(ctx, testUser, we.ID, SetInput{WeightKg: -1, Reps: 5})
	assert.True(t, apperr.IsValidation(err))
}

func TestAddExerciseToCompletedWorkout(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	exIDs := seedExercises(t, r, 1)

	w, err := r.StartWorkout(ctx, testUser, "")
	require.NoError(t, err)
	_, err = r.CompleteWorkout(ctx, testUser, w.ID, "")
	require.NoError(t, err)

	_, err = r.AddWorkoutExercise(ctx, testUser, w.ID, exIDs[0])
	assert.True(t, apperr.IsValidation(err))
}

func TestListWorkoutsNewestFirst(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		w, err := r.StartWorkout(ctx, testUser, "")
		require.NoError(t, err)
		_, err = r.CompleteWorkout(ctx, testUser, w.ID, "")
		require.NoError(t, err)
		ids = append(ids, w.ID)
	}

	workouts, err := r.ListWorkouts(ctx, testUser, 2, 0)
	require.NoError(t, err)
	require.Len(t, workouts, 2)
	assert.Equal(t, ids[2], workouts[0].ID)

	rest, err := r.ListWorkouts(ctx, testUser, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)
}
