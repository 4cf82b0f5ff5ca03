package repo

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"liftlog/internal/apperr"
	"liftlog/internal/auth"
	"liftlog/internal/model"
	"liftlog/internal/store"
)

var testUser = auth.Principal{UserID: "u1"}
var otherUser = auth.Principal{UserID: "u2"}

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := New(s, log.New(io.Discard, "", 0))
	ctx := context.Background()
	for _, p := range []auth.Principal{testUser, otherUser} {
		_, err := r.EnsureUser(ctx, p.UserID, p.UserID+"@example.com", "Test "+p.UserID)
		require.NoError(t, err)
	}
	return r
}

// seedExercises inserts n library exercises and returns their IDs.
func seedExercises(t *testing.T, r *Repo, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ex, err := r.CreateExercise(context.Background(), &model.Exercise{
			Name:      fmt.Sprintf("Exercise %02d", i),
			Equipment: "barbell",
		})
		require.NoError(t, err)
		ids = append(ids, ex.ID)
	}
	return ids
}

func input(exerciseID string) DayExerciseInput {
	return DayExerciseInput{ExerciseID: exerciseID, TargetSets: 3, TargetReps: 10}
}

func TestEnsureUserIdempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u1, err := r.EnsureUser(ctx, "u1", "changed@example.com", "Changed")
	require.NoError(t, err)
	// The existing row wins; EnsureUser never overwrites.
	require.Equal(t, "u1@example.com", u1.Email)
}

func TestRequireUser(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.CreatePlan(context.Background(), auth.Principal{}, "Push Pull Legs")
	require.Error(t, err)
}

// Storage failures surface as DatabaseError; validation, auth, and
// not-found pass through untouched.
func TestStorageFailuresWrapped(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	ex, err := r.CreateExercise(ctx, &model.Exercise{Name: "Row"})
	require.NoError(t, err)

	// A duplicated primary key is a driver-level failure.
	_, err = r.CreateExercise(ctx, &model.Exercise{ID: ex.ID, Name: "Row Again"})
	var de *apperr.DatabaseError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "create exercise", de.Op)
	require.NotNil(t, de.Cause)

	// Not-found stays a plain sentinel.
	_, err = r.GetPlan(ctx, testUser, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NotErrorAs(t, err, &de)

	// Auth and validation failures keep their own types.
	plan, err := r.CreatePlan(ctx, testUser, "Mine")
	require.NoError(t, err)
	_, err = r.GetPlan(ctx, otherUser, plan.ID)
	require.True(t, apperr.IsAuth(err))
	require.NotErrorAs(t, err, &de)
	_, err = r.CreatePlan(ctx, testUser, "   ")
	require.True(t, apperr.IsValidation(err))
	require.NotErrorAs(t, err, &de)
}
