// Package seed loads the bundled exercise dataset into an empty
// library.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"

	"liftlog/internal/model"
	"liftlog/internal/repo"
)

//go:embed exercises.json
var exercisesJSON []byte

// Load inserts the bundled exercises unless the library already holds
// any, so repeated runs and app restarts never duplicate rows. Returns
// the number of exercises inserted.
func Load(ctx context.Context, r *repo.Repo, logger *log.Logger) (int, error) {
	count, err := r.CountExercises(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Printf("exercise library already seeded (%d exercises)", count)
		return 0, nil
	}

	var exercises []model.Exercise
	if err := json.Unmarshal(exercisesJSON, &exercises); err != nil {
		return 0, fmt.Errorf("parse bundled exercises: %w", err)
	}
	for i := range exercises {
		if _, err := r.CreateExercise(ctx, &exercises[i]); err != nil {
			return i, fmt.Errorf("seed exercise %q: %w", exercises[i].Name, err)
		}
	}
	logger.Printf("seeded %d exercises", len(exercises))
	return len(exercises), nil
}
