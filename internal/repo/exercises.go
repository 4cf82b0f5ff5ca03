package repo

import (
	"context"
	"time"

	"liftlog/internal/model"
	"liftlog/internal/store"
)

// The exercise library is reference data: seeded once, read by
// everyone, never user-edited. CreateExercise exists for the seed
// loader and tests, so it takes no principal.

// CreateExercise inserts an exercise into the library. When ex.ID is
// empty a new one is assigned.
func (r *Repo) CreateExercise(ctx context.Context, ex *model.Exercise) (*model.Exercise, error) {
	id := ex.ID
	if id == "" {
		id = newID()
	}
	name, err := model.ValidateName(ex.Name, model.MaxPlanNameLen, "exercise", id)
	if err != nil {
		return nil, err
	}
	now := fmtTime(time.Now())
	err = r.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		return tx.Create(ctx, TableExercises, store.Record{
			"id":                id,
			"name":              name,
			"body_parts":        encodeList(ex.BodyParts),
			"target_muscles":    encodeList(ex.TargetMuscles),
			"secondary_muscles": encodeList(ex.SecondaryMuscles),
			"equipment":         nullableStr(ex.Equipment),
			"instructions":      encodeList(ex.Instructions),
			"media_url":         nullableStr(ex.MediaURL),
			"created_at":        now,
			"updated_at":        now,
		})
	})
	if err != nil {
		return nil, dbErr("create exercise", err)
	}
	return r.GetExercise(ctx, id)
}

// GetExercise returns one exercise by ID.
func (r *Repo) GetExercise(ctx context.Context, id string) (*model.Exercise, error) {
	rec, err := r.s.Get(ctx, TableExercises, id)
	if err != nil {
		return nil, dbErr("get exercise", err)
	}
	return exerciseFromRecord(rec), nil
}

// ListExercises returns the library sorted by name. A non-empty
// equipment filter narrows the result.
func (r *Repo) ListExercises(ctx context.Context, equipment string) ([]*model.Exercise, error) {
	q := store.Query{OrderBy: "name"}
	if equipment != "" {
		q.Conds = []store.Cond{store.Eq("equipment", equipment)}
	}
	recs, err := r.s.Query(ctx, TableExercises, q)
	if err != nil {
		return nil, dbErr("list exercises", err)
	}
	out := make([]*model.Exercise, 0, len(recs))
	for _, rec := range recs {
		out = append(out, exerciseFromRecord(rec))
	}
	return out, nil
}

// CountExercises returns the number of exercises in the library.
func (r *Repo) CountExercises(ctx context.Context) (int, error) {
	n, err := r.s.Count(ctx, TableExercises)
	if err != nil {
		return 0, dbErr("count exercises", err)
	}
	return n, nil
}
