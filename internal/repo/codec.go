package repo

import (
	"encoding/json"
	"time"

	"liftlog/internal/model"
	"liftlog/internal/store"
)

// Timestamps are stored as RFC3339Nano TEXT; the change marker is the
// raw integer from the sync metadata columns.

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(v any) time.Time {
	s, _ := v.(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTimePtr(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intToBool(v any) bool {
	n, _ := v.(int64)
	return n != 0
}

func intVal(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func intPtr(v any) *int {
	if v == nil {
		return nil
	}
	n := intVal(v)
	return &n
}

func floatVal(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func floatPtr(v any) *float64 {
	if v == nil {
		return nil
	}
	f := floatVal(v)
	return &f
}

func strVal(v any) string {
	s, _ := v.(string)
	return s
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// List-valued exercise fields are JSON-encoded TEXT at the store
// boundary; encode/decode happens here and nowhere else.

func encodeList(items []string) any {
	if len(items) == 0 {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeList(v any) []string {
	s, ok := v.(string)
	if !ok || s == "" || s == "null" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	return items
}

func syncMeta(rec store.Record) model.SyncMeta {
	return model.SyncMeta{ChangedAt: rec.Marker(), Status: rec.Status()}
}

func planFromRecord(rec store.Record) *model.WorkoutPlan {
	return &model.WorkoutPlan{
		ID:        rec.ID(),
		UserID:    strVal(rec["user_id"]),
		Name:      strVal(rec["name"]),
		IsActive:  intToBool(rec["is_active"]),
		CoverURL:  strVal(rec["cover_url"]),
		CreatedAt: parseTime(rec["created_at"]),
		UpdatedAt: parseTime(rec["updated_at"]),
		SyncMeta:  syncMeta(rec),
	}
}

func dayFromRecord(rec store.Record) *model.PlanDay {
	return &model.PlanDay{
		ID:         rec.ID(),
		PlanID:     strVal(rec["plan_id"]),
		Name:       strVal(rec["name"]),
		DayLabel:   strVal(rec["day_label"]),
		OrderIndex: intVal(rec["order_index"]),
		CreatedAt:  parseTime(rec["created_at"]),
		UpdatedAt:  parseTime(rec["updated_at"]),
		SyncMeta:   syncMeta(rec),
	}
}

func dayExerciseFromRecord(rec store.Record) *model.PlanDayExercise {
	return &model.PlanDayExercise{
		ID:              rec.ID(),
		PlanDayID:       strVal(rec["plan_day_id"]),
		ExerciseID:      strVal(rec["exercise_id"]),
		OrderIndex:      intVal(rec["order_index"]),
		TargetSets:      intVal(rec["target_sets"]),
		TargetReps:      intVal(rec["target_reps"]),
		RestSecOverride: intPtr(rec["rest_sec_override"]),
		Notes:           strVal(rec["notes"]),
		CreatedAt:       parseTime(rec["created_at"]),
		UpdatedAt:       parseTime(rec["updated_at"]),
		SyncMeta:        syncMeta(rec),
	}
}

func exerciseFromRecord(rec store.Record) *model.Exercise {
	return &model.Exercise{
		ID:               rec.ID(),
		Name:             strVal(rec["name"]),
		BodyParts:        decodeList(rec["body_parts"]),
		TargetMuscles:    decodeList(rec["target_muscles"]),
		SecondaryMuscles: decodeList(rec["secondary_muscles"]),
		Equipment:        strVal(rec["equipment"]),
		Instructions:     decodeList(rec["instructions"]),
		MediaURL:         strVal(rec["media_url"]),
		CreatedAt:        parseTime(rec["created_at"]),
		UpdatedAt:        parseTime(rec["updated_at"]),
		SyncMeta:         syncMeta(rec),
	}
}

func workoutFromRecord(rec store.Record) *model.Workout {
	var planID, dayID *string
	if s := strVal(rec["plan_id"]); s != "" {
		planID = &s
	}
	if s := strVal(rec["plan_day_id"]); s != "" {
		dayID = &s
	}
	return &model.Workout{
		ID:          rec.ID(),
		UserID:      strVal(rec["user_id"]),
		PlanID:      planID,
		PlanDayID:   dayID,
		StartedAt:   parseTime(rec["started_at"]),
		CompletedAt: parseTimePtr(rec["completed_at"]),
		Notes:       strVal(rec["notes"]),
		CreatedAt:   parseTime(rec["created_at"]),
		UpdatedAt:   parseTime(rec["updated_at"]),
		SyncMeta:    syncMeta(rec),
	}
}

func workoutExerciseFromRecord(rec store.Record) *model.WorkoutExercise {
	return &model.WorkoutExercise{
		ID:         rec.ID(),
		WorkoutID:  strVal(rec["workout_id"]),
		ExerciseID: strVal(rec["exercise_id"]),
		OrderIndex: intVal(rec["order_index"]),
		CreatedAt:  parseTime(rec["created_at"]),
		UpdatedAt:  parseTime(rec["updated_at"]),
		SyncMeta:   syncMeta(rec),
	}
}

func setFromRecord(rec store.Record) *model.ExerciseSet {
	return &model.ExerciseSet{
		ID:                rec.ID(),
		WorkoutExerciseID: strVal(rec["workout_exercise_id"]),
		SetIndex:          intVal(rec["set_index"]),
		WeightKg:          floatVal(rec["weight_kg"]),
		Reps:              intVal(rec["reps"]),
		RIR:               intPtr(rec["rir"]),
		RPE:               floatPtr(rec["rpe"]),
		IsWarmup:          intToBool(rec["is_warmup"]),
		IsFailure:         intToBool(rec["is_failure"]),
		CreatedAt:         parseTime(rec["created_at"]),
		UpdatedAt:         parseTime(rec["updated_at"]),
		SyncMeta:          syncMeta(rec),
	}
}

func userFromRecord(rec store.Record) *model.User {
	return &model.User{
		ID:             rec.ID(),
		Email:          strVal(rec["email"]),
		DisplayName:    strVal(rec["display_name"]),
		AvatarURL:      strVal(rec["avatar_url"]),
		DefaultRestSec: intVal(rec["default_rest_sec"]),
		CreatedAt:      parseTime(rec["created_at"]),
		UpdatedAt:      parseTime(rec["updated_at"]),
		SyncMeta:       syncMeta(rec),
	}
}
