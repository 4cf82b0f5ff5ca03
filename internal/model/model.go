// Package model defines the entities persisted by the local store and
// exchanged with the remote sync authority.
//
// Every syncable record carries sync metadata: a monotonic per-record
// change marker (unix milliseconds, bumped on every local mutation) and
// a status tag. The flat, whole-record layout keeps last-write-wins
// resolution trivial: the record with the later marker replaces the
// other outright.
package model

import (
	"strings"
	"time"

	"liftlog/internal/apperr"
)

// SyncStatus tags a record's position in the sync cycle.
type SyncStatus string

const (
	// StatusSynced means the record matches the remote authority.
	StatusSynced SyncStatus = "synced"
	// StatusCreated means the record was created locally and never pushed.
	StatusCreated SyncStatus = "created"
	// StatusUpdated means the record has local edits awaiting push.
	StatusUpdated SyncStatus = "updated"
	// StatusDeleted means the record is locally deleted and retained only
	// until the deletion is acknowledged by a push.
	StatusDeleted SyncStatus = "deleted"
)

// IsDirty reports whether the status requires a push.
func (s SyncStatus) IsDirty() bool {
	return s == StatusCreated || s == StatusUpdated || s == StatusDeleted
}

// Valid reports whether s is one of the defined statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusSynced, StatusCreated, StatusUpdated, StatusDeleted:
		return true
	}
	return false
}

// SyncMeta is embedded in every syncable entity.
type SyncMeta struct {
	// ChangedAt is the change marker: unix milliseconds, strictly
	// increasing across mutations of the same record.
	ChangedAt int64 `json:"changed_at"`
	// Status is the record's sync status tag.
	Status SyncStatus `json:"sync_status"`
}

// NextMarker returns a change marker strictly greater than prev.
// Wall-clock time is used when it already is; otherwise prev+1 keeps the
// marker monotone even under clock skew or sub-millisecond mutations.
func NextMarker(prev int64) int64 {
	now := time.Now().UnixMilli()
	if now > prev {
		return now
	}
	return prev + 1
}

// Name length limits enforced by the repositories.
const (
	MaxPlanNameLen = 100
	MaxDayNameLen  = 50
)

// ValidateName trims and validates a user-supplied name against max.
// contextID identifies the offending record in the developer detail.
// Returns the trimmed name.
func ValidateName(name string, max int, what, contextID string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperr.Validation(
			what+" name must not be empty",
			"empty %s name (id=%s)", what, contextID)
	}
	if len(trimmed) > max {
		return "", apperr.Validation(
			what+" name is too long",
			"%s name exceeds %d chars: %d (id=%s)", what, max, len(trimmed), contextID)
	}
	return trimmed, nil
}

// User is the account that owns plans and workouts.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	DefaultRestSec int    `json:"default_rest_sec"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncMeta
}

// WorkoutPlan is a named training program. At most one plan per user is
// active at a time; the repository enforces that, not the store.
type WorkoutPlan struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CoverURL  string `json:"cover_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncMeta
}

// PlanDay is one training day inside a plan. OrderIndex is dense,
// zero-based and unique within the plan.
type PlanDay struct {
	ID         string `json:"id"`
	PlanID     string `json:"plan_id"`
	Name       string `json:"name"`
	DayLabel   string `json:"day_label,omitempty"` // optional day-of-week label
	OrderIndex int    `json:"order_index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncMeta
}

// PlanDayExercise places an exercise on a plan day. No two rows for the
// same (plan_day_id, exercise_id) pair may coexist; the repository
// rejects duplicates.
type PlanDayExercise struct {
	ID             string `json:"id"`
	PlanDayID      string `json:"plan_day_id"`
	ExerciseID     string `json:"exercise_id"`
	OrderIndex     int    `json:"order_index"`
	TargetSets     int    `json:"target_sets"`
	TargetReps     int    `json:"target_reps"`
	RestSecOverride *int  `json:"rest_sec_override,omitempty"`
	Notes          string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncMeta
}

// Exercise is immutable reference data seeded from the bundled dataset.
// List-valued fields are JSON-encoded at the store boundary.
type Exercise struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	BodyParts        []string `json:"body_parts,omitempty"`
	TargetMuscles    []string `json:"target_muscles,omitempty"`
	SecondaryMuscles []string `json:"secondary_muscles,omitempty"`
	Equipment        string   `json:"equipment,omitempty"`
	Instructions     []string `json:"instructions,omitempty"`
	MediaURL         string   `json:"media_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncMeta
}

// Workout is a training session. IsActive is derived from CompletedAt,
// never stored.
type Workout struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	PlanID      *string    `json:"plan_id,omitempty"`
	PlanDayID   *string    `json:"plan_day_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncMeta
}

// IsActive reports whether the workout is still in progress.
func (w *Workout) IsActive() bool {
	return w.CompletedAt == nil
}

// WorkoutExercise records one exercise performed during a workout.
type WorkoutExercise struct {
	ID         string `json:"id"`
	WorkoutID  string `json:"workout_id"`
	ExerciseID string `json:"exercise_id"`
	OrderIndex int    `json:"order_index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncMeta
}

// ExerciseSet records one performed set.
type ExerciseSet struct {
	ID                string  `json:"id"`
	WorkoutExerciseID string  `json:"workout_exercise_id"`
	SetIndex          int     `json:"set_index"`
	WeightKg          float64 `json:"weight_kg"`
	Reps              int     `json:"reps"`
	RIR               *int    `json:"rir,omitempty"`
	RPE               *float64 `json:"rpe,omitempty"`
	IsWarmup          bool    `json:"is_warmup"`
	IsFailure         bool    `json:"is_failure"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SyncMeta
}
