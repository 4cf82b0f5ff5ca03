package migrate

// syncCols are the sync metadata columns attached to every syncable
// table: the per-record change marker and the status tag.
func syncCols() []Column {
	return []Column{
		{Name: "changed_at", Type: Integer},
		{Name: "sync_status", Type: Text, Default: "'created'"},
	}
}

func withSyncCols(cols ...Column) []Column {
	return append(cols, syncCols()...)
}

// App returns the registry for the application schema. It must validate;
// a defect here is a programming error, so App panics on one.
func App() *Registry {
	reg, err := NewRegistry(appMigrations()...)
	if err != nil {
		panic(err)
	}
	return reg
}

func appMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Steps: []Step{
				CreateTable{
					Name: "users",
					Columns: withSyncCols(
						Column{Name: "id", Type: Text},
						Column{Name: "email", Type: Text},
						Column{Name: "display_name", Type: Text},
						Column{Name: "avatar_url", Type: Text, Nullable: true},
						Column{Name: "default_rest_sec", Type: Integer, Default: "90"},
						Column{Name: "created_at", Type: Text},
						Column{Name: "updated_at", Type: Text},
					),
				},
				CreateTable{
					Name: "workout_plans",
					Columns: withSyncCols(
						Column{Name: "id", Type: Text},
						Column{Name: "user_id", Type: Text},
						Column{Name: "name", Type: Text},
						Column{Name: "is_active", Type: Integer, Default: "0"},
						Column{Name: "cover_url", Type: Text, Nullable: true},
						Column{Name: "created_at", Type: Text},
						Column{Name: "updated_at", Type: Text},
					),
					Indexes: []Index{
						{Name: "idx_plans_user", Columns: []string{"user_id"}},
					},
				},
				CreateTable{
					Name: "plan_days",
					Columns: withSyncCols(
						Column{Name: "id", Type: Text},
						Column{Name: "plan_id", Type: Text},
						Column{Name: "name", Type: Text},
						Column{Name: "day_label", Type: Text, Nullable: true},
						Column{Name: "order_index", Type: Integer},
						Column{Name: "created_at", Type: Text},
						Column{Name: "updated_at", Type: Text},
					),
					Indexes: []Index{
						{Name: "idx_days_plan", Columns: []string{"plan_id"}},
						{Name: "idx_days_plan_order", Columns: []string{"plan_id", "order_index"}},
					},
				},
				CreateTable{
					Name: "plan_day_exercises",
					Columns: withSyncCols(
						Column{Name: "id", Type: Text},
						Column{Name: "plan_day_id", Type: Text},
						Column{Name: "exercise_id", Type: Text},
						Column{Name: "order_index", Type: Integer},
						Column{Name: "target_sets", Type: Integer, Default: "3"},
						Column{Name: "target_reps", Type: Integer, Default: "10"},
						Column{Name: "rest_sec_override", Type: Integer, Nullable: true},
						Column{Name: "notes", Type: Text, Nullable: true},
						Column{Name: "created_at", Type: Text},
						Column{Name: "updated_at", Type: Text},
					),
					Indexes: []Index{
						{Name: "idx_day_exercises_day", Columns: []string{"plan_day_id"}},
						{Name: "idx_day_exercises_day_order", Columns: []string{"plan_day_id", "order_index"}},
					},
				},
				CreateTable{
					Name: "exercises",
					Columns: withSyncCols(
						Column{Name: "id", Type: Text},
						Column{Name: "name", Type: Text},
						// List-valued fields are JSON-encoded at the store boundary.
						Column{Name: "body_parts", Type: Text, Nullable: true},
						Column{Name: "target_muscles", Type: Text, Nullable: true},
						Column{Name: "secondary_muscles", Type: Text, Nullable: true},
						Column{Name: "equipment", Type: Text, Nullable: true},
						Column{Name: "instructions", Type: Text, Nullable: true},
						Column{Name: "media_url", Type: Text, Nullable: true},
						Column{Name: "created_at", Type: Text},
						Column{Name: "updated_at", Type: Text},
					),
					Indexes: []Index{
						{Name: "idx_exercises_name", Columns: []string{"name"}},
					},
				},
				CreateTable{
					Name: "workouts",
					Columns: withSyncCols(
						Column{Name: "id", Type: Text},
						Column{Name: "user_id", Type: Text},
						Column{Name: "plan_id", Type: Text, Nullable: true},
						Column{Name: "plan_day_id", Type: Text, Nullable: true},
						Column{Name: "started_at", Type: Text},
						Column{Name: "completed_at", Type: Text, Nullable: true},
						Column{Name: "created_at", Type: Text},
						Column{Name: "updated_at", Type: Text},
					),
					Indexes: []Index{
						{Name: "idx_workouts_user", Columns: []string{"user_id"}},
						{Name: "idx_workouts_completed", Columns: []string{"user_id", "completed_at"}},
					},
				},
				CreateTable{
					Name: "workout_exercises",
					Columns: withSyncCols(
						Column{Name: "id", Type: Text},
						Column{Name: "workout_id", Type: Text},
						Column{Name: "exercise_id", Type: Text},
						Column{Name: "order_index", Type: Integer},
						Column{Name: "created_at", Type: Text},
						Column{Name: "updated_at", Type: Text},
					),
					Indexes: []Index{
						{Name: "idx_workout_exercises_workout", Columns: []string{"workout_id"}},
					},
				},
				CreateTable{
					Name: "exercise_sets",
					Columns: withSyncCols(
						Column{Name: "id", Type: Text},
						Column{Name: "workout_exercise_id", Type: Text},
						Column{Name: "set_index", Type: Integer},
						Column{Name: "weight_kg", Type: Real, Default: "0"},
						Column{Name: "reps", Type: Integer, Default: "0"},
						Column{Name: "rir", Type: Integer, Nullable: true},
						Column{Name: "is_warmup", Type: Integer, Default: "0"},
						Column{Name: "is_failure", Type: Integer, Default: "0"},
						Column{Name: "created_at", Type: Text},
						Column{Name: "updated_at", Type: Text},
					),
					Indexes: []Index{
						{Name: "idx_sets_workout_exercise", Columns: []string{"workout_exercise_id"}},
					},
				},
				// Sync bookkeeping (not a syncable table): pull watermark and
				// other key/value state.
				CreateTable{
					Name: "sync_state",
					Columns: []Column{
						{Name: "key", Type: Text},
						{Name: "value", Type: Text},
					},
				},
			},
		},
		// Version 2 shipped no structural change.
		{Version: 2},
		{
			Version: 3,
			Steps: []Step{
				AddColumns{Table: "workouts", Columns: []Column{
					{Name: "notes", Type: Text, Nullable: true},
				}},
				AddColumns{Table: "exercise_sets", Columns: []Column{
					{Name: "rpe", Type: Real, Nullable: true},
				}},
			},
		},
	}
}
