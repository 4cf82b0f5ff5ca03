package sync

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liftlog/internal/apperr"
	"liftlog/internal/auth"
	"liftlog/internal/model"
	"liftlog/internal/repo"
	"liftlog/internal/store"
)

// fakeTransport scripts pull responses and records push requests. Safe
// for use from the daemon's goroutine.
type fakeTransport struct {
	mu       gosync.Mutex
	pullResp *PullResponse
	pullErr  error
	pushErr  error

	pulls  []PullRequest
	pushes []PushRequest

	// blockPull, when non-nil, is closed by the test to release a pull
	// in flight. Used to observe the engine mid-cycle.
	blockPull chan struct{}
}

func (f *fakeTransport) Pull(ctx context.Context, req PullRequest) (*PullResponse, error) {
	f.mu.Lock()
	f.pulls = append(f.pulls, req)
	block := f.blockPull
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pullResp != nil {
		return f.pullResp, nil
	}
	return &PullResponse{Changes: Changes{}, Timestamp: time.Now().UnixMilli()}, nil
}

func (f *fakeTransport) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, req)
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return &PushResponse{Timestamp: time.Now().UnixMilli()}, nil
}

func (f *fakeTransport) pullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pulls)
}

func (f *fakeTransport) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

func (f *fakeTransport) clearPushErr() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushErr = nil
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestEngine(t *testing.T, transport Transport) (*Engine, *store.Store, *repo.Repo) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithLogger(quiet()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	r := repo.New(s, quiet())
	return NewEngine(s, transport, quiet()), s, r
}

func planRecord(id, userID, name string, marker int64) store.Record {
	return store.Record{
		"id":         id,
		"user_id":    userID,
		"name":       name,
		"is_active":  int64(0),
		"cover_url":  nil,
		"created_at": "2026-08-01T10:00:00Z",
		"updated_at": "2026-08-01T10:00:00Z",
		"changed_at": marker,
	}
}

func TestSyncPushesDirtyAndMarksSynced(t *testing.T) {
	ft := &fakeTransport{}
	engine, s, r := newTestEngine(t, ft)
	ctx := context.Background()

	_, err := r.EnsureUser(ctx, "u1", "u1@example.com", "One")
	require.NoError(t, err)
	plan, err := r.CreatePlan(ctx, testPrincipal(), "Push Pull Legs")
	require.NoError(t, err)

	res, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pushed) // the user row and the plan
	assert.Zero(t, res.Pulled)

	require.Len(t, ft.pushes, 1)
	pushed := ft.pushes[0].Changes
	require.Contains(t, pushed, repo.TableWorkoutPlans)
	require.Len(t, pushed[repo.TableWorkoutPlans].Created, 1)
	// The local-only status tag never crosses the wire.
	assert.NotContains(t, pushed[repo.TableWorkoutPlans].Created[0], "sync_status")

	rec, err := s.Get(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, rec.Status())

	// A clean store pushes nothing.
	res, err = engine.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Pushed)
	require.Len(t, ft.pushes, 1)
}

func TestSyncAppliesPulledChanges(t *testing.T) {
	remote := planRecord("p-remote", "u1", "From Remote", 5000)
	ft := &fakeTransport{pullResp: &PullResponse{
		Changes:   Changes{repo.TableWorkoutPlans: {Created: []store.Record{remote}}},
		Timestamp: 99000,
	}}
	engine, s, _ := newTestEngine(t, ft)
	ctx := context.Background()

	res, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pulled)

	rec, err := s.Get(ctx, repo.TableWorkoutPlans, "p-remote")
	require.NoError(t, err)
	assert.Equal(t, "From Remote", rec["name"])
	assert.Equal(t, model.StatusSynced, rec.Status())
	assert.Equal(t, int64(5000), rec.Marker())

	// The watermark advanced to the server timestamp.
	wm, err := engine.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(99000), wm)

	// The next pull sends it back.
	_, err = engine.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, ft.pulls, 2)
	assert.Equal(t, int64(99000), ft.pulls[1].LastPulledAt)
}

func TestSyncLocalWinsOnNewerMarker(t *testing.T) {
	engineNoop, s, r := newTestEngine(t, &fakeTransport{})
	ctx := context.Background()
	_ = engineNoop

	_, err := r.EnsureUser(ctx, "u1", "u1@example.com", "One")
	require.NoError(t, err)
	plan, err := r.CreatePlan(ctx, testPrincipal(), "Local Edit")
	require.NoError(t, err)
	local, err := s.Get(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)

	// Remote carries an older marker for the same record.
	stale := planRecord(plan.ID, "u1", "Stale Remote", local.Marker()-1000)
	ft := &fakeTransport{pullResp: &PullResponse{
		Changes:   Changes{repo.TableWorkoutPlans: {Updated: []store.Record{stale}}},
		Timestamp: time.Now().UnixMilli(),
	}}
	engine := NewEngine(s, ft, quiet())

	_, err = engine.Sync(ctx)
	require.NoError(t, err)

	rec, err := s.Get(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)
	// The local edit survived and was pushed this same cycle.
	assert.Equal(t, "Local Edit", rec["name"])
	assert.Equal(t, model.StatusSynced, rec.Status())
	require.Len(t, ft.pushes, 1)
}

func TestSyncRemoteWinsOnNewerMarker(t *testing.T) {
	ft0 := &fakeTransport{}
	engine0, s, r := newTestEngine(t, ft0)
	ctx := context.Background()

	_, err := r.EnsureUser(ctx, "u1", "u1@example.com", "One")
	require.NoError(t, err)
	plan, err := r.CreatePlan(ctx, testPrincipal(), "Local Edit")
	require.NoError(t, err)
	_, err = engine0.Sync(ctx) // everything clean now
	require.NoError(t, err)

	// A local edit, then a remote edit with a later marker.
	_, err = r.RenamePlan(ctx, testPrincipal(), plan.ID, "Local Newer")
	require.NoError(t, err)
	local, err := s.Get(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)

	newer := planRecord(plan.ID, "u1", "Remote Newest", local.Marker()+1000)
	ft := &fakeTransport{pullResp: &PullResponse{
		Changes:   Changes{repo.TableWorkoutPlans: {Updated: []store.Record{newer}}},
		Timestamp: time.Now().UnixMilli(),
	}}
	engine := NewEngine(s, ft, quiet())

	_, err = engine.Sync(ctx)
	require.NoError(t, err)

	rec, err := s.Get(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Remote Newest", rec["name"])
	assert.Equal(t, model.StatusSynced, rec.Status())
	// Nothing dirty remained to push.
	assert.Empty(t, ft.pushes)
}

func TestSyncRemoteDeleteApplied(t *testing.T) {
	ft0 := &fakeTransport{}
	engine0, s, r := newTestEngine(t, ft0)
	ctx := context.Background()

	_, err := r.EnsureUser(ctx, "u1", "u1@example.com", "One")
	require.NoError(t, err)
	plan, err := r.CreatePlan(ctx, testPrincipal(), "Doomed")
	require.NoError(t, err)
	_, err = engine0.Sync(ctx)
	require.NoError(t, err)

	ft := &fakeTransport{pullResp: &PullResponse{
		Changes:   Changes{repo.TableWorkoutPlans: {Deleted: []string{plan.ID}}},
		Timestamp: time.Now().UnixMilli(),
	}}
	engine := NewEngine(s, ft, quiet())
	_, err = engine.Sync(ctx)
	require.NoError(t, err)

	_, err = s.GetAny(ctx, repo.TableWorkoutPlans, plan.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSyncRemoteDeleteOverridesLocalEdit(t *testing.T) {
	ft0 := &fakeTransport{}
	engine0, s, r := newTestEngine(t, ft0)
	ctx := context.Background()

	_, err := r.EnsureUser(ctx, "u1", "u1@example.com", "One")
	require.NoError(t, err)
	plan, err := r.CreatePlan(ctx, testPrincipal(), "Contested")
	require.NoError(t, err)
	_, err = engine0.Sync(ctx)
	require.NoError(t, err)

	// A local rename races a remote deletion. The deletion wins.
	_, err = r.RenamePlan(ctx, testPrincipal(), plan.ID, "Renamed Anyway")
	require.NoError(t, err)

	ft := &fakeTransport{pullResp: &PullResponse{
		Changes:   Changes{repo.TableWorkoutPlans: {Deleted: []string{plan.ID}}},
		Timestamp: time.Now().UnixMilli(),
	}}
	engine := NewEngine(s, ft, quiet())
	_, err = engine.Sync(ctx)
	require.NoError(t, err)

	_, err = s.GetAny(ctx, repo.TableWorkoutPlans, plan.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	// Nothing of the plan goes back out.
	for _, push := range ft.pushes {
		assert.NotContains(t, push.Changes, repo.TableWorkoutPlans)
	}
}

func TestSyncPushFailurePreservesDirtyAndWatermark(t *testing.T) {
	ft := &fakeTransport{pushErr: &apperr.SyncError{
		Op: "push", Retryable: true, Cause: errors.New("connection reset"),
	}}
	engine, s, r := newTestEngine(t, ft)
	ctx := context.Background()

	_, err := r.EnsureUser(ctx, "u1", "u1@example.com", "One")
	require.NoError(t, err)
	plan, err := r.CreatePlan(ctx, testPrincipal(), "Unlucky")
	require.NoError(t, err)

	_, err = engine.Sync(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))

	// Still dirty, watermark untouched.
	rec, err := s.Get(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCreated, rec.Status())
	wm, err := engine.Watermark(ctx)
	require.NoError(t, err)
	assert.Zero(t, wm)

	// Once the network recovers, the same record goes out.
	ft.clearPushErr()
	res, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pushed)
	rec, err = s.Get(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, rec.Status())
}

func TestSyncDeletionPurgedAfterPush(t *testing.T) {
	ft := &fakeTransport{}
	engine, s, r := newTestEngine(t, ft)
	ctx := context.Background()

	_, err := r.EnsureUser(ctx, "u1", "u1@example.com", "One")
	require.NoError(t, err)
	plan, err := r.CreatePlan(ctx, testPrincipal(), "Doomed")
	require.NoError(t, err)
	_, err = engine.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, r.DeletePlan(ctx, testPrincipal(), plan.ID))

	rec, err := s.GetAny(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusDeleted, rec.Status())

	_, err = engine.Sync(ctx)
	require.NoError(t, err)

	// The tombstone went out on the wire and was purged locally.
	last := ft.pushes[len(ft.pushes)-1].Changes
	assert.Contains(t, last[repo.TableWorkoutPlans].Deleted, plan.ID)
	_, err = s.GetAny(ctx, repo.TableWorkoutPlans, plan.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSyncRejectsConcurrentCycle(t *testing.T) {
	ft := &fakeTransport{blockPull: make(chan struct{})}
	engine, _, _ := newTestEngine(t, ft)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := engine.Sync(ctx)
		done <- err
	}()

	// Wait for the first cycle to be inside the pull.
	require.Eventually(t, func() bool {
		return engine.Phase() == PhasePulling
	}, time.Second, 5*time.Millisecond)

	_, err := engine.Sync(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(ft.blockPull)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseIdle, engine.Phase())
}

func TestEngineObservers(t *testing.T) {
	ft := &fakeTransport{}
	engine, _, _ := newTestEngine(t, ft)

	events, unobserve := engine.Observe()
	defer unobserve()

	_, err := engine.Sync(context.Background())
	require.NoError(t, err)

	var phases []Phase
	for len(events) > 0 {
		ev := <-events
		phases = append(phases, ev.Phase)
	}
	assert.Equal(t, []Phase{PhasePulling, PhaseResolving, PhasePushing, PhaseIdle}, phases)
}

func TestEditDuringPushStaysDirty(t *testing.T) {
	// A record edited between the push snapshot and the acknowledgment
	// must stay dirty so the edit goes out next cycle.
	engineInit, s, r := newTestEngine(t, &fakeTransport{})
	ctx := context.Background()
	_ = engineInit

	_, err := r.EnsureUser(ctx, "u1", "u1@example.com", "One")
	require.NoError(t, err)
	plan, err := r.CreatePlan(ctx, testPrincipal(), "Racing")
	require.NoError(t, err)

	racing := &racingTransport{r: r, planID: plan.ID}
	engine := NewEngine(s, racing, quiet())
	_, err = engine.Sync(ctx)
	require.NoError(t, err)

	rec, err := s.Get(ctx, repo.TableWorkoutPlans, plan.ID)
	require.NoError(t, err)
	assert.True(t, rec.Status().IsDirty())
	assert.Equal(t, "Edited Mid Push", rec["name"])
}

// racingTransport edits a plan while its push is in flight.
type racingTransport struct {
	r      *repo.Repo
	planID string
}

func (rt *racingTransport) Pull(ctx context.Context, req PullRequest) (*PullResponse, error) {
	return &PullResponse{Changes: Changes{}, Timestamp: time.Now().UnixMilli()}, nil
}

func (rt *racingTransport) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	// The push is "on the wire"; a local edit lands meanwhile.
	if _, err := rt.r.RenamePlan(ctx, testPrincipal(), rt.planID, "Edited Mid Push"); err != nil {
		return nil, err
	}
	return &PushResponse{Timestamp: time.Now().UnixMilli()}, nil
}

func testPrincipal() auth.Principal {
	return auth.Principal{UserID: "u1"}
}
