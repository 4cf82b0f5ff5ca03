package sync

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	gosync "sync"
	"time"

	"liftlog/internal/apperr"
	"liftlog/internal/store"
)

// Phase is the engine's position in a cycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePulling   Phase = "pulling"
	PhaseResolving Phase = "resolving"
	PhasePushing   Phase = "pushing"
)

// ErrSyncInProgress is returned when a cycle is requested while one is
// already running. Cycles never run concurrently.
var ErrSyncInProgress = errors.New("sync already in progress")

// watermarkKey is the sync_state key holding the last pull timestamp.
const watermarkKey = "last_pulled_at"

// Event describes a phase change or cycle outcome, for observers such
// as the status command and the monitor socket.
type Event struct {
	Phase   Phase     `json:"phase"`
	At      time.Time `json:"at"`
	Pulled  int       `json:"pulled,omitempty"`
	Pushed  int       `json:"pushed,omitempty"`
	Err     string    `json:"error,omitempty"`
}

// Result summarizes a completed cycle.
type Result struct {
	Pulled    int
	Pushed    int
	Timestamp int64
	Duration  time.Duration
}

// Engine runs pull/resolve/push cycles against a Transport.
type Engine struct {
	s         *store.Store
	transport Transport
	logger    *log.Logger

	mu      gosync.Mutex
	phase   Phase
	lastRes *Result
	lastErr error

	obsMu     gosync.Mutex
	observers map[int]chan Event
	nextObs   int
}

// NewEngine creates a sync engine. If logger is nil a default stderr
// logger is used.
func NewEngine(s *store.Store, transport Transport, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		s:         s,
		transport: transport,
		logger:    logger,
		phase:     PhaseIdle,
		observers: make(map[int]chan Event),
	}
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// LastResult returns the result of the most recent successful cycle
// and the error of the most recent failed one, either of which may be
// nil.
func (e *Engine) LastResult() (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRes, e.lastErr
}

// Watermark returns the persisted last-pull timestamp, zero before the
// first successful cycle.
func (e *Engine) Watermark(ctx context.Context) (int64, error) {
	raw, err := e.s.GetState(ctx, watermarkKey)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Schema("corrupt watermark %q: %v", raw, err)
	}
	return ts, nil
}

// Observe registers an event channel. The returned function
// unregisters it. Slow observers drop events rather than stall sync.
func (e *Engine) Observe() (<-chan Event, func()) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	id := e.nextObs
	e.nextObs++
	ch := make(chan Event, 16)
	e.observers[id] = ch
	return ch, func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		if ch, ok := e.observers[id]; ok {
			delete(e.observers, id)
			close(ch)
		}
	}
}

func (e *Engine) emit(ev Event) {
	ev.At = time.Now()
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	for _, ch := range e.observers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// setPhase transitions the engine and notifies observers.
func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
	e.emit(Event{Phase: p})
}

// Sync runs one full cycle: pull remote changes since the watermark,
// resolve them into the store, then push local dirty records. The
// watermark advances only after the whole cycle succeeds, so a failed
// push replays the same pull next time; resolution is idempotent.
// Dirty records stay dirty through any failure.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.phase != PhaseIdle {
		e.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	e.phase = PhasePulling
	e.mu.Unlock()
	e.emit(Event{Phase: PhasePulling})

	start := time.Now()
	res, err := e.cycle(ctx)

	e.mu.Lock()
	e.phase = PhaseIdle
	if err != nil {
		e.lastErr = err
	} else {
		res.Duration = time.Since(start)
		e.lastRes = res
		e.lastErr = nil
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Printf("cycle failed: %v", err)
		e.emit(Event{Phase: PhaseIdle, Err: err.Error()})
		return nil, err
	}
	e.logger.Printf("cycle done: pulled %d, pushed %d in %s",
		res.Pulled, res.Pushed, res.Duration.Round(time.Millisecond))
	e.emit(Event{Phase: PhaseIdle, Pulled: res.Pulled, Pushed: res.Pushed})
	return res, nil
}

func (e *Engine) cycle(ctx context.Context) (*Result, error) {
	since, err := e.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	version, err := e.s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	pullResp, err := e.transport.Pull(ctx, PullRequest{
		LastPulledAt:  since,
		SchemaVersion: version,
	})
	if err != nil {
		return nil, err
	}

	e.setPhase(PhaseResolving)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !pullResp.Changes.Empty() {
		if err := applyPulled(ctx, e.s, e.logger, pullResp.Changes); err != nil {
			return nil, err
		}
	}

	e.setPhase(PhasePushing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirty, err := collectDirty(ctx, e.s)
	if err != nil {
		return nil, err
	}
	if !dirty.Empty() {
		if _, err := e.transport.Push(ctx, PushRequest{
			Changes:      dirty,
			LastPulledAt: since,
		}); err != nil {
			return nil, err
		}
		if err := markPushed(ctx, e.s, dirty); err != nil {
			return nil, err
		}
	}

	// Whole cycle succeeded; advance the watermark.
	err = e.s.Write(ctx, func(ctx context.Context, tx *store.Tx) error {
		return tx.SetState(ctx, watermarkKey, strconv.FormatInt(pullResp.Timestamp, 10))
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Pulled:    pullResp.Changes.Count(),
		Pushed:    dirty.Count(),
		Timestamp: pullResp.Timestamp,
	}, nil
}

// DirtyCounts returns the number of unpushed records per table,
// omitting clean tables.
func (e *Engine) DirtyCounts(ctx context.Context) (map[string]int, error) {
	dirty, err := collectDirty(ctx, e.s)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(dirty))
	for table, tc := range dirty {
		counts[table] = len(tc.Created) + len(tc.Updated) + len(tc.Deleted)
	}
	return counts, nil
}
