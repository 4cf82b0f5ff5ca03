package sync

import (
	"context"
	"log"
	"os"
	gosync "sync"
	"time"

	"liftlog/internal/apperr"
)

// DaemonConfig holds configuration for the background sync daemon.
type DaemonConfig struct {
	// Interval is how often to run a cycle regardless of activity.
	Interval time.Duration

	// DebounceInterval is how long to wait after a local write before
	// syncing. Rapid edits batch into one cycle.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultDaemonConfig returns sensible defaults.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Interval:         5 * time.Minute,
		DebounceInterval: 2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon runs sync cycles in the background: one on every interval
// tick, and one shortly after any local write, debounced. It
// subscribes to every syncable table so a burst of edits triggers a
// single cycle once the burst settles.
type Daemon struct {
	engine *Engine
	config *DaemonConfig

	cancel context.CancelFunc
	done   gosync.WaitGroup
}

// NewDaemon creates a daemon over the engine.
func NewDaemon(engine *Engine, config *DaemonConfig) *Daemon {
	if config == nil {
		config = DefaultDaemonConfig()
	}
	return &Daemon{engine: engine, config: config}
}

// Start runs the daemon until ctx is cancelled. An immediate cycle
// runs first; failures are logged and retried on the next trigger
// rather than stopping the daemon.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	d.done.Add(1)
	defer d.done.Done()
	d.config.Logger.Printf("starting: interval %s, debounce %s",
		d.config.Interval, d.config.DebounceInterval)

	kicks := make(chan struct{}, 1)
	var unsubs []func()
	for _, table := range Tables {
		unsub := d.engine.s.Subscribe(table, func(string) {
			select {
			case kicks <- struct{}{}:
			default:
			}
		})
		unsubs = append(unsubs, unsub)
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	d.runCycle(ctx, kicks)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.config.Logger.Println("stopping")
			return nil
		case <-ticker.C:
			d.runCycle(ctx, kicks)
		case <-kicks:
			d.debouncedCycle(ctx, kicks)
		}
	}
}

// Stop cancels the daemon and waits for Start to return.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.done.Wait()
}

// debouncedCycle waits out the debounce window, draining further
// kicks, then runs one cycle for the whole burst.
func (d *Daemon) debouncedCycle(ctx context.Context, kicks chan struct{}) {
	timer := time.NewTimer(d.config.DebounceInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-kicks:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(d.config.DebounceInterval)
		case <-timer.C:
			d.runCycle(ctx, kicks)
			return
		}
	}
}

func (d *Daemon) runCycle(ctx context.Context, kicks chan struct{}) {
	if ctx.Err() != nil {
		return
	}
	_, err := d.engine.Sync(ctx)
	// The cycle's own bookkeeping writes fire the same table
	// subscriptions. Drop the kick they queued so an effective cycle
	// does not schedule a no-op follow-up.
	select {
	case <-kicks:
	default:
	}
	if err != nil {
		if err == ErrSyncInProgress {
			return
		}
		if apperr.IsRetryable(err) {
			d.config.Logger.Printf("cycle failed, will retry: %v", err)
			return
		}
		d.config.Logger.Printf("cycle failed: %v", err)
	}
}
