package workflow

import (
	"sync"
	"time"

	"github.com/workflowforge/engine/internal/plugin"
	"github.com/workflowforge/engine/internal/wferrors"
)

// BufferingOptions configures one BufferingJob run (spec §4.6).
type BufferingOptions struct {
	Operation func(ctx *Context) (any, error)
	MaxItems  int
	// Timeout is the wall-clock budget; nil means wait indefinitely
	// until MaxItems is reached.
	Timeout         *time.Duration
	Filter          func(item any) bool
	Immediately     bool
	GiveBackHandler func(item any)
}

// NewBufferingJob builds a Job.Caller that runs opts as a BufferingJob.
func NewBufferingJob(opts BufferingOptions) plugin.ExecuteFunc {
	return func(ctx plugin.Context, args ...any) (any, error) {
		wfCtx, ok := ctx.(*Context)
		if !ok {
			return nil, wferrors.Newf(wferrors.CodeInvalidStatus, "buffering job requires a *workflow.Context")
		}
		return RunBufferingJob(wfCtx, opts)
	}
}

// RunBufferingJob implements spec §4.6: a dedicated producer goroutine
// repeatedly invokes Operation, appending items that pass Filter, until
// either MaxItems is reached or the caller's Timeout elapses. With
// immediately=false the caller waits for any in-flight append to finish
// before snapshotting; with immediately=true, an item produced after the
// snapshot is instead handed to GiveBackHandler.
func RunBufferingJob(ctx *Context, opts BufferingOptions) ([]any, error) {
	if opts.Timeout != nil && *opts.Timeout < 0 {
		return nil, wferrors.InvalidArgument("buffering job timeout must be >= 0")
	}
	if opts.MaxItems <= 0 {
		return []any{}, nil
	}

	var mu sync.Mutex
	items := make([]any, 0, opts.MaxItems)
	finished := make(chan struct{})
	var closeOnce sync.Once
	stop := func() { closeOnce.Do(func() { close(finished) }) }

	go func() {
		for {
			select {
			case <-finished:
				return
			default:
			}

			val, err := opts.Operation(ctx)
			if err != nil {
				stop()
				return
			}
			if opts.Filter != nil && !opts.Filter(val) {
				continue
			}

			mu.Lock()
			select {
			case <-finished:
				mu.Unlock()
				if opts.Immediately && opts.GiveBackHandler != nil {
					opts.GiveBackHandler(val)
				}
				return
			default:
			}
			items = append(items, val)
			reachedMax := len(items) >= opts.MaxItems
			mu.Unlock()

			if reachedMax {
				stop()
				return
			}
		}
	}()

	if opts.Timeout == nil {
		<-finished
	} else {
		timer := time.NewTimer(*opts.Timeout)
		defer timer.Stop()
		select {
		case <-finished:
		case <-timer.C:
			stop()
			if !opts.Immediately {
				// Acquiring the mutex guarantees any in-flight
				// append completes before we snapshot below.
				mu.Lock()
				mu.Unlock()
			}
		}
	}

	mu.Lock()
	snapshot := append([]any(nil), items...)
	mu.Unlock()
	return snapshot, nil
}
