package workflow

import (
	"fmt"
	"runtime/debug"

	"github.com/workflowforge/engine/internal/syncutil"
)

const (
	forkPoolKey      = "_fork.pool"
	forkOwnedPoolKey = "_fork.owned_pool"
	forkLatchKey     = "_fork.count_down_latch"
	forkResultKey    = "_fork.result"
)

// runFork implements spec §4.4 steps 1-5: acquire a pool, build a latch
// and result slots, submit one sub-sequencer task per worker, and store
// the pool/latch/results under private parent-context keys for the
// paired join to consume.
func (w *Workflow) runFork(ctx *Context, f *Fork, ls *listenerSet) error {
	pool := f.Pool
	owned := false
	if pool == nil {
		pool = NewWorkerPool(f.ThreadNum)
		owned = true
	}

	latch := syncutil.NewCountDownLatch(f.ThreadNum)
	results := make([]*End, f.ThreadNum)

	childListeners := ls
	if f.InheritListeners {
		childListeners = ls.withExtra(f.ForkListeners)
	} else {
		childListeners = newListenerSet(f.ForkListeners)
	}

	for i := 0; i < f.ThreadNum; i++ {
		workerID := i
		pool.Submit(func() {
			defer latch.CountDown()
			defer func() {
				if r := recover(); r != nil {
					results[workerID] = ErrorEnd("panic", fmt.Sprint(r), string(debug.Stack()))
				}
			}()
			childCtx := ctx.NewChild(workerID)
			results[workerID] = w.run(childCtx, f.StartPoint, f.EndPoint, childListeners)
		})
	}

	ctx.Set(forkPoolKey, pool)
	ctx.Set(forkOwnedPoolKey, owned)
	ctx.Set(forkLatchKey, latch)
	ctx.Set(forkResultKey, results)
	return nil
}
