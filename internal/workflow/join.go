package workflow

import (
	"errors"
	"fmt"

	"github.com/workflowforge/engine/internal/wferrors"
)

// awaiter is the minimal interface runJoin needs from whatever a fork
// stored under forkLatchKey: a real *syncutil.CountDownLatch for the
// concurrent path, or a no-op stand-in for the synchronous RunSync path.
type awaiter interface {
	Await()
}

// runJoin implements spec §4.4 steps 1-5: wait on the fork's latch,
// aggregate results (custom JoinFn or the default reducer), and release
// the private fork state in a finally-equivalent deferred block.
func (w *Workflow) runJoin(ctx *Context, j *Join) (any, error) {
	latchVal, ok := ctx.Get(forkLatchKey)
	if !ok {
		return nil, wferrors.Newf(wferrors.CodeInvalidStatus, "join %q has no paired fork state", j.Name)
	}
	latch := latchVal.(awaiter)

	defer w.releaseForkState(ctx)

	latch.Await()

	endsVal, _ := ctx.Get(forkResultKey)
	ends := endsVal.([]*End)

	var result any
	var err error
	if j.JoinFn != nil {
		result, err = j.JoinFn(ctx, ends)
	} else {
		result, err = defaultJoinAggregate(ends)
	}
	if err != nil {
		return nil, err
	}

	ctx.Set(j.Name+".result", result)
	return result, nil
}

func defaultJoinAggregate(ends []*End) (any, error) {
	results := make([]any, len(ends))
	for i, e := range ends {
		switch e.Status {
		case EndBadRequest:
			return nil, wferrors.InvalidArgument(fmt.Sprint(e.Result))
		case EndError:
			return nil, errors.New(e.ExcValue)
		default:
			results[i] = e.Result
		}
	}
	return results, nil
}

func (w *Workflow) releaseForkState(ctx *Context) {
	poolVal, hasPool := ctx.Get(forkPoolKey)
	ownedVal, _ := ctx.Get(forkOwnedPoolKey)
	if hasPool {
		if pool, ok := poolVal.(*WorkerPool); ok {
			if owned, _ := ownedVal.(bool); owned {
				pool.Shutdown()
			}
		}
	}
	ctx.Delete(forkPoolKey)
	ctx.Delete(forkOwnedPoolKey)
	ctx.Delete(forkLatchKey)
	ctx.Delete(forkResultKey)
}
