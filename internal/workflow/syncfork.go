package workflow

// RunSync executes a Fork's sub-graph on the calling goroutine with no
// pool, for deterministic tests (spec §4.4 "MainThreadFork/MainThreadJoin
// ... same semantics minus concurrency"). The result is stored exactly
// where the concurrent path would store it, so a Join unit following a
// sync-run fork works unmodified.
func (w *Workflow) RunSync(ctx *Context, f *Fork, ls *listenerSet) error {
	results := make([]*End, f.ThreadNum)

	childListeners := ls
	if !f.InheritListeners {
		childListeners = newListenerSet(f.ForkListeners)
	} else if len(f.ForkListeners) > 0 {
		childListeners = ls.withExtra(f.ForkListeners)
	}

	for i := 0; i < f.ThreadNum; i++ {
		childCtx := ctx.NewChild(i)
		results[i] = w.run(childCtx, f.StartPoint, f.EndPoint, childListeners)
	}

	ctx.Set(forkResultKey, results)
	ctx.Set(forkPoolKey, (*WorkerPool)(nil))
	ctx.Set(forkOwnedPoolKey, false)
	ctx.Set(forkLatchKey, readyLatch{})
	return nil
}

type readyLatch struct{}

func (readyLatch) Await() {}
