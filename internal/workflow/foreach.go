package workflow

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/workflowforge/engine/internal/plugin"
	"github.com/workflowforge/engine/internal/wferrors"
)

// ErrorPolicy selects how a concurrent foreach job reacts to an
// operation failing partway through a chunk (spec §4.5).
type ErrorPolicy int

const (
	ErrorPolicyStop ErrorPolicy = iota
	ErrorPolicyContinue
)

// ArgSource supplies the argument stream a foreach job iterates. Exactly
// one of Items (known length) or Gen (unknown length, requires
// TaskNumPerThread) should be set.
type ArgSource struct {
	Items []ArgValue
	Gen   GeneratorFunc
}

// ForeachOptions configures one ConcurrentForeachJob run (spec §4.5).
type ForeachOptions struct {
	Operation        func(ctx *Context, arg ArgValue) (any, error)
	Source           ArgSource
	ThreadNum        int
	TaskNumPerThread int

	SubJoin    func(ctx *Context, chunkResults []any) (any, error)
	ResultJoin func(ctx *Context, chunkOutputs []any) (any, error)

	ErrorPolicy       ErrorPolicy
	ErrorHandler      func(ctx *Context, err error) (any, error)
	ErrorDefaultValue any
}

// NewConcurrentForeachJob builds a Job.Caller that runs opts as a
// ConcurrentForeachJob, storing the flattened results under
// "{name}.result" the same way any other job does.
func NewConcurrentForeachJob(opts ForeachOptions) plugin.ExecuteFunc {
	return func(ctx plugin.Context, args ...any) (any, error) {
		wfCtx, ok := ctx.(*Context)
		if !ok {
			return nil, wferrors.Newf(wferrors.CodeInvalidStatus, "concurrent foreach job requires a *workflow.Context")
		}
		return RunConcurrentForeach(wfCtx, opts)
	}
}

// RunConcurrentForeach implements spec §4.5: partition the argument
// stream into chunks of TaskNumPerThread (explicit, or ceil(len/N) when
// the stream has a known length), run each chunk on the pool, apply the
// per-chunk and final reducers, and honor the stop/continue error
// policy.
func RunConcurrentForeach(ctx *Context, opts ForeachOptions) ([]any, error) {
	chunks, err := partition(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []any{}, nil
	}

	pool := NewWorkerPool(opts.ThreadNum)
	defer pool.Shutdown()

	chunkOutputs := make([]any, len(chunks))
	var abort int32
	var wg sync.WaitGroup
	errCh := make(chan error, len(chunks))

	for ci, chunk := range chunks {
		ci, chunk := ci, chunk
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			out, err := runChunk(ctx, opts, chunk, &abort)
			if err != nil {
				atomic.StoreInt32(&abort, 1)
				errCh <- err
				return
			}
			if opts.SubJoin != nil {
				joined, jerr := opts.SubJoin(ctx, out)
				if jerr != nil {
					errCh <- jerr
					return
				}
				chunkOutputs[ci] = joined
			} else {
				chunkOutputs[ci] = out
			}
		})
	}

	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}

	if opts.ResultJoin != nil {
		final, err := opts.ResultJoin(ctx, chunkOutputs)
		if err != nil {
			return nil, err
		}
		if s, ok := final.([]any); ok {
			return s, nil
		}
		return []any{final}, nil
	}

	return flattenOneLevel(chunkOutputs), nil
}

func runChunk(ctx *Context, opts ForeachOptions, chunk []ArgValue, abort *int32) ([]any, error) {
	results := make([]any, 0, len(chunk))
	for _, arg := range chunk {
		if opts.ErrorPolicy == ErrorPolicyStop && atomic.LoadInt32(abort) == 1 {
			break
		}
		val, err := opts.Operation(ctx, arg)
		if err != nil {
			if opts.ErrorPolicy == ErrorPolicyStop {
				return nil, err
			}
			fill := opts.ErrorDefaultValue
			if opts.ErrorHandler != nil {
				if fv, herr := opts.ErrorHandler(ctx, err); herr == nil {
					fill = fv
				}
			}
			results = append(results, fill)
			continue
		}
		results = append(results, val)
	}
	return results, nil
}

func partition(ctx *Context, opts ForeachOptions) ([][]ArgValue, error) {
	if opts.Source.Gen != nil {
		if opts.TaskNumPerThread <= 0 {
			return nil, wferrors.InvalidArgument("task_num_per_thread is required when the argument stream's length is unknown")
		}
		var chunks [][]ArgValue
		chunk := make([]ArgValue, 0, opts.TaskNumPerThread)
		for item := range opts.Source.Gen(ctx) {
			chunk = append(chunk, item)
			if len(chunk) == opts.TaskNumPerThread {
				chunks = append(chunks, chunk)
				chunk = make([]ArgValue, 0, opts.TaskNumPerThread)
			}
		}
		if len(chunk) > 0 {
			chunks = append(chunks, chunk)
		}
		return chunks, nil
	}

	items := opts.Source.Items
	if len(items) == 0 {
		return nil, nil
	}
	taskNum := opts.TaskNumPerThread
	if taskNum <= 0 {
		taskNum = int(math.Ceil(float64(len(items)) / float64(opts.ThreadNum)))
	}
	var chunks [][]ArgValue
	for i := 0; i < len(items); i += taskNum {
		end := i + taskNum
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks, nil
}

func flattenOneLevel(chunkOutputs []any) []any {
	flat := make([]any, 0, len(chunkOutputs))
	for _, co := range chunkOutputs {
		if s, ok := co.([]any); ok {
			flat = append(flat, s...)
		} else {
			flat = append(flat, co)
		}
	}
	return flat
}
