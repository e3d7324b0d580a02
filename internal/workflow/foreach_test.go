package workflow

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func itemsOf(vals ...any) []ArgValue {
	out := make([]ArgValue, len(vals))
	for i, v := range vals {
		out[i] = Seq(v)
	}
	return out
}

func TestRunConcurrentForeachEmptyItemsYieldsEmptySlice(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	results, err := RunConcurrentForeach(ctx, ForeachOptions{
		ThreadNum: 2,
		Source:    ArgSource{Items: nil},
		Operation: func(ctx *Context, arg ArgValue) (any, error) { return arg.Seq[0], nil },
	})
	require.NoError(t, err)
	require.Equal(t, []any{}, results)
}

func TestRunConcurrentForeachChunksByTaskNumPerThreadExplicit(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	var seen []int
	var mu sync.Mutex
	results, err := RunConcurrentForeach(ctx, ForeachOptions{
		ThreadNum:        2,
		TaskNumPerThread: 2,
		Source:           ArgSource{Items: itemsOf(1, 2, 3, 4, 5)},
		Operation: func(ctx *Context, arg ArgValue) (any, error) {
			mu.Lock()
			seen = append(seen, arg.Seq[0].(int))
			mu.Unlock()
			return arg.Seq[0].(int) * 2, nil
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 5)
	require.Len(t, seen, 5)
}

func TestRunConcurrentForeachChunksByCeilDivisionWhenTaskNumUnset(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	chunks, err := partition(ctx, ForeachOptions{
		ThreadNum: 3,
		Source:    ArgSource{Items: itemsOf(1, 2, 3, 4, 5, 6, 7)},
	})
	require.NoError(t, err)
	// ceil(7/3) = 3 items per chunk -> chunks of 3, 3, 1
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 3)
	require.Len(t, chunks[1], 3)
	require.Len(t, chunks[2], 1)
}

func TestRunConcurrentForeachGeneratorWithoutTaskNumPerThreadFails(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	_, err := RunConcurrentForeach(ctx, ForeachOptions{
		ThreadNum: 2,
		Source: ArgSource{Gen: func(ctx *Context) <-chan ArgValue {
			ch := make(chan ArgValue)
			close(ch)
			return ch
		}},
		Operation: func(ctx *Context, arg ArgValue) (any, error) { return nil, nil },
	})
	require.Error(t, err)
}

func TestRunConcurrentForeachGeneratorChunksByTaskNumPerThread(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	gen := func(ctx *Context) <-chan ArgValue {
		ch := make(chan ArgValue, 5)
		for i := 1; i <= 5; i++ {
			ch <- Seq(i)
		}
		close(ch)
		return ch
	}
	chunks, err := partition(ctx, ForeachOptions{
		ThreadNum:        2,
		TaskNumPerThread: 2,
		Source:           ArgSource{Gen: gen},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 2)
	require.Len(t, chunks[1], 2)
	require.Len(t, chunks[2], 1)
}

func TestRunConcurrentForeachStopPolicyAbortsOnFirstError(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	_, err := RunConcurrentForeach(ctx, ForeachOptions{
		ThreadNum:        1,
		TaskNumPerThread: 1,
		Source:           ArgSource{Items: itemsOf(1, 2, 3)},
		ErrorPolicy:      ErrorPolicyStop,
		Operation: func(ctx *Context, arg ArgValue) (any, error) {
			if arg.Seq[0].(int) == 2 {
				return nil, fmt.Errorf("boom")
			}
			return arg.Seq[0], nil
		},
	})
	require.Error(t, err)
}

func TestRunConcurrentForeachContinuePolicyFillsDefaultAndKeepsGoing(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	results, err := RunConcurrentForeach(ctx, ForeachOptions{
		ThreadNum:         1,
		TaskNumPerThread:  3,
		Source:            ArgSource{Items: itemsOf(1, 2, 3)},
		ErrorPolicy:       ErrorPolicyContinue,
		ErrorDefaultValue: -1,
		Operation: func(ctx *Context, arg ArgValue) (any, error) {
			if arg.Seq[0].(int) == 2 {
				return nil, fmt.Errorf("boom")
			}
			return arg.Seq[0], nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, []any{1, -1, 3}, results)
}

func TestRunConcurrentForeachErrorHandlerOverridesDefaultValue(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	results, err := RunConcurrentForeach(ctx, ForeachOptions{
		ThreadNum:         1,
		TaskNumPerThread:  2,
		Source:            ArgSource{Items: itemsOf(1, 2)},
		ErrorPolicy:       ErrorPolicyContinue,
		ErrorDefaultValue: -1,
		ErrorHandler: func(ctx *Context, err error) (any, error) {
			return 99, nil
		},
		Operation: func(ctx *Context, arg ArgValue) (any, error) {
			if arg.Seq[0].(int) == 2 {
				return nil, fmt.Errorf("boom")
			}
			return arg.Seq[0], nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, []any{1, 99}, results)
}

func TestRunConcurrentForeachSubJoinAndResultJoin(t *testing.T) {
	ctx := NewRootContext(nil, nil, discardLogger(), nil)
	results, err := RunConcurrentForeach(ctx, ForeachOptions{
		ThreadNum:        2,
		TaskNumPerThread: 2,
		Source:           ArgSource{Items: itemsOf(1, 2, 3, 4)},
		Operation:        func(ctx *Context, arg ArgValue) (any, error) { return arg.Seq[0], nil },
		SubJoin: func(ctx *Context, chunkResults []any) (any, error) {
			sum := 0
			for _, r := range chunkResults {
				sum += r.(int)
			}
			return sum, nil
		},
		ResultJoin: func(ctx *Context, chunkOutputs []any) (any, error) {
			total := 0
			for _, o := range chunkOutputs {
				total += o.(int)
			}
			return total, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, []any{10}, results)
}
