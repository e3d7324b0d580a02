package persist_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workflowforge/engine/internal/persist"
	"github.com/workflowforge/engine/internal/persist/filepersist"
	"github.com/workflowforge/engine/internal/plugin"
	"github.com/workflowforge/engine/internal/wflog"
	"github.com/workflowforge/engine/internal/workflow"
)

// asInt tolerates values recovered from a JSON checkpoint, where integers
// round-trip as float64.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// divideUnits builds a three-job workflow whose middle job divides by a
// runtime-supplied denominator, so a bad denominator fails and checkpoints
// mid-run, and a corrected one lets a resumed run finish.
func divideUnits() []workflow.Unit {
	return []workflow.Unit{
		&workflow.Job{Name: "add_one", Args: workflow.Seq(5), Caller: func(ctx plugin.Context, args ...any) (any, error) {
			return asInt(args[0]) + 1, nil
		}},
		&workflow.Job{Name: "division", Args: workflow.Seq(workflow.Ref("$add_one.result"), 0), Caller: func(ctx plugin.Context, args ...any) (any, error) {
			a := asInt(args[0])
			b := asInt(args[1])
			if b == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return a / b, nil
		}},
		&workflow.Job{Name: "add_three", Args: workflow.Seq(workflow.Ref("$division.result")), Caller: func(ctx plugin.Context, args ...any) (any, error) {
			return asInt(args[0]) + 3, nil
		}},
	}
}

func TestPersistAndResumeAfterFailure(t *testing.T) {
	store, err := filepersist.New(t.TempDir())
	require.NoError(t, err)

	wf, err := workflow.NewWorkflow(divideUnits(), workflow.WithListeners(
		workflow.ListenerEntry{Instance: persist.NewListener(store, "run-scenario-6")},
	))
	require.NoError(t, err)

	end := wf.Execute(workflow.ExecuteOptions{})
	require.Equal(t, workflow.EndError, end.Status)

	artifact, found, err := store.Load("run-scenario-6")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, persist.StatusRunning, artifact.Status)
	require.Equal(t, "division", artifact.CurrentUnit)

	freshFactory := func() *workflow.Context {
		return workflow.NewRootContext(nil, nil, wflog.Workflow(), nil)
	}
	recoverPolicy := persist.NewRecoverPolicy(store, "run-scenario-6", freshFactory)
	info, err := recoverPolicy.Load(nil)
	require.NoError(t, err)
	require.Equal(t, "division", info.BeginUnit)

	wf2, err := workflow.NewWorkflow(divideUnits(), workflow.WithListeners(
		workflow.ListenerEntry{Instance: persist.NewListener(store, "run-scenario-6")},
	))
	require.NoError(t, err)

	end2 := wf2.Execute(workflow.ExecuteOptions{
		StartPoint:     info.BeginUnit,
		ContextFactory: info.ContextFactory,
		RuntimeArgs:    map[string]workflow.ArgValue{"division": workflow.Seq(workflow.Ref("$add_one.result"), 2)},
	})
	require.Equal(t, workflow.EndOK, end2.Status)
	require.Equal(t, 6, end2.Result)

	final, found, err := store.Load("run-scenario-6")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, persist.StatusFinished, final.Status)
}

func TestRecoverPolicyReturnsWorkflowFinishedForCompletedRun(t *testing.T) {
	store, err := filepersist.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save("done", persist.Artifact{Status: persist.StatusFinished, CurrentUnit: "end"}))

	freshFactory := func() *workflow.Context {
		return workflow.NewRootContext(nil, nil, wflog.Workflow(), nil)
	}
	recoverPolicy := persist.NewRecoverPolicy(store, "done", freshFactory)
	_, err = recoverPolicy.Load(nil)
	require.Error(t, err)
}

func TestRecoverPolicyReturnsFreshFactoryWhenNothingPersisted(t *testing.T) {
	store, err := filepersist.New(t.TempDir())
	require.NoError(t, err)

	freshFactory := func() *workflow.Context {
		return workflow.NewRootContext(nil, nil, wflog.Workflow(), nil)
	}
	recoverPolicy := persist.NewRecoverPolicy(store, "never-started", freshFactory)
	info, err := recoverPolicy.Load(nil)
	require.NoError(t, err)
	require.Equal(t, "", info.BeginUnit)
}
