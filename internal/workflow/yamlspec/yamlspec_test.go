package yamlspec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workflowforge/engine/internal/plugin"
	"github.com/workflowforge/engine/internal/workflow"
)

const doc = `
units:
  - kind: job
    name: add_one
    caller: add_one
    args_seq: [1]
  - kind: job
    name: add_three
    caller: add_three
    args_ref: "$add_one.result"
  - kind: end
    name: done
`

func TestLoadBuildsRunnableWorkflow(t *testing.T) {
	callers := Callers{
		"add_one":   func(ctx plugin.Context, args ...any) (any, error) { return args[0].(int) + 1, nil },
		"add_three": func(ctx plugin.Context, args ...any) (any, error) { return args[0].(int) + 3, nil },
	}

	units, err := Load([]byte(doc), callers, nil)
	require.NoError(t, err)
	require.Len(t, units, 3)

	wf, err := workflow.NewWorkflow(units)
	require.NoError(t, err)

	// The "done" End unit has no finalizer, so the run's End carries no
	// result; the last job's result is read from the context instead.
	var got any
	end := wf.Execute(workflow.ExecuteOptions{Listeners: []workflow.ListenerEntry{
		workflow.WrapCallbacks(workflow.CallbackBundle{OnFinish: func(ctx *workflow.Context) {
			got, _ = ctx.Get("add_three.result")
		}}),
	}})
	require.Equal(t, workflow.EndOK, end.Status)
	require.Equal(t, 5, got)
}

func TestLoadRejectsUnknownCaller(t *testing.T) {
	_, err := Load([]byte(doc), Callers{}, nil)
	require.Error(t, err)
}

func TestLoadRejectsMissingName(t *testing.T) {
	_, err := Load([]byte("units:\n  - kind: job\n    caller: x\n"), Callers{"x": nil}, nil)
	require.Error(t, err)
}
