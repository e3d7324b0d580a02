package workflow

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/workflowforge/engine/internal/plugin"
	"github.com/workflowforge/engine/internal/wferrors"
	"github.com/workflowforge/engine/internal/wflog"
)

const endSentinel = "end"

// Workflow is a constructed, linearized graph of units plus the ambient
// config/args/logger/registry/listeners every execution of it shares
// (spec §4.3 "Sequencer (Workflow Engine)").
type Workflow struct {
	units  []Unit
	byName map[string]Unit
	index  map[string]int

	config    map[string]any
	args      map[string]ArgValue
	logger    zerolog.Logger
	registry  *plugin.Chain
	listeners []ListenerEntry

	environments map[string]Env
}

// Option configures a Workflow at construction time.
type Option func(*Workflow)

// WithConfig sets the workflow's effective configuration mapping.
func WithConfig(config map[string]any) Option {
	return func(w *Workflow) { w.config = config }
}

// WithArgs seeds the workflow's per-unit runtime argument map.
func WithArgs(args map[string]ArgValue) Option {
	return func(w *Workflow) { w.args = args }
}

// WithLogger overrides the default package logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

// WithRegistry attaches the plugin lookup chain used by Job units that
// reference a PluginName.
func WithRegistry(registry *plugin.Chain) Option {
	return func(w *Workflow) { w.registry = registry }
}

// WithListeners registers the workflow-level listeners (instances, type
// factories, or callback bundles).
func WithListeners(entries ...ListenerEntry) Option {
	return func(w *Workflow) { w.listeners = entries }
}

// WithEnvironments registers named environments (spec §6, §12).
func WithEnvironments(envs ...Env) Option {
	return func(w *Workflow) {
		w.environments = make(map[string]Env, len(envs))
		for _, e := range envs {
			w.environments[e.Name] = e
		}
	}
}

// NewWorkflow linearizes units, checks name uniqueness, and computes
// every unit's default transition fields (spec §3 invariants).
func NewWorkflow(units []Unit, opts ...Option) (*Workflow, error) {
	w := &Workflow{
		units:        units,
		byName:       make(map[string]Unit, len(units)),
		index:        make(map[string]int, len(units)),
		config:       map[string]any{},
		args:         map[string]ArgValue{},
		logger:       wflog.Workflow(),
		environments: map[string]Env{},
	}
	for _, opt := range opts {
		opt(w)
	}

	for i, u := range units {
		if _, exists := w.byName[u.UnitName()]; exists {
			return nil, wferrors.WorkflowUnitExists(u.UnitName())
		}
		w.byName[u.UnitName()] = u
		w.index[u.UnitName()] = i
	}

	for i, u := range units {
		switch v := u.(type) {
		case *Job:
			if v.PluginName == "" && v.Caller == nil {
				return nil, wferrors.InvalidArgument(fmt.Sprintf("job %q must set exactly one of PluginName or Caller", v.Name))
			}
			if v.PluginName != "" && v.Caller != nil {
				return nil, wferrors.InvalidArgument(fmt.Sprintf("job %q must not set both PluginName and Caller", v.Name))
			}
			if v.GotoName == "" {
				v.GotoName = nextNameOrEnd(units, i)
			}
		case *Join:
			if v.GotoName == "" {
				v.GotoName = nextNameOrEnd(units, i)
			}
		case *Fork:
			if err := defaultFork(units, w.index, i, v); err != nil {
				return nil, err
			}
		}
	}

	return w, nil
}

func nextNameOrEnd(units []Unit, i int) string {
	if i+1 < len(units) {
		return units[i+1].UnitName()
	}
	return endSentinel
}

func defaultFork(units []Unit, index map[string]int, i int, f *Fork) error {
	if f.StartPoint == "" {
		if i+1 >= len(units) {
			return wferrors.InvalidArgument(fmt.Sprintf("fork %q has no following unit to default start_point to", f.Name))
		}
		f.StartPoint = units[i+1].UnitName()
	}

	if f.GotoName == "" {
		joinIdx := -1
		for j := i + 1; j < len(units); j++ {
			if units[j].UnitKind() == KindJoin {
				joinIdx = j
				break
			}
		}
		if joinIdx == -1 {
			return wferrors.InvalidArgument(fmt.Sprintf("fork %q has no subsequent join to default goto to", f.Name))
		}
		f.GotoName = units[joinIdx].UnitName()
	}

	if f.EndPoint == "" {
		joinIdx, ok := index[f.GotoName]
		if !ok || joinIdx-1 < i {
			return wferrors.InvalidArgument(fmt.Sprintf("fork %q cannot default end_point before its join %q", f.Name, f.GotoName))
		}
		f.EndPoint = units[joinIdx-1].UnitName()
	}

	return nil
}

// ExecuteOptions configures one run of a Workflow.
type ExecuteOptions struct {
	// StartPoint overrides the first unit to run; defaults to the
	// workflow's first unit.
	StartPoint string

	// RuntimeArgs seeds/overrides per-unit runtime argument values for
	// this run only.
	RuntimeArgs map[string]ArgValue

	// ContextFactory overrides root-context construction, used by
	// recovery to seed a context pre-loaded with persisted data
	// (spec §4.7).
	ContextFactory ContextFactory

	// Environment selects a named environment (spec §12) whose Args/
	// Config are used as the merge base before RuntimeArgs.
	Environment string

	// Listeners overrides the workflow's registered listeners for this
	// run only.
	Listeners []ListenerEntry

	// Ctx is the sequencer's control interface: cancelling it (or letting
	// it time out) stops the run at the next unit boundary and yields an
	// EndStopped record instead of running to completion (spec §7
	// "workflow-stopped"). Defaults to context.Background(), which never
	// stops a run.
	Ctx context.Context
}

// Execute runs the workflow once, from StartPoint (or the first unit) to
// completion, and returns its terminal End (spec §4.3).
func (w *Workflow) Execute(opts ExecuteOptions) *End {
	runID := uuid.NewString()

	factory := opts.ContextFactory
	if factory == nil {
		factory = func() *Context { return NewRootContext(w.config, cloneArgs(w.args), w.logger, w.registry) }
	}
	ctx := factory()
	ctx.runID = runID

	if opts.Environment != "" {
		if env, ok := w.environments[opts.Environment]; ok {
			for name, v := range env.Args {
				ctx.SetArgsFor(name, v)
			}
			for k, v := range env.Config {
				ctx.config[k] = v
			}
		}
	}
	for name, v := range opts.RuntimeArgs {
		ctx.SetArgsFor(name, v)
	}

	entries := w.listeners
	if opts.Listeners != nil {
		entries = opts.Listeners
	}
	ls := newListenerSet(entries)
	ls.fireOnStart(ctx)

	start := opts.StartPoint
	if start == "" {
		start = w.units[0].UnitName()
	}

	if opts.Ctx != nil {
		ctx.stopCtx = opts.Ctx
	}

	return w.run(ctx, start, "", ls)
}

func cloneArgs(args map[string]ArgValue) map[string]ArgValue {
	out := make(map[string]ArgValue, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// run is the sequencer's main loop (spec §4.3). endPoint is the inclusive
// bound a fork-bounded sub-run must stop at, or "" for an unbounded run.
func (w *Workflow) run(ctx *Context, startPoint, endPoint string, ls *listenerSet) *End {
	current := startPoint
	var lastResult any

	for {
		if err := ctx.stopErr(); err != nil {
			stopped := wferrors.WorkflowStopped()
			ls.fireOnError(ctx, string(wferrors.CodeWorkflowStopped), stopped.Error(), "")
			return StoppedEnd(err.Error())
		}

		unit, ok := w.byName[current]
		if !ok {
			err := wferrors.InvalidArgument(fmt.Sprintf("unknown target unit %q", current))
			ls.fireOnError(ctx, string(wferrors.CodeInvalidArgument), err.Error(), "")
			return BadRequestEnd(err.Error())
		}

		ctx.setCurrent(current, unit.UnitKind())
		ls.fireOnUnitStart(ctx)

		if end, ok := unit.(*End); ok {
			terminal, err := w.dispatchEnd(ctx, end)
			if err != nil {
				ls.fireOnError(ctx, string(wferrors.CodeUnhandled), err.Error(), string(debug.Stack()))
				return ErrorEnd("error", err.Error(), string(debug.Stack()))
			}
			ls.fireOnUnitFinish(ctx)
			ls.fireOnFinish(ctx)
			return terminal
		}

		next, result, err := w.dispatch(ctx, unit, endPoint, ls)
		if err != nil {
			kind := "error"
			stack := ""
			if !wferrors.IsInvalidArgument(err) {
				stack = string(debug.Stack())
			}
			ls.fireOnError(ctx, kind, err.Error(), stack)
			if wferrors.IsInvalidArgument(err) {
				return BadRequestEnd(err.Error())
			}
			return ErrorEnd(kind, err.Error(), stack)
		}
		if result != nil || unit.UnitKind() == KindJob || unit.UnitKind() == KindJoin {
			lastResult = result
		}

		ls.fireOnUnitFinish(ctx)

		if next == endSentinel {
			ls.fireOnFinish(ctx)
			return OkEnd(lastResult)
		}
		current = next
	}
}

// dispatch runs one non-End unit and returns its transition target plus
// any produced result.
func (w *Workflow) dispatch(ctx *Context, unit Unit, endPoint string, ls *listenerSet) (next string, result any, err error) {
	switch v := unit.(type) {
	case *Job:
		result, err = w.runJob(ctx, v)
		if err != nil {
			return "", nil, err
		}
		if endPoint != "" && v.Name == endPoint {
			return endSentinel, result, nil
		}
		return v.GotoName, result, nil

	case *Decision:
		n, derr := v.Decide(ctx)
		if derr != nil {
			return "", nil, derr
		}
		if n != endSentinel {
			if _, ok := w.byName[n]; !ok {
				return "", nil, wferrors.InvalidArgument(fmt.Sprintf("decision %q returned unknown unit %q", v.Name, n))
			}
		}
		return n, nil, nil

	case *Fork:
		runFn := w.runFork
		if v.Sync {
			runFn = w.RunSync
		}
		if ferr := runFn(ctx, v, ls); ferr != nil {
			return "", nil, ferr
		}
		if endPoint != "" && v.Name == endPoint {
			return endSentinel, nil, nil
		}
		return v.GotoName, nil, nil

	case *Join:
		result, err = w.runJoin(ctx, v)
		if err != nil {
			return "", nil, err
		}
		if endPoint != "" && v.Name == endPoint {
			return endSentinel, result, nil
		}
		return v.GotoName, result, nil

	default:
		return "", nil, wferrors.Newf(wferrors.CodeInvalidStatus, "unrecognized unit kind for %q", unit.UnitName())
	}
}

func (w *Workflow) dispatchEnd(ctx *Context, e *End) (*End, error) {
	result := e.Result
	if e.Finalize != nil {
		r, err := e.Finalize(ctx)
		if err != nil {
			return nil, err
		}
		result = r
	}
	return &End{
		Name:     e.Name,
		Status:   e.Status,
		Result:   result,
		ExcKind:  e.ExcKind,
		ExcValue: e.ExcValue,
		Stack:    e.Stack,
	}, nil
}

// runJob resolves a job's arguments and invokes its executable, handling
// both the ordinary single-invocation path and the generator-driven path
// (spec §4.2, §4.3).
func (w *Workflow) runJob(ctx *Context, job *Job) (any, error) {
	runtime := ctx.ArgsFor(job.Name)

	template, err := materialize(job.Args, ctx)
	if err != nil {
		return nil, err
	}

	if template.Kind == KindArgGenerator {
		materializedRuntime, rerr := materialize(runtime, ctx)
		if rerr != nil {
			return nil, rerr
		}
		var results []any
		for item := range template.Gen(ctx) {
			merged, merr := mergeValues(item, materializedRuntime)
			if merr != nil {
				return nil, merr
			}
			resolved, derr := derefStrings(merged, ctx)
			if derr != nil {
				return nil, derr
			}
			r, ierr := w.invoke(ctx, job, resolved)
			if ierr != nil {
				return nil, ierr
			}
			results = append(results, r)
		}
		ctx.Set(job.Name+".result", results)
		return results, nil
	}

	resolved, err := Resolve(job.Args, runtime, ctx)
	if err != nil {
		return nil, err
	}
	result, err := w.invoke(ctx, job, resolved)
	if err != nil {
		return nil, err
	}
	ctx.Set(job.Name+".result", result)
	return result, nil
}

func (w *Workflow) invoke(ctx *Context, job *Job, resolved ArgValue) (any, error) {
	positional, keyword := toCallArgs(resolved)

	if job.Caller != nil {
		if keyword != nil {
			return job.Caller(ctx, keyword)
		}
		return job.Caller(ctx, positional...)
	}

	if w.registry == nil {
		return nil, wferrors.NotFound("plugin registry", job.PluginName)
	}
	p, err := w.registry.Get(job.PluginName)
	if err != nil {
		return nil, err
	}
	if keyword != nil {
		return p.Execute(ctx, keyword)
	}
	return p.Execute(ctx, positional...)
}
