// Package workflow implements the engine core: the mutable Context, the
// work-unit protocol, the argument resolver, the single-threaded
// sequencer, concurrent fork/join, the concurrent-foreach and buffering
// job variants, and the listener dispatcher.
package workflow

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/workflowforge/engine/internal/plugin"
)

// Context is the per-execution mutable state threaded through a workflow
// run, plus the ambient config/args/logger/plugin-registry every unit can
// read (spec §3). A child context (created for each fork worker) inherits
// config/args/pluginRegistry/logger from its parent and starts with a
// shallow copy of the parent's data map; from then on it evolves
// independently.
type Context struct {
	data   map[string]any
	config map[string]any
	args   map[string]ArgValue

	logger   zerolog.Logger
	registry *plugin.Chain

	currentUnit     string
	currentUnitKind UnitKind

	parent   *Context
	threadID *int
	runID    string

	// stopCtx is the sequencer's control interface (spec §7
	// "workflow-stopped"): when set and cancelled, the main loop halts at
	// the next unit boundary. nil means the run can never be stopped.
	stopCtx context.Context
}

// NewRootContext builds a context with no parent: the one the main
// sequencer runs against. config/args/logger/registry seed every context
// descended from it.
func NewRootContext(config map[string]any, args map[string]ArgValue, logger zerolog.Logger, registry *plugin.Chain) *Context {
	if config == nil {
		config = map[string]any{}
	}
	if args == nil {
		args = map[string]ArgValue{}
	}
	return &Context{
		data:     map[string]any{},
		config:   config,
		args:     args,
		logger:   logger,
		registry: registry,
	}
}

// NewChild builds a context inheriting config/args/registry/logger from c,
// with parent set to c, thread_id set to threadID, and a shallow copy of
// c's data map (spec §3 invariant; spec §4.4 step 4b).
func (c *Context) NewChild(threadID int) *Context {
	data := make(map[string]any, len(c.data))
	for k, v := range c.data {
		data[k] = v
	}
	return &Context{
		data:     data,
		config:   c.config,
		args:     c.args,
		logger:   c.logger,
		registry: c.registry,
		parent:   c,
		threadID: &threadID,
		runID:    c.runID,
		stopCtx:  c.stopCtx,
	}
}

// stopErr reports a non-nil error once this context's control interface
// has been cancelled, nil otherwise.
func (c *Context) stopErr() error {
	if c.stopCtx == nil {
		return nil
	}
	return c.stopCtx.Err()
}

// Get returns the value under key, satisfying plugin.Context.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Set stores value under key, satisfying plugin.Context.
func (c *Context) Set(key string, value any) {
	c.data[key] = value
}

// Delete removes key, used by the join operation to release the private
// fork state keys (spec §4.4 step 5, §5 shared-resource policy).
func (c *Context) Delete(key string) {
	delete(c.data, key)
}

// Config returns the read-only configuration mapping.
func (c *Context) Config() map[string]any { return c.config }

// ArgsFor returns the runtime argument value registered for unitName, or
// Null if none was supplied.
func (c *Context) ArgsFor(unitName string) ArgValue {
	if v, ok := c.args[unitName]; ok {
		return v
	}
	return Null()
}

// SetArgsFor overrides the runtime argument value for unitName; used by
// ExecuteOptions.RuntimeArgs to seed a run's per-unit arguments.
func (c *Context) SetArgsFor(unitName string, v ArgValue) {
	c.args[unitName] = v
}

// Logger returns this context's logger handle.
func (c *Context) Logger() *zerolog.Logger { return &c.logger }

// PluginRegistry returns the plugin lookup chain.
func (c *Context) PluginRegistry() *plugin.Chain { return c.registry }

// Parent returns the spawning context, or nil for the main sequencer.
func (c *Context) Parent() *Context { return c.parent }

// ThreadID returns nil for the main sequencer, or a non-negative id for a
// fork worker.
func (c *Context) ThreadID() *int { return c.threadID }

// CurrentUnit returns the name of the unit currently being dispatched.
func (c *Context) CurrentUnit() string { return c.currentUnit }

// CurrentUnitKind returns the kind of the unit currently being dispatched.
func (c *Context) CurrentUnitKind() UnitKind { return c.currentUnitKind }

// RunID returns the UUID stamped on this execution (spec §11 domain
// stack: run identifiers).
func (c *Context) RunID() string { return c.runID }

func (c *Context) setCurrent(name string, kind UnitKind) {
	c.currentUnit = name
	c.currentUnitKind = kind
}

// Snapshot returns a shallow copy of the data map, used by persist
// listeners to serialize checkpoint state without racing the live map.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// ContextFactory constructs a root context. Supplying a custom factory is
// how recovery seeds a context pre-loaded with persisted data (spec
// §4.7).
type ContextFactory func() *Context
