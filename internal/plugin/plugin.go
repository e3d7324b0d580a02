// Package plugin implements the workflow engine's plugin lifecycle:
// construction from three source shapes, state transitions
// (unprepared -> prepared -> dead), and the name-keyed registries
// (PluginManager, PluginManagerChain) that hold them.
package plugin

import (
	"fmt"
	"reflect"

	"github.com/workflowforge/engine/internal/wferrors"
)

// Context is the minimal surface a plugin's execute/prepare/cleanup
// functions need from the caller's context. workflow.Context satisfies
// this interface structurally; plugin does not import the workflow
// package so the two can depend on each other without a cycle.
type Context interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// ExecuteFunc is a plugin's execute operation.
type ExecuteFunc func(ctx Context, args ...any) (any, error)

// LifecycleFunc is a plugin's prepare or cleanup operation.
type LifecycleFunc func(config any) (any, error)

// Status is a plugin's lifecycle state.
type Status int

const (
	StatusUnprepared Status = iota
	StatusPrepared
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusUnprepared:
		return "unprepared"
	case StatusPrepared:
		return "prepared"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Plugin is an immutable descriptor wrapping a normalized
// (execute, prepare, cleanup) triple plus validators, regardless of which
// of the three source shapes it was built from (spec §4.1, §9 "the origin
// shape is discarded after construction").
type Plugin struct {
	name        string
	description string

	execute ExecuteFunc
	prepare LifecycleFunc
	cleanup LifecycleFunc

	argsValidator   Validator
	configValidator Validator

	status Status
}

// Name returns the plugin's registry name.
func (p *Plugin) Name() string { return p.name }

// Description returns the plugin's description.
func (p *Plugin) Description() string { return p.description }

// Status returns the plugin's current lifecycle state.
func (p *Plugin) Status() Status { return p.status }

// Bundle is the "module-like bundle" construction shape: a set of loosely
// related functions plus optional metadata, as one might expose from a Go
// package-level set of vars. Execute is required; Prepare/Cleanup/Name/
// validators are optional.
type Bundle struct {
	Name            string
	Description     string
	Execute         ExecuteFunc
	Prepare         LifecycleFunc
	Cleanup         LifecycleFunc
	ArgsValidator   Validator
	ConfigValidator Validator
}

// FromFunc builds a Plugin from a plain callable (source shape 1): a
// plugin whose execute is the callable and which has no prepare/cleanup.
func FromFunc(name string, fn ExecuteFunc) (*Plugin, error) {
	return FromBundle(Bundle{Name: name, Execute: fn})
}

// FromBundle builds a Plugin from a module-like bundle (source shape 2).
func FromBundle(b Bundle) (*Plugin, error) {
	if b.Execute == nil {
		return nil, wferrors.InvalidPlugin("plugin bundle missing execute")
	}
	if b.Name == "" {
		return nil, wferrors.InvalidPlugin("plugin name must not be blank")
	}
	return &Plugin{
		name:            b.Name,
		description:     b.Description,
		execute:         b.Execute,
		prepare:         b.Prepare,
		cleanup:         b.Cleanup,
		argsValidator:   b.ArgsValidator,
		configValidator: b.ConfigValidator,
		status:          StatusUnprepared,
	}, nil
}

// ClassLike is the "class-like bundle" construction shape (source shape
// 3): any value whose methods are bound as a plugin's operations. An
// Execute method is required; Prepare/Cleanup are optional and detected by
// a type assertion against the corresponding interface.
type ClassLike interface {
	Execute(ctx Context, args ...any) (any, error)
}

// Preparer is implemented by a ClassLike value that wants a prepare hook.
type Preparer interface {
	Prepare(config any) (any, error)
}

// Cleaner is implemented by a ClassLike value that wants a cleanup hook.
type Cleaner interface {
	Cleanup(config any) (any, error)
}

// FromClass builds a Plugin by binding a ClassLike instance's methods,
// the same execute/prepare/cleanup binding a plugin loaded from a class
// would get. In Go the instance is supplied ready-made (constructor
// arguments are an ordinary Go concern handled before calling FromClass).
func FromClass(name string, instance ClassLike) (*Plugin, error) {
	if instance == nil {
		return nil, wferrors.InvalidPlugin("plugin instance must not be nil")
	}
	if name == "" {
		return nil, wferrors.InvalidPlugin("plugin name must not be blank")
	}
	if err := checkArity(instance); err != nil {
		return nil, err
	}

	p := &Plugin{
		name:    name,
		execute: instance.Execute,
		status:  StatusUnprepared,
	}
	if pr, ok := instance.(Preparer); ok {
		p.prepare = pr.Prepare
	}
	if cl, ok := instance.(Cleaner); ok {
		p.cleanup = cl.Cleanup
	}
	return p, nil
}

// checkArity only rejects an instance that reflect reports as invalid; it
// does not inspect method arity. Go's static typing already fixes the
// arity of execute (context plus variadic args) and prepare/cleanup (one
// config argument) for FromClass/FromBundle through the ClassLike,
// ExecuteFunc and LifecycleFunc types, so for a non-nil instance this
// check always passes.
func checkArity(instance any) error {
	v := reflect.ValueOf(instance)
	if !v.IsValid() {
		return wferrors.InvalidPlugin("invalid plugin instance")
	}
	return nil
}

// Prepare transitions the plugin unprepared -> prepared, invoking its
// prepare hook (if any) with config. Legal only from StatusUnprepared.
func (p *Plugin) Prepare(config any) error {
	switch p.status {
	case StatusPrepared:
		return wferrors.New(wferrors.CodeAlreadyPrepared, fmt.Sprintf("plugin %q already prepared", p.name))
	case StatusDead:
		return wferrors.New(wferrors.CodeAlreadyDead, fmt.Sprintf("plugin %q is dead", p.name))
	}

	if p.configValidator != nil {
		if err := p.configValidator.Validate(config); err != nil {
			return err
		}
	}
	if p.prepare != nil {
		if _, err := p.prepare(config); err != nil {
			return err
		}
	}
	p.status = StatusPrepared
	return nil
}

// Execute invokes the plugin's execute operation. Legal only from
// StatusPrepared (a plugin with no Prepare hook must still have Prepare
// called once to reach StatusPrepared before Execute will succeed).
func (p *Plugin) Execute(ctx Context, args ...any) (any, error) {
	if p.status != StatusPrepared {
		return nil, wferrors.New(wferrors.CodeUnprepared, fmt.Sprintf("plugin %q is not prepared", p.name))
	}
	if p.argsValidator != nil {
		if err := p.argsValidator.Validate(args); err != nil {
			return nil, err
		}
	}
	return p.execute(ctx, args...)
}

// Cleanup transitions the plugin to StatusDead, invoking its cleanup hook
// (if any) with config. Idempotent: calling Cleanup again once dead is a
// no-op, matching spec §3 ("cleanup from prepared, idempotent to dead").
func (p *Plugin) Cleanup(config any) error {
	if p.status == StatusDead {
		return nil
	}
	if p.cleanup != nil {
		if _, err := p.cleanup(config); err != nil {
			return err
		}
	}
	p.status = StatusDead
	return nil
}
