package workflow

import "sync"

// Listener is the lifecycle event protocol a workflow run fires against
// (spec §3, §4.3). Implement BaseListener and override only the hooks you
// need.
type Listener interface {
	OnStart(ctx *Context)
	OnUnitStart(ctx *Context)
	OnUnitFinish(ctx *Context)
	OnError(ctx *Context, excKind, excValue, stack string)
	OnFinish(ctx *Context)
}

// BaseListener is a no-op Listener; embed it to implement only the hooks
// you care about.
type BaseListener struct{}

func (BaseListener) OnStart(*Context)                            {}
func (BaseListener) OnUnitStart(*Context)                        {}
func (BaseListener) OnUnitFinish(*Context)                       {}
func (BaseListener) OnError(*Context, string, string, string)    {}
func (BaseListener) OnFinish(*Context)                           {}

// ListenerFactory builds one Listener instance per execution, for
// listeners registered "as a type" rather than as a shared instance
// (spec §3, §9 "Listener registered as a type").
type ListenerFactory func() Listener

// ListenerEntry is exactly one of Instance (reused across executions) or
// Factory (re-instantiated once per execution, cached by registration
// index).
type ListenerEntry struct {
	Instance Listener
	Factory  ListenerFactory
}

// CallbackBundle wraps loose event-name -> callable pairs into a Listener
// (spec §4.3: "Listeners may also be supplied as {event_name: callable}
// bundles").
type CallbackBundle struct {
	OnStart      func(ctx *Context)
	OnUnitStart  func(ctx *Context)
	OnUnitFinish func(ctx *Context)
	OnError      func(ctx *Context, excKind, excValue, stack string)
	OnFinish     func(ctx *Context)
}

type wrappedCallbacks struct {
	BaseListener
	b CallbackBundle
}

func (w *wrappedCallbacks) OnStart(ctx *Context) {
	if w.b.OnStart != nil {
		w.b.OnStart(ctx)
	}
}
func (w *wrappedCallbacks) OnUnitStart(ctx *Context) {
	if w.b.OnUnitStart != nil {
		w.b.OnUnitStart(ctx)
	}
}
func (w *wrappedCallbacks) OnUnitFinish(ctx *Context) {
	if w.b.OnUnitFinish != nil {
		w.b.OnUnitFinish(ctx)
	}
}
func (w *wrappedCallbacks) OnError(ctx *Context, kind, value, stack string) {
	if w.b.OnError != nil {
		w.b.OnError(ctx, kind, value, stack)
	}
}
func (w *wrappedCallbacks) OnFinish(ctx *Context) {
	if w.b.OnFinish != nil {
		w.b.OnFinish(ctx)
	}
}

// WrapCallbacks builds a Listener from a CallbackBundle, as a ready-made
// ListenerEntry.
func WrapCallbacks(b CallbackBundle) ListenerEntry {
	return ListenerEntry{Instance: &wrappedCallbacks{b: b}}
}

// listenerSet resolves ListenerEntry registrations to concrete Listener
// instances for one execution, instantiating type-registered factories at
// most once and caching them by registration index (spec §4.3).
type listenerSet struct {
	entries []ListenerEntry

	mu    sync.Mutex
	cache map[int]Listener
}

func newListenerSet(entries []ListenerEntry) *listenerSet {
	return &listenerSet{entries: entries, cache: map[int]Listener{}}
}

func (ls *listenerSet) withExtra(extra []ListenerEntry) *listenerSet {
	combined := make([]ListenerEntry, 0, len(ls.entries)+len(extra))
	combined = append(combined, ls.entries...)
	combined = append(combined, extra...)
	return newListenerSet(combined)
}

func (ls *listenerSet) resolve(i int) Listener {
	if ls.entries[i].Instance != nil {
		return ls.entries[i].Instance
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if l, ok := ls.cache[i]; ok {
		return l
	}
	l := ls.entries[i].Factory()
	ls.cache[i] = l
	return l
}

func (ls *listenerSet) fireOnStart(ctx *Context) {
	for i := range ls.entries {
		ls.resolve(i).OnStart(ctx)
	}
}

func (ls *listenerSet) fireOnUnitStart(ctx *Context) {
	for i := range ls.entries {
		ls.resolve(i).OnUnitStart(ctx)
	}
}

func (ls *listenerSet) fireOnUnitFinish(ctx *Context) {
	for i := range ls.entries {
		ls.resolve(i).OnUnitFinish(ctx)
	}
}

func (ls *listenerSet) fireOnError(ctx *Context, kind, value, stack string) {
	for i := range ls.entries {
		ls.resolve(i).OnError(ctx, kind, value, stack)
	}
}

func (ls *listenerSet) fireOnFinish(ctx *Context) {
	for i := range ls.entries {
		ls.resolve(i).OnFinish(ctx)
	}
}
