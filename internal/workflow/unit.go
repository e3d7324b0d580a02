package workflow

import "github.com/workflowforge/engine/internal/plugin"

// UnitKind tags the five work-unit variants (spec §3).
type UnitKind string

const (
	KindJob      UnitKind = "job"
	KindDecision UnitKind = "decision"
	KindFork     UnitKind = "fork"
	KindJoin     UnitKind = "join"
	KindEnd      UnitKind = "end"
)

// Unit is the polymorphic work-unit protocol every node in a workflow
// graph implements.
type Unit interface {
	UnitName() string
	UnitKind() UnitKind
}

// Job runs one operation — either a registered plugin (PluginName) or a
// local callable (Caller) — against resolved arguments. Exactly one of
// PluginName/Caller must be set.
type Job struct {
	Name       string
	PluginName string
	Caller     plugin.ExecuteFunc
	Args       ArgValue

	// GotoName is the next unit's name, or "end". Left blank at
	// construction, it defaults to the following unit in declaration
	// order (spec §3).
	GotoName string
}

func (j *Job) UnitName() string  { return j.Name }
func (j *Job) UnitKind() UnitKind { return KindJob }

// DecideFunc computes a Decision's transition from the current context.
// It must return an existing unit name or "end".
type DecideFunc func(ctx *Context) (string, error)

// Decision picks the next unit dynamically via Decide.
type Decision struct {
	Name   string
	Decide DecideFunc
}

func (d *Decision) UnitName() string  { return d.Name }
func (d *Decision) UnitKind() UnitKind { return KindDecision }

// JoinFunc aggregates a fork's worker results. Called with the parent
// context and each worker's terminal End, in worker-id order.
type JoinFunc func(parent *Context, ends []*End) (any, error)

// Fork spawns ThreadNum sub-sequencers over the unit list bounded by
// [StartPoint, EndPoint], synchronizing at the paired Join named by
// GotoName (spec §4.4).
type Fork struct {
	Name       string
	ThreadNum  int
	StartPoint string
	EndPoint   string
	GotoName   string

	// Pool, if set, is used instead of a freshly constructed worker
	// pool; the fork does not own (and will not shut down) a supplied
	// pool.
	Pool *WorkerPool

	// Sync selects the MainThreadFork/MainThreadJoin variant: workers
	// run sequentially on the calling goroutine instead of a pool, for
	// deterministic tests (spec §4.4).
	Sync bool

	// InheritListeners selects whether fork workers see the parent
	// workflow's listeners in addition to ForkListeners, or only
	// ForkListeners (spec §4.4 step 4c).
	InheritListeners bool
	ForkListeners    []ListenerEntry
}

func (f *Fork) UnitName() string  { return f.Name }
func (f *Fork) UnitKind() UnitKind { return KindFork }

// Join waits on its paired fork's latch and aggregates worker results.
// If JoinFn is nil, the default aggregation is used (spec §4.4 step 3).
type Join struct {
	Name     string
	GotoName string
	JoinFn   JoinFunc
}

func (j *Join) UnitName() string  { return j.Name }
func (j *Join) UnitKind() UnitKind { return KindJoin }

// EndStatus is the terminal status an End unit or sequencer run carries.
type EndStatus string

const (
	EndOK         EndStatus = "ok"
	EndBadRequest EndStatus = "bad_request"
	EndError      EndStatus = "error"
	EndStopped    EndStatus = "stopped"
)

// FinalizeFunc computes an End unit's result at dispatch time, overriding
// its static Result field if set.
type FinalizeFunc func(ctx *Context) (any, error)

// End is both a terminal work unit (when placed in a workflow's unit
// list) and the record the sequencer returns at termination (spec §3,
// §4.3 step 6).
type End struct {
	Name     string
	Status   EndStatus
	Result   any
	Finalize FinalizeFunc

	// ExcKind/ExcValue/Stack are populated for Status == EndError.
	ExcKind  string
	ExcValue string
	Stack    string
}

func (e *End) UnitName() string  { return e.Name }
func (e *End) UnitKind() UnitKind { return KindEnd }

// OkEnd builds a successful terminal record.
func OkEnd(result any) *End { return &End{Status: EndOK, Result: result} }

// BadRequestEnd builds a terminal record for an invalid-argument failure.
func BadRequestEnd(message string) *End { return &End{Status: EndBadRequest, Result: message} }

// ErrorEnd builds a terminal record for an unhandled error.
func ErrorEnd(kind, value, stack string) *End {
	return &End{Status: EndError, ExcKind: kind, ExcValue: value, Stack: stack}
}

// StoppedEnd builds a terminal record for a run halted by an external
// stop signal observed by the sequencer control interface (spec §7).
func StoppedEnd(message string) *End { return &End{Status: EndStopped, Result: message} }
