// Package persist implements the checkpoint/recover protocol (spec
// §4.7): a Listener that serializes the running context before each unit
// and once more on finish, and a RecoverPolicy that reads that artifact
// back into a RecoverInfo a Workflow can resume from.
package persist

import (
	"time"

	"github.com/workflowforge/engine/internal/wferrors"
	"github.com/workflowforge/engine/internal/workflow"
)

// Status is the persisted artifact's lifecycle status.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

// Artifact is the persisted-state layout from spec §6: status, the
// current unit name/kind, and a snapshot of the context's data map.
type Artifact struct {
	Status          Status         `json:"status"`
	CurrentUnit     string         `json:"current_unit"`
	CurrentUnitKind string         `json:"current_unit_kind"`
	Data            map[string]any `json:"data"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Store is the minimal read/write surface a persist backend provides.
// Backends (filepersist, redispersist, sqlpersist) implement Store for
// one run, keyed by an external run identifier the caller supplies.
type Store interface {
	Save(runID string, a Artifact) error
	Load(runID string) (*Artifact, bool, error)
}

// RecoverInfo is the pair a RecoverPolicy hands back to resume an
// interrupted workflow: the unit to resume at, and a context factory
// pre-seeded with the persisted data (spec §4.7, §9).
type RecoverInfo struct {
	BeginUnit      string
	ContextFactory workflow.ContextFactory
}

// RecoverPolicy reads a persisted artifact and produces a RecoverInfo.
type RecoverPolicy struct {
	store Store
	runID string
	fresh workflow.ContextFactory
}

// NewRecoverPolicy builds a RecoverPolicy reading from store under runID.
// freshFactory builds a brand-new (non-recovered) context; it is used
// as-is when there is nothing to recover, and as the template whose
// resulting empty context has persisted data merged in when there is.
func NewRecoverPolicy(store Store, runID string, freshFactory workflow.ContextFactory) *RecoverPolicy {
	return &RecoverPolicy{store: store, runID: runID, fresh: freshFactory}
}

// Load implements spec §4.7's three cases: artifact missing -> begin_unit
// nil, default factory; status finished -> workflow-finished error;
// status running -> begin_unit = persisted current_unit, context factory
// pre-seeds the persisted data map merged with any runtime-supplied data.
func (p *RecoverPolicy) Load(runtimeData map[string]any) (*RecoverInfo, error) {
	artifact, found, err := p.store.Load(p.runID)
	if err != nil {
		return nil, err
	}

	if !found {
		return &RecoverInfo{BeginUnit: "", ContextFactory: p.fresh}, nil
	}
	if artifact.Status == StatusFinished {
		return nil, wferrors.WorkflowFinished()
	}

	persistedData := artifact.Data
	factory := func() *workflow.Context {
		ctx := p.fresh()
		for k, v := range persistedData {
			ctx.Set(k, v)
		}
		for k, v := range runtimeData {
			ctx.Set(k, v)
		}
		return ctx
	}

	return &RecoverInfo{BeginUnit: artifact.CurrentUnit, ContextFactory: factory}, nil
}

// Listener is a workflow.Listener that checkpoints the main-thread
// context on every unit start and once more, with status finished, when
// the run completes. Fork workers are ignored (spec §4.7: "main-thread
// units only").
type Listener struct {
	workflow.BaseListener
	store Store
	runID string
}

// NewListener builds a persist Listener writing to store under runID.
func NewListener(store Store, runID string) *Listener {
	return &Listener{store: store, runID: runID}
}

func (l *Listener) OnUnitStart(ctx *workflow.Context) {
	if ctx.ThreadID() != nil {
		return
	}
	_ = l.store.Save(l.runID, Artifact{
		Status:          StatusRunning,
		CurrentUnit:     ctx.CurrentUnit(),
		CurrentUnitKind: string(ctx.CurrentUnitKind()),
		Data:            ctx.Snapshot(),
		UpdatedAt:       time.Now(),
	})
}

func (l *Listener) OnFinish(ctx *workflow.Context) {
	if ctx.ThreadID() != nil {
		return
	}
	_ = l.store.Save(l.runID, Artifact{
		Status:          StatusFinished,
		CurrentUnit:     ctx.CurrentUnit(),
		CurrentUnitKind: string(ctx.CurrentUnitKind()),
		Data:            ctx.Snapshot(),
		UpdatedAt:       time.Now(),
	})
}
