// Package sweep scans persisted checkpoints for runs stuck in "running"
// past a staleness threshold, on a shared cron schedule. Grounded on the
// teacher's PluginScheduler (a named-job registry wrapping one shared
// *cron.Cron, panic-recovered job wrapping).
package sweep

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/workflowforge/engine/internal/persist"
	"github.com/workflowforge/engine/internal/wflog"
)

// ScanStore is the read surface a sweeper needs: enumerate run IDs whose
// checkpoint predates the staleness threshold. Store implementations that
// can list their keys (filepersist, redispersist via SCAN, sqlpersist via
// a SELECT) implement this alongside persist.Store.
type ScanStore interface {
	persist.Store
	StaleRunIDs(olderThan time.Duration) ([]string, error)
}

// StaleHandler is invoked once per run ID the sweep finds still "running"
// past the staleness threshold; callers typically requeue or alert.
type StaleHandler func(runID string, artifact persist.Artifact)

// CheckpointSweeper runs one named cron job per schedule on a shared
// *cron.Cron instance, scanning a ScanStore for stale running checkpoints.
type CheckpointSweeper struct {
	cron       *cron.Cron
	store      ScanStore
	staleAfter time.Duration
	onStale    StaleHandler
	entryIDs   map[string]cron.EntryID
}

// NewCheckpointSweeper wraps an externally owned *cron.Cron the same way
// the teacher's PluginScheduler wraps the platform's shared cron instance.
// The sweeper never starts or stops it; scheduled sweeps run once the
// owner calls Start.
func NewCheckpointSweeper(c *cron.Cron, store ScanStore, staleAfter time.Duration, onStale StaleHandler) *CheckpointSweeper {
	return &CheckpointSweeper{
		cron:       c,
		store:      store,
		staleAfter: staleAfter,
		onStale:    onStale,
		entryIDs:   make(map[string]cron.EntryID),
	}
}

// Schedule registers the sweep under jobName at cronExpr, replacing any
// previous registration under the same name (overwrite-on-reschedule,
// matching PluginScheduler.Schedule).
func (s *CheckpointSweeper) Schedule(jobName, cronExpr string) error {
	if id, exists := s.entryIDs[jobName]; exists {
		s.cron.Remove(id)
		delete(s.entryIDs, jobName)
	}

	wrapped := func() {
		log := wflog.Sweep()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("job", jobName).Msg("checkpoint sweep panicked")
			}
		}()
		s.sweepOnce(log)
	}

	id, err := s.cron.AddFunc(cronExpr, wrapped)
	if err != nil {
		return err
	}
	s.entryIDs[jobName] = id
	return nil
}

// Remove unschedules jobName; a no-op if it was never scheduled.
func (s *CheckpointSweeper) Remove(jobName string) {
	if id, exists := s.entryIDs[jobName]; exists {
		s.cron.Remove(id)
		delete(s.entryIDs, jobName)
	}
}

func (s *CheckpointSweeper) sweepOnce(log zerolog.Logger) {
	runIDs, err := s.store.StaleRunIDs(s.staleAfter)
	if err != nil {
		log.Error().Err(err).Msg("failed to scan for stale checkpoints")
		return
	}

	for _, runID := range runIDs {
		artifact, found, err := s.store.Load(runID)
		if err != nil || !found {
			continue
		}
		if artifact.Status != persist.StatusRunning {
			continue
		}
		log.Warn().Str("run_id", runID).Str("current_unit", artifact.CurrentUnit).Msg("found stale running checkpoint")
		if s.onStale != nil {
			s.onStale(runID, *artifact)
		}
	}
}
