package sweep

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/workflowforge/engine/internal/persist"
	"github.com/workflowforge/engine/internal/persist/filepersist"
)

func TestSweepOnceReportsStaleRunningCheckpoints(t *testing.T) {
	dir := t.TempDir()
	store, err := filepersist.New(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("stale-1", persist.Artifact{Status: persist.StatusRunning, CurrentUnit: "division"}))
	require.NoError(t, store.Save("fresh-1", persist.Artifact{Status: persist.StatusRunning, CurrentUnit: "add_one"}))
	require.NoError(t, store.Save("done-1", persist.Artifact{Status: persist.StatusFinished, CurrentUnit: "end"}))

	// Back-date the stale checkpoint's mtime so it predates the threshold;
	// filepersist derives staleness from file modtime.
	pastTime := time.Now().Add(-2 * time.Hour)
	stalePath := filepath.Join(dir, "stale-1.json")
	require.NoError(t, os.Chtimes(stalePath, pastTime, pastTime))

	var reported []string
	c := cron.New()
	sweeper := NewCheckpointSweeper(c, store, time.Hour, func(runID string, a persist.Artifact) {
		reported = append(reported, runID)
	})
	sweeper.sweepOnce(zerolog.Nop())

	require.Equal(t, []string{"stale-1"}, reported)
}

func TestScheduleReplacesExistingJobOfSameName(t *testing.T) {
	store, err := filepersist.New(t.TempDir())
	require.NoError(t, err)

	c := cron.New()
	sweeper := NewCheckpointSweeper(c, store, time.Hour, nil)

	require.NoError(t, sweeper.Schedule("sweep", "@hourly"))
	firstID := sweeper.entryIDs["sweep"]
	require.NoError(t, sweeper.Schedule("sweep", "@daily"))
	require.NotEqual(t, firstID, sweeper.entryIDs["sweep"])
	require.Len(t, sweeper.entryIDs, 1)
}
