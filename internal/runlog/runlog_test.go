package runlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/pipeline"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestRecordAndRecent(t *testing.T) {
	log := openTestLog(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Record(&pipeline.Result{
			RunID:      string(rune('a' + i)),
			CodebaseID: "app",
			Status:     "completed",
			Nodes:      100 + i,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := log.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Newest first.
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
	assert.Equal(t, "a", runs[2].RunID)
	assert.Equal(t, 102, runs[0].Nodes)
}

func TestRecentHonorsLimit(t *testing.T) {
	log := openTestLog(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Record(&pipeline.Result{
			RunID:     string(rune('a' + i)),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := log.Recent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "e", runs[0].RunID)
	assert.Equal(t, "d", runs[1].RunID)
}

func TestRecentEmptyLog(t *testing.T) {
	log := openTestLog(t)

	runs, err := log.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")

	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	assert.FileExists(t, path)
}

func TestFailedRunsAreRecorded(t *testing.T) {
	log := openTestLog(t)

	require.NoError(t, log.Record(&pipeline.Result{
		RunID:     "x",
		Status:    "failed",
		StartedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}))

	runs, err := log.Recent(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
}
