package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAllCategoriesLog tests that all categories create log files when debug mode is on
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(func() {
		CloseAudit()
		CloseAll()
	})

	require.NoError(t, Initialize(tempDir, Settings{DebugMode: true, Level: "debug"}))
	assert.True(t, IsDebugMode())

	categories := []Category{
		CategoryBoot,
		CategoryDispatch,
		CategorySession,
		CategoryHandoff,
		CategoryInference,
		CategoryExtract,
		CategoryTrigger,
		CategoryStore,
		CategoryPanel,
	}

	for _, cat := range categories {
		assert.True(t, IsCategoryEnabled(cat), "category %s should be enabled", cat)
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	Dispatch("Convenience dispatch log")
	Handoff("Convenience handoff log")
	Inference("Convenience inference log")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".flowmentor", "logs")
	entries, err := os.ReadDir(logsPath)
	require.NoError(t, err)

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), "_"+string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				require.NoError(t, err)
				assert.NotEmpty(t, content, "log file for %s is empty", cat)
				break
			}
		}
		assert.True(t, found, "no log file found for category %s", cat)
	}
}

// TestDebugModeDisabled tests that no logs are created when debug mode is off
func TestDebugModeDisabled(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	require.NoError(t, Initialize(tempDir, Settings{DebugMode: false}))
	assert.False(t, IsDebugMode())

	Get(CategoryDispatch).Info("should not be written")
	Boot("should not be written")

	_, err := os.Stat(filepath.Join(tempDir, ".flowmentor", "logs"))
	assert.True(t, os.IsNotExist(err), "logs dir should not exist in production mode")
}

func TestCategoryFilter(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	require.NoError(t, Initialize(tempDir, Settings{
		DebugMode:  true,
		Categories: map[string]bool{"inference": false},
	}))

	assert.False(t, IsCategoryEnabled(CategoryInference))
	assert.True(t, IsCategoryEnabled(CategoryDispatch), "unlisted categories default to enabled")
}

func TestLevelFiltering(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	require.NoError(t, Initialize(tempDir, Settings{DebugMode: true, Level: "warn", JSONFormat: true}))

	l := Get(CategoryStore)
	l.Info("info-line-hidden")
	l.Warn("warn-line-visible")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(tempDir, ".flowmentor", "logs"))
	require.NoError(t, err)

	var content string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_store.log") {
			data, err := os.ReadFile(filepath.Join(tempDir, ".flowmentor", "logs", e.Name()))
			require.NoError(t, err)
			content = string(data)
		}
	}
	assert.NotContains(t, content, "info-line-hidden")
	assert.Contains(t, content, "warn-line-visible")
	assert.Contains(t, content, `"level":"warn"`)
}

func TestAuditLog(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(func() {
		CloseAudit()
		CloseAll()
	})

	require.NoError(t, Initialize(tempDir, Settings{DebugMode: true}))
	require.NoError(t, InitAudit())

	a := AuditWithSession("sess-1")
	a.TaskConsumed("debug")
	a.InferenceResult("primary", 25*time.Millisecond, errors.New("quota"))
	a.SessionRollback(3, 2)
	CloseAudit()

	entries, err := os.ReadDir(filepath.Join(tempDir, ".flowmentor", "logs"))
	require.NoError(t, err)

	var content string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_audit.jsonl") {
			data, err := os.ReadFile(filepath.Join(tempDir, ".flowmentor", "logs", e.Name()))
			require.NoError(t, err)
			content = string(data)
		}
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"event":"task_consumed"`)
	assert.Contains(t, lines[0], `"session":"sess-1"`)
	assert.Contains(t, lines[1], `"event":"inference_error"`)
	assert.Contains(t, lines[1], `"error":"quota"`)
	assert.Contains(t, lines[2], `"event":"session_rollback"`)
}

func TestTimer(t *testing.T) {
	timer := StartTimer(CategoryPanel, "noop")
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
