package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	eventsLog := filepath.Join(tempDir, "events.log")

	cleanup, err := Init(LogConfig{
		ServerPath:  serverLog,
		ServerLevel: "DEBUG",
		EventsPath:  eventsLog,
	})
	require.NoError(t, err)
	defer cleanup()

	_, err = os.Stat(serverLog)
	require.NoError(t, err, "server log file not created")
}

func TestRotatePaths(t *testing.T) {
	tempDir := t.TempDir()
	p := filepath.Join(tempDir, "server.log")
	require.NoError(t, os.WriteFile(p, []byte("old"), 0o644))

	rotatePaths(p)

	_, err := os.Stat(p + ".old")
	require.NoError(t, err, "expected rotated .old file")
}

func TestLogEvent(t *testing.T) {
	tempDir := t.TempDir()
	eventsLog := filepath.Join(tempDir, "events.log")
	SetEventLogPath(eventsLog)

	LogEvent(Event{Type: "save", Title: "manifest written", Summary: "12 packs"})

	data, err := os.ReadFile(eventsLog)
	require.NoError(t, err)
	require.Contains(t, string(data), "manifest written")
}
