package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		logsDir string
		want    string
	}{
		{"duellogs", filepath.Join("duellogs", "duel_recorder.20260212_213836.log")},
		{"./duellogs", filepath.Join("duellogs", "duel_recorder.20260212_213836.log")},
		{filepath.Join("/var", "log", "duel"), filepath.Join("/var", "log", "duel", "duel_recorder.20260212_213836.log")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "duel_recorder", sessionStart), tt.logsDir)
	}
}

func TestOpenLogFile_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "duel_recorder.log")

	f, err := OpenLogFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("first session\n")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestOpenLogFile_KeepsPreviousAsOld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duel_recorder.log")
	require.NoError(t, os.WriteFile(path, []byte("previous session\n"), 0644))

	f, err := OpenLogFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "previous session\n", string(old))

	fresh, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
