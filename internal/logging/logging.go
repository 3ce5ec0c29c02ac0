package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath returns <logsDir>/<program>.<yyyymmdd_hhmmss>.log.
func LogFilePath(logsDir, programName string, sessionStart time.Time) string {
	name := fmt.Sprintf("%s.%s.log", programName, sessionStart.Format("20060102_150405"))
	return filepath.Join(logsDir, name)
}

// OpenLogFile opens a fresh log file at path, creating its directory. A file
// already at path is kept as path+".old".
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
}
