package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/duelscope/recorder/internal/dispatcher"
	"github.com/rs/zerolog"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return logEntry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	dl.Debug("test message", "key1", "value1", "key2", 42)

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", logEntry["level"])
	}
	if logEntry["message"] != "test message" {
		t.Errorf("expected message 'test message', got %v", logEntry["message"])
	}
	if logEntry["key1"] != "value1" {
		t.Errorf("expected key1='value1', got %v", logEntry["key1"])
	}
	if logEntry["key2"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected key2=42, got %v", logEntry["key2"])
	}
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Info("info message", "status", "ok")

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", logEntry["level"])
	}
	if logEntry["status"] != "ok" {
		t.Errorf("expected status='ok', got %v", logEntry["status"])
	}
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	dl.Debug("filtered")
	dl.Error("error occurred", "queue", "battle", "dropped")

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", logEntry["level"])
	}
	if logEntry["queue"] != "battle" {
		t.Errorf("expected queue='battle', got %v", logEntry["queue"])
	}
	if _, ok := logEntry["dropped"]; ok {
		t.Error("dangling key without value should be skipped")
	}
}

func TestDispatcherLogger_PairsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("handler failed", 7, "skipped", "event", "turn_ended", "error", errors.New("boom"), "size", 3.5)

	logEntry := decodeEntry(t, &buf)
	if logEntry["component"] != "dispatcher" {
		t.Errorf("expected component='dispatcher', got %v", logEntry["component"])
	}
	if logEntry["event"] != "turn_ended" {
		t.Errorf("expected event='turn_ended', got %v", logEntry["event"])
	}
	if logEntry["error"] != "boom" {
		t.Errorf("expected error='boom', got %v", logEntry["error"])
	}
	if logEntry["size"] != 3.5 {
		t.Errorf("expected size=3.5, got %v", logEntry["size"])
	}
	if _, ok := logEntry["skipped"]; ok {
		t.Error("value of a non-string key should be skipped")
	}
}

func TestDispatcherLogger_DisabledLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("filtered", "key", "value")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
