package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"debug", *DebugConfig(), false},
		{"bad level", Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, true},
		{"bad format", Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, true},
		{"bad output", Config{Level: InfoLevel, Format: TextFormat, Output: "syslog"}, true},
		{"file without path", Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithFieldsArePreserved(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{
		Level:            DebugLevel,
		Format:           JSONFormat,
		Output:           StderrOutput,
		DisableTimestamp: true,
		Writer:           &buf,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	log.WithComponent("anchor_detector").
		WithFields(Fields{"image": "a.png", "anchors": 3}).
		WithError(errors.New("boom")).
		Info("anchors detected")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "anchor_detector" {
		t.Errorf("component field lost: %v", entry)
	}
	if entry["image"] != "a.png" {
		t.Errorf("image field lost: %v", entry)
	}
	if entry["error"] != "boom" {
		t.Errorf("error field lost: %v", entry)
	}
	if entry["msg"] != "anchors detected" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&Config{Level: WarnLevel, Format: TextFormat, Output: StderrOutput, Writer: &buf})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be written")
	}
}

func TestProgressTracker(t *testing.T) {
	tracker := NewProgressTracker(ProgressConfig{
		Operation:   "extract",
		Total:       4,
		LogInterval: time.Hour,
		Logger:      Discard(),
	})

	tracker.Increment()
	tracker.IncrementFailed()
	tracker.Add(2)

	stats := tracker.GetStats()
	if stats.Current != 4 {
		t.Errorf("expected 4 processed, got %d", stats.Current)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.Failed)
	}
	if stats.Percentage != 100 {
		t.Errorf("expected 100%%, got %.1f", stats.Percentage)
	}
	if !strings.HasPrefix(stats.String(), "extract: 4/4") {
		t.Errorf("unexpected string %q", stats.String())
	}
	tracker.Complete()
}

func TestTimedOperation(t *testing.T) {
	want := errors.New("write failed")
	if got := TimedOperation("export", Discard(), func() error { return want }); got != want {
		t.Errorf("expected error to pass through, got %v", got)
	}
	if err := TimedOperation("export", Discard(), func() error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
