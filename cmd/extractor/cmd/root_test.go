package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang-transaction-extractor/pkg/logger"
)

func TestLoggerConfig(t *testing.T) {
	tests := []struct {
		name         string
		verbose      bool
		level        string
		file         string
		expectLevel  logger.Level
		expectFormat logger.Format
		expectOutput logger.Output
	}{
		{"defaults", false, "warn", "", logger.WarnLevel, logger.TextFormat, logger.StderrOutput},
		{"verbose", true, "warn", "", logger.DebugLevel, logger.TextFormat, logger.StderrOutput},
		{"log file", false, "info", "run.log", logger.InfoLevel, logger.JSONFormat, logger.FileOutput},
		{"verbose log file", true, "warn", "run.log", logger.DebugLevel, logger.JSONFormat, logger.FileOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := loggerConfig(tt.verbose, tt.level, tt.file)
			if config.Level != tt.expectLevel || config.Format != tt.expectFormat || config.Output != tt.expectOutput {
				t.Errorf("unexpected config %+v", config)
			}
			if config.File != tt.file {
				t.Errorf("expected file %q, got %q", tt.file, config.File)
			}
			if err := config.Validate(); err != nil {
				t.Errorf("config should be valid: %v", err)
			}
		})
	}
}

func TestLoggerConfigWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "extractor.log")
	log, err := logger.NewLogger(loggerConfig(false, "info", path))
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	log.WithField("run_id", "run-1").Warn("Some images failed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"msg":"Some images failed"`) || !strings.Contains(text, `"run_id":"run-1"`) {
		t.Errorf("expected a JSON log line, got %q", text)
	}
}
