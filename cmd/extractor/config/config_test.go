package config

import (
	"os"
	"path/filepath"
	"testing"

	"golang-transaction-extractor/internal/reporter"
	"golang-transaction-extractor/internal/rules"
	"golang-transaction-extractor/pkg/errors"
)

func category(t *testing.T, err error) errors.ErrorCategory {
	t.Helper()
	extErr, ok := errors.AsExtractorError(err)
	if !ok {
		t.Fatalf("expected an extractor error, got %v", err)
	}
	return extErr.Category
}

func TestLoadRules(t *testing.T) {
	r, err := LoadRules("")
	if err != nil {
		t.Fatalf("failed to load embedded rules: %v", err)
	}
	if r != rules.MustDefault() {
		t.Error("empty path should return the shared default table")
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("thresholds:\n  default_year: 2023\n"), 0o644); err != nil {
		t.Fatalf("failed to write rules: %v", err)
	}
	r, err = LoadRules(path)
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	if r.Thresholds.DefaultYear != 2023 {
		t.Errorf("expected year override 2023, got %d", r.Thresholds.DefaultYear)
	}

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	if category(t, err) != errors.CategoryConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestCreateExtractorConfig(t *testing.T) {
	r := rules.MustDefault()

	tests := []struct {
		name          string
		mutate        func(*Settings)
		expectYear    int
		expectMinConf float64
		expectError   bool
	}{
		{
			name:          "table defaults",
			mutate:        func(*Settings) {},
			expectYear:    r.Thresholds.DefaultYear,
			expectMinConf: r.Thresholds.MinConfidence,
		},
		{
			name:          "year override",
			mutate:        func(s *Settings) { s.Year = 2023 },
			expectYear:    2023,
			expectMinConf: r.Thresholds.MinConfidence,
		},
		{
			name:          "zero confidence is an override",
			mutate:        func(s *Settings) { s.MinConfidence = 0 },
			expectYear:    r.Thresholds.DefaultYear,
			expectMinConf: 0,
		},
		{
			name:        "confidence out of range",
			mutate:      func(s *Settings) { s.MinConfidence = 1.5 },
			expectError: true,
		},
		{
			name:        "year out of range",
			mutate:      func(s *Settings) { s.Year = 99 },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)

			config, err := CreateExtractorConfig(r, s)
			if tt.expectError {
				if category(t, err) != errors.CategoryConfiguration {
					t.Errorf("expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Year != tt.expectYear {
				t.Errorf("expected year %d, got %d", tt.expectYear, config.Year)
			}
			if config.MinConfidence != tt.expectMinConf {
				t.Errorf("expected min confidence %v, got %v", tt.expectMinConf, config.MinConfidence)
			}
		})
	}
}

func TestCreateBatchConfig(t *testing.T) {
	s := DefaultSettings()
	s.Workers = 4
	config, err := CreateBatchConfig(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", config.Workers)
	}

	s.Workers = 0
	if _, err := CreateBatchConfig(s); category(t, err) != errors.CategoryConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestCreateRecognizerConfig(t *testing.T) {
	s := DefaultSettings()
	s.NoPreprocess = true
	s.TessdataPrefix = "/usr/share/tessdata"

	config, err := CreateRecognizerConfig(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Preprocess {
		t.Error("expected preprocessing to be disabled")
	}
	if config.TessdataPrefix != "/usr/share/tessdata" {
		t.Errorf("unexpected tessdata prefix %q", config.TessdataPrefix)
	}
	if len(config.Languages) != 2 || config.Languages[0] != "chi_sim" {
		t.Errorf("unexpected languages %v", config.Languages)
	}

	s.Languages = []string{" "}
	if _, err := CreateRecognizerConfig(s); err == nil {
		t.Error("expected blank language to be rejected")
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		format   string
		output   string
		expected reporter.OutputFormat
		valid    bool
	}{
		{"", DefaultOutputFile, reporter.FormatXLSX, true},
		{"", "report.json", reporter.FormatJSON, true},
		{"", "report.csv", reporter.FormatCSV, true},
		{"", "report", reporter.FormatXLSX, true},
		{"", "-", reporter.FormatConsole, true},
		{"", "", reporter.FormatConsole, true},
		{"JSON", "report.xlsx", reporter.FormatJSON, true},
		{"pdf", "report.pdf", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.format+"|"+tt.output, func(t *testing.T) {
			format, err := ResolveFormat(tt.format, tt.output)
			if !tt.valid {
				if category(t, err) != errors.CategoryExport {
					t.Errorf("expected export error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if format != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, format)
			}
		})
	}
}

func TestCreateReportConfig(t *testing.T) {
	s := DefaultSettings()
	config, err := CreateReportConfig(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Format != reporter.FormatXLSX {
		t.Errorf("expected xlsx by default, got %s", config.Format)
	}

	s.Output = "-"
	s.Format = "console"
	s.NoColor = true
	s.MaxConsoleRows = 5
	config, err = CreateReportConfig(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.UseColors || config.MaxConsoleRows != 5 {
		t.Errorf("console overrides not applied: %+v", config)
	}

	s.Format = "csv"
	config, err = CreateReportConfig(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !config.CSVHeaders || !config.CSVBOM || config.CSVDelimiter != ',' {
		t.Errorf("unexpected csv settings: %+v", config)
	}
}

func TestValidateSettings(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		mutate      func(*Settings)
		expectError bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"missing input", func(s *Settings) { s.Input = " " }, true},
		{"xlsx to stdout", func(s *Settings) { s.Output = "-"; s.Format = "xlsx" }, true},
		{"json to stdout", func(s *Settings) { s.Output = "-"; s.Format = "json" }, false},
		{"unknown format", func(s *Settings) { s.Format = "pdf" }, true},
		{"output is input", func(s *Settings) { s.Input = dir; s.Output = dir }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := ValidateSettings(s)
			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
