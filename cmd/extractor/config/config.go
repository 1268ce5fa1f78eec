// Package config turns CLI settings into the typed configurations of the
// extraction pipeline, the batch runner, the recognizers and the reporter.
package config

import (
	"path/filepath"
	"strings"

	"golang-transaction-extractor/internal/batch"
	"golang-transaction-extractor/internal/extractor"
	"golang-transaction-extractor/internal/recognizer"
	"golang-transaction-extractor/internal/reporter"
	"golang-transaction-extractor/internal/rules"
	"golang-transaction-extractor/pkg/errors"
)

const (
	DefaultInputDir   = "input_images"
	DefaultOutputFile = "output/smart_transactions.xlsx"
)

// Settings are the raw values gathered from flags, environment and config file
type Settings struct {
	Input     string
	Output    string
	Format    string
	RulesFile string

	// Year and MinConfidence override the rule table when set. A zero year
	// and a negative confidence mean "use the table".
	Year          int
	MinConfidence float64

	Workers        int
	Languages      []string
	TessdataPrefix string
	NoPreprocess   bool
	NoColor        bool
	MaxConsoleRows int
}

// DefaultSettings returns the settings used when no flag is given
func DefaultSettings() Settings {
	return Settings{
		Input:         DefaultInputDir,
		Output:        DefaultOutputFile,
		MinConfidence: -1,
		Workers:       1,
		Languages:     recognizer.DefaultConfig().Languages,
	}
}

// LoadRules reads the rule table, falling back to the embedded defaults
func LoadRules(path string) (*rules.Rules, error) {
	r, err := rules.Load(path)
	if err != nil {
		setting := path
		if setting == "" {
			setting = "embedded rules"
		}
		return nil, errors.ConfigurationError(errors.CodeInvalidRules, setting, err.Error(), err)
	}
	return r, nil
}

// CreateExtractorConfig derives the pipeline configuration from the rule
// table thresholds and applies the CLI overrides
func CreateExtractorConfig(r *rules.Rules, s Settings) (*extractor.Config, error) {
	config := extractor.ConfigFromThresholds(r.Thresholds)

	if s.Year != 0 {
		config.Year = s.Year
	}
	if s.MinConfidence >= 0 {
		config.MinConfidence = s.MinConfidence
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "extractor", err.Error(), err)
	}
	return config, nil
}

// CreateBatchConfig creates the batch configuration
func CreateBatchConfig(s Settings) (*batch.Config, error) {
	config := batch.DefaultConfig()
	config.Workers = s.Workers

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateRecognizerConfig creates the recognizer configuration
func CreateRecognizerConfig(s Settings) (*recognizer.Config, error) {
	config := recognizer.DefaultConfig()
	if len(s.Languages) > 0 {
		config.Languages = s.Languages
	}
	config.TessdataPrefix = s.TessdataPrefix
	config.Preprocess = !s.NoPreprocess

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ResolveFormat picks the output format: the explicit one if given, else the
// one implied by the output extension, else xlsx
func ResolveFormat(format, output string) (reporter.OutputFormat, error) {
	if format != "" {
		f := reporter.OutputFormat(strings.ToLower(format))
		if !f.IsValid() {
			return "", errors.ExportError(errors.CodeUnsupportedType, format, nil)
		}
		return f, nil
	}
	if output == "" || output == "-" {
		return reporter.FormatConsole, nil
	}
	if f, ok := reporter.FormatFromPath(output); ok {
		return f, nil
	}
	return reporter.FormatXLSX, nil
}

// CreateReportConfig creates a report configuration for the specified output
func CreateReportConfig(s Settings) (*reporter.ReportConfig, error) {
	format, err := ResolveFormat(s.Format, s.Output)
	if err != nil {
		return nil, err
	}

	config := reporter.DefaultReportConfig()
	config.Format = format

	switch format {
	case reporter.FormatConsole:
		config.UseColors = !s.NoColor
		if s.MaxConsoleRows > 0 {
			config.MaxConsoleRows = s.MaxConsoleRows
		}
	case reporter.FormatJSON:
		config.IncludeImages = true
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.CSVBOM = true
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report", format, err)
	}
	return config, nil
}

// WritesToStdout reports whether the report goes to standard output
func WritesToStdout(output string, format reporter.OutputFormat) bool {
	if output == "-" {
		return true
	}
	return output == "" && format == reporter.FormatConsole
}

// ValidateSettings checks the settings that no typed configuration covers
func ValidateSettings(s Settings) error {
	if strings.TrimSpace(s.Input) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "input", s.Input, nil)
	}

	format, err := ResolveFormat(s.Format, s.Output)
	if err != nil {
		return err
	}
	if format.IsBinary() && WritesToStdout(s.Output, format) {
		return errors.ConfigurationError(errors.CodeConfigConflict, "output", s.Output, nil).
			WithSuggestion("xlsx output needs a file; pass --output with a .xlsx path")
	}

	if s.Output != "" && s.Output != "-" {
		abs, err := filepath.Abs(s.Output)
		if err == nil {
			if inAbs, err := filepath.Abs(s.Input); err == nil && abs == inAbs {
				return errors.ConfigurationError(errors.CodeConfigConflict, "output", s.Output, nil).
					WithSuggestion("the output must not be the input directory")
			}
		}
	}
	return nil
}
