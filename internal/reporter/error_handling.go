package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang-transaction-extractor/internal/batch"
	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and typed export
// errors. Export failures are returned, never swallowed.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely writes the report to writer
func (srg *SafeReportGenerator) GenerateReportSafely(result *batch.Result, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Info("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := srg.GenerateReport(result, writer); err != nil {
		wrapped := srg.wrapGenerationError(err, getWriterDescription(writer))
		srg.logger.WithError(wrapped).Error("Report generation failed")
		return wrapped
	}

	srg.logger.Info("Report generation completed successfully")
	return nil
}

// WriteFile writes the report to path. The report is written to a temp file
// in the same directory and renamed into place, so a failed export never
// leaves a truncated file behind.
func (srg *SafeReportGenerator) WriteFile(result *batch.Result, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.ExportError(errors.CodeExportFailed, path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.ExportError(errors.CodeExportFailed, path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := srg.GenerateReportSafely(result, tmp); err != nil {
		tmp.Close()
		return srg.wrapGenerationError(err, path)
	}
	if err := tmp.Close(); err != nil {
		return errors.ExportError(errors.CodeExportFailed, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.ExportError(errors.CodeExportFailed, path, err)
	}

	srg.logger.WithFields(logger.Fields{
		"file":    path,
		"records": len(result.Records),
	}).Info("Report written")
	return nil
}

// validateInputs validates the inputs for report generation
func (srg *SafeReportGenerator) validateInputs(result *batch.Result, writer io.Writer) error {
	if result == nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_generation",
			fmt.Errorf("batch result is nil"),
		)
	}

	if writer == nil {
		return errors.ExportError(errors.CodeExportFailed, "<nil writer>", nil).
			WithSuggestion("Provide a valid output writer")
	}

	return nil
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error, target string) error {
	if extractorErr, ok := errors.AsExtractorError(err); ok {
		return extractorErr
	}

	exportErr := errors.ExportError(errors.CodeExportFailed, target, err)
	if isSpaceError(err) {
		exportErr.WithSuggestion("Free up disk space and try again")
	}
	return exportErr
}

// Utility functions

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
