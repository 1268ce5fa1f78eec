package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if extractorErr, ok := errors.AsExtractorError(err); ok {
		return h.handleExtractorError(extractorErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleExtractorError(err *errors.ExtractorError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the path is correct and the file exists\n")
		return 2
	}

	if isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have access\n")
		return 2
	}

	if isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 6
	}

	// flag parsing and argument errors from cobra land here
	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'extractor --help' for usage.\n")
	return 1
}

// getCategoryHelp returns category-specific help text
func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check that the input directory exists and is readable
• Verify it contains .png, .jpg, .jpeg, .bmp, .tiff, .webp, .pdf or .json files
• Use absolute paths if the working directory is unclear`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Print the default rule table with 'extractor rules' and compare with yours
• Use 'extractor extract --help' to see all available options`

	case errors.CategoryCollaborator:
		return `Collaborator error help:
• Install tesseract and the chi_sim language data
• Point --tessdata at the directory holding the .traineddata files
• PDF and .json inputs do not need tesseract`

	case errors.CategoryPreparation, errors.CategoryRecognition, errors.CategoryExtraction:
		return `Extraction error help:
• Use sharp, uncropped screenshots of the transaction list
• Try --no-preprocess if prepared images lose detail
• Lower --min-confidence to keep more recognized text
• Run with --verbose to see per-image failures`

	case errors.CategoryExport:
		return `Export error help:
• Check that the output directory is writable
• Close the output file if a spreadsheet application holds it open
• Choose another format with --format`

	default:
		return `For more help:
• Use 'extractor --help' for general help
• Use 'extractor extract --help' for command-specific help`
	}
}

// Error detection helpers

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
