package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryCollaborator  ErrorCategory = "collaborator"
	CategoryPreparation   ErrorCategory = "preparation"
	CategoryRecognition   ErrorCategory = "recognition"
	CategoryExtraction    ErrorCategory = "extraction"
	CategoryExport        ErrorCategory = "export"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeDirectoryError ErrorCode = "directory_error"
	CodeNoInputImages  ErrorCode = "no_input_images"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeInvalidRules   ErrorCode = "invalid_rules"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Collaborator errors
	CodeMissingCollaborator ErrorCode = "missing_collaborator"

	// Preparation errors
	CodeImageDecode ErrorCode = "image_decode"
	CodeImageWrite  ErrorCode = "image_write"

	// Recognition errors
	CodeRecognitionFailed ErrorCode = "recognition_failed"
	CodeUnsupportedInput  ErrorCode = "unsupported_input"

	// Extraction errors
	CodeFieldAmbiguity ErrorCode = "field_ambiguity"
	CodeNoTransactions ErrorCode = "no_transactions"

	// Export errors
	CodeExportFailed    ErrorCode = "export_failed"
	CodeUnsupportedType ErrorCode = "unsupported_format"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeCancelled       ErrorCode = "cancelled"
)

// ExtractorError is the base error type for all application errors
type ExtractorError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ExtractorError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ExtractorError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ExtractorError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryConfiguration:
		return 3
	case CategoryCollaborator:
		return 4
	case CategoryPreparation, CategoryRecognition, CategoryExtraction:
		return 5
	case CategoryExport:
		return 6
	case CategoryInternal:
		return 7
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ExtractorError) WithContext(key string, value interface{}) *ExtractorError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ExtractorError) WithSuggestion(suggestion string) *ExtractorError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ExtractorError
func New(category ErrorCategory, code ErrorCode, message string) *ExtractorError {
	return &ExtractorError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ExtractorError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ExtractorError {
	if err == nil {
		return nil
	}

	return &ExtractorError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ExtractorError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *ExtractorError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeDirectoryError:
		message = fmt.Sprintf("directory error: %s", path)
		suggestion = "ensure the directory exists and is accessible"
	case CodeNoInputImages:
		message = fmt.Sprintf("no supported images found in %s", path)
		suggestion = "supported extensions are .png .jpg .jpeg .bmp .tiff .webp .pdf .json"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ExtractorError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	case CodeInvalidRules:
		message = fmt.Sprintf("invalid rule table %s: %v", setting, value)
		suggestion = "run 'extractor rules' to print the default table and compare"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// CollaboratorError reports a collaborator that is required but unavailable.
// It is raised before any input is processed.
func CollaboratorError(name string, err error) *ExtractorError {
	message := fmt.Sprintf("required collaborator unavailable: %s", name)
	return build(CategoryCollaborator, CodeMissingCollaborator, message, err).
		WithSuggestion("install the collaborator or choose an input type that does not need it").
		WithContext("collaborator", name)
}

// PreparationError creates an image preparation error. Callers fall back to
// the unprepared image.
func PreparationError(code ErrorCode, path string, err error) *ExtractorError {
	var message string
	switch code {
	case CodeImageDecode:
		message = fmt.Sprintf("cannot decode image %s", path)
	case CodeImageWrite:
		message = fmt.Sprintf("cannot write prepared image for %s", path)
	default:
		message = fmt.Sprintf("image preparation failed for %s", path)
	}
	return build(CategoryPreparation, code, message, err).
		WithContext("image", path)
}

// RecognitionError creates a text recognition error
func RecognitionError(code ErrorCode, path string, err error) *ExtractorError {
	var message, suggestion string

	switch code {
	case CodeRecognitionFailed:
		message = fmt.Sprintf("text recognition failed for %s", path)
		suggestion = "check that the image is readable and the language data is installed"
	case CodeUnsupportedInput:
		message = fmt.Sprintf("no recognizer handles %s", path)
		suggestion = "use one of the supported input extensions"
	default:
		message = fmt.Sprintf("recognition error for %s", path)
		suggestion = "check the input and try again"
	}

	return build(CategoryRecognition, code, message, err).
		WithSuggestion(suggestion).
		WithContext("image", path)
}

// ExtractionError creates an extraction error
func ExtractionError(code ErrorCode, source string, err error) *ExtractorError {
	var message string
	switch code {
	case CodeFieldAmbiguity:
		message = fmt.Sprintf("ambiguous field value in %s", source)
	case CodeNoTransactions:
		message = fmt.Sprintf("no transactions found in %s", source)
	default:
		message = fmt.Sprintf("extraction error in %s", source)
	}
	return build(CategoryExtraction, code, message, err).
		WithContext("source", source)
}

// ExportError creates an export error. Export failures fail the run.
func ExportError(code ErrorCode, target string, err error) *ExtractorError {
	var message, suggestion string

	switch code {
	case CodeExportFailed:
		message = fmt.Sprintf("failed to write results to %s", target)
		suggestion = "check that the output directory exists and is writable"
	case CodeUnsupportedType:
		message = fmt.Sprintf("unsupported output format: %s", target)
		suggestion = "use one of: console, json, csv, xlsx"
	default:
		message = fmt.Sprintf("export error: %s", target)
		suggestion = "check the output settings and try again"
	}

	return build(CategoryExport, code, message, err).
		WithSuggestion(suggestion).
		WithContext("target", target)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ExtractorError {
	var message, suggestion string

	switch code {
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	case CodeCancelled:
		message = fmt.Sprintf("%s was cancelled", operation)
		suggestion = "rerun the command to process the remaining inputs"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*ExtractorError     `json:"-"`
	SampleErrors []*ExtractorError     `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ExtractorError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if len(errs) == 0 {
		summary.Errors = []*ExtractorError{}
		return summary
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, es.Breakdown())
}

// Breakdown lists the per-category counts, e.g. "extraction: 1, recognition: 2"
func (es *ErrorSummary) Breakdown() string {
	categories := make([]string, 0, len(es.ByCategory))
	for category := range es.ByCategory {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)

	parts := make([]string, len(categories))
	for i, category := range categories {
		parts[i] = fmt.Sprintf("%s: %d", category, es.ByCategory[ErrorCategory(category)])
	}
	return strings.Join(parts, ", ")
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// AsExtractorError extracts an ExtractorError from an error chain
func AsExtractorError(err error) (*ExtractorError, bool) {
	var extractorErr *ExtractorError
	if errors.As(err, &extractorErr) {
		return extractorErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an ExtractorError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ExtractorError {
	if err == nil {
		return nil
	}

	if extractorErr, ok := AsExtractorError(err); ok {
		return extractorErr
	}

	return Wrap(err, category, code, message)
}
