package errors

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Stage names the per-image pipeline step that failed.
type Stage string

const (
	StagePrepare   Stage = "prepare"
	StageRecognize Stage = "recognize"
	StageExtract   Stage = "extract"
)

// ImageContext locates a failure within a batch
type ImageContext struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
	Stage Stage  `json:"stage"`
}

// ImageFailure is a per-image error. The batch records it and moves on.
type ImageFailure struct {
	*ExtractorError
	Image       *ImageContext `json:"image"`
	Recoverable bool          `json:"recoverable"`
}

// Error implements the error interface with the image location appended
func (e *ImageFailure) Error() string {
	parts := []string{e.ExtractorError.Error()}
	if e.Image != nil {
		parts = append(parts, fmt.Sprintf("at %s #%d (%s)", filepath.Base(e.Image.Path), e.Image.Index, e.Image.Stage))
	}
	return strings.Join(parts, " ")
}

// GetDetailedError returns a detailed multi-line error description
func (e *ImageFailure) GetDetailedError() string {
	var lines []string

	lines = append(lines, fmt.Sprintf("ERROR: %s", e.Message))
	if e.Image != nil {
		lines = append(lines, fmt.Sprintf("  → Image: %s", e.Image.Path))
		lines = append(lines, fmt.Sprintf("  → Stage: %s", e.Image.Stage))
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprintf("  → Cause: %v", e.Cause))
	}
	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  → Suggestion: %s", e.Suggestion))
	}

	return strings.Join(lines, "\n")
}

// NewImageFailure wraps err for the image at index. Preparation failures are
// recoverable because the original image is used instead.
func NewImageFailure(stage Stage, path string, index int, err error) *ImageFailure {
	var base *ExtractorError
	if existing, ok := AsExtractorError(err); ok {
		base = existing
	} else {
		switch stage {
		case StagePrepare:
			base = PreparationError("", path, err)
		case StageRecognize:
			base = RecognitionError(CodeRecognitionFailed, path, err)
		default:
			base = ExtractionError("", path, err)
		}
	}
	base.WithContext("index", index).WithContext("stage", string(stage))

	return &ImageFailure{
		ExtractorError: base,
		Image:          &ImageContext{Path: path, Index: index, Stage: stage},
		Recoverable:    stage == StagePrepare,
	}
}

// ImageErrorCollector gathers per-image failures from concurrent workers
type ImageErrorCollector struct {
	mu       sync.Mutex
	failures []*ImageFailure
}

// NewImageErrorCollector creates an empty collector
func NewImageErrorCollector() *ImageErrorCollector {
	return &ImageErrorCollector{}
}

// Add records a failure; nil is ignored
func (c *ImageErrorCollector) Add(f *ImageFailure) {
	if f == nil {
		return
	}
	c.mu.Lock()
	c.failures = append(c.failures, f)
	c.mu.Unlock()
}

// HasErrors returns true if any failures have been collected
func (c *ImageErrorCollector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures) > 0
}

// Failures returns the collected failures ordered by image index
func (c *ImageErrorCollector) Failures() []*ImageFailure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ImageFailure, len(c.failures))
	copy(out, c.failures)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Image.Index < out[j].Image.Index
	})
	return out
}

// GetSummary returns an error summary for all collected failures
func (c *ImageErrorCollector) GetSummary() *ErrorSummary {
	failures := c.Failures()
	base := make([]*ExtractorError, len(failures))
	for i, f := range failures {
		base[i] = f.ExtractorError
	}
	return NewErrorSummary(base)
}

// FormatImageFailuresForUser formats failures in a user-friendly way
func FormatImageFailuresForUser(failures []*ImageFailure) string {
	if len(failures) == 0 {
		return "No image failures"
	}
	if len(failures) == 1 {
		return failures[0].GetDetailedError()
	}

	lines := []string{fmt.Sprintf("%d images failed:", len(failures)), ""}
	maxDetailed := 3
	for i, f := range failures {
		if i == maxDetailed {
			lines = append(lines, fmt.Sprintf("... and %d more", len(failures)-maxDetailed))
			break
		}
		lines = append(lines, f.GetDetailedError(), "")
	}
	return strings.Join(lines, "\n")
}
