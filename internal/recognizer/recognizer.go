// Package recognizer turns input files into text fragments. Images go through
// Tesseract, PDFs through their text layer, and JSON fragment dumps are
// replayed as-is so fixtures can drive the pipeline without OCR.
package recognizer

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

// Recognizer produces the raw text fragments of one input file
type Recognizer interface {
	Name() string
	Supports(path string) bool
	Recognize(ctx context.Context, path string) ([]models.TextFragment, error)
}

// Checker is implemented by recognizers that depend on an external
// collaborator which may be missing at runtime.
type Checker interface {
	Check(ctx context.Context) error
}

// Config selects and tunes the default recognizers
type Config struct {
	Languages      []string      `json:"languages" mapstructure:"languages"`
	TessdataPrefix string        `json:"tessdata_prefix" mapstructure:"tessdata_prefix"`
	Preprocess     bool          `json:"preprocess" mapstructure:"preprocess"`
	Prepare        PrepareConfig `json:"prepare" mapstructure:"prepare"`
}

// DefaultConfig returns the settings used by the CLI
func DefaultConfig() *Config {
	return &Config{
		Languages:  []string{"chi_sim", "eng"},
		Preprocess: true,
		Prepare:    DefaultPrepareConfig(),
	}
}

// Validate checks the recognizer configuration
func (c *Config) Validate() error {
	if len(c.Languages) == 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "languages", c.Languages, nil)
	}
	for _, lang := range c.Languages {
		if strings.TrimSpace(lang) == "" {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "languages", c.Languages, nil)
		}
	}
	return c.Prepare.Validate()
}

// Registry dispatches files to the first recognizer that supports them
type Registry struct {
	recognizers []Recognizer
	logger      logger.Logger
}

// NewRegistry creates a registry over the given recognizers, tried in order
func NewRegistry(log logger.Logger, recognizers ...Recognizer) *Registry {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Registry{
		recognizers: recognizers,
		logger:      log.WithComponent("recognizer"),
	}
}

// NewDefaultRegistry wires Tesseract, the PDF text layer and JSON replay
func NewDefaultRegistry(cfg *Config, log logger.Logger) (*Registry, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var prep *Preparer
	if cfg.Preprocess {
		prep = NewPreparer(cfg.Prepare, log)
	}

	return NewRegistry(log,
		NewTesseract(cfg.Languages, cfg.TessdataPrefix, prep, log),
		NewPDF(log),
		NewReplay(),
	), nil
}

// Lookup returns the recognizer responsible for path
func (r *Registry) Lookup(path string) (Recognizer, bool) {
	for _, rec := range r.recognizers {
		if rec.Supports(path) {
			return rec, true
		}
	}
	return nil, false
}

// Supports reports whether any recognizer handles path
func (r *Registry) Supports(path string) bool {
	_, ok := r.Lookup(path)
	return ok
}

// Recognize runs the responsible recognizer on path
func (r *Registry) Recognize(ctx context.Context, path string) ([]models.TextFragment, error) {
	rec, ok := r.Lookup(path)
	if !ok {
		return nil, errors.RecognitionError(errors.CodeUnsupportedInput, path, nil)
	}

	r.logger.WithFields(logger.Fields{
		"recognizer": rec.Name(),
		"file":       filepath.Base(path),
	}).Debug("Recognizing input")

	fragments, err := rec.Recognize(ctx, path)
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryRecognition, errors.CodeRecognitionFailed,
			"text recognition failed for "+path)
	}
	return fragments, nil
}

// Check verifies the external collaborators of the recognizers responsible
// for paths, or of every recognizer when no path is given. The batch calls it
// once before touching any input so a missing engine aborts the run early.
func (r *Registry) Check(ctx context.Context, paths ...string) error {
	needed := r.recognizers
	if len(paths) > 0 {
		used := make(map[Recognizer]bool)
		for _, path := range paths {
			if rec, ok := r.Lookup(path); ok {
				used[rec] = true
			}
		}
		needed = nil
		for _, rec := range r.recognizers {
			if used[rec] {
				needed = append(needed, rec)
			}
		}
	}

	for _, rec := range needed {
		checker, ok := rec.(Checker)
		if !ok {
			continue
		}
		if err := checker.Check(ctx); err != nil {
			return err
		}
		r.logger.WithField("recognizer", rec.Name()).Debug("Recognizer available")
	}
	return nil
}

// Extensions lists the lower-case file extensions the registry accepts
func (r *Registry) Extensions() []string {
	seen := make(map[string]bool)
	for _, rec := range r.recognizers {
		if ext, ok := rec.(interface{ Extensions() []string }); ok {
			for _, e := range ext.Extensions() {
				seen[e] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
