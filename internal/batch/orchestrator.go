// Package batch runs the extraction pipeline over a directory of screenshots.
//
// Every image is recognized and extracted independently. Failures are
// recorded per image and never stop the batch; records are concatenated in
// directory order regardless of how many workers ran.
//
// Example usage:
//
//	orchestrator, err := batch.NewOrchestrator(registry, pipeline, batch.DefaultConfig(), log)
//	orchestrator.AddProgressCallback(func(p *batch.Progress) {
//		fmt.Printf("%d/%d %s\n", p.Processed, p.TotalImages, p.CurrentImage)
//	})
//	result, err := orchestrator.Run(ctx, "input_images")
package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"golang-transaction-extractor/internal/extractor"
	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/quality"
	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

// Recognizer is the text source the orchestrator reads images with. Check
// verifies the collaborators needed for paths before any of them is read.
type Recognizer interface {
	Recognize(ctx context.Context, path string) ([]models.TextFragment, error)
	Check(ctx context.Context, paths ...string) error
}

// Progress describes how far a batch has got
type Progress struct {
	RunID              string        `json:"run_id"`
	TotalImages        int           `json:"total_images"`
	Processed          int           `json:"processed"`
	Failed             int           `json:"failed"`
	Records            int           `json:"records"`
	CurrentImage       string        `json:"current_image"`
	PercentComplete    float64       `json:"percent_complete"`
	StartTime          time.Time     `json:"start_time"`
	ElapsedTime        time.Duration `json:"elapsed_time"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
}

// ProgressCallback is called after every finished image
type ProgressCallback func(*Progress)

// ImageResult is the outcome for one input file
type ImageResult struct {
	Index   int                  `json:"index"`
	Path    string               `json:"path"`
	Result  *extractor.Result    `json:"result,omitempty"`
	Failure *errors.ImageFailure `json:"failure,omitempty"`
	Skipped bool                 `json:"skipped,omitempty"`
}

// RecordCount returns the number of records extracted from the image
func (r *ImageResult) RecordCount() int {
	if r.Result == nil {
		return 0
	}
	return len(r.Result.Records)
}

// Stats summarizes a batch
type Stats struct {
	TotalImages       int     `json:"total_images"`
	Successful        int     `json:"successful"`
	Failed            int     `json:"failed"`
	NoTransactions    int     `json:"no_transactions"`
	Skipped           int     `json:"skipped"`
	SuccessRate       float64 `json:"success_rate"`
	TotalTransactions int     `json:"total_transactions"`
	CompleteRecords   int     `json:"complete_records"`
	RecognitionRate   float64 `json:"recognition_rate"`
}

// Result is everything a batch produced
type Result struct {
	RunID     string                      `json:"run_id"`
	InputDir  string                      `json:"input_dir"`
	Records   []*models.TransactionRecord `json:"records"`
	Images    []*ImageResult              `json:"images"`
	Failures  []*errors.ImageFailure      `json:"failures,omitempty"`
	Errors    *errors.ErrorSummary        `json:"errors,omitempty"`
	Quality   *quality.Report             `json:"quality"`
	Stats     Stats                       `json:"stats"`
	StartedAt time.Time                   `json:"started_at"`
	Duration  time.Duration               `json:"duration"`
}

// Orchestrator fans images out to a bounded worker pool
type Orchestrator struct {
	recognizer Recognizer
	pipeline   *extractor.Pipeline
	auditor    *quality.Auditor
	config     *Config
	logger     logger.Logger

	progressCallbacks []ProgressCallback
	progress          *Progress
	progressMutex     sync.Mutex
}

// NewOrchestrator creates a batch orchestrator
func NewOrchestrator(recognizer Recognizer, pipeline *extractor.Pipeline, config *Config, log logger.Logger) (*Orchestrator, error) {
	if recognizer == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "recognizer", nil, nil).
			WithSuggestion("provide a recognizer registry")
	}
	if pipeline == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "pipeline", nil, nil).
			WithSuggestion("provide an extraction pipeline")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Orchestrator{
		recognizer: recognizer,
		pipeline:   pipeline,
		auditor:    quality.NewAuditor(),
		config:     config,
		logger:     log.WithComponent("batch"),
	}, nil
}

// AddProgressCallback registers a progress callback
func (o *Orchestrator) AddProgressCallback(callback ProgressCallback) {
	o.progressCallbacks = append(o.progressCallbacks, callback)
}

// Run processes every supported file in inputDir. The recognizer is checked
// before any file is touched.
func (o *Orchestrator) Run(ctx context.Context, inputDir string) (*Result, error) {
	files, err := ListInputs(inputDir, o.config.Extensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.FileError(errors.CodeNoInputImages, inputDir, nil)
	}

	if err := o.recognizer.Check(ctx, files...); err != nil {
		o.logger.WithError(err).Error("Recognizer is not available")
		return nil, err
	}

	result, err := o.RunFiles(ctx, files)
	if result != nil {
		result.InputDir = inputDir
	}
	return result, err
}

// RunFiles processes the given files in order. When ctx is cancelled the
// remaining files are skipped and the partial result is returned with a
// cancellation error.
func (o *Orchestrator) RunFiles(ctx context.Context, files []string) (*Result, error) {
	runID := uuid.NewString()
	log := o.logger.WithField("run_id", runID)
	start := time.Now()

	log.WithFields(logger.Fields{
		"images":  len(files),
		"workers": o.config.Workers,
	}).Info("Starting batch")

	o.initializeProgress(runID, len(files), start)
	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "extract",
		Total:       int64(len(files)),
		LogInterval: o.config.LogInterval,
		Logger:      log,
	})

	collector := errors.NewImageErrorCollector()
	images := make([]*ImageResult, len(files))

	p := pool.New().WithMaxGoroutines(o.config.Workers)
	for i, path := range files {
		i, path := i, path
		p.Go(func() {
			res := o.processImage(ctx, i, path)
			images[i] = res
			if res.Skipped {
				return
			}
			if res.Failure != nil {
				collector.Add(res.Failure)
				tracker.IncrementFailed()
				log.WithError(res.Failure).WithField("image", filepath.Base(path)).Warn("Image failed")
			} else {
				tracker.Increment()
				log.WithFields(logger.Fields{
					"image":   filepath.Base(path),
					"records": res.RecordCount(),
				}).Info("Image processed")
			}
			o.updateProgress(res)
		})
	}
	p.Wait()

	result := o.aggregate(runID, images, collector.Failures())
	result.StartedAt = start
	result.Duration = time.Since(start)
	if collector.HasErrors() {
		result.Errors = collector.GetSummary()
		log.WithFields(logger.Fields{
			"failed":     result.Errors.Total,
			"categories": result.Errors.Breakdown(),
		}).Warn("Some images failed")
	}

	if err := ctx.Err(); err != nil {
		cancelled := errors.InternalError(errors.CodeCancelled, "batch", err)
		tracker.CompleteWithError(cancelled)
		return result, cancelled
	}
	tracker.Complete()

	log.WithFields(logger.Fields{
		"successful":   result.Stats.Successful,
		"failed":       result.Stats.Failed,
		"transactions": result.Stats.TotalTransactions,
		"success_rate": result.Stats.SuccessRate,
	}).Info("Batch finished")

	return result, nil
}

// processImage never panics; a panic anywhere in recognition or extraction
// becomes a failure for this image only.
func (o *Orchestrator) processImage(ctx context.Context, index int, path string) *ImageResult {
	res := &ImageResult{Index: index, Path: path}
	if ctx.Err() != nil {
		res.Skipped = true
		return res
	}

	stage := errors.StageRecognize
	var pc panics.Catcher
	pc.Try(func() {
		fragments, err := o.recognizer.Recognize(ctx, path)
		if err != nil {
			res.Failure = errors.NewImageFailure(errors.StageRecognize, path, index, err)
			return
		}
		stage = errors.StageExtract
		stream := models.NewTextBlockStream(filepath.Base(path), fragments, o.pipeline.Config().MinConfidence)
		res.Result = o.pipeline.Run(stream)
	})
	if recovered := pc.Recovered(); recovered != nil {
		res.Result = nil
		res.Failure = errors.NewImageFailure(stage, path, index, recovered.AsError())
	}
	return res
}

func (o *Orchestrator) aggregate(runID string, images []*ImageResult, failures []*errors.ImageFailure) *Result {
	result := &Result{
		RunID:    runID,
		Records:  []*models.TransactionRecord{},
		Images:   images,
		Failures: failures,
	}

	stats := &result.Stats
	stats.TotalImages = len(images)
	for _, img := range images {
		switch {
		case img == nil || img.Skipped:
			stats.Skipped++
		case img.Failure != nil:
			stats.Failed++
		case img.RecordCount() == 0:
			stats.NoTransactions++
		default:
			stats.Successful++
			result.Records = append(result.Records, img.Result.Records...)
		}
	}

	stats.TotalTransactions = len(result.Records)
	stats.CompleteRecords = quality.CompleteCount(result.Records)
	if stats.TotalImages > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalImages) * 100
	}
	stats.RecognitionRate = RecognitionRate(result.Records)
	result.Quality = o.auditor.Audit(result.Records)

	return result
}

// RecognitionRate is the percentage of records that carry a title
func RecognitionRate(records []*models.TransactionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	titled := 0
	for _, r := range records {
		if r.HasTitle() {
			titled++
		}
	}
	return float64(titled) / float64(len(records)) * 100
}

// ListInputs returns the files in dir whose extension is accepted, sorted by
// name. Sub-directories are not descended into.
func ListInputs(dir string, extensions []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, dir, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, dir, err)
	}
	if !info.IsDir() {
		return nil, errors.FileError(errors.CodeDirectoryError, dir, nil)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, dir, err)
	}

	accepted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		accepted[strings.ToLower(ext)] = true
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if accepted[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (o *Orchestrator) initializeProgress(runID string, total int, start time.Time) {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()

	o.progress = &Progress{
		RunID:       runID,
		TotalImages: total,
		StartTime:   start,
	}
}

func (o *Orchestrator) updateProgress(res *ImageResult) {
	o.progressMutex.Lock()
	defer o.progressMutex.Unlock()

	p := o.progress
	p.Processed++
	if res.Failure != nil {
		p.Failed++
	}
	p.Records += res.RecordCount()
	p.CurrentImage = filepath.Base(res.Path)
	p.ElapsedTime = time.Since(p.StartTime)
	if p.TotalImages > 0 {
		p.PercentComplete = float64(p.Processed) / float64(p.TotalImages) * 100
	}
	if p.Processed < p.TotalImages {
		avg := p.ElapsedTime / time.Duration(p.Processed)
		p.EstimatedRemaining = avg * time.Duration(p.TotalImages-p.Processed)
	} else {
		p.EstimatedRemaining = 0
	}

	snapshot := *p
	for _, callback := range o.progressCallbacks {
		callback(&snapshot)
	}
}
