// Package extractor turns the recognized text fragments of one screenshot
// into transaction records.
//
// The pipeline runs in fixed stages:
//  1. anchor detection over width-folded fragment texts
//  2. segmentation into one window per anchor
//  3. field extraction per window, dropping windows without a title
//  4. supplement scan for transactions segmentation missed
//  5. reconciliation of duplicates and conflicting variants
//  6. enhancement and classification
//
// Every stage is synchronous and deterministic. A Pipeline holds only
// read-only state and may be shared between goroutines.
//
// Example usage:
//
//	p, err := extractor.NewPipeline(rules.MustDefault(), extractor.DefaultConfig(), log)
//	if err != nil {
//		return err
//	}
//	result := p.Run(stream)
//	for _, rec := range result.Records {
//		fmt.Println(rec)
//	}
package extractor

import (
	"fmt"

	"golang-transaction-extractor/internal/classifier"
	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/quality"
	"golang-transaction-extractor/internal/reconciler"
	"golang-transaction-extractor/internal/rules"
	"golang-transaction-extractor/pkg/logger"
)

// Stats counts what each stage produced for one stream
type Stats struct {
	Fragments         int    `json:"fragments"`
	Anchors           int    `json:"anchors"`
	Tier              string `json:"tier"`
	Segments          int    `json:"segments"`
	Untitled          int    `json:"untitled"`
	Supplemented      int    `json:"supplemented"`
	Recovered         int    `json:"recovered"`
	Duplicates        int    `json:"duplicates"`
	ConflictsResolved int    `json:"conflicts_resolved"`
	Records           int    `json:"records"`
	Complete          int    `json:"complete"`
	Issues            int    `json:"issues"`
}

// Result is the outcome of running the pipeline on one stream
type Result struct {
	Source  string                      `json:"source"`
	Records []*models.TransactionRecord `json:"records"`
	Anchors []models.TimeAnchor         `json:"anchors"`
	Tier    models.DetectionTier        `json:"-"`
	Stats   Stats                       `json:"stats"`
}

// Pipeline wires the extraction stages together
type Pipeline struct {
	config     *Config
	anchors    *AnchorDetector
	fields     *FieldExtractor
	supplement *SupplementScanner
	reconciler *reconciler.Reconciler
	enhancer   *Enhancer
	logger     logger.Logger
}

// NewPipeline builds a pipeline for the rule table and configuration
func NewPipeline(r *rules.Rules, cfg *Config, log logger.Logger) (*Pipeline, error) {
	if r == nil {
		return nil, fmt.Errorf("rules are required")
	}
	if cfg == nil {
		cfg = ConfigFromThresholds(r.Thresholds)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extractor configuration: %w", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	c, err := classifier.NewFromRules(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	return &Pipeline{
		config:     cfg,
		anchors:    NewAnchorDetector(r, cfg.NeighborhoodRadius, log),
		fields:     NewFieldExtractor(r, cfg),
		supplement: NewSupplementScanner(r, cfg, log),
		reconciler: reconciler.New(r.Conflicts, log),
		enhancer:   NewEnhancer(r, c),
		logger:     log.WithComponent("extractor"),
	}, nil
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() *Config {
	return p.config
}

// Run extracts the records of one stream. An empty stream yields an empty
// result.
func (p *Pipeline) Run(stream *models.TextBlockStream) *Result {
	if stream == nil {
		stream = &models.TextBlockStream{}
	}
	result := &Result{Source: stream.Source, Records: []*models.TransactionRecord{}}
	result.Stats.Fragments = stream.Len()
	if stream.Len() == 0 {
		return result
	}

	log := p.logger.WithField("source", stream.Source)

	raw := stream.Texts()
	folded := make([]string, len(raw))
	for i, t := range raw {
		folded[i] = rules.Fold(t)
	}

	anchors, tier, found := p.anchors.Detect(folded)
	result.Anchors = anchors
	result.Tier = tier
	result.Stats.Anchors = len(anchors)
	if found {
		result.Stats.Tier = tier.String()
	}

	var candidates []*models.TransactionRecord
	for _, seg := range BuildSegments(stream, anchors) {
		result.Stats.Segments++
		rec := p.fields.Extract(seg)
		if !rec.HasTitle() {
			result.Stats.Untitled++
			continue
		}
		candidates = append(candidates, rec)
	}

	candidates, supplemented := p.supplement.Scan(stream, candidates)
	result.Stats.Supplemented = supplemented.Supplemented
	result.Stats.Recovered = supplemented.Recovered

	reconciled := p.reconciler.Reconcile(candidates)
	result.Stats.Duplicates = reconciled.Duplicates
	result.Stats.ConflictsResolved = reconciled.ConflictsResolved

	for _, rec := range reconciled.Records {
		if issues := quality.Validate(rec); len(issues) > 0 {
			result.Stats.Issues += len(issues)
			log.WithFields(logger.Fields{
				"title":  rec.Title,
				"issues": fmt.Sprint(issues),
			}).Debug("Record has validation issues")
		}
		if !p.config.SkipEnhancement {
			rec = p.enhancer.Enhance(rec)
		}
		rec.Source = stream.Source
		result.Records = append(result.Records, rec)
	}

	result.Stats.Records = len(result.Records)
	result.Stats.Complete = quality.CompleteCount(result.Records)

	log.WithFields(logger.Fields{
		"fragments": result.Stats.Fragments,
		"anchors":   result.Stats.Anchors,
		"tier":      result.Stats.Tier,
		"records":   result.Stats.Records,
		"complete":  result.Stats.Complete,
	}).Debug("Extraction finished")
	return result
}
