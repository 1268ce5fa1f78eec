package batch

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"golang-transaction-extractor/internal/extractor"
	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/rules"
	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

var screenshots = map[string][]string{
	"a.png": {"07-30 15:36", "还车贷（含智能还贷）", "-2000.00", "余额8888.88", "储蓄卡6842"},
	"b.json": {
		"04-30 09:40", "人身保险费", "-30.07", "余额1000.00",
		"04-30 09:40", "人身保险费", "-45.00", "余额969.93",
	},
	"c.jpg":     {"07-29 18:02", "管道煤气费", "-120.00", "07-29 12:10", "美团外卖订单", "-35.50"},
	"empty.png": {"账单", "全部", "筛选"},
}

type fakeRecognizer struct {
	texts    map[string][]string
	failures map[string]error
	panics   map[string]bool
	checkErr error
	checked  []string
	calls    int64
}

func (f *fakeRecognizer) Recognize(ctx context.Context, path string) ([]models.TextFragment, error) {
	atomic.AddInt64(&f.calls, 1)
	name := filepath.Base(path)
	if f.panics[name] {
		panic("decoder blew up on " + name)
	}
	if err := f.failures[name]; err != nil {
		return nil, err
	}
	return models.StreamFromTexts(name, f.texts[name]...).Fragments, nil
}

func (f *fakeRecognizer) Check(ctx context.Context, paths ...string) error {
	f.checked = append(f.checked, paths...)
	return f.checkErr
}

func newPipeline(t *testing.T) *extractor.Pipeline {
	t.Helper()
	p, err := extractor.NewPipeline(rules.MustDefault(), nil, logger.Discard())
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	return p
}

func newOrchestrator(t *testing.T, rec Recognizer, workers int) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = workers
	o, err := NewOrchestrator(rec, newPipeline(t), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return o
}

func inputDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.png"), 0o755); err != nil {
		t.Fatalf("failed to create sub-directory: %v", err)
	}
	return dir
}

func titles(records []*models.TransactionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestRunKeepsDirectoryOrder(t *testing.T) {
	dir := inputDir(t, "c.jpg", "a.png", "b.json", "notes.txt")
	expected := []string{"还车贷（含智能还贷）", "人身保险费", "管道煤气费", "美团外卖订单"}

	for _, workers := range []int{1, 4} {
		rec := &fakeRecognizer{texts: screenshots}
		result, err := newOrchestrator(t, rec, workers).Run(context.Background(), dir)
		if err != nil {
			t.Fatalf("workers=%d: unexpected error: %v", workers, err)
		}

		got := titles(result.Records)
		if len(got) != len(expected) {
			t.Fatalf("workers=%d: expected %v, got %v", workers, expected, got)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("workers=%d: record %d expected %s, got %s", workers, i, expected[i], got[i])
			}
		}
		if rec.calls != 3 {
			t.Errorf("workers=%d: expected 3 recognitions, got %d", workers, rec.calls)
		}
		if result.Records[0].Source != "a.png" {
			t.Errorf("expected source a.png, got %s", result.Records[0].Source)
		}
		if result.RunID == "" || result.InputDir != dir {
			t.Errorf("unexpected run metadata %q %q", result.RunID, result.InputDir)
		}
	}
}

func TestRunAbsorbsImageFailures(t *testing.T) {
	dir := inputDir(t, "a.png", "broken.png", "crash.png", "empty.png")
	rec := &fakeRecognizer{
		texts:    screenshots,
		failures: map[string]error{"broken.png": stderrors.New("unreadable")},
		panics:   map[string]bool{"crash.png": true},
	}

	result, err := newOrchestrator(t, rec, 2).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := Stats{
		TotalImages:       4,
		Successful:        1,
		Failed:            2,
		NoTransactions:    1,
		SuccessRate:       25,
		TotalTransactions: 1,
		CompleteRecords:   1,
		RecognitionRate:   100,
	}
	if result.Stats != expected {
		t.Errorf("unexpected stats:\n got %+v\nwant %+v", result.Stats, expected)
	}

	if len(result.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(result.Failures))
	}
	broken, crash := result.Failures[0], result.Failures[1]
	if broken.Image.Index != 1 || broken.Image.Stage != errors.StageRecognize || broken.Category != errors.CategoryRecognition {
		t.Errorf("unexpected failure for broken image: %+v", broken.Image)
	}
	if crash.Image.Index != 2 || crash.Image.Stage != errors.StageRecognize {
		t.Errorf("unexpected failure for crashing image: %+v", crash.Image)
	}
	if result.Quality == nil || result.Quality.IsEmpty() {
		t.Error("expected a quality report")
	}
}

func TestRunChecksRecognizerFirst(t *testing.T) {
	dir := inputDir(t, "a.png")
	rec := &fakeRecognizer{texts: screenshots, checkErr: errors.CollaboratorError("tesseract", nil)}

	_, err := newOrchestrator(t, rec, 1).Run(context.Background(), dir)
	extErr, ok := errors.AsExtractorError(err)
	if !ok || extErr.Category != errors.CategoryCollaborator {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if rec.calls != 0 {
		t.Errorf("no image should be recognized, got %d calls", rec.calls)
	}
	if len(rec.checked) != 1 || filepath.Base(rec.checked[0]) != "a.png" {
		t.Errorf("expected the listed input to be checked, got %v", rec.checked)
	}
}

func TestRunSummarizesFailures(t *testing.T) {
	dir := inputDir(t, "a.png", "blurry.png", "broken.png", "crash.png", "empty.png")
	rec := &fakeRecognizer{
		texts: screenshots,
		failures: map[string]error{
			"broken.png": stderrors.New("unreadable"),
			"blurry.png": errors.PreparationError(errors.CodeImageDecode, "blurry.png", stderrors.New("bad header")),
		},
		panics: map[string]bool{"crash.png": true},
	}

	result, err := newOrchestrator(t, rec, 3).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := result.Errors
	if summary == nil {
		t.Fatal("expected an error summary")
	}
	if summary.Total != 3 || len(result.Failures) != 3 {
		t.Errorf("expected 3 failures, got summary %d and failures %d", summary.Total, len(result.Failures))
	}
	if summary.ByCategory[errors.CategoryRecognition] != 2 || summary.ByCategory[errors.CategoryPreparation] != 1 {
		t.Errorf("unexpected categories %v", summary.ByCategory)
	}
	if summary.ByCode[errors.CodeRecognitionFailed] != 2 || summary.ByCode[errors.CodeImageDecode] != 1 {
		t.Errorf("unexpected codes %v", summary.ByCode)
	}
	if got := summary.Breakdown(); got != "preparation: 1, recognition: 2" {
		t.Errorf("unexpected breakdown %q", got)
	}
	if result.Stats.Failed != 3 || result.Stats.Successful != 1 || result.Stats.NoTransactions != 1 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
}

func TestRunWithoutFailuresHasNoSummary(t *testing.T) {
	result, err := newOrchestrator(t, &fakeRecognizer{texts: screenshots}, 1).
		RunFiles(context.Background(), []string{"a.png", "empty.png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Errors != nil {
		t.Errorf("expected no error summary, got %+v", result.Errors)
	}
}

func TestRunInputErrors(t *testing.T) {
	tests := []struct {
		name   string
		dir    func(t *testing.T) string
		expect errors.ErrorCode
	}{
		{"missing directory", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }, errors.CodeFileNotFound},
		{"no images", func(t *testing.T) string { return inputDir(t, "notes.txt") }, errors.CodeNoInputImages},
		{"file instead of directory", func(t *testing.T) string {
			return filepath.Join(inputDir(t, "a.png"), "a.png")
		}, errors.CodeDirectoryError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newOrchestrator(t, &fakeRecognizer{}, 1).Run(context.Background(), tt.dir(t))
			extErr, ok := errors.AsExtractorError(err)
			if !ok || extErr.Code != tt.expect {
				t.Errorf("expected %s, got %v", tt.expect, err)
			}
			if ok && extErr.GetExitCode() != 2 {
				t.Errorf("expected exit code 2, got %d", extErr.GetExitCode())
			}
		})
	}
}

func TestRunFilesCancelled(t *testing.T) {
	rec := &fakeRecognizer{texts: screenshots}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newOrchestrator(t, rec, 1).RunFiles(ctx, []string{"a.png", "c.jpg"})
	extErr, ok := errors.AsExtractorError(err)
	if !ok || extErr.Code != errors.CodeCancelled {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if result == nil || result.Stats.Skipped != 2 || len(result.Records) != 0 {
		t.Errorf("expected every image skipped, got %+v", result)
	}
	if rec.calls != 0 {
		t.Errorf("expected no recognition calls, got %d", rec.calls)
	}
}

func TestProgressCallbacks(t *testing.T) {
	o := newOrchestrator(t, &fakeRecognizer{texts: screenshots}, 3)

	var mu sync.Mutex
	var seen []Progress
	o.AddProgressCallback(func(p *Progress) {
		mu.Lock()
		seen = append(seen, *p)
		mu.Unlock()
	})

	if _, err := o.RunFiles(context.Background(), []string{"a.png", "b.json", "c.jpg"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(seen))
	}
	last := seen[len(seen)-1]
	if last.Processed != 3 || last.TotalImages != 3 || last.PercentComplete != 100 || last.Records != 4 {
		t.Errorf("unexpected final progress %+v", last)
	}
	if last.EstimatedRemaining != 0 {
		t.Errorf("expected no remaining estimate, got %v", last.EstimatedRemaining)
	}
}

func TestRecognitionRate(t *testing.T) {
	records := []*models.TransactionRecord{{Title: "a"}, {Title: ""}, {Title: "b"}, {Title: "c"}}
	if got := RecognitionRate(records); got != 75 {
		t.Errorf("expected 75, got %v", got)
	}
	if got := RecognitionRate(nil); got != 0 {
		t.Errorf("expected 0 for no records, got %v", got)
	}
}

func TestNewOrchestratorValidation(t *testing.T) {
	p := newPipeline(t)
	if _, err := NewOrchestrator(nil, p, nil, logger.Discard()); err == nil {
		t.Error("expected missing recognizer to be rejected")
	}
	if _, err := NewOrchestrator(&fakeRecognizer{}, nil, nil, logger.Discard()); err == nil {
		t.Error("expected missing pipeline to be rejected")
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"no extensions", func(c *Config) { c.Extensions = nil }},
		{"extension without dot", func(c *Config) { c.Extensions = []string{"png"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if _, err := NewOrchestrator(&fakeRecognizer{}, p, cfg, logger.Discard()); err == nil {
				t.Error("expected invalid config to be rejected")
			}
		})
	}
}
