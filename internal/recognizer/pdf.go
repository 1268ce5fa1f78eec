package recognizer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

// PDF reads the embedded text layer of exported statements. Every non-empty
// row becomes a full-confidence fragment.
type PDF struct {
	logger logger.Logger
}

// NewPDF creates a PDF text-layer recognizer
func NewPDF(log logger.Logger) *PDF {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &PDF{logger: log.WithComponent("pdf")}
}

func (p *PDF) Name() string { return "pdf" }

func (p *PDF) Extensions() []string { return []string{".pdf"} }

func (p *PDF) Supports(path string) bool {
	return hasExtension(path, p.Extensions())
}

func (p *PDF) Recognize(ctx context.Context, path string) ([]models.TextFragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeCancelled, "recognize", err)
	}

	lines, err := readRows(path)
	if err != nil {
		return nil, errors.RecognitionError(errors.CodeRecognitionFailed, path, err)
	}

	fragments := make([]models.TextFragment, 0, len(lines))
	for _, line := range lines {
		fragments = append(fragments, models.TextFragment{
			Text:       line,
			Confidence: 1,
			Position:   len(fragments),
		})
	}

	p.logger.WithFields(logger.Fields{
		"file":      path,
		"fragments": len(fragments),
	}).Debug("Read PDF text layer")

	return fragments, nil
}

// readRows collects row text page by page. The library panics on some
// malformed files, so the panic is turned into an error.
func readRows(path string) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("pdf reader crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var b strings.Builder
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
	}

	if len(lines) == 0 {
		lines = plainTextLines(r)
	}
	return lines, nil
}

func plainTextLines(r *pdf.Reader) []string {
	reader, err := r.GetPlainText()
	if err != nil {
		return nil
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
