package models

import (
	"fmt"
	"image"
	"strings"
)

// TextFragment is one recognized text line from a screenshot
type TextFragment struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Position   int             `json:"position"`
	Box        image.Rectangle `json:"box"`
}

// String returns a compact representation used in debug logs
func (f TextFragment) String() string {
	return fmt.Sprintf("#%d %q (%.2f)", f.Position, f.Text, f.Confidence)
}

// TextBlockStream is the ordered fragment sequence recognized from one image.
// Positions are contiguous and start at zero.
type TextBlockStream struct {
	Source    string         `json:"source"`
	Fragments []TextFragment `json:"fragments"`
}

// NewTextBlockStream keeps fragments whose confidence is strictly above
// minConfidence and whose trimmed text is non-empty, then renumbers them.
func NewTextBlockStream(source string, fragments []TextFragment, minConfidence float64) *TextBlockStream {
	kept := make([]TextFragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Confidence <= minConfidence {
			continue
		}
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		f.Text = text
		f.Position = len(kept)
		kept = append(kept, f)
	}
	return &TextBlockStream{Source: source, Fragments: kept}
}

// StreamFromTexts builds a stream of full-confidence fragments
func StreamFromTexts(source string, texts ...string) *TextBlockStream {
	fragments := make([]TextFragment, len(texts))
	for i, t := range texts {
		fragments[i] = TextFragment{Text: t, Confidence: 1}
	}
	return NewTextBlockStream(source, fragments, 0)
}

// Len returns the number of fragments
func (s *TextBlockStream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Fragments)
}

// Text returns the text of fragment i
func (s *TextBlockStream) Text(i int) string {
	return s.Fragments[i].Text
}

// Texts returns the fragment texts in order
func (s *TextBlockStream) Texts() []string {
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.Fragments[i].Text
	}
	return out
}

// Window returns the fragments in [from, to) clamped to the stream bounds
func (s *TextBlockStream) Window(from, to int) []TextFragment {
	if from < 0 {
		from = 0
	}
	if to > s.Len() {
		to = s.Len()
	}
	if from >= to {
		return nil
	}
	return s.Fragments[from:to]
}
