package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/pkg/errors"
)

// Replay loads previously recognized fragments from a JSON dump. Three shapes
// are accepted: a list of strings, a list of fragments, or a stream object
// with a "fragments" field.
type Replay struct{}

// NewReplay creates a JSON replay recognizer
func NewReplay() *Replay {
	return &Replay{}
}

func (r *Replay) Name() string { return "replay" }

func (r *Replay) Extensions() []string { return []string{".json"} }

func (r *Replay) Supports(path string) bool {
	return hasExtension(path, r.Extensions())
}

func (r *Replay) Recognize(ctx context.Context, path string) ([]models.TextFragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeCancelled, "recognize", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}

	fragments, err := DecodeFragments(data)
	if err != nil {
		return nil, errors.RecognitionError(errors.CodeRecognitionFailed, path, err)
	}
	return fragments, nil
}

// DecodeFragments parses a fragment dump. Plain strings get confidence 1 and
// blank ones are dropped.
func DecodeFragments(data []byte) ([]models.TextFragment, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []models.TextFragment{}, nil
	}

	var fragments []models.TextFragment
	if data[0] == '{' {
		var stream models.TextBlockStream
		if err := json.Unmarshal(data, &stream); err != nil {
			return nil, err
		}
		fragments = stream.Fragments
	} else {
		var texts []string
		if err := json.Unmarshal(data, &texts); err == nil {
			fragments = models.StreamFromTexts("", texts...).Fragments
		} else if err := json.Unmarshal(data, &fragments); err != nil {
			return nil, err
		}
	}

	for i := range fragments {
		fragments[i].Position = i
	}
	if fragments == nil {
		fragments = []models.TextFragment{}
	}
	return fragments, nil
}
