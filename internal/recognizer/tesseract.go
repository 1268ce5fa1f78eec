package recognizer

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

// ImageExtensions are the screenshot formats handed to Tesseract
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".webp"}

// Tesseract recognizes screenshots line by line. A new client is created per
// call because gosseract clients are not safe for concurrent use.
type Tesseract struct {
	languages      []string
	tessdataPrefix string
	preparer       *Preparer
	logger         logger.Logger
}

// NewTesseract creates a Tesseract recognizer. A nil preparer sends the
// original image to the engine.
func NewTesseract(languages []string, tessdataPrefix string, preparer *Preparer, log logger.Logger) *Tesseract {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Tesseract{
		languages:      languages,
		tessdataPrefix: tessdataPrefix,
		preparer:       preparer,
		logger:         log.WithComponent("tesseract"),
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Extensions() []string { return ImageExtensions }

func (t *Tesseract) Supports(path string) bool {
	return hasExtension(path, ImageExtensions)
}

// Recognize returns one fragment per text line with confidence scaled to 0..1
func (t *Tesseract) Recognize(ctx context.Context, path string) ([]models.TextFragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeCancelled, "recognize", err)
	}

	input := path
	if t.preparer != nil {
		prepared, cleanup, err := t.preparer.Prepare(path)
		if err != nil {
			t.logger.WithError(err).WithField("image", path).Warn("Image preparation failed, using original")
		} else {
			input = prepared
			defer cleanup()
		}
	}

	client, err := t.newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImage(input); err != nil {
		return nil, errors.RecognitionError(errors.CodeRecognitionFailed, path, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, errors.RecognitionError(errors.CodeRecognitionFailed, path, err)
	}

	fragments := make([]models.TextFragment, 0, len(boxes))
	for _, b := range boxes {
		fragments = append(fragments, models.TextFragment{
			Text:       strings.TrimSpace(b.Word),
			Confidence: b.Confidence / 100,
			Position:   len(fragments),
			Box:        b.Box,
		})
	}

	t.logger.WithFields(logger.Fields{
		"image":     path,
		"fragments": len(fragments),
	}).Debug("Recognized image")

	return fragments, nil
}

// Check runs the engine once on a blank image so missing language data is
// reported before the batch starts.
func (t *Tesseract) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.InternalError(errors.CodeCancelled, "check", err)
	}

	client, err := t.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 32))); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "encode probe image", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return errors.CollaboratorError(t.Name(), err)
	}
	if _, err := client.Text(); err != nil {
		return errors.CollaboratorError(t.Name(), err)
	}
	return nil
}

func (t *Tesseract) newClient() (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if t.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			client.Close()
			return nil, errors.CollaboratorError(t.Name(), err)
		}
	}
	if err := client.SetLanguage(t.languages...); err != nil {
		client.Close()
		return nil, errors.CollaboratorError(t.Name(), err)
	}
	return client, nil
}
