package recognizer

import (
	"image"
	"os"

	"github.com/disintegration/imaging"

	"golang-transaction-extractor/pkg/errors"
	"golang-transaction-extractor/pkg/logger"
)

// PrepareConfig tunes the image clean-up applied before recognition
type PrepareConfig struct {
	MinHeight int     `json:"min_height" mapstructure:"min_height"`
	Contrast  float64 `json:"contrast" mapstructure:"contrast"`
	Blur      float64 `json:"blur" mapstructure:"blur"`
	Sharpen   float64 `json:"sharpen" mapstructure:"sharpen"`
	Binarize  bool    `json:"binarize" mapstructure:"binarize"`
	TempDir   string  `json:"temp_dir" mapstructure:"temp_dir"`
}

// DefaultPrepareConfig returns the clean-up used for phone screenshots
func DefaultPrepareConfig() PrepareConfig {
	return PrepareConfig{
		MinHeight: 1200,
		Contrast:  20,
		Blur:      0.5,
		Sharpen:   1.0,
		Binarize:  true,
	}
}

// Validate checks the preparation settings
func (c PrepareConfig) Validate() error {
	if c.MinHeight < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "prepare.min_height", c.MinHeight, nil)
	}
	if c.Contrast < -100 || c.Contrast > 100 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "prepare.contrast", c.Contrast, nil)
	}
	if c.Blur < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "prepare.blur", c.Blur, nil)
	}
	if c.Sharpen < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "prepare.sharpen", c.Sharpen, nil)
	}
	return nil
}

// Preparer writes a cleaned-up copy of an image for the recognizer
type Preparer struct {
	config PrepareConfig
	logger logger.Logger
}

// NewPreparer creates an image preparer
func NewPreparer(config PrepareConfig, log logger.Logger) *Preparer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Preparer{config: config, logger: log.WithComponent("preparer")}
}

// Prepare returns the path of the prepared temp PNG and a cleanup func that
// removes it. On error the caller should fall back to the original path.
func (p *Preparer) Prepare(path string) (string, func(), error) {
	src, err := imaging.Open(path)
	if err != nil {
		return path, func() {}, errors.PreparationError(errors.CodeImageDecode, path, err)
	}

	img := imaging.Grayscale(src)
	if p.config.MinHeight > 0 && img.Bounds().Dy() < p.config.MinHeight {
		img = imaging.Resize(img, 0, p.config.MinHeight, imaging.Lanczos)
	}
	if p.config.Contrast != 0 {
		img = imaging.AdjustContrast(img, p.config.Contrast)
	}
	if p.config.Blur > 0 {
		img = imaging.Blur(img, p.config.Blur)
	}
	if p.config.Sharpen > 0 {
		img = imaging.Sharpen(img, p.config.Sharpen)
	}

	var out image.Image = img
	if p.config.Binarize {
		out = Binarize(img)
	}

	tmp, err := os.CreateTemp(p.config.TempDir, "extractor-*.png")
	if err != nil {
		return path, func() {}, errors.PreparationError(errors.CodeImageWrite, path, err)
	}
	name := tmp.Name()
	_ = tmp.Close()

	if err := imaging.Save(out, name); err != nil {
		_ = os.Remove(name)
		return path, func() {}, errors.PreparationError(errors.CodeImageWrite, path, err)
	}

	p.logger.WithFields(logger.Fields{
		"image":    path,
		"prepared": name,
	}).Debug("Prepared image")

	return name, func() { _ = os.Remove(name) }, nil
}

// Binarize thresholds a grayscale image at its Otsu level. Pixels above the
// threshold become white.
func Binarize(img *image.NRGBA) *image.Gray {
	bounds := img.Bounds()
	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			hist[row[x*4]]++
		}
	}

	threshold := OtsuThreshold(hist, bounds.Dx()*bounds.Dy())

	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		dst := out.Pix[(y-bounds.Min.Y)*out.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			if row[x*4] > threshold {
				dst[x] = 255
			}
		}
	}
	return out
}

// OtsuThreshold picks the level that maximizes between-class variance
func OtsuThreshold(hist [256]int, total int) uint8 {
	if total == 0 {
		return 0
	}

	var sum float64
	for level, count := range hist {
		sum += float64(level * count)
	}

	var sumBelow, weightBelow, best float64
	var threshold int
	for level := 0; level < 256; level++ {
		weightBelow += float64(hist[level])
		if weightBelow == 0 {
			continue
		}
		weightAbove := float64(total) - weightBelow
		if weightAbove == 0 {
			break
		}
		sumBelow += float64(level * hist[level])

		meanBelow := sumBelow / weightBelow
		meanAbove := (sum - sumBelow) / weightAbove
		between := weightBelow * weightAbove * (meanBelow - meanAbove) * (meanBelow - meanAbove)
		if between > best {
			best = between
			threshold = level
		}
	}
	return uint8(threshold)
}
