package scanning

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/disintegration/imaging"
)

// DefaultMaxWidth is the widest image handed to OCR providers.
const DefaultMaxWidth = 1200

// Preprocessor prepares receipt photos for OCR
type Preprocessor struct {
	maxWidth     int
	sharpenSigma float64
}

// NewPreprocessor creates a Preprocessor. maxWidth <= 0 uses DefaultMaxWidth.
func NewPreprocessor(maxWidth int) *Preprocessor {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Preprocessor{maxWidth: maxWidth, sharpenSigma: 1.0}
}

// Process returns a downscaled, sharpened, contrast-stretched greyscale PNG.
// It never fails: when the image cannot be handled the input is returned unchanged.
func (p *Preprocessor) Process(img Image) Image {
	out, err := p.process(img)
	if err != nil {
		slog.Warn("Image preprocessing failed, using original", "content_type", img.ContentType, "error", err)
		return img
	}
	return out
}

func (p *Preprocessor) process(in Image) (Image, error) {
	src, err := decodeImage(in.Data, in.ContentType)
	if err != nil {
		return Image{}, err
	}

	var img image.Image = src
	if img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}
	img = imaging.Sharpen(img, p.sharpenSigma)
	gray := imaging.Grayscale(img)
	gray = stretchContrast(gray)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return Image{}, fmt.Errorf("encoding PNG: %w", err)
	}
	return Image{Data: buf.Bytes(), ContentType: "image/png"}, nil
}

// stretchContrast maps the darkest grey level to black and the lightest to white.
// img must be greyscale, so the red channel carries the luminance.
func stretchContrast(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		v := img.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo || (lo == 0 && hi == 255) {
		return img
	}

	span := float64(hi - lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		scale := func(v uint8) uint8 {
			if v <= lo {
				return 0
			}
			if v >= hi {
				return 255
			}
			return uint8(float64(v-lo)*255/span + 0.5)
		}
		return color.NRGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
	})
}
