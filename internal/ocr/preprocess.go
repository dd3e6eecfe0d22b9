package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// Recipe is a preprocessing pipeline applied to an image before OCR.
// Zero values disable a step.
type Recipe struct {
	MinWidth   int // upscale narrower images to this width
	Grayscale  bool
	Contrast   float64 // percentage, -100..100
	Brightness float64 // percentage, -100..100
	Denoise    float64 // gaussian blur sigma
	Sharpen    float64 // unsharp sigma
	Threshold  uint8   // binarise at this luminance
}

var (
	lightRecipe = Recipe{
		Grayscale: true,
		Contrast:  15,
		Sharpen:   0.8,
	}
	aggressiveRecipe = Recipe{
		MinWidth:   2000,
		Grayscale:  true,
		Contrast:   35,
		Brightness: 5,
		Denoise:    0.6,
		Sharpen:    1.5,
		Threshold:  160,
	}
)

// RecipeFor returns the preprocessing recipe for a quality tier.
func RecipeFor(q types.OCRQuality) Recipe {
	if q == types.OCRHigh {
		return aggressiveRecipe
	}
	return lightRecipe
}

// Apply runs the recipe over img.
func (r Recipe) Apply(img image.Image) image.Image {
	out := imaging.Clone(img)
	if r.MinWidth > 0 && out.Bounds().Dx() < r.MinWidth {
		out = imaging.Resize(out, r.MinWidth, 0, imaging.Lanczos)
	}
	if r.Grayscale {
		out = imaging.Grayscale(out)
	}
	if r.Contrast != 0 {
		out = imaging.AdjustContrast(out, r.Contrast)
	}
	if r.Brightness != 0 {
		out = imaging.AdjustBrightness(out, r.Brightness)
	}
	if r.Denoise > 0 {
		out = imaging.Blur(out, r.Denoise)
	}
	if r.Sharpen > 0 {
		out = imaging.Sharpen(out, r.Sharpen)
	}
	if r.Threshold > 0 {
		out = binarize(out, r.Threshold)
	}
	return out
}

func binarize(img *image.NRGBA, threshold uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		lum := (299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B)) / 1000
		if lum >= uint32(threshold) {
			return color.NRGBA{R: 255, G: 255, B: 255, A: c.A}
		}
		return color.NRGBA{A: c.A}
	})
}

// Preprocess decodes data, applies the recipe for quality and returns PNG
// bytes.
func Preprocess(data []byte, quality types.OCRQuality) ([]byte, error) {
	img, format, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	logger.Debug("preprocessing image for ocr",
		logger.String("format", format),
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()),
		logger.String("quality", string(quality)))

	return EncodePNG(RecipeFor(quality).Apply(img))
}
