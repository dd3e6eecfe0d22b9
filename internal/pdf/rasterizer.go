package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// Rasterizer renders PDF pages to images.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, maxPages int) ([]PageImage, error)
}

// FitzRasterizer renders pages with MuPDF.
type FitzRasterizer struct {
	dpi         float64
	jpegQuality int
}

// NewFitzRasterizer creates a rasterizer. A non-positive dpi uses DefaultDPI.
func NewFitzRasterizer(dpi float64) *FitzRasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &FitzRasterizer{dpi: dpi, jpegQuality: 90}
}

// Rasterize renders at most maxPages pages of data as JPEG images.
func (r *FitzRasterizer) Rasterize(ctx context.Context, data []byte, maxPages int) ([]PageImage, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtraction, "failed to open pdf for rendering", err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count == 0 {
		return nil, types.NewAppError(types.ErrExtraction, "pdf has no pages", nil)
	}
	if maxPages > 0 && count > maxPages {
		logger.Warn("scanned pdf exceeds page cap, rendering first pages only",
			logger.Int("pages", count), logger.Int("cap", maxPages))
		count = maxPages
	}

	images := make([]PageImage, 0, count)
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(i, r.dpi)
		if err != nil {
			return nil, types.NewAppError(types.ErrExtraction, fmt.Sprintf("failed to render page %d", i+1), err)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(r.jpegQuality)); err != nil {
			return nil, types.NewAppError(types.ErrExtraction, fmt.Sprintf("failed to encode page %d", i+1), err)
		}

		b := img.Bounds()
		images = append(images, PageImage{
			Number:   i + 1,
			Data:     buf.Bytes(),
			MIMEType: "image/jpeg",
			Width:    b.Dx(),
			Height:   b.Dy(),
		})
		logger.Debug("page rendered", logger.Int("page", i+1), logger.Int("bytes", buf.Len()))
	}
	return images, nil
}
