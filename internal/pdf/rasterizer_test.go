package pdf

import (
	"bytes"
	"context"
	"image/jpeg"
	"testing"

	"doc-translator/internal/pdf/pdftest"
	"doc-translator/internal/types"
)

func TestFitzRasterizer_RendersUpToCap(t *testing.T) {
	data := pdftest.BuildTextPDF("page one text", "page two text", "page three text")

	images, err := NewFitzRasterizer(72).Rasterize(context.Background(), data, 2)
	if err != nil {
		t.Fatalf("Rasterize error: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	for i, img := range images {
		if img.Number != i+1 {
			t.Errorf("image %d has number %d", i, img.Number)
		}
		if img.MIMEType != "image/jpeg" {
			t.Errorf("MIMEType = %s", img.MIMEType)
		}
		decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
		if err != nil {
			t.Fatalf("page %d is not a jpeg: %v", img.Number, err)
		}
		if decoded.Bounds().Dx() != img.Width || img.Width == 0 {
			t.Errorf("width = %d, decoded %d", img.Width, decoded.Bounds().Dx())
		}
	}
}

func TestFitzRasterizer_InvalidData(t *testing.T) {
	_, err := NewFitzRasterizer(0).Rasterize(context.Background(), []byte("not a pdf"), MaxScannedPages)
	if types.CodeOf(err) != types.ErrExtraction {
		t.Errorf("CodeOf = %s, want %s", types.CodeOf(err), types.ErrExtraction)
	}
}

func TestFitzRasterizer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFitzRasterizer(72).Rasterize(ctx, pdftest.BuildTextPDF("some text"), 0); err == nil {
		t.Error("expected cancellation error")
	}
}
