package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"

	"doc-translator/internal/types"
)

type fakeAnnotator struct {
	resp *visionpb.BatchAnnotateImagesResponse
	err  error
	last *visionpb.AnnotateImageRequest
}

func (f *fakeAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.last = req.GetRequests()[0]
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func textResponse(full, first string) *visionpb.BatchAnnotateImagesResponse {
	r := &visionpb.AnnotateImageResponse{}
	if full != "" {
		r.FullTextAnnotation = &visionpb.TextAnnotation{Text: full}
	}
	if first != "" {
		r.TextAnnotations = []*visionpb.EntityAnnotation{{Description: first}}
	}
	return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{r}}
}

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractText_FeatureByQuality(t *testing.T) {
	tests := []struct {
		quality types.OCRQuality
		want    visionpb.Feature_Type
	}{
		{types.OCRLow, visionpb.Feature_TEXT_DETECTION},
		{types.OCRHigh, visionpb.Feature_DOCUMENT_TEXT_DETECTION},
	}
	for _, tt := range tests {
		t.Run(string(tt.quality), func(t *testing.T) {
			fake := &fakeAnnotator{resp: textResponse("Hello\nWorld", "")}
			e := newEngineWithClient(fake, time.Second)
			got, err := e.ExtractText(context.Background(), Request{Image: samplePNG(t, 40, 20), Quality: tt.quality})
			if err != nil {
				t.Fatalf("ExtractText error: %v", err)
			}
			if got != "Hello\nWorld" {
				t.Errorf("got %q", got)
			}
			if ft := fake.last.GetFeatures()[0].GetType(); ft != tt.want {
				t.Errorf("feature = %s, want %s", ft, tt.want)
			}
		})
	}
}

func TestExtractText_LanguageHints(t *testing.T) {
	fake := &fakeAnnotator{resp: textResponse("x", "")}
	e := newEngineWithClient(fake, time.Second)

	e.ExtractText(context.Background(), Request{Image: samplePNG(t, 10, 10), SourceLanguage: "auto"})
	if fake.last.GetImageContext() != nil {
		t.Error("auto source should not send language hints")
	}

	e.ExtractText(context.Background(), Request{Image: samplePNG(t, 10, 10), SourceLanguage: "de"})
	if hints := fake.last.GetImageContext().GetLanguageHints(); len(hints) != 1 || hints[0] != "de" {
		t.Errorf("hints = %v", hints)
	}
}

func TestExtractText_PreprocessFailureUsesOriginal(t *testing.T) {
	fake := &fakeAnnotator{resp: textResponse("", "fallback text")}
	e := newEngineWithClient(fake, time.Second)

	raw := []byte("not an image")
	got, err := e.ExtractText(context.Background(), Request{Image: raw})
	if err != nil {
		t.Fatalf("ExtractText error: %v", err)
	}
	if !bytes.Equal(fake.last.GetImage().GetContent(), raw) {
		t.Error("original bytes should be sent when preprocessing fails")
	}
	if got != "fallback text" {
		t.Errorf("got %q, want first text annotation", got)
	}
}

func TestExtractText_Errors(t *testing.T) {
	e := newEngineWithClient(&fakeAnnotator{err: errors.New("backend down")}, time.Second)
	_, err := e.ExtractText(context.Background(), Request{Image: samplePNG(t, 4, 4)})
	if types.CodeOf(err) != types.ErrOCR {
		t.Errorf("CodeOf = %s, want %s", types.CodeOf(err), types.ErrOCR)
	}
}

func TestExtractText_EmptyResponse(t *testing.T) {
	e := newEngineWithClient(&fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{}}, time.Second)
	got, err := e.ExtractText(context.Background(), Request{Image: samplePNG(t, 4, 4)})
	if err != nil || got != "" {
		t.Errorf("got %q, %v", got, err)
	}
}
