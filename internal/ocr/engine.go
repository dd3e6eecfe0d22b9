// Package ocr extracts text from images through a cloud vision backend,
// with quality-dependent preprocessing.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// Request is a single OCR call.
type Request struct {
	Image          []byte
	MIMEType       string
	Quality        types.OCRQuality
	SourceLanguage string
}

// Engine extracts plain text from an image.
type Engine interface {
	ExtractText(ctx context.Context, req Request) (string, error)
}

type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// GoogleVisionEngine is an Engine backed by Cloud Vision. The client is
// created on first use and shared by every job afterwards.
type GoogleVisionEngine struct {
	credentialsFile string
	timeout         time.Duration

	once    sync.Once
	client  annotator
	initErr error
}

// NewGoogleVisionEngine creates an engine. An empty credentialsFile uses
// application default credentials.
func NewGoogleVisionEngine(credentialsFile string, timeout time.Duration) *GoogleVisionEngine {
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	return &GoogleVisionEngine{credentialsFile: credentialsFile, timeout: timeout}
}

func newEngineWithClient(client annotator, timeout time.Duration) *GoogleVisionEngine {
	e := NewGoogleVisionEngine("", timeout)
	e.once.Do(func() { e.client = client })
	return e
}

func (e *GoogleVisionEngine) getClient() (annotator, error) {
	e.once.Do(func() {
		var opts []option.ClientOption
		if e.credentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(e.credentialsFile))
		}
		c, err := vision.NewImageAnnotatorClient(context.Background(), opts...)
		if err != nil {
			e.initErr = types.NewAppError(types.ErrProviderAuthOrConfig, "failed to create vision client", err)
			return
		}
		e.client = c
	})
	return e.client, e.initErr
}

// FeatureFor maps a quality tier to the vision feature type.
func FeatureFor(q types.OCRQuality) visionpb.Feature_Type {
	if q == types.OCRHigh {
		return visionpb.Feature_DOCUMENT_TEXT_DETECTION
	}
	return visionpb.Feature_TEXT_DETECTION
}

// ExtractText preprocesses the image and runs text detection on it. A
// preprocessing failure falls back to the original bytes.
func (e *GoogleVisionEngine) ExtractText(ctx context.Context, req Request) (string, error) {
	client, err := e.getClient()
	if err != nil {
		return "", err
	}

	content := req.Image
	if processed, err := Preprocess(req.Image, req.Quality); err != nil {
		logger.Warn("image preprocessing failed, using original", logger.Err(err))
	} else {
		content = processed
	}

	annotate := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: content},
		Features: []*visionpb.Feature{{Type: FeatureFor(req.Quality)}},
	}
	if !types.IsAutoLanguage(req.SourceLanguage) {
		annotate.ImageContext = &visionpb.ImageContext{LanguageHints: []string{req.SourceLanguage}}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{annotate},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", types.NewAppErrorWithDetails(types.ErrProviderTimeout, "ocr request timed out",
				fmt.Sprintf("timeout %s", e.timeout), err)
		}
		return "", types.NewAppError(types.ErrOCR, "ocr request failed", err)
	}
	if len(resp.GetResponses()) == 0 {
		return "", nil
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil && r.GetError().GetMessage() != "" {
		return "", types.NewAppError(types.ErrOCR, "ocr request failed", errors.New(r.GetError().GetMessage()))
	}

	text := r.GetFullTextAnnotation().GetText()
	if text == "" && len(r.GetTextAnnotations()) > 0 {
		text = r.GetTextAnnotations()[0].GetDescription()
	}
	text = strings.TrimSpace(text)

	logger.Debug("ocr completed",
		logger.String("feature", FeatureFor(req.Quality).String()),
		logger.Int("chars", len(text)),
		logger.Duration("elapsed", time.Since(start)))
	return text, nil
}
