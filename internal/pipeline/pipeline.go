// Package pipeline turns one source document into an ordered list of
// translated segments: it fetches the blob, dispatches on MIME type,
// extracts translatable units and translates them one at a time.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"doc-translator/internal/downloader"
	"doc-translator/internal/logger"
	"doc-translator/internal/ocr"
	"doc-translator/internal/office"
	"doc-translator/internal/pdf"
	"doc-translator/internal/translator"
	"doc-translator/internal/types"
	"doc-translator/internal/vision"
)

// Request is the input for one file.
type Request struct {
	OrderID   string `json:"orderId"`
	FileName  string `json:"fileName"`
	FileIndex int    `json:"fileIndex"`

	// FileURL is fetched when Data is empty.
	FileURL  string `json:"fileURL,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`

	SourceLanguage string             `json:"sourceLanguage"`
	TargetLanguage string             `json:"targetLanguage"`
	Provider       types.ProviderKind `json:"provider"`
	Domain         types.Domain       `json:"domain"`
	Model          string             `json:"model,omitempty"`
	OCRQuality     types.OCRQuality   `json:"ocrQuality"`
}

// Result is the output for one file.
type Result struct {
	Segments []types.Segment `json:"segments"`
	MIMEType string          `json:"mimeType"`
	Strategy Strategy        `json:"strategy"`
}

// Fetcher retrieves a blob by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*downloader.Blob, error)
}

// TextTranslator translates a text unit with the named backend.
type TextTranslator interface {
	Translate(ctx context.Context, kind types.ProviderKind, req translator.Request) (string, error)
}

// ImageTranslator reads and translates an image in one call.
type ImageTranslator interface {
	Translate(ctx context.Context, req vision.Request) (*vision.Result, error)
}

// Deps are the collaborators of a Pipeline. Vision may be nil.
type Deps struct {
	Fetcher         Fetcher
	Text            TextTranslator
	Vision          ImageTranslator
	OCR             ocr.Engine
	PDF             *pdf.Parser
	Rasterizer      pdf.Rasterizer
	MaxScannedPages int
}

// Pipeline is safe for concurrent use by multiple jobs. It holds no
// per-job state.
type Pipeline struct {
	fetcher         Fetcher
	text            TextTranslator
	vision          ImageTranslator
	ocr             ocr.Engine
	pdf             *pdf.Parser
	rasterizer      pdf.Rasterizer
	maxScannedPages int
}

// New creates a Pipeline.
func New(d Deps) *Pipeline {
	p := &Pipeline{
		fetcher:         d.Fetcher,
		text:            d.Text,
		vision:          d.Vision,
		ocr:             d.OCR,
		pdf:             d.PDF,
		rasterizer:      d.Rasterizer,
		maxScannedPages: d.MaxScannedPages,
	}
	if p.pdf == nil {
		p.pdf = pdf.NewParser()
	}
	if p.maxScannedPages <= 0 {
		p.maxScannedPages = pdf.MaxScannedPages
	}
	return p
}

// draft is a segment before ids and order are assigned.
type draft struct {
	original   string
	translated string
	page       *int
}

// unit is one piece of extracted text. prefix is prepended to both the
// original and the translated text but is not sent for translation.
type unit struct {
	text   string
	prefix string
	page   *int
}

// Run processes one file. Units are translated sequentially.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	req = normalizeRequest(req)
	log := logger.With(
		logger.String("orderId", req.OrderID),
		logger.String("fileName", req.FileName),
		logger.String("provider", string(req.Provider)))

	start := time.Now()
	data, mimeType, err := p.load(ctx, req)
	if err != nil {
		return nil, err
	}

	strategy, err := Dispatch(mimeType)
	if err != nil {
		log.Warn("unsupported file type", logger.String("mimeType", mimeType))
		return nil, err
	}
	mimeType = NormalizeMIME(mimeType)
	log.Info("processing document",
		logger.String("strategy", string(strategy)),
		logger.String("mimeType", mimeType),
		logger.Int("bytes", len(data)))

	var drafts []draft
	switch strategy {
	case StrategyImage:
		drafts, err = p.runImage(ctx, log, req, data, mimeType)
	case StrategyPDF:
		drafts, err = p.runPDF(ctx, log, req, data)
	case StrategyWord:
		drafts, err = p.runWord(ctx, log, req, data, mimeType)
	case StrategySpreadsheet:
		drafts, err = p.runSpreadsheet(ctx, log, req, data, mimeType)
	}
	if err != nil {
		log.Error("document processing failed", err, logger.String("stage", string(StageOf(err))))
		return nil, err
	}

	segments := assemble(drafts)
	log.Info("document processed",
		logger.Int("segments", len(segments)),
		logger.Duration("elapsed", time.Since(start)))
	return &Result{Segments: segments, MIMEType: mimeType, Strategy: strategy}, nil
}

func normalizeRequest(req Request) Request {
	req.Provider = types.ParseProvider(string(req.Provider))
	req.Domain = types.NormalizeDomain(string(req.Domain))
	req.OCRQuality = types.ParseOCRQuality(string(req.OCRQuality))
	if strings.TrimSpace(req.SourceLanguage) == "" {
		req.SourceLanguage = types.AutoLanguage
	}
	return req
}

func (p *Pipeline) load(ctx context.Context, req Request) ([]byte, string, error) {
	if len(req.Data) > 0 {
		return req.Data, req.MIMEType, nil
	}
	if req.FileURL == "" {
		return nil, "", types.NewAppError(types.ErrInvalidInput, "either file data or a file URL is required", nil)
	}
	if p.fetcher == nil {
		return nil, "", types.NewAppError(types.ErrConfig, "no fetcher configured", nil)
	}
	blob, err := p.fetcher.Fetch(ctx, req.FileURL)
	if err != nil {
		return nil, "", &StageError{Stage: StageFetch, Err: err}
	}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = blob.ContentType
	}
	return blob.Data, mimeType, nil
}

func (p *Pipeline) translateText(ctx context.Context, req Request, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	out, err := p.text.Translate(ctx, req.Provider, translator.Request{
		Text:           text,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Domain:         req.Domain,
		Model:          req.Model,
	})
	if err != nil {
		return "", &StageError{Stage: StageTranslation, Err: err}
	}
	return out, nil
}

func (p *Pipeline) translateUnits(ctx context.Context, log logger.Logger, req Request, units []unit) ([]draft, error) {
	drafts := make([]draft, 0, len(units))
	for i, u := range units {
		out, err := p.translateText(ctx, req, u.text)
		if err != nil {
			return nil, err
		}
		log.Debug("unit translated", logger.Int("unit", i+1), logger.Int("total", len(units)))
		drafts = append(drafts, draft{original: u.prefix + u.text, translated: u.prefix + out, page: u.page})
	}
	return drafts, nil
}

func (p *Pipeline) runWord(ctx context.Context, log logger.Logger, req Request, data []byte, mimeType string) ([]draft, error) {
	paragraphs, err := office.ExtractWord(data, mimeType)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	if len(paragraphs) == 0 {
		return []draft{diagnostic("No translatable text found in document", nil)}, nil
	}
	units := make([]unit, len(paragraphs))
	for i, para := range paragraphs {
		units[i] = unit{text: para}
	}
	return p.translateUnits(ctx, log, req, units)
}

func (p *Pipeline) runSpreadsheet(ctx context.Context, log logger.Logger, req Request, data []byte, mimeType string) ([]draft, error) {
	cells, err := office.ExtractSpreadsheet(data, mimeType)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	if len(cells) == 0 {
		return []draft{diagnostic("No translatable text found in spreadsheet", nil)}, nil
	}
	units := make([]unit, len(cells))
	for i, c := range cells {
		units[i] = unit{text: c.Value, prefix: c.Ref() + "\n"}
	}
	return p.translateUnits(ctx, log, req, units)
}

func diagnostic(reason string, page *int) draft {
	return draft{original: "[" + reason + "]", page: page}
}

func assemble(drafts []draft) []types.Segment {
	segments := make([]types.Segment, len(drafts))
	for i, d := range drafts {
		segments[i] = types.Segment{
			ID:             uuid.NewString(),
			OriginalText:   d.original,
			TranslatedText: d.translated,
			PageNumber:     d.page,
			Order:          i,
		}
	}
	return segments
}

func pageRef(n int) *int {
	return &n
}

func pageLabel(page *int) string {
	if page == nil {
		return "image"
	}
	return fmt.Sprintf("page %d", *page)
}
