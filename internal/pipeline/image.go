package pipeline

import (
	"context"
	"fmt"

	"doc-translator/internal/logger"
	"doc-translator/internal/ocr"
	"doc-translator/internal/pdf"
	"doc-translator/internal/types"
	"doc-translator/internal/vision"
)

// imageStep is one strategy of the image ladder. A nil draft with a nil
// error means the step produced nothing and the next one is tried. Errors
// from optional steps are logged and skipped; others end the ladder.
type imageStep struct {
	name     string
	optional bool
	run      func(ctx context.Context) (*draft, error)
}

// imageLadder lists the strategies for one image in order: a single vision
// call when the LLM router is selected, then OCR followed by text
// translation.
func (p *Pipeline) imageLadder(req Request, img []byte, mimeType string, page *int) []imageStep {
	var steps []imageStep
	if p.vision != nil && req.Provider == types.ProviderOpenRouter {
		steps = append(steps, imageStep{
			name:     "vision",
			optional: true,
			run: func(ctx context.Context) (*draft, error) {
				res, err := p.vision.Translate(ctx, vision.Request{
					Image:          img,
					MIMEType:       mimeType,
					SourceLanguage: req.SourceLanguage,
					TargetLanguage: req.TargetLanguage,
					Domain:         req.Domain,
					Model:          req.Model,
					Detail:         vision.DetailFor(req.OCRQuality),
				})
				if err != nil || res.Empty() {
					return nil, err
				}
				return &draft{original: res.OriginalText, translated: res.TranslatedText, page: page}, nil
			},
		})
	}
	steps = append(steps, imageStep{
		name: "ocr",
		run: func(ctx context.Context) (*draft, error) {
			if p.ocr == nil {
				return nil, &StageError{Stage: StageOCR, Err: types.NewAppError(types.ErrConfig, "no ocr engine configured", nil)}
			}
			text, err := p.ocr.ExtractText(ctx, ocr.Request{
				Image:          img,
				MIMEType:       mimeType,
				Quality:        req.OCRQuality,
				SourceLanguage: req.SourceLanguage,
			})
			if err != nil {
				return nil, &StageError{Stage: StageOCR, Err: err}
			}
			if text == "" {
				return nil, nil
			}
			translated, err := p.translateText(ctx, req, text)
			if err != nil {
				return nil, err
			}
			return &draft{original: text, translated: translated, page: page}, nil
		},
	})
	return steps
}

// runLadder tries each step in order and returns the first draft. When no
// step yields text the result is a diagnostic draft.
func (p *Pipeline) runLadder(ctx context.Context, log logger.Logger, steps []imageStep, page *int) (draft, error) {
	for _, step := range steps {
		d, err := step.run(ctx)
		switch {
		case err != nil && step.optional:
			log.Warn("image strategy failed, trying next",
				logger.String("strategy", step.name), logger.String("unit", pageLabel(page)), logger.Err(err))
			continue
		case err != nil:
			return draft{}, err
		case d == nil:
			log.Info("image strategy produced no text",
				logger.String("strategy", step.name), logger.String("unit", pageLabel(page)))
			continue
		}
		log.Info("image strategy succeeded",
			logger.String("strategy", step.name), logger.String("unit", pageLabel(page)))
		return *d, nil
	}
	if page != nil {
		return diagnostic(fmt.Sprintf("No text could be extracted from page %d", *page), page), nil
	}
	return diagnostic("No text could be extracted from the image", nil), nil
}

func (p *Pipeline) runImage(ctx context.Context, log logger.Logger, req Request, data []byte, mimeType string) ([]draft, error) {
	d, err := p.runLadder(ctx, log, p.imageLadder(req, data, mimeType, nil), nil)
	if err != nil {
		return nil, err
	}
	return []draft{d}, nil
}

func (p *Pipeline) runPDF(ctx context.Context, log logger.Logger, req Request, data []byte) ([]draft, error) {
	info, inspectErr := p.pdf.Inspect(data)
	if inspectErr != nil {
		log.Warn("pdf inspection failed", logger.Err(inspectErr))
	} else {
		log.Debug("pdf inspected", logger.Int("pages", info.PageCount), logger.Bool("validated", info.Validated))
	}
	limit := p.scanLimit(log, info)

	ext, err := p.pdf.ExtractPages(data)
	if err != nil {
		// The text reader is strict about headers and cross-references;
		// MuPDF repairs both, so the document may still render.
		log.Warn("pdf text layer unreadable, rasterizing pages",
			logger.Bool("validated", info != nil && info.Validated),
			logger.Int("pages", pageCount(info)),
			logger.Err(err))
		return p.runScanned(ctx, log, req, data, limit, &StageError{Stage: StageExtract, Err: err})
	}
	if len(ext.Skipped) > 0 {
		log.Info("pages without extractable text", logger.Any("pages", ext.Skipped))
	}
	if !ext.Scanned() {
		units := make([]unit, len(ext.Pages))
		for i, pg := range ext.Pages {
			units[i] = unit{text: pg.Text, page: pageRef(pg.Number)}
		}
		return p.translateUnits(ctx, log, req, units)
	}

	log.Info("pdf has no text layer, rasterizing pages", logger.Int("pages", ext.TotalPages))
	return p.runScanned(ctx, log, req, data, limit, nil)
}

// scanLimit caps rasterisation at the page count pdfcpu reported, or at the
// configured maximum when the count is unknown or larger.
func (p *Pipeline) scanLimit(log logger.Logger, info *pdf.PDFInfo) int {
	n := pageCount(info)
	if n <= 0 {
		return p.maxScannedPages
	}
	if n > p.maxScannedPages {
		log.Warn("scanned pdf exceeds page limit, later pages are skipped",
			logger.Int("pages", n), logger.Int("limit", p.maxScannedPages))
		return p.maxScannedPages
	}
	return n
}

func pageCount(info *pdf.PDFInfo) int {
	if info == nil {
		return 0
	}
	return info.PageCount
}

// runScanned sends every rasterised page through the image ladder. A
// rasterisation or OCR failure yields a single diagnostic draft; provider
// failures propagate. When unreadable is set the text reader already
// rejected the document, and a failed rasterisation returns that error.
func (p *Pipeline) runScanned(ctx context.Context, log logger.Logger, req Request, data []byte, limit int, unreadable error) ([]draft, error) {
	if p.rasterizer == nil {
		if unreadable != nil {
			return nil, unreadable
		}
		return []draft{diagnostic("Scanned PDF could not be processed: no rasterizer configured", nil)}, nil
	}
	images, err := p.rasterizer.Rasterize(ctx, data, limit)
	if err != nil {
		log.Warn("pdf rasterization failed", logger.Err(err))
		if unreadable != nil {
			return nil, unreadable
		}
		return []draft{diagnostic("Scanned PDF could not be rasterized: "+err.Error(), nil)}, nil
	}
	if len(images) == 0 {
		if unreadable != nil {
			return nil, unreadable
		}
		return []draft{diagnostic("Scanned PDF has no renderable pages", nil)}, nil
	}

	drafts := make([]draft, 0, len(images))
	for _, img := range images {
		page := pageRef(img.Number)
		d, err := p.runLadder(ctx, log, p.imageLadder(req, img.Data, img.MIMEType, page), page)
		if err != nil {
			if StageOf(err) == StageOCR {
				log.Warn("ocr failed on scanned pdf", logger.Int("page", img.Number), logger.Err(err))
				return []draft{diagnostic(fmt.Sprintf("OCR failed on page %d: %s", img.Number, err.Error()), nil)}, nil
			}
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
