// Package vision reads and translates an image in a single multimodal
// call to the LLM router, with an optional table-alignment refine pass.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"doc-translator/internal/logger"
	"doc-translator/internal/ocr"
	"doc-translator/internal/translator"
	"doc-translator/internal/types"
)

// Completer sends a chat completion. *translator.RouterBackend implements it.
type Completer interface {
	Complete(ctx context.Context, model string, messages []translator.ChatMessage) (string, error)
}

// Request is one image to read and translate.
type Request struct {
	Image          []byte
	MIMEType       string
	SourceLanguage string
	TargetLanguage string
	Domain         types.Domain
	Model          string
	// Detail is the image detail hint: "high" or "auto".
	Detail string
}

// Result holds the transcription and its translation.
type Result struct {
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
}

// Empty reports whether neither field carries text.
func (r *Result) Empty() bool {
	return r == nil || (strings.TrimSpace(r.OriginalText) == "" && strings.TrimSpace(r.TranslatedText) == "")
}

// Translator performs image-to-translation calls.
type Translator struct {
	client        Completer
	model         string
	disableRefine bool
}

// New creates a Translator. model is used when a request names none.
func New(client Completer, model string, disableRefine bool) *Translator {
	return &Translator{client: client, model: model, disableRefine: disableRefine}
}

// DetailFor maps an OCR quality tier to the image detail hint.
func DetailFor(q types.OCRQuality) string {
	if q == types.OCRHigh {
		return "high"
	}
	return "auto"
}

// Translate reads and translates req.Image. Malformed model output is
// salvaged rather than returned as an error.
func (t *Translator) Translate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Image) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "image is empty", nil)
	}
	data, mimeType, err := ocr.NormalizeForUpload(req.Image, req.MIMEType)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "unsupported image data", err)
	}

	model := req.Model
	if model == "" {
		model = t.model
	}
	detail := req.Detail
	if detail == "" {
		detail = "auto"
	}

	msg := translator.ChatMessage{
		Role: "user",
		Content: []translator.ContentPart{
			{Type: "text", Text: buildReadPrompt(req.SourceLanguage, req.TargetLanguage, req.Domain)},
			{Type: "image_url", ImageURL: &translator.ImageURL{
				URL:    "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
				Detail: detail,
			}},
		},
	}

	start := time.Now()
	raw, err := t.client.Complete(ctx, model, []translator.ChatMessage{msg})
	if err != nil {
		return nil, err
	}
	result, method := ParseResponse(raw)
	if method != ParsedJSON {
		logger.Warn("vision reply was not valid JSON, salvaged",
			logger.String("model", model),
			logger.String("code", string(types.ErrMalformedModelOutput)),
			logger.String("parse", string(method)))
	}
	logger.Info("vision translation received",
		logger.String("model", model),
		logger.String("parse", string(method)),
		logger.Duration("elapsed", time.Since(start)))

	if t.disableRefine || result.OriginalText == "" || result.TranslatedText == "" {
		return &result, nil
	}
	result.TranslatedText = t.refine(ctx, model, result.TranslatedText, req.TargetLanguage)
	return &result, nil
}

// refine asks the model to re-align the tables in draft. Any failure keeps
// the draft.
func (t *Translator) refine(ctx context.Context, model, draft, target string) string {
	raw, err := t.client.Complete(ctx, model, []translator.ChatMessage{
		translator.TextMessage("user", buildRefinePrompt(draft, target)),
	})
	if err != nil {
		logger.Warn("refine pass failed, keeping draft", logger.Err(err))
		return draft
	}
	refined, method := ParseResponse(raw)
	if method == ParsedRaw || strings.TrimSpace(refined.TranslatedText) == "" {
		logger.Warn("refine pass returned no usable JSON, keeping draft", logger.String("parse", string(method)))
		return draft
	}
	return refined.TranslatedText
}

func buildReadPrompt(source, target string, domain types.Domain) string {
	return fmt.Sprintf(`You are given an image of a document page.

1. Transcribe ALL visible text from the image, in reading order, in %s.
2. Translate the transcription into %s.
3. Reproduce every table with manually space-padded, vertically aligned columns so it
   reads correctly in a monospace font. Keep one output line per table row.
4. Keep numbers, dates, names and identifiers exactly as written.

%s

Return ONLY a JSON object of the form:
{"originalText": "<transcription>", "translatedText": "<translation>"}
Do not add any other text.`, translator.LanguageName(source), translator.LanguageName(target), translator.DomainGuidance(domain))
}

func buildRefinePrompt(draft, target string) string {
	return fmt.Sprintf(`The following %s text was produced from a scanned page. Re-format it so that
every table has vertically aligned columns padded with spaces, one line per row, and
separator rows widened to match. Do not change any words, numbers or line order.

Return ONLY a JSON object of the form:
{"translatedText": "<re-formatted text>"}

Text:
%s`, translator.LanguageName(target), draft)
}
