package pdf

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// pageMarkerLine matches separator lines some producers inject between
// pages, such as "-- 2 of 7 --".
var pageMarkerLine = regexp.MustCompile(`(?m)^[ \t]*--[ \t]*\d+[ \t]+of[ \t]+\d+[ \t]*--[ \t]*$`)

// Parser extracts text from PDF bytes.
type Parser struct {
	minChars int
}

// NewParser creates a Parser with the default page threshold.
func NewParser() *Parser {
	return &Parser{minChars: MinPageChars}
}

// Inspect validates data with pdfcpu and reports its page count. When
// pdfcpu rejects the document the page count comes from the text reader.
func (p *Parser) Inspect(data []byte) (*PDFInfo, error) {
	info := &PDFInfo{FileSize: int64(len(data))}

	ctx, err := validate(data)
	if err == nil {
		info.PageCount = ctx.PageCount
		info.Validated = true
	} else {
		logger.Warn("pdf validation failed, continuing with text reader", logger.Err(err))
		r, openErr := openReader(data)
		if openErr != nil {
			return nil, openErr
		}
		if info.PageCount, err = numPages(r); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func validate(data []byte) (ctx *model.Context, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx, err = nil, fmt.Errorf("pdfcpu: %v", rec)
		}
	}()
	ctx, err = api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, err
	}
	return ctx, api.ValidateContext(ctx)
}

// ExtractPages returns the text of every page that carries at least
// MinPageChars characters after page markers are stripped.
func (p *Parser) ExtractPages(data []byte) (*Extraction, error) {
	r, err := openReader(data)
	if err != nil {
		return nil, err
	}

	total, err := numPages(r)
	if err != nil {
		return nil, err
	}
	ext := &Extraction{TotalPages: total, Pages: []Page{}}
	for n := 1; n <= total; n++ {
		text, err := pageText(r, n)
		if err != nil {
			logger.Warn("page text extraction failed", logger.Int("page", n), logger.Err(err))
		}
		text = CleanPageText(text)
		if len([]rune(text)) < p.minChars {
			ext.Skipped = append(ext.Skipped, n)
			continue
		}
		ext.Pages = append(ext.Pages, Page{Number: n, Text: text})
	}

	logger.Debug("pdf text extracted",
		logger.Int("pages", total),
		logger.Int("withText", len(ext.Pages)),
		logger.Int("skipped", len(ext.Skipped)))
	return ext, nil
}

// openReader opens data with the text reader. The reader panics on some
// malformed cross-reference tables; that is reported as an extraction error.
func openReader(data []byte) (r *pdf.Reader, err error) {
	if len(data) == 0 {
		return nil, types.NewAppError(types.ErrExtraction, "pdf is empty", nil)
	}
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = types.NewAppError(types.ErrExtraction, "failed to open pdf", fmt.Errorf("malformed pdf: %v", rec))
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewAppError(types.ErrExtraction, "failed to open pdf", err)
	}
	return r, nil
}

// numPages reads the page tree, which panics on a broken trailer.
func numPages(r *pdf.Reader) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = types.NewAppError(types.ErrExtraction, "failed to read page tree", fmt.Errorf("malformed pdf: %v", rec))
		}
	}()
	return r.NumPage(), nil
}

// pageText reads one page. The reader panics on some malformed content
// streams; that is reported as an error.
func pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed page %d: %v", n, rec)
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// CleanPageText removes page markers, operator code and control-character
// noise from extracted page text and trims it.
func CleanPageText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = pageMarkerLine.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isPostScriptCode(line) || hasExcessiveNonPrintable(line) {
			continue
		}
		kept = append(kept, strings.TrimRightFunc(line, unicode.IsSpace))
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// isPostScriptCode checks if text looks like PostScript/PDF operator code
// leaked into the text layer.
func isPostScriptCode(text string) bool {
	if len(text) == 0 {
		return false
	}

	textLower := strings.ToLower(text)

	// "/name def" is the most reliable indicator
	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(textLower, "null def") {
		return true
	}
	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}
	if strings.Contains(textLower, "/burl") || strings.Contains(textLower, "burl@") {
		return true
	}

	psOperators := []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
	}
	for _, op := range psOperators {
		if strings.Contains(textLower, op) {
			return true
		}
	}

	// Many "/Name" tokens outside of URLs
	if !strings.Contains(text, "://") && !strings.Contains(textLower, "http") {
		slashNameCount := 0
		for _, word := range strings.Fields(text) {
			if len(word) > 1 && word[0] == '/' && isPSName(word[1:]) {
				slashNameCount++
			}
		}
		if slashNameCount >= 3 {
			return true
		}
	}

	return false
}

func isPSName(s string) bool {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '@') {
			return false
		}
	}
	return true
}

// hasExcessiveNonPrintable reports whether more than 10% of text is
// control characters.
func hasExcessiveNonPrintable(text string) bool {
	if len(text) == 0 {
		return false
	}

	nonPrintable, total := 0, 0
	for _, r := range text {
		total++
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
		if r >= 0x7F && r <= 0x9F {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(total) > 0.1
}
