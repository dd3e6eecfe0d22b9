// Package pdf extracts per-page text from PDF documents and rasterises
// pages for the scanned-document fallback.
package pdf

const (
	// MinPageChars is the trimmed length below which a page is treated as
	// having no extractable text.
	MinPageChars = 5
	// MaxScannedPages caps how many pages of a scanned PDF are rasterised.
	MaxScannedPages = 50
	// DefaultDPI is the rasterisation resolution.
	DefaultDPI = 200
)

// PDFInfo describes a PDF document.
type PDFInfo struct {
	PageCount int   `json:"page_count"`
	FileSize  int64 `json:"file_size"`
	// Validated is true when the document passed structural validation.
	Validated bool `json:"validated"`
}

// Page is the text of one page. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Extraction is the result of per-page text extraction.
type Extraction struct {
	TotalPages int `json:"total_pages"`
	// Pages holds pages with at least MinPageChars of text, in page order.
	Pages []Page `json:"pages"`
	// Skipped lists the numbers of pages below the threshold.
	Skipped []int `json:"skipped,omitempty"`
}

// Scanned reports whether no page yielded usable text.
func (e *Extraction) Scanned() bool {
	return len(e.Pages) == 0
}

// PageImage is a rasterised page. Number is 1-based.
type PageImage struct {
	Number   int    `json:"number"`
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
