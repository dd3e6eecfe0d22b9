package pipeline

import (
	"mime"
	"strings"

	"doc-translator/internal/office"
	"doc-translator/internal/parser"
	"doc-translator/internal/types"
)

// Strategy is an extraction strategy selected by MIME type.
type Strategy string

const (
	StrategyImage       Strategy = "image"
	StrategyPDF         Strategy = "pdf"
	StrategyWord        Strategy = "word"
	StrategySpreadsheet Strategy = "spreadsheet"
)

// NormalizeMIME lower-cases mimeType and drops any parameters.
func NormalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// Dispatch selects the extraction strategy for mimeType. Any type outside
// images, PDF and office documents is an UnsupportedFileType error.
func Dispatch(mimeType string) (Strategy, error) {
	mt := NormalizeMIME(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return StrategyImage, nil
	case mt == parser.MimePDF:
		return StrategyPDF, nil
	case office.IsWord(mt):
		return StrategyWord, nil
	case office.IsSpreadsheet(mt):
		return StrategySpreadsheet, nil
	}
	if mt == "" {
		mt = "unknown"
	}
	return "", types.NewAppErrorWithDetails(types.ErrUnsupportedFileType, "unsupported file type", mt, nil)
}
