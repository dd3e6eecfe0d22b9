// Package office extracts translatable units from word-processing and
// spreadsheet documents.
package office

import (
	"doc-translator/internal/parser"
	"doc-translator/internal/types"
)

// IsWord reports whether mimeType is a word-processing document.
func IsWord(mimeType string) bool {
	return mimeType == parser.MimeDOCX || mimeType == parser.MimeDOC
}

// IsSpreadsheet reports whether mimeType is a spreadsheet document.
func IsSpreadsheet(mimeType string) bool {
	switch mimeType {
	case parser.MimeXLSX, parser.MimeXLSM, parser.MimeXLS:
		return true
	}
	return false
}

func legacyFormat(kind, convertTo string) error {
	return types.NewAppErrorWithDetails(types.ErrUnsupportedFileType,
		"legacy binary "+kind+" documents are not supported", "convert the file to "+convertTo, nil)
}
