// Package parser identifies input references and maps file names to MIME types.
package parser

import (
	"path/filepath"
	"strings"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// MIME types understood by the pipeline.
const (
	MimePDF         = "application/pdf"
	MimeDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC         = "application/msword"
	MimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXLSM        = "application/vnd.ms-excel.sheet.macroEnabled.12"
	MimeXLS         = "application/vnd.ms-excel"
	MimePNG         = "image/png"
	MimeJPEG        = "image/jpeg"
	MimeWebP        = "image/webp"
	MimeGIF         = "image/gif"
	MimeBMP         = "image/bmp"
	MimeTIFF        = "image/tiff"
	MimeOctetStream = "application/octet-stream"
)

var extensionTypes = map[string]string{
	".pdf":  MimePDF,
	".docx": MimeDOCX,
	".doc":  MimeDOC,
	".xlsx": MimeXLSX,
	".xlsm": MimeXLSM,
	".xls":  MimeXLS,
	".png":  MimePNG,
	".jpg":  MimeJPEG,
	".jpeg": MimeJPEG,
	".webp": MimeWebP,
	".gif":  MimeGIF,
	".bmp":  MimeBMP,
	".tif":  MimeTIFF,
	".tiff": MimeTIFF,
}

// MimeTypeFromName maps a file name's extension to a MIME type.
// It returns "" for unknown extensions.
func MimeTypeFromName(name string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}

// ParseInput analyzes the input string and determines its type.
//
// Input type rules:
// - Starts with http:// or https:// → URL type
// - Ends with a known document extension → LocalFile type
// - Otherwise → error (invalid input)
func ParseInput(input string) (types.SourceType, error) {
	logger.Debug("parsing input", logger.String("input", input))

	input = strings.TrimSpace(input)
	if input == "" {
		logger.Warn("parse input failed: empty input")
		return "", types.NewAppError(types.ErrInvalidInput, "input cannot be empty", nil)
	}

	if isURL(input) {
		logger.Info("input identified as URL", logger.String("input", input))
		return types.SourceTypeURL, nil
	}

	if MimeTypeFromName(input) != "" {
		logger.Info("input identified as local file", logger.String("input", input))
		return types.SourceTypeLocalFile, nil
	}

	logger.Warn("invalid input format", logger.String("input", input))
	return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid input format", input, nil)
}

// Describe parses input and fills a SourceInfo for it.
func Describe(input string) (*types.SourceInfo, error) {
	st, err := ParseInput(input)
	if err != nil {
		return nil, err
	}
	input = strings.TrimSpace(input)
	name := input
	if st == types.SourceTypeURL {
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
		name = name[strings.LastIndex(name, "/")+1:]
	} else {
		name = filepath.Base(input)
	}
	return &types.SourceInfo{
		SourceType:  st,
		OriginalRef: input,
		FileName:    name,
		MIMEType:    MimeTypeFromName(name),
	}, nil
}

func isURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
