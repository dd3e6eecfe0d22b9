package office

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"doc-translator/internal/parser"
	"doc-translator/internal/types"
)

const documentPart = "word/document.xml"

var blankLines = regexp.MustCompile(`\n[ \t]*\n`)

// ExtractWord returns the paragraphs of a word-processing document in
// document order. Paragraphs are separated by blank lines in the raw text.
func ExtractWord(data []byte, mimeType string) ([]string, error) {
	if mimeType == parser.MimeDOC {
		return nil, legacyFormat(".doc", ".docx")
	}
	raw, err := WordRawText(data)
	if err != nil {
		return nil, err
	}
	return SplitParagraphs(raw), nil
}

// WordRawText reads word/document.xml from a .docx archive and renders it
// as plain text with a blank line after every paragraph.
func WordRawText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", types.NewAppError(types.ErrExtraction, "failed to open docx archive", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", types.NewAppErrorWithDetails(types.ErrExtraction, "invalid docx", documentPart+" not found in archive", nil)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", types.NewAppError(types.ErrExtraction, "failed to open "+documentPart, err)
	}
	defer rc.Close()

	var out strings.Builder
	inRun, inText := false, false
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", types.NewAppError(types.ErrExtraction, "malformed "+documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				// tab stops in paragraph properties are not content
				if inRun {
					out.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					out.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				out.WriteString("\n\n")
			}
		}
	}
	return out.String(), nil
}

// SplitParagraphs normalises line endings and splits text on blank lines,
// dropping empty paragraphs.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paragraphs []string
	for _, p := range blankLines.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
