package office

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"doc-translator/internal/logger"
	"doc-translator/internal/parser"
	"doc-translator/internal/types"
)

// Cell is one non-empty spreadsheet cell. Row and Col are 1-based.
type Cell struct {
	Sheet string
	Row   int
	Col   int
	Value string
}

// Ref returns the location tag for the cell, such as "Sheet1!R2C3".
func (c Cell) Ref() string {
	return fmt.Sprintf("%s!R%dC%d", c.Sheet, c.Row, c.Col)
}

// Tagged returns the cell value prefixed with its location tag.
func (c Cell) Tagged() string {
	return c.Ref() + "\n" + c.Value
}

// ExtractSpreadsheet returns the non-empty cells of every worksheet in
// sheet, row, column order.
func ExtractSpreadsheet(data []byte, mimeType string) ([]Cell, error) {
	if mimeType == parser.MimeXLS {
		return nil, legacyFormat(".xls", ".xlsx")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewAppError(types.ErrExtraction, "failed to open spreadsheet", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close spreadsheet", logger.Err(err))
		}
	}()

	var cells []Cell
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrExtraction, "failed to read worksheet", sheet, err)
		}
		for r, row := range rows {
			for c, value := range row {
				if strings.TrimSpace(value) == "" {
					continue
				}
				cells = append(cells, Cell{Sheet: sheet, Row: r + 1, Col: c + 1, Value: value})
			}
		}
	}
	logger.Debug("spreadsheet extracted", logger.Int("cells", len(cells)))
	return cells, nil
}
