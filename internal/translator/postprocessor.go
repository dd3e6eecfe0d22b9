package translator

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"

	"doc-translator/internal/logger"
)

var (
	sectionBreakPattern = regexp.MustCompile(`\n\s*\n`)
	datePattern         = regexp.MustCompile(`\b\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}\b`)
	separatorPattern    = regexp.MustCompile(`(?m)^[ \t]*[-=]{3,}[ \t]*$`)
	pageMarkerPattern   = regexp.MustCompile(`(?i)\bpage\s+\d+\s+of\s+\d+\b`)
	separatorCell       = regexp.MustCompile(`^\s*:?-{3,}:?\s*$`)
)

// PostprocessChunk repairs layout that classical machine translation loses,
// using the original text as reference. It is a best-effort heuristic: when
// no rule applies, the translation is returned unchanged.
func PostprocessChunk(translated, original string) string {
	return PostprocessChunkWithOptions(translated, original, DefaultRestoreConfig())
}

// PostprocessChunkWithOptions performs post-processing with custom options.
func PostprocessChunkWithOptions(translated, original string, cfg *RestoreConfig) string {
	if cfg == nil {
		cfg = DefaultRestoreConfig()
	}
	if strings.TrimSpace(translated) == "" || strings.TrimSpace(original) == "" {
		return translated
	}

	original = strings.Trim(normalizeNewlines(original), "\n")
	result := strings.Trim(normalizeNewlines(translated), "\n")

	result = restoreLayout(result, original, cfg)

	if cfg.RestoreDates {
		result = restoreFirstLiteral(result, original, datePattern)
	}
	if cfg.RestoreSeparators {
		result = restoreFirstLiteral(result, original, separatorPattern)
	}
	if cfg.RestorePageMarkers {
		result = restoreFirstLiteral(result, original, pageMarkerPattern)
	}
	return result
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// restoreLayout picks the line-level or the coarse restoration.
func restoreLayout(translated, original string, cfg *RestoreConfig) string {
	origLines := strings.Split(original, "\n")
	transLines := strings.Split(translated, "\n")

	if len(origLines) == len(transLines) {
		if !cfg.RestoreTables {
			return translated
		}
		return strings.Join(restoreTables(origLines, transLines, cfg), "\n")
	}

	if !cfg.CoarseFallback {
		return translated
	}
	logger.Debug("line count mismatch, using coarse restoration",
		logger.Int("originalLines", len(origLines)),
		logger.Int("translatedLines", len(transLines)))
	return coarseRestore(original, translated, len(origLines))
}

// tableRow is one line of a table block.
type tableRow struct {
	indent     string
	lead, tail bool
	separator  bool
	cells      []string // translated text, or the original dash run for separators
}

// restoreTables rebuilds every block of consecutive original lines that
// contain a pipe. Other lines keep their translation.
func restoreTables(origLines, transLines []string, cfg *RestoreConfig) []string {
	out := make([]string, len(transLines))
	copy(out, transLines)

	for i := 0; i < len(origLines); {
		if !isTableLine(origLines[i]) {
			i++
			continue
		}
		end := i
		for end < len(origLines) && isTableLine(origLines[end]) {
			end++
		}
		rebuilt := rebuildTableBlock(origLines[i:end], transLines[i:end], cfg)
		copy(out[i:end], rebuilt)
		i = end
	}
	return out
}

func isTableLine(line string) bool {
	return strings.Contains(line, "|") && strings.TrimSpace(line) != "|"
}

func rebuildTableBlock(origLines, transLines []string, cfg *RestoreConfig) []string {
	rows := make([]*tableRow, len(origLines))
	var widths []int
	grow := func(col, w int) {
		for len(widths) <= col {
			widths = append(widths, 0)
		}
		if w > widths[col] {
			widths[col] = w
		}
	}

	for i, orig := range origLines {
		origCells, lead, tail := splitCells(orig)
		if len(origCells) > cfg.MaxTableColumns {
			rows[i] = nil
			continue
		}
		row := &tableRow{
			indent:    leadingWhitespace(orig),
			lead:      lead,
			tail:      tail,
			separator: isSeparatorRow(origCells),
		}

		if row.separator {
			row.cells = make([]string, len(origCells))
			for c, cell := range origCells {
				row.cells[c] = strings.TrimSpace(cell)
				grow(c, runewidth.StringWidth(row.cells[c])-2*cfg.CellPadding)
			}
		} else {
			row.cells = cellsForRow(origCells, transLines[i])
			for c, cell := range origCells {
				grow(c, runewidth.StringWidth(strings.TrimSpace(cell)))
				grow(c, runewidth.StringWidth(row.cells[c]))
			}
		}
		rows[i] = row
	}

	out := make([]string, len(origLines))
	pad := strings.Repeat(" ", cfg.CellPadding)
	for i, row := range rows {
		if row == nil {
			out[i] = transLines[i]
			continue
		}
		var b strings.Builder
		b.WriteString(row.indent)
		if row.lead {
			b.WriteByte('|')
		}
		for c, cell := range row.cells {
			if c > 0 {
				b.WriteByte('|')
			}
			if row.separator {
				b.WriteString(cell)
				if fill := widths[c] + 2*cfg.CellPadding - runewidth.StringWidth(cell); fill > 0 {
					b.WriteString(strings.Repeat(" ", fill))
				}
				continue
			}
			b.WriteString(pad)
			b.WriteString(runewidth.FillRight(cell, widths[c]))
			b.WriteString(pad)
		}
		if row.tail {
			b.WriteByte('|')
		}
		out[i] = b.String()
	}
	return out
}

// splitCells splits a table line on pipes and reports whether the line has
// a leading and a trailing pipe.
func splitCells(line string) (cells []string, lead, tail bool) {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "|") {
		lead = true
		t = t[1:]
	}
	if strings.HasSuffix(t, "|") {
		tail = true
		t = t[:len(t)-1]
	}
	return strings.Split(t, "|"), lead, tail
}

func isSeparatorRow(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !separatorCell.MatchString(c) {
			return false
		}
	}
	return true
}

// cellsForRow returns one translated cell per original column. A
// translation that kept the column count is used as is; otherwise the
// translated words are spread over the columns in proportion to the
// original cell lengths.
func cellsForRow(origCells []string, transLine string) []string {
	if strings.Contains(transLine, "|") {
		transCells, _, _ := splitCells(transLine)
		if len(transCells) == len(origCells) {
			out := make([]string, len(transCells))
			for i, c := range transCells {
				out[i] = strings.TrimSpace(c)
			}
			return out
		}
	}

	weights := make([]int, len(origCells))
	for i, c := range origCells {
		weights[i] = runewidth.StringWidth(strings.TrimSpace(c))
	}
	words := strings.Fields(strings.ReplaceAll(transLine, "|", " "))
	return distributeWords(words, weights)
}

// distributeWords assigns consecutive runs of words to len(weights) slots,
// each run sized by its slot's share of the total weight.
func distributeWords(words []string, weights []int) []string {
	out := make([]string, len(weights))
	if len(weights) == 0 {
		return out
	}
	total := 0
	for i, w := range weights {
		if w < 1 {
			weights[i] = 1
		}
		total += weights[i]
	}

	start, cum := 0, 0
	for i, w := range weights {
		cum += w
		end := (len(words)*cum + total/2) / total
		if i == len(weights)-1 {
			end = len(words)
		}
		if end < start {
			end = start
		}
		out[i] = strings.Join(words[start:end], " ")
		start = end
	}
	return out
}

// coarseRestore handles translations whose line count drifted from the
// original.
func coarseRestore(original, translated string, lineCount int) string {
	origSections := splitSections(original)
	transSections := splitSections(translated)
	if len(origSections) == len(transSections) {
		return strings.Join(transSections, "\n\n")
	}
	return spreadWords(strings.Fields(translated), lineCount)
}

func splitSections(s string) []string {
	var out []string
	for _, part := range sectionBreakPattern.Split(strings.TrimSpace(s), -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// spreadWords lays words out over lines lines as evenly as possible.
func spreadWords(words []string, lines int) string {
	if lines <= 1 || len(words) == 0 {
		return strings.Join(words, " ")
	}
	if lines > len(words) {
		lines = len(words)
	}
	base, extra := len(words)/lines, len(words)%lines
	out := make([]string, 0, lines)
	pos := 0
	for i := 0; i < lines; i++ {
		n := base
		if i < extra {
			n++
		}
		out = append(out, strings.Join(words[pos:pos+n], " "))
		pos += n
	}
	return strings.Join(out, "\n")
}

// restoreFirstLiteral replaces the first match of re in result with the
// first match of re in original.
func restoreFirstLiteral(result, original string, re *regexp.Regexp) string {
	want := re.FindString(original)
	if want == "" {
		return result
	}
	loc := re.FindStringIndex(result)
	if loc == nil || result[loc[0]:loc[1]] == want {
		return result
	}
	return result[:loc[0]] + want + result[loc[1]:]
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
