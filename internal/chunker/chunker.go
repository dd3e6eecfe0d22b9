// Package chunker splits long text units into pieces that fit a provider's
// input limit while keeping paragraph and line boundaries intact.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is the provider-safe chunk size in characters.
const DefaultMaxChars = 4000

var blankLinePattern = regexp.MustCompile(`\n\s*\n`)

// Piece is one chunk plus the separator that followed it in the source.
// Concatenating Text+Sep for every piece reproduces the trimmed input.
type Piece struct {
	Text string
	Sep  string
}

// Chunk splits text into ordered chunks of at most maxChars characters.
func Chunk(text string, maxChars int) []string {
	pieces := Split(text, maxChars)
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Text
	}
	return out
}

// Split is Chunk but keeps the boundary characters between pieces.
//
// Paragraphs (blank-line boundaries) are the primary unit. A paragraph that
// is itself too long is split into lines, and a line that is still too long
// is hard-split at maxChars. Units are packed greedily into a buffer that is
// flushed before it would overflow.
func Split(text string, maxChars int) []Piece {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return []Piece{{Text: text}}
	}

	var pieces []Piece
	var buf strings.Builder
	bufLen := 0
	bufSep := ""
	open := false
	flush := func() {
		if !open {
			return
		}
		pieces = appendPiece(pieces, Piece{Text: buf.String(), Sep: bufSep})
		buf.Reset()
		bufLen = 0
		bufSep = ""
		open = false
	}

	for _, a := range atoms(text, maxChars) {
		n := utf8.RuneCountInString(a.Text)
		sepLen := utf8.RuneCountInString(bufSep)
		if open && bufLen+sepLen+n > maxChars {
			flush()
			sepLen = 0
		}
		if open {
			buf.WriteString(bufSep)
			bufLen += sepLen
		}
		buf.WriteString(a.Text)
		bufLen += n
		bufSep = a.Sep
		open = true
	}
	flush()
	return pieces
}

// Join reassembles translated chunk texts using the separators recorded in
// pieces. texts must be parallel to pieces.
func Join(pieces []Piece, texts []string) string {
	var sb strings.Builder
	for i, p := range pieces {
		if i < len(texts) {
			sb.WriteString(texts[i])
		}
		sb.WriteString(p.Sep)
	}
	return sb.String()
}

// appendPiece folds a whitespace-only piece into the previous separator so
// that no empty chunk is emitted.
func appendPiece(pieces []Piece, p Piece) []Piece {
	if strings.TrimSpace(p.Text) == "" && len(pieces) > 0 {
		last := &pieces[len(pieces)-1]
		last.Sep += p.Text + p.Sep
		return pieces
	}
	return append(pieces, p)
}

// atoms breaks text into the smallest units the packer may place, each
// followed by its original separator.
func atoms(text string, maxChars int) []Piece {
	var out []Piece
	for _, para := range splitKeep(text, blankLinePattern) {
		if utf8.RuneCountInString(para.Text) <= maxChars {
			out = append(out, para)
			continue
		}
		lines := strings.Split(para.Text, "\n")
		for i, line := range lines {
			sep := "\n"
			if i == len(lines)-1 {
				sep = para.Sep
			}
			out = append(out, hardSplit(line, sep, maxChars)...)
		}
	}
	return out
}

// splitKeep splits s on re and records each match as the separator of the
// preceding part.
func splitKeep(s string, re *regexp.Regexp) []Piece {
	var out []Piece
	last := 0
	for _, m := range re.FindAllStringIndex(s, -1) {
		out = append(out, Piece{Text: s[last:m[0]], Sep: s[m[0]:m[1]]})
		last = m[1]
	}
	return append(out, Piece{Text: s[last:]})
}

// hardSplit slices line into runs of at most maxChars runes. Only the final
// run carries sep.
func hardSplit(line, sep string, maxChars int) []Piece {
	if utf8.RuneCountInString(line) <= maxChars {
		return []Piece{{Text: line, Sep: sep}}
	}
	var out []Piece
	runes := []rune(line)
	for start := 0; start < len(runes); start += maxChars {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, Piece{Text: string(runes[start:end])})
	}
	out[len(out)-1].Sep = sep
	return out
}
