package vision

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"doc-translator/internal/translator"
)

// ParseMethod records how a model response was turned into a Result.
type ParseMethod string

const (
	ParsedJSON  ParseMethod = "json"
	ParsedRegex ParseMethod = "regex"
	ParsedRaw   ParseMethod = "raw"
)

var (
	originalField   = regexp.MustCompile(`"originalText"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	translatedField = regexp.MustCompile(`"translatedText"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// ParseResponse extracts {originalText, translatedText} from a model
// response. It strips code fences and tries JSON first, then pulls the two
// string fields out with regular expressions, and finally returns the raw
// response as the translation.
func ParseResponse(raw string) (Result, ParseMethod) {
	cleaned := translator.StripCodeFence(raw)

	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		var r Result
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &r); err == nil && !r.Empty() {
			return r, ParsedJSON
		}
	}

	r := Result{
		OriginalText:   matchField(originalField, cleaned),
		TranslatedText: matchField(translatedField, cleaned),
	}
	if !r.Empty() {
		return r, ParsedRegex
	}

	return Result{TranslatedText: strings.TrimSpace(raw)}, ParsedRaw
}

func matchField(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	var v string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &v); err == nil {
		return v
	}
	if v, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
		return v
	}
	return m[1]
}
