package translator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"doc-translator/internal/types"
)

var domainGuidance = map[types.Domain]string{
	types.DomainGeneral: `Use clear, natural language appropriate for a general audience.`,
	types.DomainLegal: `This is a legal document. Use formal legal register and the established legal
terminology of the target jurisdiction. Keep party names, article and clause numbering,
defined terms and references exactly as structured in the source. Never paraphrase obligations.`,
	types.DomainMedical: `This is a medical document. Use standard clinical terminology, keep drug names,
dosages, units, lab values and reference ranges exactly as written, and never round numbers.`,
	types.DomainTechnical: `This is a technical document. Keep product names, part numbers, code, commands,
units and measurements unchanged. Use the accepted technical vocabulary of the target language.`,
	types.DomainCertificate: `This is an official certificate or civil record (birth, marriage, academic,
commercial). Preserve every name, date, registration number, seal and stamp description.
Render field labels with their official equivalents and keep the field/value layout.`,
}

// LanguageName returns the English display name for a language code, such
// as "Arabic" for "ar". The auto source yields a detection phrase.
func LanguageName(code string) string {
	if types.IsAutoLanguage(code) {
		return "the detected source language"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// DomainGuidance returns the terminology instructions for a domain. Unknown
// domains get the general guidance.
func DomainGuidance(domain types.Domain) string {
	if g, ok := domainGuidance[domain]; ok {
		return g
	}
	return domainGuidance[types.DomainGeneral]
}

// buildSystemPrompt creates the domain-specific system prompt.
func buildSystemPrompt(domain types.Domain, source, target string) string {
	guidance := DomainGuidance(domain)
	return fmt.Sprintf(`You are a professional %s translator.
Translate documents from %s into %s.

%s

CRITICAL RULES:
1. Output ONLY the translation. No explanations, notes or commentary.
2. Preserve the line structure of the input: one output line per input line.
3. Keep numbers, dates, identifiers, e-mail addresses and URLs unchanged.
4. Do not translate text that is already in %s.`,
		domainLabel(domain), LanguageName(source), LanguageName(target), guidance, LanguageName(target))
}

// buildUserPrompt creates the user prompt with the text to translate.
func buildUserPrompt(text, target string) string {
	return fmt.Sprintf(`Translate the following text into %s.

TABLE ALIGNMENT (MUST FOLLOW):
- If the text contains tables (rows with | separators or columns separated by spaces),
  reproduce every table with the SAME number of rows and columns.
- Pad each cell with spaces so that every | separator is vertically aligned in a monospace font.
- Keep separator rows such as |---|---| as separators, widened to the padded column widths.
- Never merge or split rows.

Text to translate:
%s`, LanguageName(target), text)
}

func domainLabel(d types.Domain) string {
	if !d.Known() || d == types.DomainGeneral {
		return "document"
	}
	return strings.ToLower(string(d))
}
