package ingest

import (
	"strings"
	"unicode/utf8"
)

// Tier1Meta computes the synchronous, doc-type-specific metadata bag
// stored on every chunk. Cheap derivations only; anything requiring a
// model call belongs to enrichment.
func Tier1Meta(docType, source, contentType, text string) map[string]any {
	meta := map[string]any{
		"docType":   docType,
		"charCount": utf8.RuneCountInString(text),
		"lineCount": strings.Count(text, "\n") + 1,
	}
	if contentType != "" {
		meta["contentType"] = contentType
	}

	switch docType {
	case DocTypeCode:
		if lang := LangForSource(source); lang != "" {
			meta["lang"] = lang
		}
	case DocTypeArticle:
		if title := sniffTitle(text); title != "" {
			meta["title"] = title
		}
	case DocTypeEmail:
		for key, header := range map[string]string{
			"from":    "From:",
			"to":      "To:",
			"subject": "Subject:",
		} {
			if v := sniffHeader(text, header); v != "" {
				meta[key] = v
			}
		}
	}

	return meta
}

// sniffTitle returns the first non-empty line, truncated.
func sniffTitle(text string) string {
	for _, line := range strings.SplitN(text, "\n", 10) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > 200 {
			runes := []rune(line)
			return string(runes[:200])
		}
		return line
	}
	return ""
}

func sniffHeader(text string, header string) string {
	head := text
	if len(head) > 2048 {
		head = head[:2048]
	}
	for _, line := range strings.Split(head, "\n") {
		if strings.HasPrefix(line, header) {
			return strings.TrimSpace(strings.TrimPrefix(line, header))
		}
	}
	return ""
}
