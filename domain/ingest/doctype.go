package ingest

import (
	"net/url"
	"path"
	"strings"
)

// Known doc types. Tier-1 extraction and worker-side enrichment key off
// this tag.
const (
	DocTypeText    = "text"
	DocTypeCode    = "code"
	DocTypeArticle = "article"
	DocTypeMeeting = "meeting"
	DocTypeEmail   = "email"
	DocTypeSlack   = "slack"
	DocTypePDF     = "pdf"
	DocTypeImage   = "image"
)

var knownDocTypes = map[string]bool{
	DocTypeText:    true,
	DocTypeCode:    true,
	DocTypeArticle: true,
	DocTypeMeeting: true,
	DocTypeEmail:   true,
	DocTypeSlack:   true,
	DocTypePDF:     true,
	DocTypeImage:   true,
}

var codeExtensions = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
	".tf":    "hcl",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true, ".svg": true,
}

// IsKnownDocType reports whether the tag is one the pipeline accepts.
func IsKnownDocType(docType string) bool {
	return knownDocTypes[docType]
}

// ClassifyDocType resolves the doc type for an item. Resolution order:
// explicit tag, URL hints, content sniffing, file extension, then the
// generic text fallback. The explicit tag is assumed validated.
func ClassifyDocType(explicit, source, contentType string, body []byte) string {
	if explicit != "" {
		return explicit
	}

	if dt := classifyByURL(source); dt != "" {
		return dt
	}
	if dt := classifyByContent(contentType, body); dt != "" {
		return dt
	}
	if dt := classifyByExtension(source); dt != "" {
		return dt
	}
	return DocTypeText
}

func classifyByURL(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "github.com"), strings.Contains(host, "gitlab.com"),
		strings.Contains(host, "bitbucket.org"):
		// Repository hosts serve rendered pages for directories; only
		// file paths with a code extension count as code.
		if _, ok := codeExtensions[strings.ToLower(path.Ext(u.Path))]; ok {
			return DocTypeCode
		}
		return ""
	case strings.Contains(host, "slack.com"):
		return DocTypeSlack
	}
	return ""
}

func classifyByContent(contentType string, body []byte) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/pdf"):
		return DocTypePDF
	case strings.HasPrefix(ct, "image/"):
		return DocTypeImage
	case strings.Contains(ct, "text/html"):
		return DocTypeArticle
	case strings.Contains(ct, "message/rfc822"):
		return DocTypeEmail
	}

	if len(body) >= 5 && string(body[:5]) == "%PDF-" {
		return DocTypePDF
	}
	if looksLikeEmail(body) {
		return DocTypeEmail
	}
	return ""
}

// looksLikeEmail checks for RFC 822 style headers in the first lines.
func looksLikeEmail(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	text := string(head)
	hits := 0
	for _, header := range []string{"From:", "To:", "Subject:", "Date:"} {
		if strings.Contains(text, header) {
			hits++
		}
	}
	return hits >= 3
}

func classifyByExtension(source string) string {
	name := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		name = u.Path
	}
	ext := strings.ToLower(path.Ext(name))

	if _, ok := codeExtensions[ext]; ok {
		return DocTypeCode
	}
	if imageExtensions[ext] {
		return DocTypeImage
	}
	switch ext {
	case ".pdf":
		return DocTypePDF
	case ".eml":
		return DocTypeEmail
	case ".html", ".htm":
		return DocTypeArticle
	}
	return ""
}

// LangForSource returns the programming language hint for a code
// source, or empty when unknown.
func LangForSource(source string) string {
	name := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		name = u.Path
	}
	return codeExtensions[strings.ToLower(path.Ext(name))]
}

// IdentityKey canonicalises a source for idempotent upserts. URLs keep
// origin and path only; query and fragment are discarded. Everything
// else is used verbatim.
func IdentityKey(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return source
	}
	return u.Scheme + "://" + u.Host + u.Path
}
