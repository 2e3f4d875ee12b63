// Package parser implements C8: converting a raw source (PDF, URL, markdown,
// plain text) into the canonical text the rest of the pipeline chunks and
// embeds, plus the checksum used for content-addressed deduplication.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Result is the canonical output of parsing one source (§4.4 step 1).
type Result struct {
	Text     string
	Title    string
	Checksum string
}

// Checksum computes the SHA-256 hex digest of canonical text, the single
// algorithm used for find_document_by_checksum regardless of source type
// (§4.1, §9: every source type dedupes the same way).
func Checksum(canonicalText string) string {
	sum := sha256.Sum256([]byte(canonicalText))
	return hex.EncodeToString(sum[:])
}

// canonicalize normalizes line endings and trims surrounding whitespace so
// the same logical document produces the same checksum regardless of which
// parser emitted it.
func canonicalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

func newResult(text, title string) *Result {
	canonical := canonicalize(text)
	return &Result{Text: canonical, Title: title, Checksum: Checksum(canonical)}
}
