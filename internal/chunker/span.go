package chunker

import "regexp"

// span is a slice of text together with its byte offsets into the cleaned
// source string it was cut from.
type span struct {
	start, end int
	text       string
}

var paragraphSepRe = regexp.MustCompile(`\n{2,}`)

// splitParagraphs splits s on runs of two-or-more newlines (§4.2 step 2),
// returning each paragraph with its true offset into s so the chunker never
// needs to re-locate text by searching or derive offsets from the lengths of
// earlier chunks.
func splitParagraphs(s string) []span {
	seps := paragraphSepRe.FindAllStringIndex(s, -1)
	var spans []span
	prev := 0
	for _, sep := range seps {
		spans = append(spans, trimSpan(s, prev, sep[0])...)
		prev = sep[1]
	}
	spans = append(spans, trimSpan(s, prev, len(s))...)
	return spans
}

var sentenceBoundaryRe = regexp.MustCompile(`([.!?]+)(\s+)`)

// splitSentences splits s on end-of-sentence punctuation followed by
// whitespace (§4.2 step 4), keeping the punctuation with the preceding
// sentence and true offsets for each piece.
func splitSentences(s string) []span {
	matches := sentenceBoundaryRe.FindAllStringSubmatchIndex(s, -1)
	var spans []span
	prev := 0
	for _, m := range matches {
		// m = [fullStart, fullEnd, g1Start, g1End, g2Start, g2End]
		sentenceEnd := m[3]
		spans = append(spans, trimSpan(s, prev, sentenceEnd)...)
		prev = m[5]
	}
	spans = append(spans, trimSpan(s, prev, len(s))...)
	return spans
}

// trimSpan trims surrounding whitespace from s[start:end], adjusting
// offsets accordingly, and drops the span entirely if nothing remains.
func trimSpan(s string, start, end int) []span {
	if start >= end || start < 0 || end > len(s) {
		return nil
	}
	a, b := start, end
	for a < b && isSpace(s[a]) {
		a++
	}
	for b > a && isSpace(s[b-1]) {
		b--
	}
	if a >= b {
		return nil
	}
	return []span{{start: a, end: b, text: s[a:b]}}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
