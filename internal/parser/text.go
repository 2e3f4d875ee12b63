package parser

// ParseText wraps raw plain text as a Result (source_type=text, §3).
func ParseText(title, text string) *Result {
	return newResult(text, title)
}

// ParseMarkdown wraps raw markdown as a Result (source_type=markdown, §3).
// The markdown is kept verbatim; header-aware chunking happens downstream
// in the chunker, not here.
func ParseMarkdown(title, markdown string) *Result {
	return newResult(markdown, title)
}
