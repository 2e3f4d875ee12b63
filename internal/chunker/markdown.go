package chunker

import (
	"regexp"
	"strings"
)

// headerSection is one ATX-header-delimited region of a markdown document,
// along with the byte offset of its body into the original cleaned text.
type headerSection struct {
	header     string
	body       string
	bodyOffset int
}

var atxHeaderRe = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+?)[ \t]*$`)

// splitHeaderSections partitions markdown text on ATX headers (#, ##, ...),
// attaching each section's nearest preceding header so chunks carry it as
// metadata (§4.2 markdown variant). Text preceding the first header, if any,
// is returned with an empty header.
func splitHeaderSections(s string) []headerSection {
	matches := atxHeaderRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return []headerSection{{body: s}}
	}

	var sections []headerSection
	if matches[0][0] > 0 {
		if body := strings.TrimSpace(s[:matches[0][0]]); body != "" {
			sections = append(sections, headerSection{body: s[:matches[0][0]], bodyOffset: 0})
		}
	}

	for i, m := range matches {
		header := s[m[4]:m[5]]
		bodyStart := m[1]
		bodyEnd := len(s)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		sections = append(sections, headerSection{
			header:     header,
			body:       s[bodyStart:bodyEnd],
			bodyOffset: bodyStart,
		})
	}
	return sections
}
