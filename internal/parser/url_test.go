package parser

import "testing"

func TestExtractTitle_FindsTitleTag(t *testing.T) {
	html := "<html><head><TITLE>  My Page Title </TITLE></head><body></body></html>"
	got := extractTitle(html)
	if got != "My Page Title" {
		t.Errorf("expected trimmed title, got %q", got)
	}
}

func TestExtractTitle_ReturnsEmptyWhenAbsent(t *testing.T) {
	if got := extractTitle("<html><body>no title here</body></html>"); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}

func TestBaseOrigin_ExtractsSchemeAndHost(t *testing.T) {
	got := baseOrigin("https://example.com/path/to/page?q=1")
	if got != "https://example.com" {
		t.Errorf("expected scheme+host, got %q", got)
	}
}

func TestBaseOrigin_EmptyForInvalidURL(t *testing.T) {
	if got := baseOrigin("not a url \x7f"); got != "" {
		t.Errorf("expected empty origin for an invalid url, got %q", got)
	}
}

func TestIsHTMLContentType(t *testing.T) {
	cases := map[string]bool{
		"text/html":              true,
		"application/xhtml+xml":  true,
		"application/vnd.foo+html": true,
		"text/plain":             false,
		"application/json":       false,
	}
	for ct, want := range cases {
		if got := isHTMLContentType(ct); got != want {
			t.Errorf("isHTMLContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestToCanonicalText_PlainTextPassesThroughUnconverted(t *testing.T) {
	text, title, err := toCanonicalText([]byte("just plain text"), "text/plain", "https://example.com")
	if err != nil {
		t.Fatalf("toCanonicalText: %v", err)
	}
	if text != "just plain text" {
		t.Errorf("expected plain text unchanged, got %q", text)
	}
	if title != "" {
		t.Errorf("expected no title extracted from plain text, got %q", title)
	}
}

func TestToCanonicalText_ConvertsHTMLAndExtractsTitle(t *testing.T) {
	html := []byte("<html><head><title>Doc</title></head><body><p>Hello <b>world</b></p></body></html>")
	text, title, err := toCanonicalText(html, "text/html", "https://example.com/doc")
	if err != nil {
		t.Fatalf("toCanonicalText: %v", err)
	}
	if title != "Doc" {
		t.Errorf("expected title %q, got %q", "Doc", title)
	}
	if text == "" {
		t.Error("expected non-empty converted markdown text")
	}
}
