package chunker

import (
	"strings"
	"testing"

	"github.com/knoguchi/ragdoc/internal/catalog"
)

// wordTokenizer counts whitespace-separated words, giving deterministic,
// easy-to-reason-about token counts for tests that don't need real BPE
// behavior.
type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func paragraphsOf(n, wordsPerParagraph int) string {
	paragraphs := make([]string, n)
	for i := range paragraphs {
		words := make([]string, wordsPerParagraph)
		for j := range words {
			words[j] = "word"
		}
		paragraphs[i] = strings.Join(words, " ")
	}
	return strings.Join(paragraphs, "\n\n")
}

func TestChunk_ParagraphAccumulation(t *testing.T) {
	text := paragraphsOf(6, 100) // 6 paragraphs x 100 words, 400-word budget
	c := New(wordTokenizer{}, Config{ChunkSize: 400, ChunkOverlap: 100})

	chunks := c.Chunk(text)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d: chunk_index = %d", i, ch.ChunkIndex)
		}
		if ch.TokenCount > 400+100 {
			// overlap seed can push a chunk slightly over chunk_size; it must
			// never exceed chunk_size plus the seeded overlap.
			t.Errorf("chunk %d: token_count %d exceeds budget+overlap", i, ch.TokenCount)
		}
		if ch.StartChar < 0 || ch.EndChar > len(text) || ch.StartChar >= ch.EndChar {
			t.Errorf("chunk %d: invalid span [%d, %d)", i, ch.StartChar, ch.EndChar)
		}
	}
	for i := 1; i < len(chunks); i++ {
		if !chunks[i].Meta.HasOverlap {
			t.Errorf("chunk %d: expected has_overlap true", i)
		}
	}
	if chunks[0].Meta.HasOverlap {
		t.Error("first chunk should not be marked as having overlap")
	}
}

func TestChunk_NoOverlapWhenConfigured(t *testing.T) {
	text := paragraphsOf(6, 100)
	c := New(wordTokenizer{}, Config{ChunkSize: 400, ChunkOverlap: 0})

	chunks := c.Chunk(text)
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartChar < chunks[i-1].EndChar {
			t.Errorf("chunk %d: starts at %d inside chunk %d ending at %d; expected no seeded overlap when ChunkOverlap=0",
				i, chunks[i].StartChar, i-1, chunks[i-1].EndChar)
		}
	}
}

func TestChunk_OversizeSentenceEmittedStandalone(t *testing.T) {
	words := make([]string, 500)
	for i := range words {
		words[i] = "word"
	}
	hugeSentence := strings.Join(words, " ") + "."
	text := "Intro paragraph here. Short second sentence.\n\n" + hugeSentence

	c := New(wordTokenizer{}, Config{ChunkSize: 50, ChunkOverlap: 10})
	chunks := c.Chunk(text)

	var sawOversize bool
	for _, ch := range chunks {
		if ch.Meta.Oversize {
			sawOversize = true
			if ch.Meta.ChunkMethod != catalog.ChunkMethodSentence {
				t.Errorf("oversize chunk should be tagged sentence_split, got %s", ch.Meta.ChunkMethod)
			}
			if ch.TokenCount < 500 {
				t.Errorf("oversize chunk token_count = %d, want >= 500", ch.TokenCount)
			}
		}
	}
	if !sawOversize {
		t.Error("expected an oversize chunk for the 500-word sentence")
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c := New(wordTokenizer{}, DefaultConfig())
	if chunks := c.Chunk(""); chunks != nil {
		t.Errorf("expected nil chunks for empty input, got %v", chunks)
	}
	if chunks := c.Chunk("   \n\n  "); chunks != nil {
		t.Errorf("expected nil chunks for whitespace-only input, got %v", chunks)
	}
}

func TestChunkMarkdown_HeaderMetadataAndDenseIndex(t *testing.T) {
	text := "# Intro\n\n" + paragraphsOf(3, 50) +
		"\n\n## Details\n\n" + paragraphsOf(3, 50)

	c := New(wordTokenizer{}, Config{ChunkSize: 100, ChunkOverlap: 0})
	chunks := c.ChunkMarkdown(text)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d: chunk_index = %d, want dense reassignment", i, ch.ChunkIndex)
		}
	}

	var sawIntro, sawDetails bool
	for _, ch := range chunks {
		switch ch.Meta.Header {
		case "Intro":
			sawIntro = true
		case "Details":
			sawDetails = true
		}
	}
	if !sawIntro || !sawDetails {
		t.Errorf("expected chunks tagged with both headers, intro=%v details=%v", sawIntro, sawDetails)
	}
}

func TestSplitParagraphs(t *testing.T) {
	s := "first paragraph\n\nsecond paragraph\n\n\nthird paragraph"
	spans := splitParagraphs(s)
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	for _, sp := range spans {
		if s[sp.start:sp.end] != sp.text {
			t.Errorf("span offsets [%d:%d] do not match recorded text %q", sp.start, sp.end, sp.text)
		}
	}
	if spans[0].text != "first paragraph" {
		t.Errorf("spans[0] = %q", spans[0].text)
	}
}

func TestSplitSentences(t *testing.T) {
	s := "One sentence. Two sentences! Three?"
	spans := splitSentences(s)
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	for _, sp := range spans {
		if s[sp.start:sp.end] != sp.text {
			t.Errorf("span offsets [%d:%d] do not match recorded text %q", sp.start, sp.end, sp.text)
		}
	}
}
