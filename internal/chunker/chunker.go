// Package chunker implements the token-aware chunking algorithm of §4.2:
// paragraphs are accumulated up to a token budget, falling back to
// sentence-level accumulation for any paragraph that alone exceeds it, with
// an overlap prefix seeded into the next chunk.
package chunker

import (
	"strings"

	"github.com/knoguchi/ragdoc/internal/catalog"
)

// Config is the chunker's caller-supplied token budget (§4.2).
type Config struct {
	ChunkSize    int // tokens, default 800
	ChunkOverlap int // tokens, default 200; <= 0 disables overlap seeding
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{ChunkSize: 800, ChunkOverlap: 200}
}

// RawChunk is one chunk emitted by the chunker, before it is assigned an id
// or embedding.
type RawChunk struct {
	Text       string
	ChunkIndex int
	TokenCount int
	StartChar  int
	EndChar    int
	Meta       catalog.ChunkMeta
}

// Chunker splits text into token-bounded chunks using a pluggable
// Tokenizer for token counting (§4.2: "must not depend on any specific
// byte-per-token ratio").
type Chunker struct {
	tokenizer Tokenizer
	config    Config
}

// New builds a Chunker; a zero or negative ChunkSize falls back to
// DefaultConfig's 800. ChunkOverlap is kept as given, so zero or negative
// disables overlap seeding.
func New(tokenizer Tokenizer, cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	return &Chunker{tokenizer: tokenizer, config: cfg}
}

// accumUnit is a paragraph or sentence span still waiting to be emitted,
// carrying its own token count so running totals never need recomputation.
type accumUnit struct {
	span
	tokens int
}

// Chunk implements §4.2 steps 1-6 over plain text.
func (c *Chunker) Chunk(text string) []RawChunk {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil
	}
	return c.chunkParagraphs(splitParagraphs(cleaned))
}

// ChunkMarkdown implements the §4.2 markdown variant: partition by ATX
// headers first, chunk each section independently, then reassign
// chunk_index densely across the whole document.
func (c *Chunker) ChunkMarkdown(text string) []RawChunk {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil
	}

	sections := splitHeaderSections(cleaned)
	var all []RawChunk
	for _, sec := range sections {
		paragraphs := splitParagraphs(sec.body)
		for i := range paragraphs {
			paragraphs[i].start += sec.bodyOffset
			paragraphs[i].end += sec.bodyOffset
		}
		chunks := c.chunkParagraphs(paragraphs)
		for i := range chunks {
			chunks[i].Meta.Header = sec.header
		}
		all = append(all, chunks...)
	}
	for i := range all {
		all[i].ChunkIndex = i
		all[i].Meta.HasOverlap = i > 0
	}
	return all
}

func (c *Chunker) chunkParagraphs(paragraphs []span) []RawChunk {
	var chunks []RawChunk
	var current []accumUnit
	currentTokens := 0

	emit := func(method catalog.ChunkMethod, oversize bool) {
		if len(current) == 0 {
			return
		}
		texts := make([]string, len(current))
		for i, u := range current {
			texts[i] = u.text
		}
		chunks = append(chunks, RawChunk{
			Text:       strings.Join(texts, " "),
			TokenCount: currentTokens,
			StartChar:  current[0].start,
			EndChar:    current[len(current)-1].end,
			Meta: catalog.ChunkMeta{
				ChunkMethod: method,
				HasOverlap:  len(chunks) > 0,
				Oversize:    oversize,
			},
		})
	}

	seedParagraph := func() {
		if c.config.ChunkOverlap <= 0 || len(current) == 0 {
			current, currentTokens = nil, 0
			return
		}
		last := current[len(current)-1]
		current = []accumUnit{last}
		currentTokens = last.tokens
	}

	seedSentence := func() {
		if c.config.ChunkOverlap <= 0 || len(current) == 0 {
			current, currentTokens = nil, 0
			return
		}
		start := len(current) - 2
		if start < 0 {
			start = 0
		}
		seed := append([]accumUnit(nil), current[start:]...)
		tok := 0
		for _, u := range seed {
			tok += u.tokens
		}
		current, currentTokens = seed, tok
	}

	for _, para := range paragraphs {
		paraTokens := c.tokenizer.Count(para.text)
		if paraTokens <= c.config.ChunkSize {
			if currentTokens+paraTokens > c.config.ChunkSize && len(current) > 0 {
				emit(catalog.ChunkMethodParagraph, false)
				seedParagraph()
			}
			current = append(current, accumUnit{span: para, tokens: paraTokens})
			currentTokens += paraTokens
			continue
		}

		for _, sent := range splitSentences(para.text) {
			sent.start += para.start
			sent.end += para.start
			sentTokens := c.tokenizer.Count(sent.text)

			if sentTokens > c.config.ChunkSize {
				if len(current) > 0 {
					emit(catalog.ChunkMethodSentence, false)
				}
				current = []accumUnit{{span: sent, tokens: sentTokens}}
				currentTokens = sentTokens
				emit(catalog.ChunkMethodSentence, true)
				seedSentence()
				continue
			}

			if currentTokens+sentTokens > c.config.ChunkSize && len(current) > 0 {
				emit(catalog.ChunkMethodSentence, false)
				seedSentence()
			}
			current = append(current, accumUnit{span: sent, tokens: sentTokens})
			currentTokens += sentTokens
		}
	}

	if len(current) > 0 {
		emit(catalog.ChunkMethodFinal, false)
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
	return chunks
}
