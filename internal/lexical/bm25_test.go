package lexical

import (
	"testing"

	"github.com/google/uuid"

	"github.com/knoguchi/ragdoc/internal/catalog"
)

func chunkWithText(text string) *catalog.Chunk {
	return &catalog.Chunk{ID: uuid.New(), Text: text}
}

func TestTokenize_CollapsesPunctuationIdentically(t *testing.T) {
	a := Tokenize("C++!")
	b := Tokenize("C++ is great")

	if len(a) != 1 || a[0] != "c" {
		t.Fatalf("Tokenize(%q) = %v, want [c]", "C++!", a)
	}
	if len(b) < 1 || b[0] != "c" {
		t.Fatalf("Tokenize(%q) = %v, want first token c", "C++ is great", b)
	}
}

func TestTokenize_LowercasesAndSplits(t *testing.T) {
	got := Tokenize("Hello, World! Foo_Bar")
	want := []string{"hello", "world", "foo_bar"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildAndSearch_RanksExactMatchHighest(t *testing.T) {
	chunks := []*catalog.Chunk{
		chunkWithText("the quick brown fox jumps over the lazy dog"),
		chunkWithText("a completely unrelated sentence about cooking pasta"),
		chunkWithText("another fox related document about foxes and dogs"),
	}

	idx := Build(chunks)
	results := idx.Search("fox dog", 10)

	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ChunkID != chunks[2].ID && results[0].ChunkID != chunks[0].ID {
		t.Errorf("expected a fox/dog document to rank first, got %v", results[0].ChunkID)
	}
}

func TestSearch_DropsZeroScoreEntries(t *testing.T) {
	chunks := []*catalog.Chunk{
		chunkWithText("apples and oranges"),
		chunkWithText("bananas and grapes"),
	}
	idx := Build(chunks)
	results := idx.Search("xyzzy plugh", 10)
	if len(results) != 0 {
		t.Errorf("expected zero results for query with no overlap, got %d", len(results))
	}
}

func TestSearch_TiesBrokenByAscendingChunkID(t *testing.T) {
	id1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	id2 := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	chunks := []*catalog.Chunk{
		{ID: id2, Text: "shared term shared term"},
		{ID: id1, Text: "shared term shared term"},
	}
	idx := Build(chunks)
	results := idx.Search("shared term", 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != id1 {
		t.Errorf("expected tie-break to favor ascending chunk id, got %v first", results[0].ChunkID)
	}
}

func TestSearch_RespectsTopK(t *testing.T) {
	var chunks []*catalog.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, chunkWithText("repeated term appears here"))
	}
	idx := Build(chunks)
	results := idx.Search("repeated term", 2)
	if len(results) != 2 {
		t.Errorf("expected topK=2 results, got %d", len(results))
	}
}
