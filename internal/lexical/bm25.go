// Package lexical implements C6, a per-query BM25-Okapi index over a
// collection's chunks (§4.6).
package lexical

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/knoguchi/ragdoc/internal/catalog"
)

const (
	k1 = 1.5
	b  = 0.75
)

var tokenSplitRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Tokenize implements the BM25 tokenization rule (§4.6): lowercase, replace
// non-[A-Za-z0-9_] runs with single spaces, split on whitespace.
func Tokenize(text string) []string {
	normalized := tokenSplitRe.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(normalized)
	return fields
}

// Index is a BM25-Okapi index over one collection's chunks (§4.6). The
// retriever builds a fresh Index for every search; indexes are not cached.
type Index struct {
	docIDs    []uuid.UUID
	docLens   []int
	postings  map[string][]posting // term -> postings, one per doc containing it
	avgDocLen float64
	n         int
}

type posting struct {
	docIdx int
	freq   int
}

// Build constructs a BM25 index over the given chunks.
func Build(chunks []*catalog.Chunk) *Index {
	idx := &Index{postings: make(map[string][]posting)}
	termFreqs := make([]map[string]int, len(chunks))

	totalLen := 0
	for i, c := range chunks {
		tokens := Tokenize(c.Text)
		idx.docIDs = append(idx.docIDs, c.ID)
		idx.docLens = append(idx.docLens, len(tokens))
		totalLen += len(tokens)

		freqs := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freqs[t]++
		}
		termFreqs[i] = freqs
	}

	idx.n = len(chunks)
	if idx.n > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.n)
	}

	for i, freqs := range termFreqs {
		for term, freq := range freqs {
			idx.postings[term] = append(idx.postings[term], posting{docIdx: i, freq: freq})
		}
	}

	return idx
}

// Search implements search(query, top_k) (§4.6): returns up to top_k
// (chunk_id, score) pairs by descending BM25 score, dropping zero scores,
// ties broken by ascending chunk_id.
func (idx *Index) Search(query string, topK int) []catalog.ScoredChunk {
	if idx.n == 0 {
		return nil
	}

	queryTerms := Tokenize(query)
	scores := make(map[int]float64)

	for _, term := range uniqueTerms(queryTerms) {
		postingsList := idx.postings[term]
		if len(postingsList) == 0 {
			continue
		}
		idf := idfOf(idx.n, len(postingsList))
		for _, p := range postingsList {
			docLen := float64(idx.docLens[p.docIdx])
			tf := float64(p.freq)
			denom := tf + k1*(1-b+b*docLen/idx.avgDocLen)
			scores[p.docIdx] += idf * (tf * (k1 + 1)) / denom
		}
	}

	var results []catalog.ScoredChunk
	for docIdx, score := range scores {
		if score <= 0 {
			continue
		}
		results = append(results, catalog.ScoredChunk{ChunkID: idx.docIDs[docIdx], Score: float32(score)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID.String() < results[j].ChunkID.String()
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func idfOf(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
