// Package retriever implements C7, the hybrid retriever that fuses a
// dense-vector nearest-neighbor scan with BM25 lexical scoring via
// Reciprocal Rank Fusion (§4.7).
package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/embedding"
	"github.com/knoguchi/ragdoc/internal/lexical"
)

const kRRF = 60

// DefaultTopK and DefaultVectorWeight are the §4.7 input defaults.
const (
	DefaultTopK         = 10
	DefaultVectorWeight = 0.7
)

// Retriever combines C1's nearest_chunks with a BM25 index over the same
// collection.
type Retriever struct {
	store    catalog.Store
	embedder embedding.Embedder
}

// New builds a Retriever.
func New(store catalog.Store, embedder embedding.Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Search implements §4.7 steps 1-4: embed the question, run a vector scan
// and a BM25 search, then fuse them with RRF, gating BM25's contribution to
// the set of chunks the vector scan already returned. vectorWeight is taken
// as given, including 0 (all-lexical weighting); callers that want the
// §4.7 default of 0.7 for an unset value must apply it before calling
// Search.
func (r *Retriever) Search(ctx context.Context, collectionID uuid.UUID, question string, topK int, vectorWeight float32) ([]catalog.ScoredChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// §4.7 step 2: the vector candidate pool is 2*top_k wide so BM25 has
	// room to re-rank candidates beyond the final top_k before truncation.
	vector, err := r.store.NearestChunks(ctx, collectionID, queryVec, 2*topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(vector) == 0 {
		return nil, nil
	}

	chunks, err := r.store.GetAllChunksInCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("loading collection chunks for lexical index: %w", err)
	}
	idx := lexical.Build(chunks)
	bm25Results := idx.Search(question, 2*topK)

	vectorIDs := make(map[uuid.UUID]bool, len(vector))
	for _, v := range vector {
		vectorIDs[v.ChunkID] = true
	}

	fused := make(map[uuid.UUID]float64)
	for rank, v := range vector {
		fused[v.ChunkID] += float64(vectorWeight) / float64(kRRF+rank+1)
	}
	for rank, bm := range bm25Results {
		if !vectorIDs[bm.ChunkID] {
			continue
		}
		fused[bm.ChunkID] += float64(1-vectorWeight) / float64(kRRF+rank+1)
	}

	results := make([]catalog.ScoredChunk, 0, len(fused))
	for id, score := range fused {
		results = append(results, catalog.ScoredChunk{ChunkID: id, Score: float32(score)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID.String() < results[j].ChunkID.String()
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
