package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeOllamaServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		vec := make([]float64, dim)
		for i := range vec {
			vec[i] = float64(len(req.Prompt) + i + 1)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	}))
}

func TestEmbed_DiscoversAndFreezesDimension(t *testing.T) {
	srv := fakeOllamaServer(t, 8)
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "llama3.2"})
	if e.Dimension() != 0 {
		t.Fatalf("expected dimension 0 before first call, got %d", e.Dimension())
	}

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 8 {
		t.Errorf("expected vector length 8, got %d", len(vec))
	}
	if e.Dimension() != 8 {
		t.Errorf("expected frozen dimension 8, got %d", e.Dimension())
	}
}

func TestEmbed_ReturnsL2NormalizedVectors(t *testing.T) {
	srv := fakeOllamaServer(t, 4)
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})
	vec, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if math.Abs(norm-1.0) > 1e-4 {
		t.Errorf("expected unit-norm vector, got norm %f", norm)
	}
}

func TestEmbedQuery_PrefixesBGEInstructionForBGEModels(t *testing.T) {
	var seenPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		seenPrompt = req.Prompt
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{1, 2, 3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "BAAI/bge-small-en-v1.5"})
	if _, err := e.EmbedQuery(context.Background(), "what is rag?"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if !strings.HasPrefix(seenPrompt, bgeQueryInstruction) {
		t.Errorf("expected prompt to be prefixed with BGE instruction, got %q", seenPrompt)
	}
}

func TestEmbedQuery_NoPrefixForNonBGEModels(t *testing.T) {
	var seenPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		seenPrompt = req.Prompt
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{1, 2, 3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "llama3.2"})
	if _, err := e.EmbedQuery(context.Background(), "what is rag?"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if seenPrompt != "what is rag?" {
		t.Errorf("expected unprefixed prompt, got %q", seenPrompt)
	}
}

func TestEmbedBatch_ReturnsVectorPerInputInOrder(t *testing.T) {
	srv := fakeOllamaServer(t, 4)
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, BatchConcurrency: 4})
	texts := []string{"a", "bb", "ccc", "dddd"}
	vectors, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 4 {
			t.Errorf("vector %d has length %d, want 4", i, len(v))
		}
	}
}

func TestEmbed_ErrorsOnDimensionChangeMidSession(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		dim := 4
		if calls > 1 {
			dim = 6
		}
		vec := make([]float64, dim)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})
	if _, err := e.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	if _, err := e.Embed(context.Background(), "second"); err == nil {
		t.Error("expected an error when the embedding dimension changes mid-session")
	}
}
