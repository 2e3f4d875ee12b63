package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchConcurrency is the default number of in-flight embedding
	// requests during EmbedBatch (§4.3).
	DefaultBatchConcurrency = 32

	// bgeQueryInstruction is prepended to query text for BGE-family models,
	// which are trained with an asymmetric query/document instruction
	// (§4.3).
	bgeQueryInstruction = "Represent this sentence for searching relevant passages: "
)

// OllamaConfig configures OllamaEmbedder.
type OllamaConfig struct {
	BaseURL          string
	Model            string
	BatchConcurrency int
	HTTPClient       *http.Client
}

// OllamaEmbedder implements Embedder against Ollama's embedding API. Unlike
// a fixed per-model dimension table, it discovers the vector length from
// the model's first real response and freezes it there (§4.3): a later
// response of a different length is a configuration error, not a silent
// resize.
type OllamaEmbedder struct {
	baseURL          string
	model            string
	batchConcurrency int
	client           *http.Client

	dimension atomic.Int64 // 0 until discovered
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder builds an OllamaEmbedder, applying defaults for any
// zero-valued config fields.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "BAAI/bge-small-en-v1.5"
	}
	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &OllamaEmbedder{
		baseURL:          baseURL,
		model:            model,
		batchConcurrency: concurrency,
		client:           client,
	}
}

// Embed implements Embedder.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text)
}

// EmbedQuery implements Embedder, prefixing a BGE instruction when the
// configured model is a BGE variant (§4.3).
func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if isBGEModel(e.model) {
		text = bgeQueryInstruction + text
	}
	return e.embed(ctx, text)
}

func isBGEModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "bge")
}

func (e *OllamaEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embeddings", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama embeddings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embeddings returned %d: %s", resp.StatusCode, string(msg))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}

	if prev := e.dimension.Load(); prev != 0 && int(prev) != len(out.Embedding) {
		return nil, fmt.Errorf("embedding dimension changed from %d to %d mid-session", prev, len(out.Embedding))
	}
	e.dimension.CompareAndSwap(0, int64(len(out.Embedding)))

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return l2Normalize(vec), nil
}

// EmbedBatch implements Embedder using a bounded worker pool (errgroup +
// semaphore) rather than one goroutine per text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, e.batchConcurrency)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			vec, err := e.embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embedding text at index %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Dimension returns 0 until the first successful Embed/EmbedBatch call has
// discovered it (§4.3).
func (e *OllamaEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

// ModelName implements Embedder.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

var _ Embedder = (*OllamaEmbedder)(nil)
