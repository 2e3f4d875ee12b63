package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/chunker"
	"github.com/knoguchi/ragdoc/internal/embedding"
	"github.com/knoguchi/ragdoc/internal/errs"
	"github.com/knoguchi/ragdoc/internal/jobs"
	"github.com/knoguchi/ragdoc/internal/llm"
	"github.com/knoguchi/ragdoc/internal/pipeline"
	"github.com/knoguchi/ragdoc/internal/retriever"
)

type fakeTokenizer struct{}

func (fakeTokenizer) Count(text string) int { return len(text) / 4 }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return []float32{0, 1}, nil }
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 1}
	}
	return out, nil
}
func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) { return []float32{0, 1}, nil }
func (fakeEmbedder) Dimension() int                                                 { return 2 }
func (fakeEmbedder) ModelName() string                                              { return "fake" }

var _ chunker.Tokenizer = fakeTokenizer{}
var _ embedding.Embedder = fakeEmbedder{}

type fakeLLM struct{}

func (fakeLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return "this is a generated answer [1]", nil
}

type fakeStore struct {
	catalog.Store
	collectionsByName map[string]*catalog.Collection
	collections       map[uuid.UUID]*catalog.Collection
	queries           []*catalog.Query
	feedback          []*catalog.Feedback
	chunksByID        map[uuid.UUID]*catalog.Chunk
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collectionsByName: map[string]*catalog.Collection{},
		collections:       map[uuid.UUID]*catalog.Collection{},
		chunksByID:        map[uuid.UUID]*catalog.Chunk{},
	}
}

func (f *fakeStore) GetCollectionByName(ctx context.Context, name string) (*catalog.Collection, error) {
	if c, ok := f.collectionsByName[name]; ok {
		return c, nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeStore) GetCollection(ctx context.Context, id uuid.UUID) (*catalog.Collection, error) {
	if c, ok := f.collections[id]; ok {
		return c, nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeStore) CreateCollection(ctx context.Context, c *catalog.Collection) error {
	f.collectionsByName[c.Name] = c
	f.collections[c.ID] = c
	return nil
}

func (f *fakeStore) ListCollections(ctx context.Context) ([]*catalog.Collection, error) {
	var out []*catalog.Collection
	for _, c := range f.collections {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) NearestChunks(ctx context.Context, collectionID uuid.UUID, queryVector []float32, k int) ([]catalog.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeStore) GetChunksByIDs(ctx context.Context, ids []uuid.UUID) ([]*catalog.Chunk, error) {
	var out []*catalog.Chunk
	for _, id := range ids {
		if c, ok := f.chunksByID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateQuery(ctx context.Context, q *catalog.Query) error {
	f.queries = append(f.queries, q)
	return nil
}

func (f *fakeStore) CreateQueryChunks(ctx context.Context, qcs []*catalog.QueryChunk) error {
	return nil
}

func (f *fakeStore) UpsertFeedback(ctx context.Context, fb *catalog.Feedback) error {
	f.feedback = append(f.feedback, fb)
	return nil
}

func newTestServer(store *fakeStore) *Server {
	p := pipeline.New(store, fakeTokenizer{}, fakeEmbedder{}, pipeline.Config{ChunkSize: 100, ChunkOverlap: 10})
	runner := jobs.New(store, p, nil, 1)
	retr := retriever.New(store, fakeEmbedder{})
	return New(Config{
		Port:       0,
		Store:      store,
		Jobs:       runner,
		Retriever:  retr,
		LLM:        fakeLLM{},
		DefaultLLM: "fake-model",
	})
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndReadyz(t *testing.T) {
	s := newTestServer(newFakeStore())
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(s, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestCreateCollection_RejectsDuplicateName(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store)

	rec := doRequest(s, http.MethodPost, "/api/collections", createCollectionRequest{Name: "docs"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, http.MethodPost, "/api/collections", createCollectionRequest{Name: "docs"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate create: expected 400, got %d", rec.Code)
	}
}

func TestCreateCollection_RequiresName(t *testing.T) {
	s := newTestServer(newFakeStore())
	rec := doRequest(s, http.MethodPost, "/api/collections", createCollectionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty name, got %d", rec.Code)
	}
}

func TestGetCollection_NotFoundMapsTo404(t *testing.T) {
	s := newTestServer(newFakeStore())
	rec := doRequest(s, http.MethodGet, "/api/collections/"+uuid.New().String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAsk_NoRetrievedContextShortCircuitsButStillWritesQuery(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store)

	rec := doRequest(s, http.MethodPost, "/api/ask", askRequest{
		Question:     "xyzzy",
		CollectionID: uuid.New().String(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != llm.InsufficientInformationAnswer {
		t.Errorf("expected fixed insufficient-information answer, got %q", resp.Answer)
	}
	if len(resp.Citations) != 0 {
		t.Errorf("expected empty citations, got %v", resp.Citations)
	}
	if len(store.queries) != 1 {
		t.Fatalf("expected a Query row to be written even on low confidence, got %d", len(store.queries))
	}
}

func TestAsk_RequiresQuestion(t *testing.T) {
	s := newTestServer(newFakeStore())
	rec := doRequest(s, http.MethodPost, "/api/ask", askRequest{CollectionID: uuid.New().String()})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty question, got %d", rec.Code)
	}
}

func TestFeedback_RejectsInvalidValue(t *testing.T) {
	s := newTestServer(newFakeStore())
	rec := doRequest(s, http.MethodPost, "/api/feedback/"+uuid.New().String(), feedbackRequest{Value: 2})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid feedback value, got %d", rec.Code)
	}
}

func TestFeedback_UpsertsValidValue(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store)
	rec := doRequest(s, http.MethodPost, "/api/feedback/"+uuid.New().String(), feedbackRequest{Value: 1, Note: "helpful"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.feedback) != 1 {
		t.Fatalf("expected 1 feedback row, got %d", len(store.feedback))
	}
}
