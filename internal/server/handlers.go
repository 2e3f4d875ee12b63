package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/knoguchi/ragdoc/internal/catalog"
	"github.com/knoguchi/ragdoc/internal/errs"
	"github.com/knoguchi/ragdoc/internal/llm"
	"github.com/knoguchi/ragdoc/internal/pipeline"
)

const maxUploadBytes = 32 << 20 // 32MiB multipart form cap

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- collections -----------------------------------------------------------

type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid request body: %v", err))
		return
	}
	if req.Name == "" {
		writeError(w, errs.Newf(errs.KindValidation, "name is required"))
		return
	}

	if existing, err := s.store.GetCollectionByName(r.Context(), req.Name); err == nil && existing != nil {
		writeError(w, errs.Newf(errs.KindValidation, "collection %q already exists", req.Name))
		return
	} else if err != nil && !isNotFound(err) {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}

	c := &catalog.Collection{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.store.CreateCollection(r.Context(), c); err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.store.ListCollections(r.Context())
	if err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid collection id: %v", err))
		return
	}
	c, err := s.store.GetCollection(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- ingestion ---------------------------------------------------------------

func (s *Server) handleIngestUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid multipart form: %v", err))
		return
	}

	collectionID, err := uuid.Parse(r.FormValue("collection_id"))
	if err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid collection_id: %v", err))
		return
	}
	if _, err := s.store.GetCollection(r.Context(), collectionID); err != nil {
		writeError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "file is required: %v", err))
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "ragdoc-upload-*.pdf")
	if err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, file); err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}

	jobID, err := s.jobs.Submit(r.Context(), collectionID, header.Filename, pipeline.Source{
		Type:    catalog.SourcePDF,
		PDFPath: tmp.Name(),
	})
	if err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

type ingestURLRequest struct {
	CollectionID string `json:"collection_id"`
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
}

func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid request body: %v", err))
		return
	}
	collectionID, err := uuid.Parse(req.CollectionID)
	if err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid collection_id: %v", err))
		return
	}
	if req.URL == "" {
		writeError(w, errs.Newf(errs.KindValidation, "url is required"))
		return
	}
	if _, err := s.store.GetCollection(r.Context(), collectionID); err != nil {
		writeError(w, err)
		return
	}

	jobID, err := s.jobs.Submit(r.Context(), collectionID, req.Title, pipeline.Source{
		Type: catalog.SourceURL,
		URL:  req.URL,
	})
	if err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid job_id: %v", err))
		return
	}
	job, err := s.jobs.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- ask / feedback ----------------------------------------------------------

type askRequest struct {
	Question     string  `json:"question"`
	CollectionID string  `json:"collection_id"`
	TopK         int     `json:"top_k,omitempty"`
	UseHybrid    *bool   `json:"use_hybrid,omitempty"`
	VectorWeight float32 `json:"vector_weight,omitempty"`
}

type askResponse struct {
	Answer     string         `json:"answer"`
	Citations  []llm.Citation `json:"citations"`
	Confidence float64        `json:"confidence"`
	LatencyMs  int            `json:"latency_ms"`
	QueryID    uuid.UUID      `json:"query_id"`
}

const lowConfidenceFloor = 0.05

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid request body: %v", err))
		return
	}
	if req.Question == "" {
		writeError(w, errs.Newf(errs.KindValidation, "question is required"))
		return
	}
	collectionID, err := uuid.Parse(req.CollectionID)
	if err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid collection_id: %v", err))
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}
	vectorWeight := req.VectorWeight
	if vectorWeight == 0 {
		vectorWeight = s.defaultVectorWeight
	}
	if req.UseHybrid != nil && !*req.UseHybrid {
		vectorWeight = 1.0
	}

	scored, err := s.retriever.Search(r.Context(), collectionID, req.Question, topK, vectorWeight)
	if err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}

	var chunks []*catalog.Chunk
	if len(scored) > 0 {
		ids := make([]uuid.UUID, len(scored))
		for i, sc := range scored {
			ids[i] = sc.ChunkID
		}
		chunks, err = s.store.GetChunksByIDs(r.Context(), ids)
		if err != nil {
			writeError(w, errs.New(errs.KindStorage, err))
			return
		}
	}

	contexts := make([]llm.Context, len(chunks))
	for i, c := range chunks {
		contexts[i] = llm.Context{DocumentID: c.DocumentID, ChunkIndex: c.ChunkIndex, Text: c.Text}
	}

	confidence := llm.CheckAnswerability(req.Question, contexts)

	var answer *llm.Answer
	if confidence < lowConfidenceFloor {
		answer = &llm.Answer{Text: llm.InsufficientInformationAnswer, Model: s.defaultLLM}
	} else {
		answer, err = llm.GenerateAnswer(r.Context(), s.llmClient, s.defaultLLM, req.Question, contexts)
		if err != nil {
			writeError(w, errs.New(errs.KindStorage, err))
			return
		}
	}

	citationsJSON, err := json.Marshal(answer.Citations)
	if err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}
	query := &catalog.Query{
		ID:             uuid.New(),
		CollectionID:   collectionID,
		Question:       req.Question,
		Answer:         answer.Text,
		Citations:      citationsJSON,
		LatencyMs:      answer.LatencyMs,
		Model:          answer.Model,
		RetrievalScore: topScore(scored),
	}
	if err := s.store.CreateQuery(r.Context(), query); err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}
	if len(scored) > 0 {
		qcs := make([]*catalog.QueryChunk, 0, len(scored))
		for i, sc := range scored {
			if i >= 5 {
				break
			}
			qcs = append(qcs, &catalog.QueryChunk{QueryID: query.ID, ChunkID: sc.ChunkID, Rank: i + 1, Score: sc.Score})
		}
		if err := s.store.CreateQueryChunks(r.Context(), qcs); err != nil {
			writeError(w, errs.New(errs.KindStorage, err))
			return
		}
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:     answer.Text,
		Citations:  answer.Citations,
		Confidence: confidence,
		LatencyMs:  answer.LatencyMs,
		QueryID:    query.ID,
	})
}

func topScore(scored []catalog.ScoredChunk) float32 {
	if len(scored) == 0 {
		return 0
	}
	return scored[0].Score
}

type feedbackRequest struct {
	Value int    `json:"value"`
	Note  string `json:"note,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	queryID, err := uuid.Parse(chi.URLParam(r, "query_id"))
	if err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid query_id: %v", err))
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Newf(errs.KindValidation, "invalid request body: %v", err))
		return
	}
	if req.Value != -1 && req.Value != 1 {
		writeError(w, errs.Newf(errs.KindValidation, "value must be -1 or 1"))
		return
	}

	f := &catalog.Feedback{ID: uuid.New(), QueryID: queryID, Value: req.Value, Note: req.Note}
	if err := s.store.UpsertFeedback(r.Context(), f); err != nil {
		writeError(w, errs.New(errs.KindStorage, err))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// --- response helpers ----------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusForKind implements §7's error-kind-to-HTTP-status mapping.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation, errs.KindDuplicateDocument:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind, ok := errs.KindOf(err)
	if !ok {
		kind = errs.KindStorage
	}
	writeJSON(w, statusForKind(kind), map[string]string{"error": err.Error()})
}

func isNotFound(err error) bool {
	kind, ok := errs.KindOf(err)
	return ok && kind == errs.KindNotFound
}
