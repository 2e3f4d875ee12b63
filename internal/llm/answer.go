package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Context is one retrieved chunk handed to the LLM as grounding material,
// in the order it should be numbered [1], [2], ... (§4.9).
type Context struct {
	DocumentID uuid.UUID
	ChunkIndex int
	Text       string
}

// Citation is a materialized [n] marker found in the generated answer
// (§4.9).
type Citation struct {
	Index       int       `json:"index"`
	TextPreview string    `json:"text_preview"`
	DocumentID  uuid.UUID `json:"document_id"`
	ChunkIndex  int       `json:"chunk_index"`
}

// Answer is the result of GenerateAnswer.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
	LatencyMs int        `json:"latency_ms"`
	Model     string     `json:"model"`
}

const maxContexts = 5

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// InsufficientInformationAnswer is the fixed response returned when
// CheckAnswerability falls below the confidence floor (§6, S4).
const InsufficientInformationAnswer = "I don't have enough information in the ingested documents to answer that question."

// GenerateAnswer implements generate_answer (§4.9): it prompts the model to
// answer using only the given contexts and cite them with [n] markers, then
// extracts those markers into structured citations.
func GenerateAnswer(ctx context.Context, client LLM, model, question string, contexts []Context) (*Answer, error) {
	if len(contexts) > maxContexts {
		contexts = contexts[:maxContexts]
	}

	start := time.Now()
	text, err := client.Generate(ctx, buildPrompt(question, contexts), GenerateOptions{
		Model:        model,
		SystemPrompt: answerSystemPrompt,
		Temperature:  DefaultTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	latency := time.Since(start)

	return &Answer{
		Text:      text,
		Citations: extractCitations(text, contexts),
		LatencyMs: int(latency.Milliseconds()),
		Model:     model,
	}, nil
}

const answerSystemPrompt = "You answer questions using only the numbered context passages provided. " +
	"Cite every claim with the bracketed number of the passage it came from, like [1] or [2]. " +
	"If the passages do not contain the answer, say so plainly."

func buildPrompt(question string, contexts []Context) string {
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, c.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}

func extractCitations(answer string, contexts []Context) []Citation {
	seen := make(map[int]bool)
	var citations []Citation
	for _, m := range citationMarkerRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(contexts) || seen[n] {
			continue
		}
		seen[n] = true
		c := contexts[n-1]
		citations = append(citations, Citation{
			Index:       n,
			TextPreview: truncatePreview(c.Text, 200),
			DocumentID:  c.DocumentID,
			ChunkIndex:  c.ChunkIndex,
		})
	}
	return citations
}

func truncatePreview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}

// CheckAnswerability implements check_answerability (§4.9): a baseline
// confidence of 0.3 once any context exists, plus 0.5 times the fraction of
// question words also present in the contexts, capped at 1.0. It runs
// locally with no model call so it can gate whether the LLM is invoked at
// all.
func CheckAnswerability(question string, contexts []Context) float64 {
	if len(contexts) == 0 {
		return 0
	}

	queryWords := tokenizeWords(question)
	if len(queryWords) == 0 {
		return 0.3
	}

	contextWords := make(map[string]bool)
	for _, c := range contexts {
		for w := range tokenizeWords(c.Text) {
			contextWords[w] = true
		}
	}

	overlap := 0
	for w := range queryWords {
		if contextWords[w] {
			overlap++
		}
	}

	score := 0.3 + 0.5*(float64(overlap)/float64(len(queryWords)))
	if score > 1.0 {
		score = 1.0
	}
	return score
}

var wordSplitRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func tokenizeWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range wordSplitRe.Split(strings.ToLower(s), -1) {
		if w != "" {
			words[w] = true
		}
	}
	return words
}
