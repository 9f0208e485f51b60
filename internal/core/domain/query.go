package domain

import "time"

// Candidate is a retrieved chunk ranked by the retriever.
type Candidate struct {
	// Rank is the 0-based position in the retriever output.
	Rank int

	// Text is the chunk content.
	Text string

	// Score is the similarity to the query.
	Score float64

	// Metadata is the chunk provenance.
	Metadata ChunkMetadata
}

// CompressedSpan is the query-relevant part of a candidate.
type CompressedSpan struct {
	// Text is the extracted span.
	Text string

	// Candidate is the retrieved candidate the span came from.
	Candidate Candidate
}

// Usage records token consumption and estimated cost of provider calls.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Cost += other.Cost
}

// SourceCitation attributes part of an answer to a source file.
type SourceCitation struct {
	// FileName is the base name of the source file.
	FileName string `json:"file_name"`

	// SourceFile is the file key relative to the ingestion folder.
	SourceFile string `json:"source_file"`

	// Page is the 1-based page number, 0 when unknown.
	Page int `json:"page,omitempty"`

	// Preview is the leading part of the span text.
	Preview string `json:"preview"`

	// Score is the retrieval similarity.
	Score float64 `json:"score"`
}

// QueryMetadata carries usage and diagnostics for a query.
type QueryMetadata struct {
	Timestamp  time.Time `json:"timestamp"`
	TokensUsed int       `json:"tokens_used"`
	Cost       float64   `json:"cost"`
	NumSources int       `json:"num_sources"`

	// StandaloneQuestion is the condensed question used for retrieval, when
	// it differs from the question asked.
	StandaloneQuestion string `json:"standalone_question,omitempty"`

	// Warnings lists degraded steps that did not fail the query.
	Warnings []string `json:"warnings,omitempty"`

	// Error is set when the query failed. The answer then explains the failure.
	Error string `json:"error,omitempty"`

	// ErrorKind classifies Error.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// QueryResult is returned for every query, successful or not.
type QueryResult struct {
	Answer      string           `json:"answer"`
	Sources     []SourceCitation `json:"source_documents"`
	ChatHistory []Message        `json:"chat_history"`
	Metadata    QueryMetadata    `json:"metadata"`
}

// Failed reports whether the query degraded to an error answer.
func (r QueryResult) Failed() bool {
	return r.Metadata.Error != ""
}
