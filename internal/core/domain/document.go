package domain

import (
	"time"
	"unicode/utf8"
)

// Page is a unit of text produced by a normaliser. Paginated formats yield
// one Page per physical page; other formats yield a single Page.
type Page struct {
	// Content is the extracted text.
	Content string

	// Number is the 1-based page number, or 0 when the format has no pages.
	Number int
}

// HasNumber reports whether the page carries a page number.
func (p Page) HasNumber() bool {
	return p.Number > 0
}

// SourceFile describes a file considered by an ingestion run.
type SourceFile struct {
	// Key is the path relative to the ingestion folder, slash separated.
	Key string

	// Path is the absolute path on disk.
	Path string

	// Fingerprint is the content hash.
	Fingerprint Fingerprint

	// Size is the file size in bytes.
	Size int64
}

// ChunkMetadata is the fixed provenance record stamped on every chunk.
type ChunkMetadata struct {
	// SourceFile is the file key the chunk was cut from.
	SourceFile string `json:"source_file"`

	// FileHash is the fingerprint of the file at ingestion time.
	FileHash string `json:"file_hash"`

	// FileSize is the size of the source file in bytes.
	FileSize int64 `json:"file_size"`

	// Page is the 1-based page number, 0 when unknown.
	Page int `json:"page,omitempty"`

	// ChunkIndex is the ordinal of the chunk within its page.
	ChunkIndex int `json:"chunk_index"`

	// TotalChunks is the number of sibling chunks cut from the same page.
	TotalChunks int `json:"total_chunks"`

	// Sequence is the ordinal of the chunk within the whole file.
	Sequence int `json:"sequence"`

	// Length is the chunk length in characters.
	Length int `json:"chunk_size"`

	// IngestedAt is when the chunk was produced.
	IngestedAt time.Time `json:"ingestion_date"`
}

// HasPage reports whether the chunk came from a numbered page.
func (m ChunkMetadata) HasPage() bool {
	return m.Page > 0
}

// Chunk is a bounded, overlapping segment of a source document.
type Chunk struct {
	// ID is the stable point identity used by the vector index.
	ID string

	// Content is the text content of this chunk.
	Content string

	// Metadata is the chunk provenance.
	Metadata ChunkMetadata
}

// IndexPoint is an embedded chunk ready for upsert.
type IndexPoint struct {
	// ID is the point identity; re-upserting the same ID replaces the point.
	ID string

	// Vector is the embedding.
	Vector []float32

	// Content is the chunk text stored as payload.
	Content string

	// Metadata is the chunk provenance stored as payload.
	Metadata ChunkMetadata
}

// SearchHit is a single ranked result from the vector index.
type SearchHit struct {
	// ID is the point identity.
	ID string

	// Score is the cosine similarity to the query vector.
	Score float64

	// Content is the stored chunk text.
	Content string

	// Metadata is the stored chunk provenance.
	Metadata ChunkMetadata

	// Vector is populated only when the index returns vectors.
	Vector []float32
}

// PointFilter selects points for deletion.
type PointFilter struct {
	// SourceFile restricts the filter to points of one file.
	SourceFile string

	// ExceptFileHash keeps points whose file hash matches. Empty removes all
	// points of SourceFile.
	ExceptFileHash string

	// MinSequence, when positive, restricts the filter to points whose
	// Sequence is at least MinSequence.
	MinSequence int
}

// Matches reports whether a point with metadata m is selected.
// The zero filter selects every point.
func (f PointFilter) Matches(m ChunkMetadata) bool {
	if f.SourceFile != "" && m.SourceFile != f.SourceFile {
		return false
	}
	if f.ExceptFileHash != "" && m.FileHash == f.ExceptFileHash {
		return false
	}
	if f.MinSequence > 0 && m.Sequence < f.MinSequence {
		return false
	}
	return true
}

// CollectionInfo describes a vector collection.
type CollectionInfo struct {
	Name        string `json:"name"`
	PointsCount int    `json:"points_count"`
	Status      string `json:"status"`
	Dimension   int    `json:"dimension"`
	Metric      string `json:"metric"`
}

// Collection status values reported by CollectionInfo.
const (
	CollectionStatusReady   = "green"
	CollectionStatusMissing = "missing"
)

// DistanceMetric is the vector comparison used by a collection.
type DistanceMetric string

// Supported metrics.
const (
	DistanceCosine DistanceMetric = "cosine"
)

// SearchMode selects how the vector index ranks results.
type SearchMode string

// Available search modes.
const (
	// SearchModeSimilarity returns the top k by raw score.
	SearchModeSimilarity SearchMode = "similarity"

	// SearchModeMMR re-ranks fetch_k neighbours by maximal marginal relevance.
	SearchModeMMR SearchMode = "mmr"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	return m == SearchModeSimilarity || m == SearchModeMMR
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// SearchRequest parameterises a vector search.
type SearchRequest struct {
	Collection string
	Vector     []float32
	K          int
	FetchK     int
	Mode       SearchMode

	// Lambda is the MMR relevance weight in [0,1]. 1 is pure relevance.
	Lambda float64
}

// SourceDocument is a normalised file ready for chunking.
type SourceDocument struct {
	File  SourceFile
	Pages []Page
}

// Length returns the total number of characters across pages.
func (d SourceDocument) Length() int {
	n := 0
	for _, p := range d.Pages {
		n += utf8.RuneCountInString(p.Content)
	}
	return n
}

// ChangeType classifies a filesystem change.
type ChangeType string

// Change types reported by watchers.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// FileChange is a change observed under a watched folder.
type FileChange struct {
	Type ChangeType
	Path string
}
