package domain

import (
	"sort"
	"time"
)

// Fingerprint is a deterministic content hash used for change detection.
type Fingerprint string

// String returns the hex representation.
func (f Fingerprint) String() string {
	return string(f)
}

// ManifestEntry records the indexed state of one source file.
type ManifestEntry struct {
	Hash          string    `json:"hash"`
	ProcessedDate time.Time `json:"processed_date"`
	ChunksCount   int       `json:"chunks_count"`
}

// Manifest maps source file keys to their indexed state.
type Manifest map[string]ManifestEntry

// NewManifest returns an empty manifest.
func NewManifest() Manifest {
	return make(Manifest)
}

// Clone returns a copy that can be mutated without touching m.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the file keys in sorted order.
func (m Manifest) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decision is the change tracker verdict for a file.
type Decision int

// Possible decisions.
const (
	// DecisionSkip means the file is unchanged since the last run.
	DecisionSkip Decision = iota

	// DecisionNew means the file has never been indexed.
	DecisionNew

	// DecisionReprocess means the file changed, or reprocessing was forced.
	DecisionReprocess
)

// String returns a lower-case label.
func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionNew:
		return "new"
	case DecisionReprocess:
		return "reprocess"
	default:
		return unknownDescription
	}
}
