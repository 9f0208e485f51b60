// Package domain defines the core entities of the retrieval-augmented
// conversation engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Page: Text extracted from a source file, optionally with a page number
//   - Chunk: A bounded, overlapping segment of a page, the unit of embedding
//   - Manifest: The persisted record of indexed files and their fingerprints
//   - Candidate / CompressedSpan: Retrieved and compressed context
//   - Turn / MemorySnapshot: Conversation memory state
//   - QueryResult / IngestionStats: Results returned to callers
//   - Config: Every knob the core honours
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
