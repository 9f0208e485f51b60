// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Turns text into fixed-dimension vectors
//   - VectorIndex: Collection management, upsert and similarity/MMR search
//   - ManifestStore: Persisted record of indexed files
//   - NormaliserRegistry: Selects a Normaliser by file extension
//   - ChatModel: Text generation used by the capabilities below
//   - AnswerGenerator: Produces grounded answers
//   - Tokenizer: Deterministic token counts for memory budgeting
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - Compressor: Without it, retrieved candidates are used verbatim.
//   - Summarizer: Without it, memory keeps recent turns but cannot fold old ones.
//   - QuestionCondenser: Without it, follow-up questions are retrieved as asked.
//   - PromptStore: Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
