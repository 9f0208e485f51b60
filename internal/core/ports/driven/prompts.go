package driven

import "strings"

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptAnswer is the grounded answer template.
	// Placeholders: {context} and {question}.
	PromptAnswer = "answer"

	// PromptCompress extracts the relevant part of a context passage.
	// Placeholders: {question} and {context}. The model answers NO_OUTPUT
	// when nothing is relevant.
	PromptCompress = "compress"

	// PromptSummarize progressively summarises conversation lines.
	// Placeholders: {summary} and {new_lines}.
	PromptSummarize = "summarize"

	// PromptCondense rewrites a follow-up into a standalone question.
	// Placeholders: {chat_history} and {question}.
	PromptCondense = "condense"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}

// DefaultAnswerPrompt is the built-in answer template.
const DefaultAnswerPrompt = `You are an intelligent assistant helping users understand documents. Use the following pieces of context to answer the question at the end.

Context from documents:
{context}

Instructions:
- Provide accurate, helpful answers based on the context
- If you don't know something, say so clearly
- Reference specific parts of the documents when relevant
- Be conversational and consider the chat history
- If the question seems related to previous conversation, acknowledge that context

Question: {question}

Answer:`

// DefaultCompressPrompt is the built-in extraction template.
const DefaultCompressPrompt = `Given the following question and context, extract any part of the context *AS IS* that is relevant to answer the question. If none of the context is relevant return NO_OUTPUT.

Remember, *DO NOT* edit the extracted parts of the context.

> Question: {question}
> Context:
>>>
{context}
>>>
Extracted relevant parts:`

// DefaultSummarizePrompt is the built-in progressive summary template.
const DefaultSummarizePrompt = `Progressively summarize the lines of conversation provided, adding onto the previous summary returning a new summary.

EXAMPLE
Current summary:
The human asks what the AI thinks of artificial intelligence. The AI thinks artificial intelligence is a force for good.

New lines of conversation:
Human: Why do you think artificial intelligence is a force for good?
AI: Because artificial intelligence will help humans reach their full potential.

New summary:
The human asks what the AI thinks of artificial intelligence. The AI thinks artificial intelligence is a force for good because it will help humans reach their full potential.
END OF EXAMPLE

Current summary:
{summary}

New lines of conversation:
{new_lines}

New summary:`

// DefaultCondensePrompt is the built-in standalone question template.
const DefaultCondensePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{chat_history}
Follow Up Input: {question}
Standalone question:`

// NoOutput is the compressor's answer when nothing is relevant.
const NoOutput = "NO_OUTPUT"

// DefaultPrompts returns the built-in template of every well-known prompt.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptAnswer:    DefaultAnswerPrompt,
		PromptCompress:  DefaultCompressPrompt,
		PromptSummarize: DefaultSummarizePrompt,
		PromptCondense:  DefaultCondensePrompt,
	}
}

// RenderPrompt substitutes {name} placeholders in template.
func RenderPrompt(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// PromptPlaceholders returns the placeholders a template for name must keep.
// Unknown names have none.
func PromptPlaceholders(name string) []string {
	switch name {
	case PromptAnswer, PromptCompress:
		return []string{"{context}", "{question}"}
	case PromptSummarize:
		return []string{"{summary}", "{new_lines}"}
	case PromptCondense:
		return []string{"{chat_history}", "{question}"}
	}
	return nil
}

// MissingPlaceholders lists the placeholders of name absent from template.
func MissingPlaceholders(name, template string) []string {
	var missing []string
	for _, p := range PromptPlaceholders(name) {
		if !strings.Contains(template, p) {
			missing = append(missing, p)
		}
	}
	return missing
}
