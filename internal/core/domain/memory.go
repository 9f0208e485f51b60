package domain

// Role tags a conversation message with its speaker.
type Role string

// Speaker roles.
const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

// Message is one role-tagged utterance.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is a question and its answer.
type Turn struct {
	Question string
	Answer   string
}

// Messages returns the turn as a human message followed by an AI message.
func (t Turn) Messages() []Message {
	return []Message{
		{Role: RoleHuman, Content: t.Question},
		{Role: RoleAI, Content: t.Answer},
	}
}

// MemorySnapshot is a read-only view of conversation memory.
type MemorySnapshot struct {
	// Summary describes turns folded out of the verbatim buffer.
	Summary string

	// Turns are the recent turns held verbatim, oldest first.
	Turns []Turn
}

// Empty reports whether the snapshot holds no history.
func (s MemorySnapshot) Empty() bool {
	return s.Summary == "" && len(s.Turns) == 0
}

// Messages flattens the verbatim turns into role-tagged messages.
func (s MemorySnapshot) Messages() []Message {
	msgs := make([]Message, 0, len(s.Turns)*2)
	for _, t := range s.Turns {
		msgs = append(msgs, t.Messages()...)
	}
	return msgs
}

// MemoryState is the lifecycle state of conversation memory.
type MemoryState string

// Memory states.
const (
	MemoryActive      MemoryState = "active"
	MemorySummarizing MemoryState = "summarizing"
)

// MemoryStats reports memory usage.
type MemoryStats struct {
	TotalMessages int  `json:"total_messages"`
	HumanMessages int  `json:"human_messages"`
	AIMessages    int  `json:"ai_messages"`
	HasSummary    bool `json:"has_summary"`
	SummaryTokens int  `json:"summary_tokens"`
	BufferTokens  int  `json:"buffer_tokens"`
	MaxTokens     int  `json:"max_tokens"`
}

// NoHistorySummary is reported when memory has no summary yet.
const NoHistorySummary = "No conversation history yet."
