package domain

// Message roles and turn kinds used by the agentic conversation.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"

	TurnKindQuestion = "question"
	TurnKindProposal = "proposal"
)

// Agentic conversation statuses.
const (
	AgenticStatusQuestion = "question"
	AgenticStatusProposal = "proposal"
	AgenticStatusAccepted = "accepted"
	AgenticStatusRejected = "rejected"
)

// Message is a single role-tagged entry in the conversation history.
// Immutable once appended.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is the single output of one turn-generator invocation: either a
// clarifying question or a revision proposal.
type Turn struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// SearchResult is the chosen hit of the official-manual search.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchContext carries the one-time official-manual search outcome.
// Fetched at conversation start and reused unchanged on every later turn.
type SearchContext struct {
	Query         string        `json:"query"`
	Scope         string        `json:"scope"`
	Result        *SearchResult `json:"result,omitempty"`
	ReferenceText string        `json:"reference_text,omitempty"`
}

// AgenticState is the session-scoped conversation aggregate. It is owned by
// its parent session and persisted as a whole on every agentic operation.
type AgenticState struct {
	Status              string         `json:"status"`
	Turn                *Turn          `json:"turn,omitempty"`
	Proposal            *string        `json:"proposal,omitempty"`
	History             []Message      `json:"history"`
	Search              *SearchContext `json:"search,omitempty"`
	SearchReferenceText string         `json:"search_reference_text,omitempty"`
}

// ValidStatus reports whether s is one of the four reachable statuses.
func ValidStatus(s string) bool {
	switch s {
	case AgenticStatusQuestion, AgenticStatusProposal, AgenticStatusAccepted, AgenticStatusRejected:
		return true
	}
	return false
}

// TurnContext is the ephemeral factual grounding assembled per call and fed
// to the turn generator. It is never persisted on its own.
type TurnContext struct {
	Place               *Place            `json:"place"`
	Answers             map[string]string `json:"answers"`
	GeneratedHTML       string            `json:"generated_html"`
	GeneratedMarkdown   string            `json:"generated_markdown"`
	Search              *SearchContext    `json:"search"`
	SearchReferenceText string            `json:"search_reference_text"`
}
