package models

// Stream event names for the chat SSE surface.
const (
	EventToken    = "token"
	EventCitation = "citation"
	EventDone     = "done"
	EventError    = "error"
)

// StreamEvent is one element of the ordered chat event sequence
// token* citation* (done | error).
type StreamEvent struct {
	Type     string         `json:"-"`
	Token    *TokenEvent    `json:"token,omitempty"`
	Citation *CitationEvent `json:"citation,omitempty"`
	Done     *DoneEvent     `json:"done,omitempty"`
	Error    *ErrorEvent    `json:"error,omitempty"`
}

type TokenEvent struct {
	Content string `json:"content"`
}

type CitationEvent struct {
	Source            string   `json:"source"`
	Page              *int     `json:"page"`
	Text              string   `json:"text"`
	SectionBreadcrumb []string `json:"section_breadcrumb,omitempty"`
	ImageIDs          []string `json:"image_ids,omitempty"`
	DocumentID        string   `json:"document_id"`
}

type DoneEvent struct {
	MessageID        string `json:"message_id"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

type ErrorEvent struct {
	ErrorID string `json:"error_id"`
	Message string `json:"message"`
}
