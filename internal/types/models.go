// internal/types/models.go
package types

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a message. The backend persists human/ai
// while the streaming transport produces user/assistant.
type Role string

const (
	RoleUser      Role = "user"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleAI        Role = "ai"
	RoleTool      Role = "tool"
)

func (r Role) IsUser() bool      { return r == RoleUser || r == RoleHuman }
func (r Role) IsAssistant() bool { return r == RoleAssistant || r == RoleAI }
func (r Role) IsTool() bool      { return r == RoleTool }

// Feedback is the reader's verdict on an assistant message. The zero value
// means no feedback and is encoded as JSON null.
type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackLiked    Feedback = "liked"
	FeedbackDisliked Feedback = "disliked"
)

func (f Feedback) MarshalJSON() ([]byte, error) {
	if f == FeedbackNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(f))
}

func (f *Feedback) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = FeedbackNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = Feedback(s)
	return nil
}

type User struct {
	ID        UserID    `json:"id,omitempty"`
	CookieID  CookieID  `json:"cookie_id"`
	Category  string    `json:"category,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

type Session struct {
	ID               SessionID `json:"id"`
	Name             string    `json:"name"`
	LatestTurnNumber int       `json:"latest_turn_number"`
	CreatedAt        Timestamp `json:"created_at"`
	UpdatedAt        Timestamp `json:"updated_at"`
	Starred          bool      `json:"starred"`

	// Temporary is set for client-only sessions that the backend has not
	// seen yet.
	Temporary bool `json:"-"`
}

// FunctionCall is the persisted form of a tool invocation. Arguments may be
// a JSON object or a JSON-encoded string.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type Message struct {
	ID           MessageID      `json:"id"`
	Role         Role           `json:"role"`
	ResponseID   *string        `json:"response_id"`
	ToolCallID   string         `json:"tool_call_id"`
	Metadata     map[string]any `json:"metadata"`
	Content      string         `json:"content"`
	FunctionCall *FunctionCall  `json:"function_call"`
	TokenCount   int            `json:"token_count"`
	TurnNumber   int            `json:"turn_number"`
	Error        bool           `json:"error"`
	Order        int            `json:"order"`
	Feedback     Feedback       `json:"feedback"`
	CreatedAt    Timestamp      `json:"created_at"`

	// Parts holds streamed content. Persisted messages leave it empty and
	// derive parts from their legacy fields through ContentParts.
	Parts []Part `json:"-"`
}

// ContentParts returns the ordered parts of the message. Streamed messages
// return their own parts; persisted ones are converted from role, content
// and function_call.
func (m *Message) ContentParts() []Part {
	if len(m.Parts) > 0 {
		return m.Parts
	}
	var parts []Part
	switch {
	case m.Role.IsTool():
		res := &ToolResultPart{ToolCallID: m.ToolCallID, Output: TextOutput(m.Content), State: ToolOutputAvailable}
		if m.Error {
			res.State = ToolOutputError
			res.ErrorText = m.Content
			res.Output = nil
		}
		return []Part{res}
	case m.FunctionCall != nil:
		parts = append(parts, &ToolCallPart{
			ToolCallID: m.ToolCallID,
			ToolName:   m.FunctionCall.Name,
			Input:      normalizeArguments(m.FunctionCall.Arguments),
			State:      ToolInputAvailable,
		})
	}
	if m.Content != "" {
		parts = append(parts, &TextPart{ID: string(m.ID), Text: m.Content, Done: true})
	}
	return parts
}

// Text concatenates the text parts of the message.
func (m *Message) Text() string {
	var b strings.Builder
	for _, p := range m.ContentParts() {
		if tp, ok := p.(*TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// HasText reports whether any text part carries non-empty content.
func (m *Message) HasText() bool {
	for _, p := range m.ContentParts() {
		if tp, ok := p.(*TextPart); ok && tp.Text != "" {
			return true
		}
	}
	return false
}

// Clone returns a copy of m whose parts can be mutated independently.
func (m Message) Clone() Message {
	if len(m.Parts) > 0 {
		parts := make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			parts[i] = p.clone()
		}
		m.Parts = parts
	}
	return m
}

// normalizeArguments unwraps arguments that were stored as a JSON string.
func normalizeArguments(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !json.Valid([]byte(s)) {
		return raw
	}
	return json.RawMessage(s)
}

// Page is the backend pagination envelope.
type Page[T any] struct {
	Count       int  `json:"count"`
	TotalCount  int  `json:"total_count"`
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
	Results     []T  `json:"results"`
}

type SessionsPage = Page[Session]
type MessagesPage = Page[Message]

type StarredResult struct {
	SessionUpdated bool      `json:"session_updated"`
	SessionID      SessionID `json:"session_id"`
	Starred        bool      `json:"starred"`
}

type DeleteSessionResult struct {
	MessagesDeleted  int  `json:"messages_deleted"`
	SummariesDeleted int  `json:"summaries_deleted"`
	SessionDeleted   bool `json:"session_deleted"`
}

type DeleteAllResult struct {
	SessionsDeleted  int `json:"sessions_deleted"`
	MessagesDeleted  int `json:"messages_deleted"`
	SummariesDeleted int `json:"summaries_deleted"`
}
