// Package uistream implements the chat streaming wire protocol: a
// Server-Sent Events stream whose data payloads are JSON chunks describing
// incremental message parts.
package uistream

import (
	"encoding/json"
	"strings"
)

// Chunk types understood by the chat transport.
const (
	ChunkStart               = "start"
	ChunkFinish              = "finish"
	ChunkStartStep           = "start-step"
	ChunkFinishStep          = "finish-step"
	ChunkTextStart           = "text-start"
	ChunkTextDelta           = "text-delta"
	ChunkTextEnd             = "text-end"
	ChunkToolInputStart      = "tool-input-start"
	ChunkToolInputDelta      = "tool-input-delta"
	ChunkToolInputAvailable  = "tool-input-available"
	ChunkToolOutputAvailable = "tool-output-available"
	ChunkToolOutputError     = "tool-output-error"
	ChunkMessageMetadata     = "message-metadata"
	ChunkError               = "error"
	ChunkAbort               = "abort"

	// DataPrefix starts the type of application-defined chunks.
	DataPrefix = "data-"
	// ChunkDataSession carries the persisted session created for a chat.
	ChunkDataSession = "data-session"
)

// DoneMarker terminates a stream.
const DoneMarker = "[DONE]"

// Chunk is one event of the stream. Only the fields relevant to Type are set.
type Chunk struct {
	Type            string          `json:"type"`
	ID              string          `json:"id,omitempty"`
	Delta           string          `json:"delta,omitempty"`
	MessageID       string          `json:"messageId,omitempty"`
	MessageMetadata json.RawMessage `json:"messageMetadata,omitempty"`
	ToolCallID      string          `json:"toolCallId,omitempty"`
	ToolName        string          `json:"toolName,omitempty"`
	InputTextDelta  string          `json:"inputTextDelta,omitempty"`
	Input           json.RawMessage `json:"input,omitempty"`
	Output          json.RawMessage `json:"output,omitempty"`
	ErrorText       string          `json:"errorText,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	FinishReason    string          `json:"finishReason,omitempty"`
}

// IsData reports whether the chunk is an application-defined data chunk.
func (c Chunk) IsData() bool {
	return strings.HasPrefix(c.Type, DataPrefix)
}

// Metadata is the subset of message metadata the client interprets.
type Metadata struct {
	TurnNumber int    `json:"turn_number,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

// ParseMetadata decodes MessageMetadata, returning the zero value when the
// chunk carries none or it is malformed.
func (c Chunk) ParseMetadata() Metadata {
	var md Metadata
	if len(c.MessageMetadata) > 0 {
		_ = json.Unmarshal(c.MessageMetadata, &md)
	}
	return md
}

// QueryMessage is the user text sent to the streaming endpoint.
type QueryMessage struct {
	Query string `json:"query"`
	ID    string `json:"id"`
}

// Request is the body posted to the streaming endpoint.
type Request struct {
	QueryMessage QueryMessage `json:"query_message"`
	SessionID    string       `json:"session_id,omitempty"`
	CookieID     string       `json:"cookie_id,omitempty"`
}
