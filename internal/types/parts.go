// internal/types/parts.go
package types

import "encoding/json"

// ToolState tracks the lifecycle of a tool invocation inside a message.
type ToolState string

const (
	ToolInputStreaming  ToolState = "input-streaming"
	ToolInputAvailable  ToolState = "input-available"
	ToolOutputAvailable ToolState = "output-available"
	ToolOutputError     ToolState = "output-error"
)

// Part is one unit of message content: *TextPart, *ToolCallPart or
// *ToolResultPart. The set is closed; callers use a type switch.
type Part interface {
	PartType() string
	clone() Part
}

// TextPart is a text segment. Streamed deltas are appended to Text in
// arrival order; Done flips when the segment is closed.
type TextPart struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

func (p *TextPart) PartType() string { return "text" }
func (p *TextPart) clone() Part      { c := *p; return &c }

// ToolCallPart is a tool invocation. InputText accumulates streamed argument
// deltas; Input holds the parsed arguments once they form valid JSON.
type ToolCallPart struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	InputText  string          `json:"input_text,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	State      ToolState       `json:"state"`
}

func (p *ToolCallPart) PartType() string { return "tool-call" }
func (p *ToolCallPart) clone() Part {
	c := *p
	c.Input = append(json.RawMessage(nil), p.Input...)
	return &c
}

// Arguments decodes the tool input into a generic map. Inputs that are not
// JSON objects yield nil.
func (p *ToolCallPart) Arguments() map[string]any {
	raw := p.Input
	if len(raw) == 0 {
		raw = json.RawMessage(p.InputText)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil
	}
	return args
}

// ToolResultPart is the outcome of a tool invocation.
type ToolResultPart struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"error_text,omitempty"`
	State      ToolState       `json:"state"`
}

func (p *ToolResultPart) PartType() string { return "tool-result" }
func (p *ToolResultPart) clone() Part {
	c := *p
	c.Output = append(json.RawMessage(nil), p.Output...)
	return &c
}

// OutputText renders the output as display text, unquoting JSON strings.
func (p *ToolResultPart) OutputText() string {
	if len(p.Output) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Output, &s); err == nil {
		return s
	}
	return string(p.Output)
}

// TextOutput encodes plain text as a tool output value.
func TextOutput(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
