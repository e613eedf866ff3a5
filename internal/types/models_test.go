// internal/types/models_test.go
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const persistedMessages = `[
  {"id":"m1","role":"human","response_id":null,"tool_call_id":"","metadata":{},"content":"where did you study?","function_call":null,"token_count":5,"turn_number":1,"error":false,"order":0,"feedback":null,"created_at":"2025-01-02T10:00:00"},
  {"id":"m2","role":"ai","response_id":"r1","tool_call_id":"call_1","metadata":{},"content":"","function_call":{"name":"search_resume","arguments":"{\"query\":\"education\"}"},"token_count":0,"turn_number":1,"error":false,"order":1,"feedback":null,"created_at":"2025-01-02T10:00:01"},
  {"id":"m3","role":"tool","response_id":null,"tool_call_id":"call_1","metadata":{},"content":"BSc Computer Science","function_call":null,"token_count":0,"turn_number":1,"error":false,"order":2,"feedback":null,"created_at":"2025-01-02T10:00:02"},
  {"id":"m4","role":"ai","response_id":"r2","tool_call_id":"","metadata":{},"content":"I studied computer science.","function_call":null,"token_count":9,"turn_number":1,"error":false,"order":3,"feedback":"liked","created_at":"2025-01-02T10:00:03Z"}
]`

func TestMessageDecodePersisted(t *testing.T) {
	var msgs []Message
	require.NoError(t, json.Unmarshal([]byte(persistedMessages), &msgs))
	require.Len(t, msgs, 4)

	assert.True(t, msgs[0].Role.IsUser())
	assert.Equal(t, FeedbackNone, msgs[0].Feedback)
	assert.Equal(t, FeedbackLiked, msgs[3].Feedback)
	assert.Equal(t, 10, msgs[0].CreatedAt.UTC().Hour())

	call, ok := msgs[1].ContentParts()[0].(*ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "search_resume", call.ToolName)
	assert.Equal(t, map[string]any{"query": "education"}, call.Arguments())

	res, ok := msgs[2].ContentParts()[0].(*ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, ToolOutputAvailable, res.State)
	assert.Equal(t, "BSc Computer Science", res.OutputText())

	assert.Equal(t, "I studied computer science.", msgs[3].Text())
	assert.True(t, msgs[3].HasText())
	assert.False(t, msgs[1].HasText())
}

func TestMessageFeedbackEncodesNull(t *testing.T) {
	data, err := json.Marshal(Message{ID: "m1", Role: RoleAI})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"feedback":null`)
	assert.NotContains(t, string(data), "Parts")
}

func TestToolErrorMessage(t *testing.T) {
	msg := Message{ID: "m5", Role: RoleTool, ToolCallID: "call_2", Content: "timeout", Error: true}
	res := msg.ContentParts()[0].(*ToolResultPart)
	assert.Equal(t, ToolOutputError, res.State)
	assert.Equal(t, "timeout", res.ErrorText)
	assert.Empty(t, res.OutputText())
}

func TestMessageCloneIsolatesParts(t *testing.T) {
	orig := Message{ID: "a1", Role: RoleAssistant, Parts: []Part{&TextPart{ID: "t1", Text: "hel"}}}
	cp := orig.Clone()
	cp.Parts[0].(*TextPart).Text += "lo"
	assert.Equal(t, "hel", orig.Text())
	assert.Equal(t, "hello", cp.Text())
}

func TestSessionsPageDecode(t *testing.T) {
	body := `{"count":1,"total_count":3,"page":1,"page_size":1,"total_pages":3,"has_next":true,"has_previous":false,
	"results":[{"id":"s1","name":"Portfolio questions","latest_turn_number":2,"created_at":"2025-01-01T00:00:00","updated_at":"2025-01-02T00:00:00","starred":true}]}`
	var page SessionsPage
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.True(t, page.HasNext)
	require.Len(t, page.Results, 1)
	assert.Equal(t, SessionID("s1"), page.Results[0].ID)
	assert.True(t, page.Results[0].Starred)
	assert.False(t, page.Results[0].Temporary)
}
