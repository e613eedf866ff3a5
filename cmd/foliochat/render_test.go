package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/user/foliochat/internal/controller"
	"github.com/user/foliochat/internal/types"
)

func init() {
	color.NoColor = true
}

func TestStreamPrinterPrintsDeltasOnce(t *testing.T) {
	history := []types.Message{{ID: "old", Role: types.RoleAI, Content: "earlier answer"}}
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, history)

	reply := func(text string, parts ...types.Part) types.Message {
		return types.Message{
			ID:    "a1",
			Role:  types.RoleAssistant,
			Parts: append([]types.Part{&types.TextPart{Text: text}}, parts...),
		}
	}
	user := types.Message{ID: "q1", Role: types.RoleUser, Parts: []types.Part{&types.TextPart{Text: "hi"}}}

	p.update(controller.View{Messages: append(history, user), Placeholder: true})
	p.update(controller.View{Messages: append(history, user, reply("Hel"))})
	p.update(controller.View{Messages: append(history, user, reply("Hello"))})
	call := &types.ToolCallPart{ToolCallID: "c1", ToolName: "search", InputText: `{"q":"go"}`, State: types.ToolInputAvailable}
	p.update(controller.View{Messages: append(history, user, reply("Hello", call))})
	p.update(controller.View{Messages: append(history, user, reply("Hello", call))})
	p.finish()

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "generating..."))
	assert.Equal(t, 1, strings.Count(out, "Hello"))
	assert.Equal(t, 1, strings.Count(out, "search("))
	assert.NotContains(t, out, "earlier answer")
	assert.NotContains(t, out, "hi\n")
}

func TestPrintMessageLegacyFields(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := types.Message{
		ID:        "m1",
		Role:      types.RoleAI,
		Content:   "line one\nline two",
		Feedback:  types.FeedbackLiked,
		CreatedAt: types.Timestamp{Time: now.Add(-5 * time.Minute)},
	}
	printMessage(&buf, m, true, now)

	out := buf.String()
	assert.Contains(t, out, "assistant 5m ago [liked]")
	assert.Contains(t, out, "  line one\n  line two")
}
