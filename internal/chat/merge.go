package chat

import (
	"encoding/json"
	"fmt"

	"github.com/user/foliochat/internal/types"
	"github.com/user/foliochat/pkg/uistream"
)

type partRef struct {
	msg  int
	part int
}

// turnState tracks where incoming chunks land within the live messages of
// one turn. The live list is private to Chat and snapshots deep-copy it, so
// merging mutates in place.
type turnState struct {
	number    int
	first     int
	baseID    string
	steps     int
	assistant int
	texts     map[string]partRef
	tools     map[string]partRef
}

// newTurnState starts a turn whose user message sits at index first.
func newTurnState(number, first int) *turnState {
	return &turnState{
		number:    number,
		first:     first,
		assistant: -1,
		texts:     make(map[string]partRef),
		tools:     make(map[string]partRef),
	}
}

func (t *turnState) hasAssistant() bool {
	return t.assistant >= 0
}

// merge applies chunk to msgs and returns the updated list.
func (t *turnState) merge(msgs []types.Message, chunk uistream.Chunk) []types.Message {
	if md := chunk.ParseMetadata(); md.TurnNumber > 0 && md.TurnNumber != t.number {
		t.number = md.TurnNumber
		for i := t.first; i < len(msgs); i++ {
			msgs[i].TurnNumber = t.number
		}
	}

	switch chunk.Type {
	case uistream.ChunkStart:
		if chunk.MessageID != "" && t.assistant < 0 {
			t.baseID = chunk.MessageID
		}
		msgs = t.ensureAssistant(msgs)

	case uistream.ChunkStartStep:
		if t.assistant >= 0 && len(msgs[t.assistant].Parts) > 0 {
			msgs = t.openAssistant(msgs)
		}
		clear(t.texts)

	case uistream.ChunkTextStart:
		msgs = t.ensureAssistant(msgs)
		t.textPart(msgs, chunk.ID)

	case uistream.ChunkTextDelta:
		msgs = t.ensureAssistant(msgs)
		t.textPart(msgs, chunk.ID).Text += chunk.Delta

	case uistream.ChunkTextEnd:
		if ref, ok := t.texts[chunk.ID]; ok {
			msgs[ref.msg].Parts[ref.part].(*types.TextPart).Done = true
		}

	case uistream.ChunkToolInputStart:
		msgs = t.ensureAssistant(msgs)
		t.toolCall(msgs, chunk.ToolCallID, chunk.ToolName)

	case uistream.ChunkToolInputDelta:
		msgs = t.ensureAssistant(msgs)
		call := t.toolCall(msgs, chunk.ToolCallID, chunk.ToolName)
		call.InputText += chunk.InputTextDelta
		if json.Valid([]byte(call.InputText)) {
			call.Input = json.RawMessage(call.InputText)
		}

	case uistream.ChunkToolInputAvailable:
		msgs = t.ensureAssistant(msgs)
		call := t.toolCall(msgs, chunk.ToolCallID, chunk.ToolName)
		if len(chunk.Input) > 0 {
			call.Input = chunk.Input
			call.InputText = string(chunk.Input)
		}
		call.State = types.ToolInputAvailable

	case uistream.ChunkToolOutputAvailable, uistream.ChunkToolOutputError:
		msgs = t.ensureAssistant(msgs)
		res := &types.ToolResultPart{
			ToolCallID: chunk.ToolCallID,
			ToolName:   chunk.ToolName,
			Output:     chunk.Output,
			ErrorText:  chunk.ErrorText,
			State:      types.ToolOutputAvailable,
		}
		if chunk.Type == uistream.ChunkToolOutputError {
			res.State = types.ToolOutputError
		}
		if ref, ok := t.tools[chunk.ToolCallID]; ok && res.ToolName == "" {
			res.ToolName = msgs[ref.msg].Parts[ref.part].(*types.ToolCallPart).ToolName
		}
		msgs[t.assistant].Parts = append(msgs[t.assistant].Parts, res)
	}
	return msgs
}

func (t *turnState) ensureAssistant(msgs []types.Message) []types.Message {
	if t.assistant >= 0 {
		return msgs
	}
	return t.openAssistant(msgs)
}

// openAssistant appends an empty assistant message and makes it current.
// Later steps reuse the stream message id with a step suffix.
func (t *turnState) openAssistant(msgs []types.Message) []types.Message {
	if t.baseID == "" {
		t.baseID = "msg_" + types.NewHexID(16)
	}
	id := t.baseID
	if t.steps > 0 {
		id = fmt.Sprintf("%s-%d", t.baseID, t.steps)
	}
	t.steps++
	msgs = append(msgs, types.Message{
		ID:         types.MessageID(id),
		Role:       types.RoleAssistant,
		TurnNumber: t.number,
	})
	t.assistant = len(msgs) - 1
	return msgs
}

// textPart returns the text part for id in the current assistant message,
// creating it on first use.
func (t *turnState) textPart(msgs []types.Message, id string) *types.TextPart {
	if ref, ok := t.texts[id]; ok {
		return msgs[ref.msg].Parts[ref.part].(*types.TextPart)
	}
	part := &types.TextPart{ID: id}
	t.texts[id] = t.append(msgs, part)
	return part
}

func (t *turnState) toolCall(msgs []types.Message, id, name string) *types.ToolCallPart {
	if ref, ok := t.tools[id]; ok {
		call := msgs[ref.msg].Parts[ref.part].(*types.ToolCallPart)
		if name != "" {
			call.ToolName = name
		}
		return call
	}
	part := &types.ToolCallPart{ToolCallID: id, ToolName: name, State: types.ToolInputStreaming}
	t.tools[id] = t.append(msgs, part)
	return part
}

func (t *turnState) append(msgs []types.Message, p types.Part) partRef {
	m := &msgs[t.assistant]
	m.Parts = append(m.Parts, p)
	return partRef{msg: t.assistant, part: len(m.Parts) - 1}
}

func jsonUnmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(data, v)
}
