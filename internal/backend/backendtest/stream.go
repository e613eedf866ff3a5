package backendtest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/user/foliochat/internal/types"
	"github.com/user/foliochat/pkg/uistream"
)

// EchoResponder answers with one text part repeating the query.
func EchoResponder(query string) []uistream.Chunk {
	return []uistream.Chunk{
		{Type: uistream.ChunkStartStep},
		{Type: uistream.ChunkTextStart, ID: "txt_0"},
		{Type: uistream.ChunkTextDelta, ID: "txt_0", Delta: "You said: "},
		{Type: uistream.ChunkTextDelta, ID: "txt_0", Delta: query},
		{Type: uistream.ChunkTextEnd, ID: "txt_0"},
		{Type: uistream.ChunkFinishStep},
	}
}

// ToolResponder calls a lookup tool before answering, producing an
// intermediate and a final assistant message.
func ToolResponder(query string) []uistream.Chunk {
	input, _ := json.Marshal(map[string]string{"query": query})
	return []uistream.Chunk{
		{Type: uistream.ChunkStartStep},
		{Type: uistream.ChunkToolInputStart, ToolCallID: "call_0", ToolName: "search_portfolio"},
		{Type: uistream.ChunkToolInputDelta, ToolCallID: "call_0", InputTextDelta: string(input[:len(input)/2])},
		{Type: uistream.ChunkToolInputDelta, ToolCallID: "call_0", InputTextDelta: string(input[len(input)/2:])},
		{Type: uistream.ChunkToolInputAvailable, ToolCallID: "call_0", ToolName: "search_portfolio", Input: input},
		{Type: uistream.ChunkToolOutputAvailable, ToolCallID: "call_0", Output: types.TextOutput("3 projects found")},
		{Type: uistream.ChunkFinishStep},
		{Type: uistream.ChunkStartStep},
		{Type: uistream.ChunkTextStart, ID: "txt_1"},
		{Type: uistream.ChunkTextDelta, ID: "txt_1", Delta: "Here are the projects."},
		{Type: uistream.ChunkTextEnd, ID: "txt_1"},
		{Type: uistream.ChunkFinishStep},
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req uistream.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.QueryMessage.Query) == "" {
		writeError(w, http.StatusBadRequest, "query_message.query is required")
		return
	}

	s.mu.Lock()
	var rec *sessionRecord
	if req.SessionID != "" {
		rec = s.sessions[types.SessionID(req.SessionID)]
		if rec == nil {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
	} else {
		rec = s.addSessionLocked(types.CookieID(req.CookieID), sessionName(req.QueryMessage.Query))
	}
	turn := rec.session.LatestTurnNumber + 1
	rec.messages = append(rec.messages, types.Message{
		ID:         types.MessageID(req.QueryMessage.ID),
		Role:       types.RoleHuman,
		Content:    req.QueryMessage.Query,
		TurnNumber: turn,
		Order:      len(rec.messages),
		CreatedAt:  types.Timestamp{Time: s.tick()},
	})

	body := s.responder(req.QueryMessage.Query)
	answerID := types.MessageID("msg_" + types.NewHexID(12))
	var text strings.Builder
	for _, c := range body {
		switch c.Type {
		case uistream.ChunkTextDelta:
			text.WriteString(c.Delta)
		case uistream.ChunkToolOutputAvailable, uistream.ChunkToolOutputError:
			out := c.ErrorText
			if c.Type == uistream.ChunkToolOutputAvailable {
				out = (&types.ToolResultPart{Output: c.Output}).OutputText()
			}
			rec.messages = append(rec.messages, types.Message{
				ID:         types.MessageID("msg_" + types.NewHexID(12)),
				Role:       types.RoleTool,
				ToolCallID: c.ToolCallID,
				Content:    out,
				Error:      c.Type == uistream.ChunkToolOutputError,
				TurnNumber: turn,
				Order:      len(rec.messages),
				CreatedAt:  types.Timestamp{Time: s.tick()},
			})
		}
	}
	rec.messages = append(rec.messages, types.Message{
		ID:         answerID,
		Role:       types.RoleAI,
		Content:    text.String(),
		TurnNumber: turn,
		Order:      len(rec.messages),
		CreatedAt:  types.Timestamp{Time: s.tick()},
	})
	rec.session.LatestTurnNumber = turn
	rec.session.UpdatedAt = types.Timestamp{Time: s.tick()}
	sess := rec.session
	s.mu.Unlock()

	sessJSON, _ := json.Marshal(sess)
	meta, _ := json.Marshal(uistream.Metadata{TurnNumber: turn, SessionID: string(sess.ID)})

	uistream.SetHeaders(w.Header())
	enc := uistream.NewEncoder(w)
	enc.Encode(uistream.Chunk{Type: uistream.ChunkStart, MessageID: string(answerID), MessageMetadata: meta})
	for _, c := range body {
		if err := enc.Encode(c); err != nil {
			return
		}
	}
	enc.Encode(uistream.Chunk{Type: uistream.ChunkDataSession, Data: sessJSON})
	enc.Encode(uistream.Chunk{Type: uistream.ChunkFinish, MessageMetadata: meta})
	enc.Done()
}

func sessionName(query string) string {
	name := strings.TrimSpace(query)
	if r := []rune(name); len(r) > 40 {
		name = string(r[:40])
	}
	return name
}
