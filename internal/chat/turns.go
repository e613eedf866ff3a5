package chat

import "github.com/user/foliochat/internal/types"

// Turn is one user message and everything produced in response to it.
type Turn struct {
	Number   int
	Messages []types.Message
}

// startsTurn reports whether m opens a new turn after a turn numbered cur.
func startsTurn(m types.Message, cur int, first bool) bool {
	if first || m.Role.IsUser() {
		return true
	}
	return m.TurnNumber != 0 && cur != 0 && m.TurnNumber != cur
}

// GroupTurns splits an ordered message list into turns. A turn starts at
// each user message or when the turn number changes.
func GroupTurns(msgs []types.Message) []Turn {
	var turns []Turn
	for i, m := range msgs {
		if len(turns) == 0 || startsTurn(m, turns[len(turns)-1].Number, false) {
			turns = append(turns, Turn{Number: m.TurnNumber})
		}
		t := &turns[len(turns)-1]
		if t.Number == 0 {
			t.Number = m.TurnNumber
		}
		t.Messages = append(t.Messages, msgs[i])
	}
	return turns
}

// FeedbackEligible returns the ids of the last assistant message of every
// turn. It walks the list once.
func FeedbackEligible(msgs []types.Message) map[types.MessageID]bool {
	eligible := make(map[types.MessageID]bool)
	last := -1
	cur := 0
	for i, m := range msgs {
		if startsTurn(m, cur, i == 0) {
			if last >= 0 {
				eligible[msgs[last].ID] = true
			}
			last = -1
			cur = m.TurnNumber
		}
		if cur == 0 {
			cur = m.TurnNumber
		}
		if m.Role.IsAssistant() {
			last = i
		}
	}
	if last >= 0 {
		eligible[msgs[last].ID] = true
	}
	return eligible
}

// ShowPlaceholder reports whether a "generating" placeholder should hold the
// space of the pending answer: a turn is in flight and no assistant text
// has arrived since the last user message.
func ShowPlaceholder(msgs []types.Message, status Status) bool {
	if status != StatusSubmitted && status != StatusStreaming {
		return false
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role.IsUser() {
			return true
		}
		if m.Role.IsAssistant() && m.HasText() {
			return false
		}
	}
	return false
}

// ReserveSpace reports whether the layout should keep room below the last
// message.
func ReserveSpace(status Status) bool {
	return status == StatusSubmitted || status == StatusStreaming || status == StatusReady
}
