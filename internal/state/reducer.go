// internal/state/reducer.go
package state

import (
	"slices"

	"github.com/user/foliochat/internal/types"
)

// TemporarySessionName is the display name of a session before the backend
// names it.
const TemporarySessionName = "New Chat"

// Reduce returns the state that results from applying a to s. It never
// mutates s and never fails; unknown actions return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Hydrate:
		if a.User != nil {
			u := *a.User
			s.User = &u
		}
		if a.Sessions != nil {
			s = replaceSessions(s, a.Sessions)
		}

	case SessionsRequested:
		s.Loading.Sessions = true
		s.Errors.Sessions = ""

	case SessionsLoaded:
		s.Loading.Sessions = false
		if a.Page == nil {
			break
		}
		s.Errors.Sessions = ""
		if a.Page.Page <= 1 {
			s = replaceSessions(s, a.Page)
			break
		}
		merged := slices.Clone(s.Sessions)
		for _, sess := range a.Page.Results {
			if indexOfSession(merged, sess.ID) < 0 {
				merged = append(merged, sess)
			}
		}
		s.Sessions = merged
		s.SessionsPagination = paginationOf(a.Page)

	case SessionsFailed:
		s.Loading.Sessions = false
		s.Errors.Sessions = a.Err

	case SetCurrentSession:
		s = resetMessages(s)
		if a.Session == nil {
			s.Current = nil
			break
		}
		cur := *a.Session
		s.Current = &cur
		s.SessionNotFound = false

	case MessagesRequested:
		if a.Epoch != s.MessagesEpoch {
			break
		}
		s.Loading.Messages = true
		s.Errors.Messages = ""

	case MessagesHydrated:
		if !s.acceptsMessages(a.Epoch, a.SessionID) || a.Page == nil {
			break
		}
		s.Messages = cloneMessages(a.Page.Results)
		s.MessagesPagination = paginationOf(a.Page)
		s.Loading.Messages = false
		s.Errors.Messages = ""

	case MessagesPageAppended:
		if !s.acceptsMessages(a.Epoch, a.SessionID) || a.Page == nil {
			break
		}
		older := make([]types.Message, 0, len(a.Page.Results)+len(s.Messages))
		for _, m := range a.Page.Results {
			if indexOfMessage(s.Messages, m.ID) < 0 && indexOfMessage(older, m.ID) < 0 {
				older = append(older, m.Clone())
			}
		}
		s.Messages = append(older, s.Messages...)
		s.MessagesPagination = paginationOf(a.Page)
		s.Loading.Messages = false
		s.Errors.Messages = ""

	case MessagesFailed:
		if a.Epoch != s.MessagesEpoch {
			break
		}
		s.Loading.Messages = false
		s.Errors.Messages = a.Err

	case ResetMessages:
		s = resetMessages(s)

	case StartTemporarySession:
		s = resetMessages(s)
		s.SessionNotFound = false
		if s.Current != nil && s.Current.Temporary {
			break
		}
		s.Current = &types.Session{ID: a.ID, Name: TemporarySessionName, Temporary: true}

	case PromoteTemporarySession:
		sess := a.Session
		sess.Temporary = false
		if i := indexOfSession(s.Sessions, sess.ID); i >= 0 {
			s.Sessions = slices.Clone(s.Sessions)
			s.Sessions[i] = sess
		} else {
			s.Sessions = append([]types.Session{sess}, s.Sessions...)
			s.SessionsPagination.TotalCount++
		}
		if s.Current != nil && s.Current.ID == a.TemporaryID {
			cur := sess
			s.Current = &cur
		}

	case UpdateSessionName:
		s = updateSession(s, a.ID, func(sess *types.Session) { sess.Name = a.Name })

	case UpdateSessionStarred:
		s = updateSession(s, a.ID, func(sess *types.Session) { sess.Starred = a.Starred })

	case RemoveSession:
		if i := indexOfSession(s.Sessions, a.ID); i >= 0 {
			s.Sessions = slices.Delete(slices.Clone(s.Sessions), i, i+1)
			if s.SessionsPagination.TotalCount > 0 {
				s.SessionsPagination.TotalCount--
			}
		}
		if s.Current != nil && s.Current.ID == a.ID {
			s = resetMessages(s)
			s.Current = nil
		}

	case RestoreSession:
		if indexOfSession(s.Sessions, a.Session.ID) >= 0 {
			break
		}
		idx := min(max(a.Index, 0), len(s.Sessions))
		s.Sessions = slices.Insert(slices.Clone(s.Sessions), idx, a.Session)
		s.SessionsPagination.TotalCount++

	case ClearAllSessions:
		s = resetMessages(s)
		s.Sessions = nil
		s.SessionsPagination = firstPage(s.SessionsPagination.PageSize)
		s.Current = nil

	case RestoreSessions:
		snap := a.Snapshot
		s.Sessions = slices.Clone(snap.Sessions)
		s.SessionsPagination = snap.SessionsPagination
		if s.Current == nil || (s.Current.Temporary && len(s.Messages) == 0) {
			s = resetMessages(s)
			s.Current = snap.Current
			s.Messages = cloneMessages(snap.Messages)
			s.MessagesPagination = snap.MessagesPagination
		}

	case CommitTurn:
		if s.Current == nil || s.Current.ID != a.SessionID {
			break
		}
		next := 0
		for _, m := range s.Messages {
			next = max(next, m.Order+1)
		}
		msgs := slices.Clone(s.Messages)
		turn := s.Current.LatestTurnNumber
		added := 0
		for _, m := range a.Messages {
			if indexOfMessage(msgs, m.ID) >= 0 {
				continue
			}
			m = m.Clone()
			m.Order = next
			next++
			if m.TurnNumber == 0 {
				m.TurnNumber = s.Current.LatestTurnNumber + 1
			}
			turn = max(turn, m.TurnNumber)
			msgs = append(msgs, m)
			added++
		}
		s.Messages = msgs
		s.MessagesPagination.TotalCount += added
		s = updateSession(s, a.SessionID, func(sess *types.Session) { sess.LatestTurnNumber = turn })

	case SetMessageFeedback:
		i := indexOfMessage(s.Messages, a.ID)
		if i < 0 {
			break
		}
		s.Messages = slices.Clone(s.Messages)
		s.Messages[i].Feedback = a.Feedback

	case SetViewport:
		wasSmall := s.Responsive.Small()
		s.Responsive = responsiveFor(a.Width)
		if s.Responsive.Small() && !wasSmall {
			s.NavCollapsed = true
		}

	case SetNavCollapsed:
		s.NavCollapsed = a.Collapsed

	case MarkSessionNotFound:
		s.SessionNotFound = true

	case Reset:
		next := Initial(s.SessionsPagination.PageSize)
		next.Responsive = s.Responsive
		next.NavCollapsed = s.NavCollapsed
		next.MessagesEpoch = s.MessagesEpoch + 1
		s = next
	}
	return s
}

func (s State) acceptsMessages(epoch uint64, id types.SessionID) bool {
	return epoch == s.MessagesEpoch && s.Current != nil && s.Current.ID == id
}

func replaceSessions(s State, page *types.SessionsPage) State {
	results := page.Results
	if page.PageSize > 0 && len(results) > page.PageSize {
		results = results[:page.PageSize]
	}
	s.Sessions = slices.Clone(results)
	s.SessionsPagination = paginationOf(page)
	return s
}

func resetMessages(s State) State {
	s.Messages = nil
	s.MessagesPagination = firstPage(s.MessagesPagination.PageSize)
	s.MessagesEpoch++
	s.Loading.Messages = false
	s.Errors.Messages = ""
	return s
}

func updateSession(s State, id types.SessionID, fn func(*types.Session)) State {
	if i := indexOfSession(s.Sessions, id); i >= 0 {
		s.Sessions = slices.Clone(s.Sessions)
		fn(&s.Sessions[i])
	}
	if s.Current != nil && s.Current.ID == id {
		cur := *s.Current
		fn(&cur)
		s.Current = &cur
	}
	return s
}

func indexOfSession(list []types.Session, id types.SessionID) int {
	return slices.IndexFunc(list, func(s types.Session) bool { return s.ID == id })
}

func indexOfMessage(list []types.Message, id types.MessageID) int {
	return slices.IndexFunc(list, func(m types.Message) bool { return m.ID == id })
}

func cloneMessages(list []types.Message) []types.Message {
	if list == nil {
		return nil
	}
	out := make([]types.Message, len(list))
	for i, m := range list {
		out[i] = m.Clone()
	}
	return out
}
