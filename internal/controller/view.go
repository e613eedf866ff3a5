package controller

import (
	"slices"

	"github.com/user/foliochat/internal/chat"
	"github.com/user/foliochat/internal/state"
	"github.com/user/foliochat/internal/types"
)

// View is what a chat screen renders: the store snapshot plus the live
// turn, merged.
type View struct {
	State state.State
	// Messages is the stored history followed by live messages not yet
	// committed, without duplicates.
	Messages []types.Message
	Status   chat.Status
	// Err is the failure of the live turn, if any.
	Err string
	// Placeholder asks for a generating indicator in place of the reply.
	Placeholder bool
	// ReserveSpace asks to keep room for the last message while it settles.
	ReserveSpace     bool
	FeedbackEligible map[types.MessageID]bool
}

// View returns the current merged view.
func (c *Controller) View() View {
	st := c.store.State()
	snap := c.chat.Snapshot()

	msgs := slices.Clone(st.Messages)
	if st.Current != nil && snap.SessionID == st.Current.ID {
		for _, m := range snap.Messages {
			if !slices.ContainsFunc(msgs, func(x types.Message) bool { return x.ID == m.ID }) {
				msgs = append(msgs, m)
			}
		}
	}

	return View{
		State:            st,
		Messages:         msgs,
		Status:           snap.Status,
		Err:              snap.Err,
		Placeholder:      chat.ShowPlaceholder(msgs, snap.Status),
		ReserveSpace:     chat.ReserveSpace(snap.Status),
		FeedbackEligible: chat.FeedbackEligible(msgs),
	}
}

// Subscribe calls fn with a fresh View after every change. fn must not
// call back into the Controller synchronously. The returned func removes
// it.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.listeners) == 0 {
		c.mu.Unlock()
		return
	}
	listeners := make([]func(View), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	view := c.View()
	for _, l := range listeners {
		l(view)
	}
}
