// Package controller sequences the backend work that keeps the chat store
// correct while the user navigates and edits sessions. It owns the
// temporary session and ties the streaming adapter to the store.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/foliochat/internal/chat"
	"github.com/user/foliochat/internal/state"
	"github.com/user/foliochat/internal/types"
)

var (
	ErrInvalidName = errors.New("session name must not be empty")
	ErrNoUser      = errors.New("no user is known for this visitor")
	ErrNotEligible = errors.New("message does not accept feedback")
)

// allSessionsLane orders effects that touch every session.
const allSessionsLane = types.SessionID("*")

// Options configures a Controller.
type Options struct {
	Cookie   types.CookieID
	PageSize int
	// MaxConcurrentEffects bounds backend mutations running at once.
	MaxConcurrentEffects int64
	Retry                *RetryPolicy
	Logger               *zap.Logger
}

// BootstrapOptions describe the first load of a chat view.
type BootstrapOptions struct {
	// SessionID is the deep-linked session, if any.
	SessionID types.SessionID
	// NewVisitor skips every fetch; a fresh visitor has no data yet.
	NewVisitor bool
}

// Controller drives a state.Store from user intents and backend results.
type Controller struct {
	gateway  types.Gateway
	store    *state.Store
	chat     *chat.Chat
	queue    *Queue
	retry    *RetryPolicy
	logger   *zap.Logger
	cookie   types.CookieID
	pageSize int

	unsubscribe func()

	// navMu serializes changes of the current session with adapter
	// retargeting. navGen counts navigations; a fetch started under an
	// older generation must not change the current session.
	navMu  sync.Mutex
	navGen uint64

	mu        sync.Mutex
	failures  []error
	listeners map[int]func(View)
	nextID    int
}

// New creates a Controller. Close releases its background workers.
func New(gateway types.Gateway, streamer chat.Streamer, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = state.DefaultPageSize
	}
	retry := opts.Retry
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	maxEffects := opts.MaxConcurrentEffects
	if maxEffects <= 0 {
		maxEffects = 4
	}

	c := &Controller{
		gateway:   gateway,
		store:     state.NewStore(state.Initial(pageSize)),
		queue:     NewQueue(maxEffects, logger),
		retry:     retry,
		logger:    logger,
		cookie:    opts.Cookie,
		pageSize:  pageSize,
		listeners: make(map[int]func(View)),
	}
	c.chat = chat.New(streamer, chat.Options{
		Cookie:    opts.Cookie,
		Logger:    logger,
		OnUpdate:  func(chat.Snapshot) { c.notify() },
		OnSession: c.promote,
		OnFinish:  c.commit,
	})
	c.queue.Start(context.Background())
	c.unsubscribe = c.store.Subscribe(func(state.State) { c.notify() })
	return c
}

// State returns the current store snapshot.
func (c *Controller) State() state.State {
	return c.store.State()
}

// Bootstrap performs the first load. The user, the first sessions page and,
// for a deep link, the session record and its first messages page are
// fetched concurrently; a failed fetch is logged and the rest still apply.
// Afterwards a session is selected: the deep-linked one, else the most
// recent one, else a new temporary session.
func (c *Controller) Bootstrap(ctx context.Context, opts BootstrapOptions) error {
	gen := c.generation()
	if opts.NewVisitor {
		c.logger.Debug("new visitor, skipping bootstrap fetch")
		c.NewChat()
		return nil
	}

	var (
		detail      *types.Session
		detailErr   error
		messages    *types.MessagesPage
		messagesErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := c.gateway.GetUser(gctx, c.cookie)
		if err != nil {
			c.logFetch("user", "", err)
			return nil
		}
		c.store.Dispatch(state.Hydrate{User: user})
		return nil
	})
	g.Go(func() error {
		page, err := c.gateway.ListSessions(gctx, c.cookie, 1, c.pageSize)
		if err != nil {
			c.logFetch("sessions", "", err)
			c.store.Dispatch(state.SessionsFailed{Err: err.Error()})
			return nil
		}
		c.store.Dispatch(state.Hydrate{Sessions: page})
		return nil
	})
	if opts.SessionID != "" {
		g.Go(func() error {
			detail, detailErr = c.gateway.GetSession(gctx, opts.SessionID)
			if detailErr != nil {
				c.logFetch("session", opts.SessionID, detailErr)
			}
			return nil
		})
		g.Go(func() error {
			messages, messagesErr = c.gateway.ListMessages(gctx, opts.SessionID, 1, c.pageSize)
			if messagesErr != nil {
				c.logFetch("messages", opts.SessionID, messagesErr)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	if opts.SessionID == "" {
		return c.selectDefault(ctx)
	}

	if errors.Is(detailErr, types.ErrNotFound) {
		c.markNotFound(gen, opts.SessionID)
		return nil
	}
	if detail == nil {
		known, ok := c.store.State().Session(opts.SessionID)
		if !ok {
			return nil
		}
		detail = &known
	}
	next, ok := c.setCurrentAt(gen, *detail)
	if !ok {
		return nil
	}
	if messages != nil {
		c.store.Dispatch(state.MessagesHydrated{Epoch: next.MessagesEpoch, SessionID: detail.ID, Page: messages})
	} else if messagesErr != nil {
		c.store.Dispatch(state.MessagesFailed{Epoch: next.MessagesEpoch, Err: messagesErr.Error()})
	}
	return nil
}

func (c *Controller) selectDefault(ctx context.Context) error {
	st := c.store.State()
	if st.Current != nil {
		return nil
	}
	if len(st.Sessions) == 0 {
		c.NewChat()
		return nil
	}
	return c.SelectSession(ctx, st.Sessions[0].ID)
}

// NewChat makes a temporary session current. An existing temporary session
// is reused. Navigation collapses on small viewports.
func (c *Controller) NewChat() types.SessionID {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	c.navGen++

	actions := []state.Action{state.StartTemporarySession{ID: types.NewTemporarySessionID()}}
	if c.store.State().Responsive.Small() {
		actions = append(actions, state.SetNavCollapsed{Collapsed: true})
	}
	next := c.store.Dispatch(actions...)
	c.chat.Switch(next.CurrentID(), 0)
	return next.CurrentID()
}

// SelectSession makes id current and loads its first messages page. A
// session missing from the backend puts the view in the not-found state
// and returns types.ErrNotFound.
func (c *Controller) SelectSession(ctx context.Context, id types.SessionID) error {
	gen := c.generation()
	sess, ok := c.store.State().Session(id)
	if !ok || sess.Temporary {
		found, err := c.gateway.GetSession(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			c.logger.Warn("session not found", zap.String("session_id", string(id)))
			c.markNotFound(gen, id)
			return err
		}
		if err != nil {
			c.logFetch("session", id, err)
			return err
		}
		sess = *found
	}

	next, ok := c.setCurrentAt(gen, sess)
	if !ok {
		return nil
	}
	if next.Responsive.Small() {
		c.store.Dispatch(state.SetNavCollapsed{Collapsed: true})
	}
	return c.loadMessages(ctx, next.MessagesEpoch, id, 1)
}

func (c *Controller) generation() uint64 {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	return c.navGen
}

// setCurrentAt makes sess current unless another navigation happened
// since gen was read.
func (c *Controller) setCurrentAt(gen uint64, sess types.Session) (state.State, bool) {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	if gen != c.navGen {
		c.logger.Debug("discarded stale session selection", zap.String("session_id", string(sess.ID)))
		return state.State{}, false
	}
	c.navGen++
	next := c.store.Dispatch(state.SetCurrentSession{Session: &sess})
	c.chat.Switch(sess.ID, sess.LatestTurnNumber)
	return next, true
}

func (c *Controller) markNotFound(gen uint64, id types.SessionID) {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	if gen != c.navGen {
		c.logger.Debug("discarded stale not-found result", zap.String("session_id", string(id)))
		return
	}
	c.store.Dispatch(state.MarkSessionNotFound{})
}

// LoadOlderMessages fetches the next older page of the current session.
// It is a no-op when there is nothing older or the session is temporary.
func (c *Controller) LoadOlderMessages(ctx context.Context) error {
	st := c.store.State()
	if st.Current == nil || st.Current.Temporary || !st.MessagesPagination.HasNext || st.Loading.Messages {
		return nil
	}
	return c.loadMessages(ctx, st.MessagesEpoch, st.Current.ID, st.MessagesPagination.Page+1)
}

func (c *Controller) loadMessages(ctx context.Context, epoch uint64, id types.SessionID, page int) error {
	c.store.Dispatch(state.MessagesRequested{Epoch: epoch})
	res, err := c.gateway.ListMessages(ctx, id, page, c.pageSize)
	if err != nil {
		c.logFetch("messages", id, err)
		c.store.Dispatch(state.MessagesFailed{Epoch: epoch, Err: err.Error()})
		return err
	}
	var next state.State
	if page <= 1 {
		next = c.store.Dispatch(state.MessagesHydrated{Epoch: epoch, SessionID: id, Page: res})
	} else {
		next = c.store.Dispatch(state.MessagesPageAppended{Epoch: epoch, SessionID: id, Page: res})
	}
	if next.MessagesEpoch != epoch || next.CurrentID() != id {
		c.logger.Debug("discarded stale messages page",
			zap.String("session_id", string(id)),
			zap.Int("page", page))
	}
	return nil
}

// RefreshSessions reloads the first sessions page.
func (c *Controller) RefreshSessions(ctx context.Context) error {
	return c.loadSessions(ctx, 1)
}

// LoadMoreSessions appends the next sessions page when one exists.
func (c *Controller) LoadMoreSessions(ctx context.Context) error {
	st := c.store.State()
	if !st.SessionsPagination.HasNext || st.Loading.Sessions {
		return nil
	}
	return c.loadSessions(ctx, st.SessionsPagination.Page+1)
}

func (c *Controller) loadSessions(ctx context.Context, page int) error {
	c.store.Dispatch(state.SessionsRequested{})
	res, err := c.gateway.ListSessions(ctx, c.cookie, page, c.pageSize)
	if err != nil {
		c.logFetch("sessions", "", err)
		c.store.Dispatch(state.SessionsFailed{Err: err.Error()})
		return err
	}
	c.store.Dispatch(state.SessionsLoaded{Page: res})
	return nil
}

// Rename applies the new name at once and reconciles it with the backend.
// A failed rename is rolled back unless the name changed again meanwhile.
func (c *Controller) Rename(id types.SessionID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	prev, ok := c.store.State().Session(id)
	if !ok || prev.Temporary {
		return types.ErrNotFound
	}
	c.store.Dispatch(state.UpdateSessionName{ID: id, Name: name})

	return c.enqueue(&Effect{
		Lane: id,
		Name: "rename",
		Run: func(ctx context.Context) error {
			var sess *types.Session
			err := c.retry.Execute(ctx, func(ctx context.Context) (err error) {
				sess, err = c.gateway.RenameSession(ctx, id, name)
				return err
			})
			if err != nil {
				return err
			}
			c.store.Dispatch(state.UpdateSessionName{ID: id, Name: sess.Name})
			return nil
		},
		OnError: func(error) {
			c.store.Update(func(s state.State) []state.Action {
				if cur, ok := s.Session(id); ok && cur.Name == name {
					return []state.Action{state.UpdateSessionName{ID: id, Name: prev.Name}}
				}
				return nil
			})
		},
	})
}

// SetStarred stars or unstars a session optimistically.
func (c *Controller) SetStarred(id types.SessionID, starred bool) error {
	prev, ok := c.store.State().Session(id)
	if !ok || prev.Temporary {
		return types.ErrNotFound
	}
	c.store.Dispatch(state.UpdateSessionStarred{ID: id, Starred: starred})

	return c.enqueue(&Effect{
		Lane: id,
		Name: "star",
		Run: func(ctx context.Context) error {
			var res *types.StarredResult
			err := c.retry.Execute(ctx, func(ctx context.Context) (err error) {
				res, err = c.gateway.SetSessionStarred(ctx, id, starred)
				return err
			})
			if err != nil {
				return err
			}
			c.store.Dispatch(state.UpdateSessionStarred{ID: id, Starred: res.Starred})
			return nil
		},
		OnError: func(error) {
			c.store.Update(func(s state.State) []state.Action {
				if cur, ok := s.Session(id); ok && cur.Starred == starred {
					return []state.Action{state.UpdateSessionStarred{ID: id, Starred: prev.Starred}}
				}
				return nil
			})
		},
	})
}

// Delete removes a session optimistically. Deleting the current session
// leaves the view on a new chat. A failed delete puts the session back.
func (c *Controller) Delete(id types.SessionID) error {
	st := c.store.State()
	sess, ok := st.Session(id)
	if !ok || sess.Temporary {
		return types.ErrNotFound
	}
	index := st.SessionIndex(id)
	c.store.Dispatch(state.RemoveSession{ID: id})
	if st.CurrentID() == id {
		c.NewChat()
	}

	return c.enqueue(&Effect{
		Lane: id,
		Name: "delete",
		Run: func(ctx context.Context) error {
			return c.retry.Execute(ctx, func(ctx context.Context) error {
				_, err := c.gateway.DeleteSession(ctx, id)
				return err
			})
		},
		OnError: func(error) {
			if index >= 0 {
				c.store.Dispatch(state.RestoreSession{Session: sess, Index: index})
			}
		},
	})
}

// DeleteAll removes every session of the user optimistically.
func (c *Controller) DeleteAll() error {
	snapshot := c.store.State()
	if snapshot.User == nil {
		return ErrNoUser
	}
	user := snapshot.User.ID
	c.store.Dispatch(state.ClearAllSessions{})
	c.NewChat()

	return c.enqueue(&Effect{
		Lane: allSessionsLane,
		Name: "delete_all",
		Run: func(ctx context.Context) error {
			return c.retry.Execute(ctx, func(ctx context.Context) error {
				_, err := c.gateway.DeleteAllSessions(ctx, user)
				return err
			})
		},
		OnError: func(error) {
			c.navMu.Lock()
			defer c.navMu.Unlock()
			c.navGen++
			next := c.store.Dispatch(state.RestoreSessions{Snapshot: snapshot})
			if cur := next.Current; cur != nil && !cur.Temporary && c.chat.Snapshot().SessionID != cur.ID {
				c.chat.Switch(cur.ID, cur.LatestTurnNumber)
			}
		},
	})
}

func (c *Controller) enqueue(e *Effect) error {
	onError := e.OnError
	e.OnError = func(err error) {
		if onError != nil {
			onError(err)
		}
		c.mu.Lock()
		c.failures = append(c.failures, fmt.Errorf("%s %s: %w", e.Name, e.Lane, err))
		c.mu.Unlock()
	}
	if err := c.queue.Enqueue(e); err != nil {
		e.OnError(err)
		return err
	}
	return nil
}

// Send starts a turn in the current session, creating a temporary session
// first when none is current. The streamed turn is committed to the store
// when it finishes.
func (c *Controller) Send(ctx context.Context, text string) (types.MessageID, error) {
	if c.store.State().Current == nil {
		c.NewChat()
	}
	return c.chat.Send(ctx, text)
}

// Stop ends the in-flight turn, keeping what has streamed so far.
func (c *Controller) Stop() {
	c.chat.Stop()
}

// Wait blocks until the in-flight turn ends.
func (c *Controller) Wait(ctx context.Context) error {
	return c.chat.Wait(ctx)
}

// promote replaces the temporary session with the persisted one. When the
// adapter has been retargeted since the chunk arrived, the session is only
// added to the collection.
func (c *Controller) promote(sess types.Session, epoch uint64) {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	c.store.Update(func(s state.State) []state.Action {
		tempID := types.SessionID("")
		if s.Current != nil && s.Current.Temporary && c.chat.Epoch() == epoch {
			tempID = s.Current.ID
		}
		return []state.Action{state.PromoteTemporarySession{TemporaryID: tempID, Session: sess}}
	})
}

func (c *Controller) commit(id types.SessionID, msgs []types.Message) {
	next := c.store.Dispatch(state.CommitTurn{SessionID: id, Messages: msgs})
	if next.CurrentID() != id {
		c.logger.Debug("finished turn no longer current", zap.String("session_id", string(id)))
	}
}

// SetFeedback toggles liked or disliked on a feedback-eligible message.
// Choosing the active value clears it; the two values exclude each other.
func (c *Controller) SetFeedback(id types.MessageID, fb types.Feedback) error {
	view := c.View()
	if !view.FeedbackEligible[id] {
		return ErrNotEligible
	}
	msg, ok := view.State.Message(id)
	if !ok {
		return ErrNotEligible
	}
	if msg.Feedback == fb {
		fb = types.FeedbackNone
	}
	c.store.Dispatch(state.SetMessageFeedback{ID: id, Feedback: fb})
	return nil
}

// Resize recomputes responsive state for a viewport width.
func (c *Controller) Resize(width int) {
	c.store.Dispatch(state.SetViewport{Width: width})
}

// ToggleNav flips the navigation chrome.
func (c *Controller) ToggleNav() {
	c.store.Update(func(s state.State) []state.Action {
		return []state.Action{state.SetNavCollapsed{Collapsed: !s.NavCollapsed}}
	})
}

// Flush waits for queued effects and returns the failures recorded since
// the previous Flush.
func (c *Controller) Flush(ctx context.Context) error {
	if err := c.queue.WaitIdle(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	failures := c.failures
	c.failures = nil
	c.mu.Unlock()
	return errors.Join(failures...)
}

// Close stops the in-flight turn and the effect workers.
func (c *Controller) Close() {
	c.chat.Stop()
	c.queue.Stop()
	c.unsubscribe()
}

func (c *Controller) logFetch(what string, id types.SessionID, err error) {
	fields := []zap.Field{zap.String("fetch", what), zap.Error(err)}
	if id != "" {
		fields = append(fields, zap.String("session_id", string(id)))
	}
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrUnauthorized) {
		c.logger.Warn("fetch returned no data", fields...)
		return
	}
	c.logger.Error("fetch failed", fields...)
}
