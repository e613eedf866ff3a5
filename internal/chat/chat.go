// Package chat adapts the streaming chat endpoint to the session model. It
// turns a send intent into one streamed turn and merges incoming chunks
// into user and assistant messages.
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/foliochat/internal/types"
	"github.com/user/foliochat/pkg/uistream"
)

// Status is the state of the active turn.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a response is still streaming")
)

// Streamer opens one streamed chat turn.
type Streamer interface {
	Stream(ctx context.Context, req *uistream.Request) (<-chan uistream.Chunk, error)
}

// Snapshot is a copy of the adapter state.
type Snapshot struct {
	SessionID types.SessionID
	Status    Status
	Messages  []types.Message
	Err       string
	Epoch     uint64
}

// Options wires the adapter to its consumer. Hooks run without internal
// locks held and only for the epoch that is current when they fire.
type Options struct {
	Cookie types.CookieID
	Logger *zap.Logger

	// OnUpdate receives a snapshot after every change.
	OnUpdate func(Snapshot)
	// OnSession fires when the backend reports the persisted session of
	// the turn. epoch is the adapter epoch the chunk belonged to; compare
	// it with Epoch to detect a Switch that ran in between.
	OnSession func(sess types.Session, epoch uint64)
	// OnFinish receives the messages of a completed turn before they are
	// dropped from the live list.
	OnFinish func(types.SessionID, []types.Message)
}

// Chat is the streaming transport adapter for one chat view.
type Chat struct {
	streamer Streamer
	opts     Options
	logger   *zap.Logger

	mu         sync.Mutex
	epoch      uint64
	sessionID  types.SessionID
	latestTurn int
	status     Status
	messages   []types.Message
	err        string
	turn       *turnState
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates an idle adapter.
func New(streamer Streamer, opts Options) *Chat {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chat{
		streamer: streamer,
		opts:     opts,
		logger:   logger,
		status:   StatusIdle,
	}
}

// Switch retargets the adapter to another session. Any in-flight turn is
// canceled and its remaining chunks are ignored.
func (c *Chat) Switch(sessionID types.SessionID, latestTurn int) {
	c.mu.Lock()
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.sessionID = sessionID
	c.latestTurn = latestTurn
	c.status = StatusIdle
	c.messages = nil
	c.err = ""
	c.turn = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Send starts a turn for text. It returns once the request is under way;
// use Wait to block until the turn ends.
func (c *Chat) Send(ctx context.Context, text string) (types.MessageID, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return "", ErrEmptyMessage
	}

	c.mu.Lock()
	if c.status == StatusSubmitted || c.status == StatusStreaming {
		c.mu.Unlock()
		return "", ErrBusy
	}
	if c.status == StatusError {
		c.messages = nil
	}
	id := types.NewQueryID()
	turn := c.latestTurn + 1
	c.messages = append(slices.Clone(c.messages), types.Message{
		ID:         id,
		Role:       types.RoleUser,
		Content:    query,
		TurnNumber: turn,
		CreatedAt:  types.Timestamp{Time: time.Now().UTC()},
		Parts:      []types.Part{&types.TextPart{Text: query, Done: true}},
	})
	req := &uistream.Request{
		QueryMessage: uistream.QueryMessage{Query: query, ID: string(id)},
		CookieID:     string(c.opts.Cookie),
	}
	if c.sessionID != "" && !c.sessionID.IsTemporary() {
		req.SessionID = string(c.sessionID)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.status = StatusSubmitted
	c.err = ""
	c.turn = newTurnState(turn, len(c.messages)-1)
	c.done = make(chan struct{})
	epoch := c.epoch
	done := c.done
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snap)
	go c.run(streamCtx, cancel, epoch, req, done)
	return id, nil
}

// Stop cancels the in-flight turn. Content received so far is kept and
// handed over as a completed turn.
func (c *Chat) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Wait blocks until the current turn ends or ctx is done.
func (c *Chat) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current state.
func (c *Chat) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Epoch returns the current epoch. Every Switch advances it.
func (c *Chat) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Status returns the status of the active turn.
func (c *Chat) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Chat) snapshotLocked() Snapshot {
	msgs := make([]types.Message, len(c.messages))
	for i, m := range c.messages {
		msgs[i] = m.Clone()
	}
	return Snapshot{
		SessionID: c.sessionID,
		Status:    c.status,
		Messages:  msgs,
		Err:       c.err,
		Epoch:     c.epoch,
	}
}

func (c *Chat) emit(snap Snapshot) {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(snap)
	}
}

func (c *Chat) run(ctx context.Context, cancel context.CancelFunc, epoch uint64, req *uistream.Request, done chan struct{}) {
	defer close(done)
	defer cancel()

	stream, err := c.streamer.Stream(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("chat stream request failed", zap.String("session_id", req.SessionID), zap.Error(err))
		}
		c.fail(epoch, err.Error())
		return
	}
	for chunk := range stream {
		if !c.apply(epoch, chunk) {
			cancel()
		}
	}
	c.complete(epoch)
}

// apply merges one chunk. It returns false once the epoch is stale.
func (c *Chat) apply(epoch uint64, chunk uistream.Chunk) bool {
	c.mu.Lock()
	if epoch != c.epoch || c.turn == nil {
		c.mu.Unlock()
		c.logger.Debug("dropping stale chat chunk", zap.String("type", chunk.Type))
		return false
	}
	var promoted *types.Session
	switch {
	case chunk.Type == uistream.ChunkError:
		c.status = StatusError
		c.err = chunk.ErrorText
	case chunk.Type == uistream.ChunkDataSession:
		var sess types.Session
		if err := jsonUnmarshal(chunk.Data, &sess); err != nil {
			c.logger.Warn("invalid session chunk", zap.Error(err))
			break
		}
		c.sessionID = sess.ID
		promoted = &sess
	default:
		c.messages = c.turn.merge(c.messages, chunk)
		if c.status == StatusSubmitted && c.turn.hasAssistant() {
			c.status = StatusStreaming
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if promoted != nil && c.opts.OnSession != nil {
		c.opts.OnSession(*promoted, epoch)
	}
	c.emit(snap)
	return true
}

func (c *Chat) fail(epoch uint64, msg string) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.status = StatusError
	c.err = msg
	c.cancel = nil
	c.turn = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// complete ends the turn. Successful turns are handed to OnFinish and then
// leave the live list; failed turns stay visible with the error.
func (c *Chat) complete(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	if c.turn != nil {
		c.latestTurn = max(c.latestTurn, c.turn.number)
	}
	c.turn = nil
	if c.status == StatusError {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.emit(snap)
		return
	}
	sessionID := c.sessionID
	finished := c.snapshotLocked().Messages
	c.mu.Unlock()

	if c.opts.OnFinish != nil && len(finished) > 0 {
		c.opts.OnFinish(sessionID, finished)
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.status = StatusReady
	c.messages = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}
