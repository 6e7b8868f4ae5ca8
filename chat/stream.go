package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/models"
)

// DefaultCorrelationWindow is how long an optimistic message waits for its echo
const DefaultCorrelationWindow = 30 * time.Second

// StreamState is the lifecycle state of a Stream
type StreamState int

// Stream states
const (
	Unselected StreamState = iota
	Loading
	Ready
	Failed
	Unsubscribed
)

func (s StreamState) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	case Unsubscribed:
		return "unsubscribed"
	}
	return "unknown"
}

// Stream keeps the visible message list of the selected conversation: the
// history loaded at selection followed by every push received since.
type Stream struct {
	conn   *Connection
	api    *API
	dir    *Directory
	window time.Duration
	log    *zap.SugaredLogger
	now    func() time.Time

	mu             sync.Mutex
	state          StreamState
	conversationID string
	joined         string
	token          uint64
	messages       []Message
	buffered       []Message
	pending        map[string]time.Time
	typing         bool
	err            error

	lmu       sync.Mutex
	onChange  []func([]Message)
	typingFns []func(bool)
	removers  []func()
}

// NewStream creates a Stream fed by conn. dir may be nil; when set, every
// observed message also updates the conversation previews.
func NewStream(conn *Connection, api *API, dir *Directory, log *zap.SugaredLogger) *Stream {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Stream{
		conn:    conn,
		api:     api,
		dir:     dir,
		window:  DefaultCorrelationWindow,
		log:     log,
		now:     time.Now,
		pending: make(map[string]time.Time),
	}
	removers := []func(){
		conn.On(models.EventReceiveMessage, s.onReceive),
		conn.On(models.EventConversationActivity, s.onActivity),
		conn.On(models.EventUserTyping, s.onUserTyping),
	}
	s.lmu.Lock()
	s.removers = removers
	s.lmu.Unlock()
	return s
}

// SetCorrelationWindow changes how long optimistic messages wait for their echo
func (s *Stream) SetCorrelationWindow(d time.Duration) {
	s.mu.Lock()
	s.window = d
	s.mu.Unlock()
}

// Select makes conversationID the visible conversation. The previous room is
// left, the new one joined and its history loaded. A load overtaken by a newer
// Select returns ErrSuperseded and leaves the view alone.
func (s *Stream) Select(ctx context.Context, cred Credential, conversationID string) error {
	if conversationID == "" {
		return ErrNoConversation
	}

	s.mu.Lock()
	if s.state == Unsubscribed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.token++
	tok := s.token
	prev := s.joined
	s.conversationID = conversationID
	s.joined = conversationID
	s.state = Loading
	s.messages = nil
	s.buffered = nil
	s.pending = make(map[string]time.Time)
	s.typing = false
	s.err = nil
	s.mu.Unlock()
	s.changed()

	if prev != "" {
		if err := s.conn.Emit(models.EventLeaveConversation, models.ConversationPayload{ConversationID: prev}); err != nil {
			s.log.Warnw("failed to leave conversation", "conversationID", prev, "error", err)
		}
	}
	if err := s.conn.Emit(models.EventJoinConversation, models.ConversationPayload{ConversationID: conversationID}); err != nil {
		s.log.Warnw("failed to join conversation", "conversationID", conversationID, "error", err)
	}

	history, err := s.api.Messages(ctx, cred.Token, conversationID)

	s.mu.Lock()
	if s.token != tok {
		s.mu.Unlock()
		s.log.Debugw("discarding stale history", "conversationID", conversationID)
		return ErrSuperseded
	}
	if err != nil {
		s.state = Failed
		s.err = err
		s.messages = nil
		s.buffered = nil
		s.mu.Unlock()
		s.log.Errorw("failed to load messages", "conversationID", conversationID, "error", err)
		s.changed()
		return err
	}
	s.messages = mergeHistory(history, s.buffered)
	s.buffered = nil
	s.state = Ready
	s.mu.Unlock()

	if s.dir != nil {
		s.dir.MarkRead(conversationID)
	}
	s.changed()
	return nil
}

// mergeHistory appends what arrived during the load to history, skipping
// anything history already holds
func mergeHistory(history, buffered []Message) []Message {
	ids := make(map[string]bool, len(history))
	corr := make(map[string]bool)
	for _, m := range history {
		ids[m.ID] = true
		if m.CorrelationID != "" {
			corr[m.CorrelationID] = true
		}
	}
	out := append([]Message{}, history...)
	for _, m := range buffered {
		if ids[m.ID] || (m.Pending() && corr[m.CorrelationID]) {
			continue
		}
		ids[m.ID] = true
		out = append(out, m)
	}
	return out
}

// AppendLocal adds an optimistic message to the selected conversation
func (s *Stream) AppendLocal(m Message) error {
	s.mu.Lock()
	if m.ConversationID == "" || m.ConversationID != s.conversationID || (s.state != Loading && s.state != Ready) {
		s.mu.Unlock()
		return ErrNoConversation
	}
	if m.CorrelationID != "" {
		s.pending[m.CorrelationID] = s.now()
	}
	if s.state == Loading {
		s.buffered = append(s.buffered, m)
		s.mu.Unlock()
	} else {
		s.messages = append(s.messages, m)
		s.mu.Unlock()
		s.changed()
	}

	if s.dir != nil {
		s.dir.ObservePush(m, true)
	}
	return nil
}

// Unsubscribe leaves the joined room and drops the visible list. The stream
// stays Unsubscribed until Reset.
func (s *Stream) Unsubscribe() {
	s.mu.Lock()
	joined := s.joined
	s.token++
	s.state = Unsubscribed
	s.conversationID = ""
	s.joined = ""
	s.messages = nil
	s.buffered = nil
	s.typing = false
	s.mu.Unlock()

	if joined != "" && s.conn.Connected() {
		_ = s.conn.Emit(models.EventLeaveConversation, models.ConversationPayload{ConversationID: joined})
	}
	s.changed()
}

// Reset returns an unsubscribed stream to Unselected
func (s *Stream) Reset() {
	s.mu.Lock()
	s.token++
	s.state = Unselected
	s.conversationID = ""
	s.joined = ""
	s.messages = nil
	s.buffered = nil
	s.err = nil
	s.typing = false
	s.mu.Unlock()
	s.changed()
}

// Close detaches the stream from its connection
func (s *Stream) Close() {
	s.lmu.Lock()
	removers := s.removers
	s.removers = nil
	s.lmu.Unlock()

	for _, remove := range removers {
		remove()
	}
}

// Messages returns a copy of the visible list
func (s *Stream) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// State returns the current lifecycle state
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed history load
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ConversationID returns the selected conversation
func (s *Stream) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// CounterpartTyping reports whether the other participant is typing
func (s *Stream) CounterpartTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// OnChange registers fn to be called with the visible list whenever it changes
func (s *Stream) OnChange(fn func([]Message)) {
	s.lmu.Lock()
	s.onChange = append(s.onChange, fn)
	s.lmu.Unlock()
}

// OnTyping registers fn to be called when the counterpart starts or stops typing
func (s *Stream) OnTyping(fn func(bool)) {
	s.lmu.Lock()
	s.typingFns = append(s.typingFns, fn)
	s.lmu.Unlock()
}

func (s *Stream) onReceive(data json.RawMessage) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.Warnw("dropping malformed message push", "error", err)
		return
	}

	s.mu.Lock()
	active := m.ConversationID == s.conversationID && (s.state == Loading || s.state == Ready)
	if !active {
		s.mu.Unlock()
		if s.dir != nil {
			s.dir.ObservePush(m, false)
		}
		return
	}

	visible := s.state == Ready
	if visible {
		s.messages = s.merge(s.messages, m)
	} else {
		s.buffered = s.merge(s.buffered, m)
	}
	s.mu.Unlock()

	if visible {
		s.changed()
	}
	if s.dir != nil {
		s.dir.ObservePush(m, true)
	}
}

// merge replaces the optimistic copy m echoes, or appends m. Caller holds s.mu.
func (s *Stream) merge(list []Message, m Message) []Message {
	if m.CorrelationID != "" {
		if at, ok := s.pending[m.CorrelationID]; ok {
			delete(s.pending, m.CorrelationID)
			if s.now().Sub(at) <= s.window {
				for i := range list {
					if list[i].Pending() && list[i].CorrelationID == m.CorrelationID {
						m.Attachment = list[i].Attachment
						list[i] = m
						return list
					}
				}
			}
		}
	}
	if s.state == Loading {
		for _, b := range list {
			if b.ID == m.ID {
				return list
			}
		}
	}
	return append(list, m)
}

func (s *Stream) onActivity(data json.RawMessage) {
	if s.dir == nil {
		return
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.Warnw("dropping malformed activity push", "error", err)
		return
	}
	s.mu.Lock()
	active := m.ConversationID == s.conversationID && (s.state == Loading || s.state == Ready)
	s.mu.Unlock()
	// the selected conversation is covered by receiveMessage
	if active {
		return
	}
	s.dir.ObservePush(m, false)
}

func (s *Stream) onUserTyping(data json.RawMessage) {
	var p models.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Warnw("dropping malformed typing push", "error", err)
		return
	}
	s.mu.Lock()
	if p.ConversationID != "" && p.ConversationID != s.conversationID {
		s.mu.Unlock()
		return
	}
	changed := s.typing != p.IsTyping
	s.typing = p.IsTyping
	s.mu.Unlock()

	if !changed {
		return
	}
	s.lmu.Lock()
	fns := append(([]func(bool))(nil), s.typingFns...)
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(p.IsTyping)
	}
}

func (s *Stream) changed() {
	msgs := s.Messages()
	s.lmu.Lock()
	fns := append(([]func([]Message))(nil), s.onChange...)
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(msgs)
	}
}
