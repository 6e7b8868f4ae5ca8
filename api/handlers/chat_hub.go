package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/linesmerrill/primecare-chat/api"
	"github.com/linesmerrill/primecare-chat/databases"
	"github.com/linesmerrill/primecare-chat/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendQueueSize  = 64
	maxContentLen  = 4000

	// adminsRoom holds every connected care-team member
	adminsRoom = "admins"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	errForbidden   = errors.New("not a participant of this conversation")
	errRateLimited = errors.New("sending too fast")
	errBadPayload  = errors.New("malformed payload")
	errEmpty       = errors.New("message content is empty")
	errTooLong     = errors.New("message content is too long")
)

func userRoom(userID string) string {
	return "user:" + userID
}

// ChatHub relays chat events between websocket clients grouped in conversation rooms
type ChatHub struct {
	ConvDB      databases.ConversationDatabase
	MsgDB       databases.MessageDatabase
	Broadcaster Broadcaster

	sendRate  rate.Limit
	sendBurst int

	mu    sync.RWMutex
	rooms map[string]map[*chatClient]struct{}
}

type chatClient struct {
	id      string
	actor   api.Actor
	conn    *websocket.Conn
	send    chan models.Envelope
	limiter *rate.Limiter

	// guarded by ChatHub.mu
	rooms  map[string]struct{}
	closed bool
}

// NewChatHub creates a hub. sendRate is the sustained number of sendMessage events a single
// connection may emit per second, sendBurst the burst on top of it.
func NewChatHub(convDB databases.ConversationDatabase, msgDB databases.MessageDatabase, b Broadcaster, sendRate float64, sendBurst int) *ChatHub {
	if b == nil {
		b = NewLocalBroadcaster(0)
	}
	if sendRate <= 0 {
		sendRate = 5
	}
	if sendBurst <= 0 {
		sendBurst = 10
	}
	return &ChatHub{
		ConvDB:      convDB,
		MsgDB:       msgDB,
		Broadcaster: b,
		sendRate:    rate.Limit(sendRate),
		sendBurst:   sendBurst,
		rooms:       make(map[string]map[*chatClient]struct{}),
	}
}

// Run delivers broadcast room events to local clients until ctx is done
func (h *ChatHub) Run(ctx context.Context) error {
	return h.Broadcaster.Run(ctx, h.deliver)
}

// ServeWS upgrades an authenticated request to a chat connection
func (h *ChatHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade error", "error", err)
		return
	}

	c := &chatClient{
		id:      uuid.New().String(),
		actor:   actor,
		conn:    conn,
		send:    make(chan models.Envelope, sendQueueSize),
		limiter: rate.NewLimiter(h.sendRate, h.sendBurst),
		rooms:   make(map[string]struct{}),
	}
	h.register(c)
	zap.S().Infow("chat client connected", "user", actor.ID, "role", actor.Role, "conn", c.id)

	go h.writePump(c)
	h.readPump(c)

	h.unregister(c)
	zap.S().Infow("chat client disconnected", "user", actor.ID, "conn", c.id)
}

func (h *ChatHub) register(c *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(c, userRoom(c.actor.ID))
	if c.actor.IsAdmin() {
		h.joinLocked(c, adminsRoom)
	}
	api.ChatConnections.Inc()
}

func (h *ChatHub) unregister(c *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	c.closed = true
	close(c.send)
	api.ChatConnections.Dec()
}

func (h *ChatHub) joinLocked(c *chatClient, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*chatClient]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *ChatHub) leaveLocked(c *chatClient, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *ChatHub) join(c *chatClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !c.closed {
		h.joinLocked(c, room)
	}
}

func (h *ChatHub) leave(c *chatClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *ChatHub) inRoom(c *chatClient, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// deliver hands ev to every local client of its rooms. Clients whose queue is full are
// disconnected rather than blocking the room.
func (h *ChatHub) deliver(ev RoomEvent) {
	var slow []*chatClient

	h.mu.RLock()
	seen := make(map[*chatClient]struct{})
	for _, room := range ev.Rooms {
		for c := range h.rooms[room] {
			if _, dup := seen[c]; dup || c.id == ev.Except {
				continue
			}
			seen[c] = struct{}{}
			select {
			case c.send <- ev.Envelope:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		zap.S().Warnw("dropping slow chat client", "user", c.actor.ID, "conn", c.id)
		h.unregister(c)
	}
}

// sendTo queues env for a single client
func (h *ChatHub) sendTo(c *chatClient, env models.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- env:
	default:
		zap.S().Warnw("chat client queue full, dropping event", "conn", c.id, "event", env.Event)
	}
}

func (h *ChatHub) sendError(c *chatClient, event string, err error) {
	api.ChatEventsRejected.WithLabelValues(event).Inc()
	env, _ := models.NewEnvelope(models.EventError, models.ErrorPayload{Event: event, Message: err.Error()})
	h.sendTo(c, env)
}

func (h *ChatHub) readPump(c *chatClient) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				h.sendError(c, "", errBadPayload)
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Warnw("chat connection closed unexpectedly", "conn", c.id, "error", err)
			}
			return
		}
		h.handle(c, env)
	}
}

func (h *ChatHub) writePump(c *chatClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				zap.S().Errorw("error writing chat event", "conn", c.id, "event", env.Event, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *ChatHub) handle(c *chatClient, env models.Envelope) {
	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()

	var err error
	switch env.Event {
	case models.EventJoinConversation:
		err = h.handleJoin(ctx, c, env.Data)
	case models.EventLeaveConversation:
		err = h.handleLeave(c, env.Data)
	case models.EventSendMessage:
		err = h.handleSendMessage(ctx, c, env.Data)
	case models.EventTyping:
		err = h.handleTyping(ctx, c, env.Data)
	default:
		err = errors.New("unknown event")
	}
	if err != nil {
		zap.S().Debugw("chat event rejected", "conn", c.id, "event", env.Event, "error", err)
		h.sendError(c, env.Event, err)
	}
}

// conversation loads id and checks that c may take part in it
func (h *ChatHub) conversation(ctx context.Context, c *chatClient, id string) (*models.Conversation, error) {
	if id == "" {
		return nil, errBadPayload
	}
	conv, err := h.ConvDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, errors.New("conversation not found")
	}
	if !c.actor.IsAdmin() && !conv.HasParticipant(c.actor.ID) {
		return nil, errForbidden
	}
	return conv, nil
}

func (h *ChatHub) handleJoin(ctx context.Context, c *chatClient, data json.RawMessage) error {
	var p models.ConversationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errBadPayload
	}
	conv, err := h.conversation(ctx, c, p.ConversationID)
	if err != nil {
		return err
	}
	h.join(c, conv.ID)

	if err := h.ConvDB.MarkRead(ctx, conv.ID, c.actor.Role, time.Now().UTC()); err != nil {
		zap.S().Errorw("failed to mark conversation read", "conversation", conv.ID, "error", err)
	}
	return nil
}

func (h *ChatHub) handleLeave(c *chatClient, data json.RawMessage) error {
	var p models.ConversationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		return errBadPayload
	}
	h.leave(c, p.ConversationID)
	return nil
}

func (h *ChatHub) handleSendMessage(ctx context.Context, c *chatClient, data json.RawMessage) error {
	if !c.limiter.Allow() {
		return errRateLimited
	}
	var p models.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errBadPayload
	}
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return errEmpty
	}
	if len(content) > maxContentLen {
		return errTooLong
	}
	conv, err := h.conversation(ctx, c, p.ConversationID)
	if err != nil {
		return err
	}

	msg := models.Message{
		ID:             ulid.Make().String(),
		ConversationID: conv.ID,
		SenderID:       c.actor.ID,
		Sender:         c.actor.Role,
		Content:        content,
		CorrelationID:  p.CorrelationID,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := h.MsgDB.InsertOne(ctx, msg); err != nil {
		zap.S().Errorw("failed to store chat message", "conversation", conv.ID, "error", err)
		return errors.New("failed to store message")
	}
	if err := h.ConvDB.Touch(ctx, conv.ID, msg.Sender, msg.CreatedAt); err != nil {
		zap.S().Errorw("failed to update conversation activity", "conversation", conv.ID, "error", err)
	}
	// the sender has read everything up to its own message
	if err := h.ConvDB.MarkRead(ctx, conv.ID, c.actor.Role, msg.CreatedAt); err != nil {
		zap.S().Errorw("failed to mark conversation read", "conversation", conv.ID, "error", err)
	}
	api.ChatMessagesTotal.WithLabelValues(msg.Sender).Inc()

	received, err := models.NewEnvelope(models.EventReceiveMessage, msg)
	if err != nil {
		return err
	}
	if !h.inRoom(c, conv.ID) {
		h.sendTo(c, received)
	}
	if err := h.Broadcaster.Publish(ctx, RoomEvent{Rooms: []string{conv.ID}, Envelope: received}); err != nil {
		zap.S().Errorw("failed to publish chat message", "conversation", conv.ID, "error", err)
	}

	activity, err := models.NewEnvelope(models.EventConversationActivity, msg)
	if err != nil {
		return err
	}
	err = h.Broadcaster.Publish(ctx, RoomEvent{
		Rooms:    []string{userRoom(conv.PatientID), adminsRoom},
		Envelope: activity,
	})
	if err != nil {
		zap.S().Errorw("failed to publish conversation activity", "conversation", conv.ID, "error", err)
	}
	return nil
}

func (h *ChatHub) handleTyping(ctx context.Context, c *chatClient, data json.RawMessage) error {
	var p models.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		return errBadPayload
	}
	if !h.inRoom(c, p.ConversationID) {
		return errors.New("join the conversation before typing")
	}
	env, err := models.NewEnvelope(models.EventUserTyping, p)
	if err != nil {
		return err
	}
	return h.Broadcaster.Publish(ctx, RoomEvent{Rooms: []string{p.ConversationID}, Except: c.id, Envelope: env})
}
