package models

import "encoding/json"

// Realtime event names exchanged on the /chat channel
const (
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventSendMessage       = "sendMessage"
	EventTyping            = "typing"

	EventReceiveMessage = "receiveMessage"
	EventUserTyping     = "userTyping"
	EventError          = "error"

	// EventConversationActivity carries a new message to participants that are not
	// joined to its room, so their conversation lists can update previews
	EventConversationActivity = "conversationActivity"
)

// Envelope is the frame written on the websocket for every event
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope for the given event
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: b}, nil
}

// ConversationPayload is carried by joinConversation and leaveConversation
type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// SendMessagePayload is carried by sendMessage
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	CorrelationID  string `json:"correlationId,omitempty"`
}

// TypingPayload is carried by typing and userTyping
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// ErrorPayload is carried by error events
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}
