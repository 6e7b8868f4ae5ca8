package models

import "time"

// Message holds the structure for the messages collection in mongo
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversationId" bson:"conversationId"`
	SenderID       string    `json:"senderId" bson:"senderId"`
	Sender         string    `json:"sender" bson:"sender"` // "patient" or "admin"
	Content        string    `json:"content" bson:"content"`
	CorrelationID  string    `json:"correlationId,omitempty" bson:"correlationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`

	// Read is computed per viewer from the conversation read marks
	Read bool `json:"read" bson:"-"`
}

// MarkRead sets Read on every message that is not newer than the viewer's read mark.
// Messages sent by the viewer are always read.
func MarkRead(messages []Message, viewerRole string, lastReadAt time.Time) {
	for i := range messages {
		m := &messages[i]
		m.Read = m.Sender == viewerRole || !m.CreatedAt.After(lastReadAt)
	}
}
