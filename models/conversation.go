package models

import "time"

// Conversation holds the structure for the conversations collection in mongo.
// A conversation pairs exactly one patient with one admin.
type Conversation struct {
	ID                string    `json:"id" bson:"_id"`
	PatientID         string    `json:"patientId" bson:"patientId"`
	AdminID           string    `json:"adminId" bson:"adminId"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
	LastMessageAt     time.Time `json:"lastMessageAt" bson:"lastMessageAt"`
	LastMessageSender string    `json:"lastMessageSender,omitempty" bson:"lastMessageSender,omitempty"`
	PatientLastReadAt time.Time `json:"patientLastReadAt" bson:"patientLastReadAt"`
	AdminLastReadAt   time.Time `json:"adminLastReadAt" bson:"adminLastReadAt"`
	PatientNotifiedAt time.Time `json:"-" bson:"patientNotifiedAt"`

	// Messages is only populated on list responses
	Messages []Message `json:"messages" bson:"-"`
}

// HasParticipant reports whether userID is the patient or the admin of the conversation
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.PatientID == userID || c.AdminID == userID)
}

// LastReadAt returns the read mark of the given role
func (c Conversation) LastReadAt(role string) time.Time {
	if role == RoleAdmin {
		return c.AdminLastReadAt
	}
	return c.PatientLastReadAt
}

// CreateConversationRequest is the body accepted when a patient starts a conversation
type CreateConversationRequest struct {
	AdminID string `json:"adminId"`
}
