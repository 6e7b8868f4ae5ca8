package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/primecare-chat/models"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func conv1() *models.Conversation {
	return &models.Conversation{
		ID:                "conv-1",
		PatientID:         "patient-1",
		AdminID:           "admin-1",
		LastMessageAt:     t0.Add(2 * time.Minute),
		PatientLastReadAt: t0,
		AdminLastReadAt:   t0.Add(time.Hour),
	}
}

func TestChat_ConversationsHandlerPatient(t *testing.T) {
	ta := newTestApp()
	ta.convDB.On("Find", mock.Anything, bson.M{"patientId": "patient-1"}, mock.Anything).
		Return([]models.Conversation{*conv1()}, nil)
	ta.msgDB.On("ForConversations", mock.Anything, "conv-1").Return(map[string][]models.Message{
		"conv-1": {
			{ID: "m1", ConversationID: "conv-1", Sender: models.RolePatient, Content: "hi", CreatedAt: t0},
			{ID: "m2", ConversationID: "conv-1", Sender: models.RoleAdmin, Content: "hello", CreatedAt: t0.Add(time.Minute)},
		},
	}, nil)

	response := ta.do(authedRequest(t, "GET", "/chat/conversations", patient, nil))

	require.Equal(t, http.StatusOK, response.Code)
	var got []models.Conversation
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 2)
	assert.True(t, got[0].Messages[0].Read, "own message is read")
	assert.False(t, got[0].Messages[1].Read, "admin reply after the patient's read mark is unread")
}

func TestChat_ConversationsHandlerAdminSeesAll(t *testing.T) {
	ta := newTestApp()
	other := models.Conversation{ID: "conv-2", PatientID: "patient-2", AdminID: "admin-1"}
	ta.convDB.On("Find", mock.Anything, bson.M{}, mock.Anything).
		Return([]models.Conversation{*conv1(), other}, nil)
	ta.msgDB.On("ForConversations", mock.Anything, "conv-1", "conv-2").Return(map[string][]models.Message{
		"conv-1": {{ID: "m1", ConversationID: "conv-1", Sender: models.RolePatient, Content: "hi", CreatedAt: t0}},
	}, nil)

	response := ta.do(authedRequest(t, "GET", "/chat/conversations", admin, nil))

	require.Equal(t, http.StatusOK, response.Code)
	var got []models.Conversation
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.True(t, got[0].Messages[0].Read)
	assert.NotNil(t, got[1].Messages)
	assert.Empty(t, got[1].Messages)
}

func TestChat_ConversationsHandlerEmpty(t *testing.T) {
	ta := newTestApp()
	ta.convDB.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	response := ta.do(authedRequest(t, "GET", "/chat/conversations", admin, nil))

	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "[]", response.Body.String())
	ta.msgDB.AssertNotCalled(t, "ForConversations", mock.Anything)
}

func TestChat_ConversationsHandlerError(t *testing.T) {
	ta := newTestApp()
	ta.convDB.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))

	response := ta.do(authedRequest(t, "GET", "/chat/conversations", admin, nil))

	assert.Equal(t, http.StatusInternalServerError, response.Code)
}

func TestChat_CreateConversationHandler(t *testing.T) {
	ta := newTestApp()
	ta.userDB.On("FindOne", mock.Anything, bson.M{"_id": "admin-1", "role": models.RoleAdmin}).Return(&admin, nil)
	ta.convDB.On("FindOrCreate", mock.Anything, "patient-1", "admin-1").Return(conv1(), nil)

	body := `{"adminId": "admin-1"}`
	response := ta.do(authedRequest(t, "POST", "/chat/conversations", patient, &body))

	require.Equal(t, http.StatusOK, response.Code)
	var got models.Conversation
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &got))
	assert.Equal(t, "conv-1", got.ID)
	assert.NotNil(t, got.Messages)
}

func TestChat_CreateConversationHandlerValidation(t *testing.T) {
	ta := newTestApp()

	body := `{"adminId": ""}`
	response := ta.do(authedRequest(t, "POST", "/chat/conversations", patient, &body))
	assert.Equal(t, http.StatusBadRequest, response.Code)

	body = `not json`
	response = ta.do(authedRequest(t, "POST", "/chat/conversations", patient, &body))
	assert.Equal(t, http.StatusBadRequest, response.Code)

	body = `{"adminId": "admin-1"}`
	response = ta.do(authedRequest(t, "POST", "/chat/conversations", admin, &body))
	assert.Equal(t, http.StatusForbidden, response.Code)

	ta.convDB.AssertNotCalled(t, "FindOrCreate", mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_CreateConversationHandlerUnknownAdmin(t *testing.T) {
	ta := newTestApp()
	ta.userDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	body := `{"adminId": "nobody"}`
	response := ta.do(authedRequest(t, "POST", "/chat/conversations", patient, &body))

	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestChat_MessagesHandler(t *testing.T) {
	ta := newTestApp()
	ta.convDB.On("FindOne", mock.Anything, bson.M{"_id": "conv-1"}).Return(conv1(), nil)
	ta.msgDB.On("ForConversations", mock.Anything, "conv-1").Return(map[string][]models.Message{
		"conv-1": {{ID: "m1", ConversationID: "conv-1", Sender: models.RolePatient, Content: "hi", CreatedAt: t0}},
	}, nil)

	response := ta.do(authedRequest(t, "GET", "/chat/conversations/conv-1/messages", admin, nil))

	require.Equal(t, http.StatusOK, response.Code)
	var got []models.Message
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "hi", got[0].Content)
	assert.Equal(t, models.RolePatient, got[0].Sender)
	assert.True(t, got[0].Read)
}

func TestChat_MessagesHandlerForbidden(t *testing.T) {
	ta := newTestApp()
	ta.convDB.On("FindOne", mock.Anything, bson.M{"_id": "conv-1"}).Return(conv1(), nil)

	stranger := models.User{ID: "patient-2", FullName: "Other", Role: models.RolePatient}
	response := ta.do(authedRequest(t, "GET", "/chat/conversations/conv-1/messages", stranger, nil))

	assert.Equal(t, http.StatusForbidden, response.Code)
	ta.msgDB.AssertNotCalled(t, "ForConversations", mock.Anything, mock.Anything)
}

func TestChat_MessagesHandlerNotFound(t *testing.T) {
	ta := newTestApp()
	ta.convDB.On("FindOne", mock.Anything, bson.M{"_id": "missing"}).Return(nil, mongo.ErrNoDocuments)

	response := ta.do(authedRequest(t, "GET", "/chat/conversations/missing/messages", patient, nil))

	assert.Equal(t, http.StatusNotFound, response.Code)
}
