package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/api"
	"github.com/linesmerrill/primecare-chat/config"
	"github.com/linesmerrill/primecare-chat/databases"
	"github.com/linesmerrill/primecare-chat/models"
)

// Chat serves conversation and message history
type Chat struct {
	ConvDB databases.ConversationDatabase
	MsgDB  databases.MessageDatabase
	UserDB databases.UserDatabase
}

// ConversationsHandler lists the caller's conversations with their messages. Admins see
// every conversation, patients only their own.
func (c Chat) ConversationsHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := api.ActorFromContext(r.Context())

	filter := bson.M{"patientId": actor.ID}
	if actor.IsAdmin() {
		filter = bson.M{}
	}
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}})

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	conversations, err := c.ConvDB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get conversations", http.StatusInternalServerError, w, err)
		return
	}
	if len(conversations) == 0 {
		writeJSON(w, http.StatusOK, []models.Conversation{})
		return
	}

	ids := make([]string, 0, len(conversations))
	for _, conv := range conversations {
		ids = append(ids, conv.ID)
	}
	byConversation, err := c.MsgDB.ForConversations(ctx, ids...)
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusInternalServerError, w, err)
		return
	}

	for i := range conversations {
		conv := &conversations[i]
		conv.Messages = byConversation[conv.ID]
		if conv.Messages == nil {
			conv.Messages = []models.Message{}
		}
		models.MarkRead(conv.Messages, actor.Role, conv.LastReadAt(actor.Role))
	}
	writeJSON(w, http.StatusOK, conversations)
}

// CreateConversationHandler returns the caller's conversation with the given admin,
// creating it on first use. Only patients start conversations.
func (c Chat) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := api.ActorFromContext(r.Context())
	if actor.IsAdmin() {
		config.ErrorStatus("failed to create conversation", http.StatusForbidden, w, errors.New("only patients can start conversations"))
		return
	}

	var req models.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	adminID := strings.TrimSpace(req.AdminID)
	if adminID == "" {
		config.ErrorStatus("adminId is required", http.StatusBadRequest, w, errors.New("missing adminId"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := c.UserDB.FindOne(ctx, bson.M{"_id": adminID, "role": models.RoleAdmin}); err != nil {
		config.ErrorStatus("failed to get admin by ID", http.StatusNotFound, w, err)
		return
	}

	conv, err := c.ConvDB.FindOrCreate(ctx, actor.ID, adminID)
	if err != nil {
		config.ErrorStatus("failed to create conversation", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("conversation ready", "conversation", conv.ID, "patient", actor.ID, "admin", adminID)

	conv.Messages = []models.Message{}
	writeJSON(w, http.StatusOK, conv)
}

// MessagesHandler returns the ordered messages of one conversation
func (c Chat) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := api.ActorFromContext(r.Context())
	conversationID := mux.Vars(r)["conversationId"]

	zap.S().Debugf("conversationId: %v", conversationID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	conv, err := c.ConvDB.FindOne(ctx, bson.M{"_id": conversationID})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mongo.ErrNoDocuments) {
			status = http.StatusNotFound
		}
		config.ErrorStatus("failed to get conversation by ID", status, w, err)
		return
	}
	if !actor.IsAdmin() && !conv.HasParticipant(actor.ID) {
		config.ErrorStatus("failed to get messages", http.StatusForbidden, w, errors.New("not a participant"))
		return
	}

	byConversation, err := c.MsgDB.ForConversations(ctx, conv.ID)
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusInternalServerError, w, err)
		return
	}
	messages := byConversation[conv.ID]
	if messages == nil {
		messages = []models.Message{}
	}
	models.MarkRead(messages, actor.Role, conv.LastReadAt(actor.Role))
	writeJSON(w, http.StatusOK, messages)
}
