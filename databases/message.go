package databases

// go generate: mockery --name MessageDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/primecare-chat/models"
)

const messageName = "messages"

// MessageDatabase contains the methods to use with the message database
type MessageDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error)
	InsertOne(ctx context.Context, message models.Message) (InsertOneResultHelper, error)
	ForConversations(ctx context.Context, conversationIDs ...string) (map[string][]models.Message, error)
}

type messageDatabase struct {
	db DatabaseHelper
}

// NewMessageDatabase initializes a new instance of message database with the provided db connection
func NewMessageDatabase(db DatabaseHelper) MessageDatabase {
	return &messageDatabase{
		db: db,
	}
}

func (m *messageDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error) {
	var messages []models.Message
	cur, err := m.db.Collection(messageName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (m *messageDatabase) InsertOne(ctx context.Context, message models.Message) (InsertOneResultHelper, error) {
	return m.db.Collection(messageName).InsertOne(ctx, message)
}

// ForConversations returns the messages of each conversation in creation order.
// Message ids are ULIDs, so _id breaks ties between equal timestamps.
func (m *messageDatabase) ForConversations(ctx context.Context, conversationIDs ...string) (map[string][]models.Message, error) {
	out := make(map[string][]models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	messages, err := m.Find(ctx, bson.M{"conversationId": bson.M{"$in": conversationIDs}}, opts)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		out[msg.ConversationID] = append(out[msg.ConversationID], msg)
	}
	return out, nil
}
