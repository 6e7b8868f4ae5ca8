package databases

// go generate: mockery --name ConversationDatabase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/primecare-chat/models"
)

const conversationName = "conversations"

// ConversationDatabase contains the methods to use with the conversation database
type ConversationDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Conversation, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Conversation, error)
	FindOrCreate(ctx context.Context, patientID, adminID string) (*models.Conversation, error)
	MarkRead(ctx context.Context, conversationID, role string, at time.Time) error
	Touch(ctx context.Context, conversationID, sender string, at time.Time) error
	MarkNotified(ctx context.Context, conversationID string, at time.Time) error
	AwaitingReminder(ctx context.Context, cutoff time.Time) ([]models.Conversation, error)
}

type conversationDatabase struct {
	db DatabaseHelper
}

// NewConversationDatabase initializes a new instance of conversation database with the provided db connection
func NewConversationDatabase(db DatabaseHelper) ConversationDatabase {
	return &conversationDatabase{
		db: db,
	}
}

func (c *conversationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Conversation, error) {
	conversation := &models.Conversation{}
	err := c.db.Collection(conversationName).FindOne(ctx, filter, opts...).Decode(&conversation)
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

func (c *conversationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Conversation, error) {
	var conversations []models.Conversation
	cur, err := c.db.Collection(conversationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// FindOrCreate returns the conversation between patientID and adminID, creating it on first use
func (c *conversationDatabase) FindOrCreate(ctx context.Context, patientID, adminID string) (*models.Conversation, error) {
	now := time.Now().UTC()
	filter := bson.M{"patientId": patientID, "adminId": adminID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":               uuid.New().String(),
		"createdAt":         now,
		"lastMessageAt":     now,
		"patientLastReadAt": now,
		"adminLastReadAt":   now,
		"patientNotifiedAt": time.Time{},
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	conversation := &models.Conversation{}
	err := c.db.Collection(conversationName).FindOneAndUpdate(ctx, filter, update, opts).Decode(&conversation)
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// MarkRead moves the read mark of role forward to at
func (c *conversationDatabase) MarkRead(ctx context.Context, conversationID, role string, at time.Time) error {
	field := "patientLastReadAt"
	if role == models.RoleAdmin {
		field = "adminLastReadAt"
	}
	return c.updateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$max": bson.M{field: at}})
}

// Touch records a new message on the conversation
func (c *conversationDatabase) Touch(ctx context.Context, conversationID, sender string, at time.Time) error {
	return c.updateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$set": bson.M{
		"lastMessageAt":     at,
		"lastMessageSender": sender,
	}})
}

// MarkNotified records that the patient was emailed about unread replies
func (c *conversationDatabase) MarkNotified(ctx context.Context, conversationID string, at time.Time) error {
	return c.updateOne(ctx, bson.M{"_id": conversationID}, bson.M{"$set": bson.M{"patientNotifiedAt": at}})
}

// AwaitingReminder finds conversations whose latest admin reply is older than cutoff,
// unread by the patient and not yet notified
func (c *conversationDatabase) AwaitingReminder(ctx context.Context, cutoff time.Time) ([]models.Conversation, error) {
	filter := bson.M{
		"lastMessageSender": models.RoleAdmin,
		"lastMessageAt":     bson.M{"$lt": cutoff},
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gt": bson.A{"$lastMessageAt", "$patientLastReadAt"}},
			bson.M{"$gt": bson.A{"$lastMessageAt", "$patientNotifiedAt"}},
		}},
	}
	return c.Find(ctx, filter)
}

func (c *conversationDatabase) updateOne(ctx context.Context, filter, update interface{}) error {
	res, err := c.db.Collection(conversationName).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res != nil && res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
