package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/primecare-chat/databases"
	"github.com/linesmerrill/primecare-chat/databases/mocks"
	"github.com/linesmerrill/primecare-chat/models"
)

func TestMessageDatabase_InsertOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	insertResult := &mocks.InsertOneResultHelper{}

	msg := models.Message{ID: "01HQ", ConversationID: "conv-1", Sender: models.RolePatient, Content: "hi"}

	insertResult.On("Decode").Return("01HQ")
	collectionHelper.On("InsertOne", context.Background(), msg).Return(insertResult, nil)
	dbHelper.On("Collection", "messages").Return(collectionHelper)

	res, err := databases.NewMessageDatabase(dbHelper).InsertOne(context.Background(), msg)

	assert.NoError(t, err)
	assert.Equal(t, "01HQ", res.Decode())
}

func TestMessageDatabase_ForConversations(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("All", mock.Anything, mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Message)
		*arg = []models.Message{
			{ID: "m1", ConversationID: "conv-1", Content: "first", CreatedAt: t0},
			{ID: "m2", ConversationID: "conv-2", Content: "other", CreatedAt: t0},
			{ID: "m3", ConversationID: "conv-1", Content: "second", CreatedAt: t0.Add(time.Minute)},
		}
	})
	cursorHelper.On("Close", mock.Anything).Return(nil)

	filter := bson.M{"conversationId": bson.M{"$in": []string{"conv-1", "conv-2"}}}
	collectionHelper.On("Find", context.Background(), filter, mock.Anything).Return(cursorHelper, nil)
	dbHelper.On("Collection", "messages").Return(collectionHelper)

	got, err := databases.NewMessageDatabase(dbHelper).ForConversations(context.Background(), "conv-1", "conv-2")

	assert.NoError(t, err)
	assert.Len(t, got["conv-1"], 2)
	assert.Equal(t, "first", got["conv-1"][0].Content)
	assert.Equal(t, "second", got["conv-1"][1].Content)
	assert.Len(t, got["conv-2"], 1)
}

func TestMessageDatabase_ForConversationsEmpty(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}

	got, err := databases.NewMessageDatabase(dbHelper).ForConversations(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, got)
	dbHelper.AssertNotCalled(t, "Collection", mock.Anything)
}

func TestMessageDatabase_ForConversationsError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "messages").Return(collectionHelper)

	got, err := databases.NewMessageDatabase(dbHelper).ForConversations(context.Background(), "conv-1")

	assert.Nil(t, got)
	assert.EqualError(t, err, "mocked-error")
}
