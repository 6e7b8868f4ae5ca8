package chat

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/models"
)

const tempIDPrefix = "temp-"

// Upload is a file picked in the composer
type Upload struct {
	Name string
	Data io.Reader
}

// Composer sends messages for the selected conversation. Every send is shown
// at once as an optimistic copy and never rolled back.
type Composer struct {
	conn     *Connection
	stream   *Stream
	uploader Uploader
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewComposer creates a Composer. uploader may be nil, in which case
// attachments are kept by name only.
func NewComposer(conn *Connection, stream *Stream, uploader Uploader, log *zap.SugaredLogger) *Composer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Composer{
		conn:     conn,
		stream:   stream,
		uploader: uploader,
		log:      log,
		now:      time.Now,
	}
}

// Send appends an optimistic message and emits the text over the connection.
// A blank body with no file, or a missing connection, does nothing.
// Attachments stay local to the sender.
func (c *Composer) Send(ctx context.Context, conversationID, body string, file *Upload) (Message, error) {
	text := strings.TrimSpace(body)
	hasFile := file != nil && file.Name != ""
	if text == "" && !hasFile {
		return Message{}, ErrEmptyMessage
	}
	if !c.conn.Connected() {
		return Message{}, ErrNotConnected
	}
	if conversationID == "" {
		return Message{}, ErrNoConversation
	}

	cred := c.conn.Credential()
	m := Message{
		ID:             tempIDPrefix + uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       cred.UserID,
		Sender:         cred.Role,
		Content:        text,
		CreatedAt:      c.now().UTC(),
		Read:           true,
	}
	if text != "" {
		m.CorrelationID = uuid.NewString()
	}
	if hasFile {
		m.Attachment = c.attach(ctx, file)
	}

	if err := c.stream.AppendLocal(m); err != nil {
		return Message{}, err
	}
	if text == "" {
		return m, nil
	}

	err := c.conn.Emit(models.EventSendMessage, models.SendMessagePayload{
		ConversationID: conversationID,
		Content:        text,
		CorrelationID:  m.CorrelationID,
	})
	if err != nil {
		c.log.Errorw("failed to send message", "conversationID", conversationID, "error", err)
		return m, err
	}
	return m, nil
}

func (c *Composer) attach(ctx context.Context, file *Upload) *Attachment {
	att := &Attachment{Name: file.Name}
	if c.uploader == nil || file.Data == nil {
		return att
	}
	url, err := c.uploader.Upload(ctx, file.Name, file.Data)
	if err != nil {
		c.log.Warnw("attachment upload failed", "name", file.Name, "error", err)
		return att
	}
	att.URL = url
	return att
}

// SetTyping tells the counterpart whether the user is typing
func (c *Composer) SetTyping(conversationID string, typing bool) error {
	if conversationID == "" {
		return ErrNoConversation
	}
	return c.conn.Emit(models.EventTyping, models.TypingPayload{ConversationID: conversationID, IsTyping: typing})
}
