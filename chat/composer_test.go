package chat_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/primecare-chat/chat"
	"github.com/linesmerrill/primecare-chat/models"
)

type fakeUploader struct {
	url  string
	err  error
	name string
	body string
}

func (u *fakeUploader) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	b, _ := io.ReadAll(r)
	u.name, u.body = name, string(b)
	return u.url, u.err
}

func TestComposer_EmptyBodyIsNoop(t *testing.T) {
	b := newBackend(t)
	s, d := newSession(t, b, patientCred)
	require.NoError(t, s.Open(context.Background(), "conv-1"))

	for _, body := range []string{"", "   \n\t"} {
		_, err := s.Send(context.Background(), body, nil)
		assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	}
	_, err := s.Send(context.Background(), "", &chat.Upload{})
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	assert.Empty(t, s.Messages())
	assert.Empty(t, d.last().frames(models.EventSendMessage))
}

func TestComposer_NoCredentialIsNoop(t *testing.T) {
	b := newBackend(t)
	s, d := newSession(t, b, chat.Credential{})

	for _, body := range []string{"", "hello", "   "} {
		_, err := s.Composer.Send(context.Background(), "conv-1", body, nil)
		assert.Error(t, err)
	}
	_, err := s.Composer.Send(context.Background(), "conv-1", "hello", nil)
	assert.ErrorIs(t, err, chat.ErrNotConnected)

	assert.False(t, s.Conn.Connected())
	assert.Equal(t, 0, d.dials())
	assert.Empty(t, s.Messages())
}

func TestComposer_OptimisticAppendAndEmit(t *testing.T) {
	b := newBackend(t)
	s, d := newSession(t, b, patientCred)
	require.NoError(t, s.Open(context.Background(), "conv-1"))

	m, err := s.Send(context.Background(), "  I have a headache  ", nil)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.ID, "temp-"))
	assert.True(t, m.Pending())
	assert.Equal(t, "I have a headache", m.Content)
	assert.Equal(t, models.RolePatient, m.Sender)
	assert.True(t, m.FromSelf(patientCred.Role))
	assert.NotEmpty(t, m.CorrelationID)
	assert.WithinDuration(t, time.Now(), m.CreatedAt, 5*time.Second)
	assert.Equal(t, []string{m.ID}, ids(s.Messages()))

	frames := d.last().frames(models.EventSendMessage)
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"conversationId":"conv-1","content":"I have a headache","correlationId":"`+m.CorrelationID+`"}`, string(frames[0].Data))

	c, ok := s.Directory.Get("conv-1")
	require.True(t, ok)
	assert.Equal(t, "I have a headache", c.LastMessage)
}

func TestComposer_EchoReplacesOptimisticCopy(t *testing.T) {
	b := newBackend(t)
	s, d := newSession(t, b, patientCred)
	require.NoError(t, s.Open(context.Background(), "conv-1"))

	sent, err := s.Send(context.Background(), "hello", nil)
	require.NoError(t, err)

	echo := msg("01HSERVER", "conv-1", models.RolePatient, "hello", t0)
	echo.CorrelationID = sent.CorrelationID
	d.last().push(t, models.EventReceiveMessage, echo)
	d.last().push(t, models.EventReceiveMessage, msg("01HREPLY", "conv-1", models.RoleAdmin, "hi Sarah", t0.Add(time.Second)))

	msgs := waitMessages(t, s, 2)
	assert.Equal(t, []string{"01HSERVER", "01HREPLY"}, ids(msgs))
	assert.False(t, msgs[0].Pending())
}

func TestComposer_LateEchoIsAppended(t *testing.T) {
	b := newBackend(t)
	s, d := newSession(t, b, patientCred)
	s.Stream.SetCorrelationWindow(time.Millisecond)
	require.NoError(t, s.Open(context.Background(), "conv-1"))

	sent, err := s.Send(context.Background(), "hello", nil)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	echo := msg("01HSERVER", "conv-1", models.RolePatient, "hello", t0)
	echo.CorrelationID = sent.CorrelationID
	d.last().push(t, models.EventReceiveMessage, echo)

	msgs := waitMessages(t, s, 2)
	assert.Equal(t, []string{sent.ID, "01HSERVER"}, ids(msgs))
}

func TestComposer_AttachmentStaysLocal(t *testing.T) {
	b := newBackend(t)
	up := &fakeUploader{url: "https://res.cloudinary.com/demo/rash.png"}
	d := &fakeDialer{}
	s := chat.NewSession(chat.Config{BaseURL: b.srv.URL, SocketURL: "ws://chat.test/chat", Dialer: d, Uploader: up})
	t.Cleanup(s.Close)
	require.NoError(t, s.Start(context.Background(), patientCred))
	require.NoError(t, s.Open(context.Background(), "conv-1"))

	m, err := s.Send(context.Background(), "", &chat.Upload{Name: "rash.png", Data: strings.NewReader("png-bytes")})

	require.NoError(t, err)
	require.NotNil(t, m.Attachment)
	assert.Equal(t, "rash.png", m.Attachment.Name)
	assert.Equal(t, up.url, m.Attachment.URL)
	assert.Equal(t, "png-bytes", up.body)
	assert.Empty(t, m.CorrelationID)
	assert.Len(t, s.Messages(), 1)
	assert.Empty(t, d.last().frames(models.EventSendMessage))
}

func TestComposer_FailedUploadKeepsLocalCopy(t *testing.T) {
	b := newBackend(t)
	up := &fakeUploader{err: errors.New("quota exceeded")}
	d := &fakeDialer{}
	s := chat.NewSession(chat.Config{BaseURL: b.srv.URL, SocketURL: "ws://chat.test/chat", Dialer: d, Uploader: up})
	t.Cleanup(s.Close)
	require.NoError(t, s.Start(context.Background(), patientCred))
	require.NoError(t, s.Open(context.Background(), "conv-1"))

	m, err := s.Send(context.Background(), "see attached", &chat.Upload{Name: "labs.pdf", Data: strings.NewReader("pdf")})

	require.NoError(t, err)
	assert.Equal(t, "labs.pdf", m.Attachment.Name)
	assert.Empty(t, m.Attachment.URL)
	assert.Len(t, d.last().frames(models.EventSendMessage), 1)
}

func TestComposer_RequiresSelection(t *testing.T) {
	b := newBackend(t)
	s, d := newSession(t, b, patientCred)

	_, err := s.Send(context.Background(), "hello", nil)

	assert.ErrorIs(t, err, chat.ErrNoConversation)
	assert.Empty(t, d.last().frames(models.EventSendMessage))
}

func TestComposer_SetTyping(t *testing.T) {
	b := newBackend(t)
	s, d := newSession(t, b, patientCred)

	require.NoError(t, s.Composer.SetTyping("conv-1", true))
	assert.ErrorIs(t, s.Composer.SetTyping("", true), chat.ErrNoConversation)

	frames := d.last().frames(models.EventTyping)
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"conversationId":"conv-1","isTyping":true}`, string(frames[0].Data))
}
