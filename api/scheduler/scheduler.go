package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/api"
	"github.com/linesmerrill/primecare-chat/databases"
	"github.com/linesmerrill/primecare-chat/models"
	templates "github.com/linesmerrill/primecare-chat/templates/html"
)

// previewLen is the number of runes of the latest reply quoted in a reminder
const previewLen = 120

// Scheduler handles periodic background jobs for the chat relay
type Scheduler struct {
	cron    *cron.Cron
	ConvDB  databases.ConversationDatabase
	UserDB  databases.UserDatabase
	MsgDB   databases.MessageDatabase
	Mailer  Mailer
	Delay   time.Duration
	BaseURL string

	now func() time.Time
}

// NewScheduler creates a new scheduler instance
func NewScheduler(convDB databases.ConversationDatabase, userDB databases.UserDatabase, msgDB databases.MessageDatabase, mailer Mailer, delay time.Duration, baseURL string) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		ConvDB:  convDB,
		UserDB:  userDB,
		MsgDB:   msgDB,
		Mailer:  mailer,
		Delay:   delay,
		BaseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Start registers the reminder job on spec and begins the scheduler
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.RemindUnreadReplies(ctx)
	})
	if err != nil {
		zap.S().Errorw("failed to register reminder job", "spec", spec, "error", err)
		return fmt.Errorf("register reminder job: %w", err)
	}

	s.cron.Start()
	zap.S().Infow("chat reminder scheduler started", "spec", spec, "delay", s.Delay)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("chat reminder scheduler stopped")
}

// RemindUnreadReplies emails every patient whose latest care-team reply has gone unread for
// longer than Delay, once per reply. It returns the number of emails sent.
func (s *Scheduler) RemindUnreadReplies(ctx context.Context) int {
	now := s.now().UTC()
	conversations, err := s.ConvDB.AwaitingReminder(ctx, now.Add(-s.Delay))
	if err != nil {
		zap.S().Errorw("failed to find conversations awaiting reminder", "error", err)
		return 0
	}

	sent := 0
	for _, conv := range conversations {
		if s.remind(ctx, conv, now) {
			sent++
		}
	}
	if len(conversations) > 0 {
		zap.S().Infow("processed unread reply reminders", "candidates", len(conversations), "sent", sent)
	}
	return sent
}

func (s *Scheduler) remind(ctx context.Context, conv models.Conversation, now time.Time) bool {
	patient, err := s.UserDB.FindOne(ctx, bson.M{"_id": conv.PatientID})
	if err != nil || patient.Email == "" {
		zap.S().Warnw("skipping reminder, patient has no email", "conversation", conv.ID, "patient", conv.PatientID)
		api.RemindersSent.WithLabelValues("skipped").Inc()
		return false
	}

	preview := s.latestReply(ctx, conv.ID)
	chatURL := ""
	if s.BaseURL != "" {
		chatURL = s.BaseURL + "/chat?conversation=" + conv.ID
	}

	err = s.Mailer.Send(ctx, Email{
		ToAddress: patient.Email,
		ToName:    patient.FullName,
		Subject:   "You have a new reply from your care team - PrimeCare",
		HTML:      templates.RenderUnreadReplyEmail(patient.FullName, preview, chatURL),
		PlainText: "Your care team replied to your message. Open your PrimeCare chat to read it.",
	})
	if err != nil {
		zap.S().Errorw("failed to send reminder email", "conversation", conv.ID, "error", err)
		api.RemindersSent.WithLabelValues("failed").Inc()
		return false
	}

	if err := s.ConvDB.MarkNotified(ctx, conv.ID, now); err != nil {
		zap.S().Errorw("failed to record reminder", "conversation", conv.ID, "error", err)
	}
	api.RemindersSent.WithLabelValues("sent").Inc()
	return true
}

// latestReply returns a short excerpt of the newest care-team message
func (s *Scheduler) latestReply(ctx context.Context, conversationID string) string {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(1)
	messages, err := s.MsgDB.Find(ctx, bson.M{"conversationId": conversationID, "sender": models.RoleAdmin}, opts)
	if err != nil || len(messages) == 0 {
		return "New message"
	}
	content := []rune(messages[0].Content)
	if len(content) > previewLen {
		return string(content[:previewLen]) + "..."
	}
	return string(content)
}
