package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// NoMessagesPreview is shown for a conversation without messages
	NoMessagesPreview = "No messages yet"
	// UnknownInitials is shown when the counterpart's name is unavailable
	UnknownInitials = "??"

	previewRunes = 30
)

// ConversationSummary is one row of the conversation list
type ConversationSummary struct {
	ID              string
	PatientID       string
	AdminID         string
	CounterpartID   string
	CounterpartName string
	Initials        string
	LastMessage     string
	LastActivity    time.Time
	UnreadCount     int
}

// Directory holds the conversations visible to the signed in actor
type Directory struct {
	api          *API
	careTeamID   string
	careTeamName string
	log          *zap.SugaredLogger

	mu    sync.Mutex
	cred  Credential
	items []ConversationSummary

	onChange []func([]ConversationSummary)
}

// NewDirectory creates a Directory. careTeamID is the admin a patient's
// conversation is opened with when none exists yet.
func NewDirectory(api *API, careTeamID, careTeamName string, log *zap.SugaredLogger) *Directory {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Directory{
		api:          api,
		careTeamID:   careTeamID,
		careTeamName: careTeamName,
		log:          log,
	}
}

// Load fetches the conversations of cred. Admins see every conversation with
// patient names resolved from the patient directory; a patient sees their own,
// creating one with the care team on first use.
func (d *Directory) Load(ctx context.Context, cred Credential) ([]ConversationSummary, error) {
	convs, err := d.api.Conversations(ctx, cred.Token)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	if cred.IsAdmin() {
		patients, err := d.api.Patients(ctx, cred.Token)
		if err != nil {
			return nil, err
		}
		for _, p := range patients {
			names[p.ID] = p.FullName
		}
	} else {
		own := convs[:0]
		for _, c := range convs {
			if c.PatientID == cred.UserID {
				own = append(own, c)
			}
		}
		convs = own
		if len(convs) == 0 && d.careTeamID != "" {
			c, err := d.api.CreateConversation(ctx, cred.Token, d.careTeamID)
			if err != nil {
				return nil, err
			}
			convs = append(convs, c)
		}
	}

	items := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		items = append(items, d.summarize(cred, c, names))
	}
	sortByActivity(items)

	d.mu.Lock()
	d.cred = cred
	d.items = items
	d.mu.Unlock()

	d.log.Debugw("conversations loaded", "count", len(items), "role", cred.Role)
	d.changed()
	return d.Items(), nil
}

func (d *Directory) summarize(cred Credential, c Conversation, names map[string]string) ConversationSummary {
	s := ConversationSummary{
		ID:           c.ID,
		PatientID:    c.PatientID,
		AdminID:      c.AdminID,
		LastMessage:  NoMessagesPreview,
		LastActivity: c.LastMessageAt,
	}
	if cred.IsAdmin() {
		s.CounterpartID = c.PatientID
		s.CounterpartName = names[c.PatientID]
	} else {
		s.CounterpartID = c.AdminID
		s.CounterpartName = d.careTeamName
	}
	s.Initials = Initials(s.CounterpartName)

	if n := len(c.Messages); n > 0 {
		last := c.Messages[n-1]
		s.LastMessage = Preview(last.Content)
		if last.CreatedAt.After(s.LastActivity) {
			s.LastActivity = last.CreatedAt
		}
	}
	for _, m := range c.Messages {
		if !m.FromSelf(cred.Role) && !m.Read {
			s.UnreadCount++
		}
	}
	return s
}

// Items returns a copy of the loaded conversations, most recent activity first
func (d *Directory) Items() []ConversationSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ConversationSummary(nil), d.items...)
}

// Get returns the conversation with the given id
func (d *Directory) Get(id string) (ConversationSummary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.items {
		if s.ID == id {
			return s, true
		}
	}
	return ConversationSummary{}, false
}

// Filter returns the conversations whose counterpart name or last message
// contains query, ignoring case
func (d *Directory) Filter(query string) []ConversationSummary {
	q := strings.ToLower(strings.TrimSpace(query))
	items := d.Items()
	if q == "" {
		return items
	}
	out := items[:0]
	for _, s := range items {
		if strings.Contains(strings.ToLower(s.CounterpartName), q) || strings.Contains(strings.ToLower(s.LastMessage), q) {
			out = append(out, s)
		}
	}
	return out
}

// UnreadConversations counts conversations with at least one unread message
func (d *Directory) UnreadConversations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.items {
		if s.UnreadCount > 0 {
			n++
		}
	}
	return n
}

// MarkRead clears the unread count of a conversation
func (d *Directory) MarkRead(id string) {
	d.mu.Lock()
	changed := false
	for i := range d.items {
		if d.items[i].ID == id && d.items[i].UnreadCount > 0 {
			d.items[i].UnreadCount = 0
			changed = true
		}
	}
	d.mu.Unlock()
	if changed {
		d.changed()
	}
}

// ObservePush folds a pushed message into its conversation's preview. When the
// conversation is not the one on screen, counterpart messages count as unread.
func (d *Directory) ObservePush(m Message, active bool) {
	d.mu.Lock()
	idx := -1
	for i := range d.items {
		if d.items[i].ID == m.ConversationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// first message of a conversation we have not listed yet
		s := ConversationSummary{ID: m.ConversationID, Initials: UnknownInitials}
		if !m.FromSelf(d.cred.Role) {
			s.CounterpartID = m.SenderID
		}
		d.items = append(d.items, s)
		idx = len(d.items) - 1
	}

	s := &d.items[idx]
	s.LastMessage = Preview(m.Content)
	if m.CreatedAt.After(s.LastActivity) {
		s.LastActivity = m.CreatedAt
	}
	if !active && !m.FromSelf(d.cred.Role) {
		s.UnreadCount++
	}
	sortByActivity(d.items)
	d.mu.Unlock()

	d.changed()
}

// OnChange registers fn to be called with the list after every change
func (d *Directory) OnChange(fn func([]ConversationSummary)) {
	d.mu.Lock()
	d.onChange = append(d.onChange, fn)
	d.mu.Unlock()
}

// Reset forgets every loaded conversation
func (d *Directory) Reset() {
	d.mu.Lock()
	d.items = nil
	d.cred = Credential{}
	d.mu.Unlock()
	d.changed()
}

func (d *Directory) changed() {
	d.mu.Lock()
	fns := append(([]func([]ConversationSummary))(nil), d.onChange...)
	items := append([]ConversationSummary(nil), d.items...)
	d.mu.Unlock()
	for _, fn := range fns {
		fn(items)
	}
}

func sortByActivity(items []ConversationSummary) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastActivity.After(items[j].LastActivity)
	})
}

// Initials returns the uppercased first letters of up to the first two words
// of name, or UnknownInitials when name is blank
func Initials(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return UnknownInitials
	}
	if len(fields) > 2 {
		fields = fields[:2]
	}
	var b strings.Builder
	for _, f := range fields {
		r, _ := utf8.DecodeRuneInString(f)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Preview shortens a message body for the conversation list
func Preview(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return NoMessagesPreview
	}
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	return string([]rune(content)[:previewRunes]) + "..."
}
