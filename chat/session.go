package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/config"
)

// Defaults used when Config leaves a field empty
const (
	DefaultBaseURL      = "http://localhost:3001"
	DefaultSocketURL    = "ws://localhost:3001/chat"
	DefaultCareTeamID   = "4e0a4401-c205-4bdb-8edf-3d6c24bf6951"
	DefaultCareTeamName = "Dr. Gabriel Udoh"
)

// Config configures a Session
type Config struct {
	BaseURL           string
	SocketURL         string
	CareTeamID        string
	CareTeamName      string
	CorrelationWindow time.Duration
	Timeout           time.Duration

	Dialer   Dialer
	Uploader Uploader
	Log      *zap.SugaredLogger
}

// ConfigFromEnv reads CHAT_BASE_URL, CHAT_SOCKET_URL, CHAT_ADMIN_ID and CHAT_ADMIN_NAME
func ConfigFromEnv() Config {
	return Config{
		BaseURL:      config.Getenv("CHAT_BASE_URL", DefaultBaseURL),
		SocketURL:    config.Getenv("CHAT_SOCKET_URL", DefaultSocketURL),
		CareTeamID:   config.Getenv("CHAT_ADMIN_ID", DefaultCareTeamID),
		CareTeamName: config.Getenv("CHAT_ADMIN_NAME", DefaultCareTeamName),
	}
}

// Session owns the chat components of one signed in user. It is created once
// and handed the credential on Start.
type Session struct {
	API       *API
	Conn      *Connection
	Directory *Directory
	Stream    *Stream
	Composer  *Composer

	log *zap.SugaredLogger

	mu   sync.Mutex
	cred Credential
}

// NewSession wires a Connection, Directory, Stream and Composer together
func NewSession(cfg Config) *Session {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SocketURL == "" {
		cfg.SocketURL = DefaultSocketURL
	}
	if cfg.CareTeamID == "" {
		cfg.CareTeamID = DefaultCareTeamID
	}
	if cfg.CareTeamName == "" {
		cfg.CareTeamName = DefaultCareTeamName
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	api := NewAPI(cfg.BaseURL, log)
	if cfg.Timeout > 0 {
		api.HTTPClient.Timeout = cfg.Timeout
	}
	conn := NewConnection(cfg.SocketURL, cfg.Dialer, log)
	dir := NewDirectory(api, cfg.CareTeamID, cfg.CareTeamName, log)
	stream := NewStream(conn, api, dir, log)
	if cfg.CorrelationWindow > 0 {
		stream.SetCorrelationWindow(cfg.CorrelationWindow)
	}

	return &Session{
		API:       api,
		Conn:      conn,
		Directory: dir,
		Stream:    stream,
		Composer:  NewComposer(conn, stream, cfg.Uploader, log),
		log:       log,
	}
}

// Login signs in with email and password and starts the session
func (s *Session) Login(ctx context.Context, email, password string) (Credential, error) {
	token, err := s.API.Login(ctx, email, password)
	if err != nil {
		return Credential{}, err
	}
	u, err := s.API.Me(ctx, token)
	if err != nil {
		return Credential{}, err
	}
	cred := Credential{Token: token, UserID: u.ID, Name: u.FullName, Role: u.Role}
	return cred, s.Start(ctx, cred)
}

// Start hands the session a credential and opens the realtime connection. A
// connect error leaves the session usable for REST calls.
func (s *Session) Start(ctx context.Context, cred Credential) error {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()

	s.Stream.Reset()
	if err := s.Conn.SetCredential(ctx, cred); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// Credential returns the credential the session was started with
func (s *Session) Credential() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// Conversations loads the conversation list
func (s *Session) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	return s.Directory.Load(ctx, s.Credential())
}

// Open selects a conversation and loads its history
func (s *Session) Open(ctx context.Context, conversationID string) error {
	return s.Stream.Select(ctx, s.Credential(), conversationID)
}

// Send composes a message in the selected conversation
func (s *Session) Send(ctx context.Context, body string, file *Upload) (Message, error) {
	return s.Composer.Send(ctx, s.Stream.ConversationID(), body, file)
}

// Messages returns the visible message list
func (s *Session) Messages() []Message {
	return s.Stream.Messages()
}

// Logout leaves the selected conversation and closes the connection
func (s *Session) Logout() {
	s.Stream.Unsubscribe()
	_ = s.Conn.Close()
	s.Directory.Reset()

	s.mu.Lock()
	s.cred = Credential{}
	s.mu.Unlock()
}

// Close logs out and detaches every listener
func (s *Session) Close() {
	s.Logout()
	s.Stream.Close()
}
