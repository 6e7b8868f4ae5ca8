package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/models"
)

// DefaultTimeout bounds every REST call made by API
const DefaultTimeout = 15 * time.Second

// Attachment is a file kept alongside a locally composed message
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Message is a chat message as seen by the client
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId,omitempty"`
	Sender         string      `json:"sender"`
	Content        string      `json:"content"`
	CorrelationID  string      `json:"correlationId,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	Read           bool        `json:"read"`
	Attachment     *Attachment `json:"attachment,omitempty"`
}

// FromSelf reports whether the message was sent by the given role
func (m Message) FromSelf(role string) bool {
	return m.Sender == role
}

// Pending reports whether the message is a local optimistic copy
func (m Message) Pending() bool {
	return strings.HasPrefix(m.ID, tempIDPrefix)
}

// Conversation is a conversation as returned by the REST API
type Conversation struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patientId"`
	AdminID       string    `json:"adminId"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	Messages      []Message `json:"messages"`
}

// API is a client for the chat REST endpoints
type API struct {
	BaseURL    string
	HTTPClient *http.Client
	log        *zap.SugaredLogger
}

// NewAPI creates a REST client for baseURL
func NewAPI(baseURL string, log *zap.SugaredLogger) *API {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &API{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		log:        log,
	}
}

// Login exchanges email and password for a bearer token
func (a *API) Login(ctx context.Context, email, password string) (string, error) {
	var resp models.LoginResponse
	body, err := a.doRequest(ctx, "login", http.MethodPost, "/auth/login", "", models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.AccessToken == "" {
		return "", &FetchError{Op: "login", Err: errors.New("malformed token response")}
	}
	return resp.AccessToken, nil
}

// Me returns the user the token belongs to
func (a *API) Me(ctx context.Context, token string) (models.User, error) {
	var u models.User
	body, err := a.doRequest(ctx, "current user", http.MethodGet, "/users/me", token, nil)
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return u, &FetchError{Op: "current user", Err: fmt.Errorf("decode: %w", err)}
	}
	return u, nil
}

// Conversations lists the conversations visible to the token holder. A
// malformed body yields an empty list.
func (a *API) Conversations(ctx context.Context, token string) ([]Conversation, error) {
	body, err := a.doRequest(ctx, "list conversations", http.MethodGet, "/chat/conversations", token, nil)
	if err != nil {
		return nil, err
	}
	var convs []Conversation
	if !a.decodeList("list conversations", body, &convs) {
		return nil, nil
	}
	return convs, nil
}

// CreateConversation returns the patient's conversation with adminID, creating it when needed
func (a *API) CreateConversation(ctx context.Context, token, adminID string) (Conversation, error) {
	var conv Conversation
	body, err := a.doRequest(ctx, "create conversation", http.MethodPost, "/chat/conversations", token, models.CreateConversationRequest{AdminID: adminID})
	if err != nil {
		return conv, err
	}
	if err := json.Unmarshal(body, &conv); err != nil || conv.ID == "" {
		return conv, &FetchError{Op: "create conversation", Err: errors.New("malformed conversation response")}
	}
	return conv, nil
}

// Messages returns the ordered history of a conversation. A malformed body
// yields an empty list.
func (a *API) Messages(ctx context.Context, token, conversationID string) ([]Message, error) {
	op := "load messages"
	body, err := a.doRequest(ctx, op, http.MethodGet, "/chat/conversations/"+url.PathEscape(conversationID)+"/messages", token, nil)
	if err != nil {
		return nil, err
	}
	var msgs []Message
	if !a.decodeList(op, body, &msgs) {
		return nil, nil
	}
	return msgs, nil
}

// Patients returns the patient directory, admin tokens only
func (a *API) Patients(ctx context.Context, token string) ([]models.User, error) {
	body, err := a.doRequest(ctx, "list patients", http.MethodGet, "/users/patients", token, nil)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if !a.decodeList("list patients", body, &users) {
		return nil, nil
	}
	return users, nil
}

// decodeList reports false when body is empty or not a well formed list. A
// partial decode is never returned to the caller.
func (a *API) decodeList(op string, body []byte, v interface{}) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		a.log.Warnw("ignoring malformed response", "op", op, "error", err)
		return false
	}
	return true
}

func (a *API) doRequest(ctx context.Context, op, method, path, token string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &FetchError{Op: op, Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &FetchError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(serverMessage(respBody))}
	}
	return respBody, nil
}

// serverMessage pulls the human readable part out of an error body
func serverMessage(body []byte) string {
	var e struct {
		Error    string `json:"error"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Response != "" {
			return e.Response
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return "request failed"
}
