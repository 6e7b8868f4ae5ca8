package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/primecare-chat/chat"
	"github.com/linesmerrill/primecare-chat/models"
)

var (
	t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	patientCred = chat.Credential{Token: "patient-token", UserID: "patient-1", Name: "Sarah Wilson", Role: models.RolePatient}
	adminCred   = chat.Credential{Token: "admin-token", UserID: "admin-1", Name: "Gabriel Udoh", Role: models.RoleAdmin}
)

// fakeSocket is an in-memory Socket. Frames pushed by the test are read by the
// connection; frames written by the connection are recorded.
type fakeSocket struct {
	token  string
	in     chan models.Envelope
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []models.Envelope
}

func newFakeSocket(token string) *fakeSocket {
	return &fakeSocket{token: token, in: make(chan models.Envelope, 32), closed: make(chan struct{})}
}

func (s *fakeSocket) ReadJSON(v interface{}) error {
	select {
	case env := <-s.in:
		b, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v)
	case <-s.closed:
		return io.EOF
	}
}

func (s *fakeSocket) WriteJSON(v interface{}) error {
	select {
	case <-s.closed:
		return errors.New("write on closed socket")
	default:
	}
	env, ok := v.(models.Envelope)
	if !ok {
		return errors.New("unexpected frame type")
	}
	s.mu.Lock()
	s.sent = append(s.sent, env)
	s.mu.Unlock()
	return nil
}

func (s *fakeSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *fakeSocket) push(t *testing.T, event string, payload interface{}) {
	env, err := models.NewEnvelope(event, payload)
	require.NoError(t, err)
	s.in <- env
}

// events returns the names of the frames written so far
func (s *fakeSocket) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.sent {
		out = append(out, e.Event)
	}
	return out
}

func (s *fakeSocket) frames(event string) []models.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Envelope
	for _, e := range s.sent {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeDialer struct {
	mu      sync.Mutex
	err     error
	sockets []*fakeSocket
}

func (d *fakeDialer) Dial(ctx context.Context, socketURL, token string) (chat.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeSocket(token)
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

func (d *fakeDialer) last() *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}

// backend is a scripted chat REST server
type backend struct {
	srv *httptest.Server

	mu            sync.Mutex
	conversations []chat.Conversation
	patients      []models.User
	messages      map[string][]chat.Message
	loads         map[string]int
	created       []string
	status        map[string]int
	raw           map[string]string
	arrived       map[string]chan struct{}
	release       map[string]chan struct{}
}

func newBackend(t *testing.T) *backend {
	b := &backend{
		messages: map[string][]chat.Message{},
		loads:    map[string]int{},
		status:   map[string]int{},
		raw:      map[string]string{},
		arrived:  map[string]chan struct{}{},
		release:  map[string]chan struct{}{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", b.login).Methods("POST")
	r.HandleFunc("/users/me", b.me).Methods("GET")
	r.HandleFunc("/users/patients", b.list("patients", func() interface{} { return b.patients })).Methods("GET")
	r.HandleFunc("/chat/conversations", b.list("conversations", func() interface{} { return b.conversations })).Methods("GET")
	r.HandleFunc("/chat/conversations", b.create).Methods("POST")
	r.HandleFunc("/chat/conversations/{conversationId}/messages", b.history).Methods("GET")

	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) override(w http.ResponseWriter, key string) bool {
	b.mu.Lock()
	status, raw := b.status[key], b.raw[key]
	b.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		w.Write([]byte(`{"response": "failed, boom"}`))
		return true
	}
	if raw != "" {
		w.Write([]byte(raw))
		return true
	}
	return false
}

func (b *backend) list(key string, get func() interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if b.override(w, key) {
			return
		}
		b.mu.Lock()
		body, _ := json.Marshal(get())
		b.mu.Unlock()
		w.Write(body)
	}
}

func (b *backend) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Password != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"response": "invalid credentials, bad password"}`))
		return
	}
	json.NewEncoder(w).Encode(models.LoginResponse{AccessToken: patientCred.Token})
}

func (b *backend) me(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(models.User{ID: patientCred.UserID, FullName: patientCred.Name, Role: models.RolePatient})
}

func (b *backend) create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	conv := chat.Conversation{ID: "conv-new", PatientID: patientCred.UserID, AdminID: req.AdminID, LastMessageAt: t0}
	b.mu.Lock()
	b.created = append(b.created, req.AdminID)
	b.conversations = append(b.conversations, conv)
	b.mu.Unlock()
	json.NewEncoder(w).Encode(conv)
}

func (b *backend) history(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["conversationId"]
	b.mu.Lock()
	b.loads[id]++
	arrived, release := b.arrived[id], b.release[id]
	b.mu.Unlock()

	if release != nil {
		arrived <- struct{}{}
		<-release
	}
	if b.override(w, "messages:"+id) {
		return
	}

	b.mu.Lock()
	body, _ := json.Marshal(b.messages[id])
	b.mu.Unlock()
	w.Write(body)
}

// hold makes the next history loads of id wait until the returned func is called
func (b *backend) hold(id string) (arrived <-chan struct{}, release func()) {
	a := make(chan struct{}, 4)
	r := make(chan struct{})
	b.mu.Lock()
	b.arrived[id] = a
	b.release[id] = r
	b.mu.Unlock()
	var once sync.Once
	return a, func() { once.Do(func() { close(r) }) }
}

func (b *backend) loadCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads[id]
}

func (b *backend) fail(key string, status int) {
	b.mu.Lock()
	b.status[key] = status
	b.mu.Unlock()
}

func (b *backend) respond(key, raw string) {
	b.mu.Lock()
	b.raw[key] = raw
	b.mu.Unlock()
}

// newSession starts a session for cred against b with a fake socket
func newSession(t *testing.T, b *backend, cred chat.Credential) (*chat.Session, *fakeDialer) {
	d := &fakeDialer{}
	s := chat.NewSession(chat.Config{
		BaseURL:   b.srv.URL,
		SocketURL: "ws://chat.test/chat",
		Dialer:    d,
	})
	t.Cleanup(s.Close)
	if !cred.Empty() {
		require.NoError(t, s.Start(context.Background(), cred))
	}
	return s, d
}

func msg(id, conv, sender, content string, at time.Time) chat.Message {
	return chat.Message{ID: id, ConversationID: conv, Sender: sender, Content: content, CreatedAt: at}
}

func ids(msgs []chat.Message) []string {
	out := []string{}
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func (b *backend) createdAdmins() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.created...)
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)
