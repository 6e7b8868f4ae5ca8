package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/primecare-chat/api"
	"github.com/linesmerrill/primecare-chat/api/handlers"
	"github.com/linesmerrill/primecare-chat/config"
	mocksdb "github.com/linesmerrill/primecare-chat/databases/mocks"
	"github.com/linesmerrill/primecare-chat/models"
)

const testSecret = "handlers-test-secret"

var (
	patient = models.User{ID: "patient-1", Email: "sarah@example.com", FullName: "Sarah Wilson", Role: models.RolePatient}
	admin   = models.User{ID: "admin-1", Email: "care@primecare.health", FullName: "PrimeCare Admin", Role: models.RoleAdmin}
)

type testApp struct {
	*handlers.App
	userDB *mocksdb.UserDatabase
	convDB *mocksdb.ConversationDatabase
	msgDB  *mocksdb.MessageDatabase
}

func newTestApp() *testApp {
	ta := &testApp{
		userDB: &mocksdb.UserDatabase{},
		convDB: &mocksdb.ConversationDatabase{},
		msgDB:  &mocksdb.MessageDatabase{},
	}
	ta.App = &handlers.App{
		Config: config.Config{JWTSecret: testSecret, SendRate: 100, SendBurst: 100},
		UserDB: ta.userDB,
		ConvDB: ta.convDB,
		MsgDB:  ta.msgDB,
	}
	ta.Router = ta.New()
	return ta
}

func tokenFor(t *testing.T, u models.User) string {
	token, err := api.IssueToken(testSecret, u, time.Hour)
	require.NoError(t, err)
	return token
}

func (ta *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ta.Router.ServeHTTP(rr, req)
	return rr
}

func authedRequest(t *testing.T, method, url string, u models.User, body *string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, url, stringsReader(*body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, u))
	return req
}
