package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/primecare-chat/api"
	"github.com/linesmerrill/primecare-chat/models"
)

func hashed(t *testing.T, password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuth_LoginHandler(t *testing.T) {
	ta := newTestApp()
	stored := patient
	stored.PasswordHash = hashed(t, "s3cret")
	ta.userDB.On("FindOne", mock.Anything, bson.M{"email": "sarah@example.com"}).Return(&stored, nil)

	req := httptest.NewRequest("POST", "/auth/login", stringsReader(`{"email": " Sarah@Example.com ", "password": "s3cret"}`))
	response := ta.do(req)

	require.Equal(t, http.StatusOK, response.Code)
	var body models.LoginResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))

	claims, err := api.ParseToken(testSecret, body.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "patient-1", claims.Subject)
	assert.Equal(t, models.RolePatient, claims.Role)
}

func TestAuth_LoginHandlerWrongPassword(t *testing.T) {
	ta := newTestApp()
	stored := patient
	stored.PasswordHash = hashed(t, "s3cret")
	ta.userDB.On("FindOne", mock.Anything, mock.Anything).Return(&stored, nil)

	response := ta.do(httptest.NewRequest("POST", "/auth/login", stringsReader(`{"email": "sarah@example.com", "password": "nope"}`)))

	assert.Equal(t, http.StatusUnauthorized, response.Code)
	assert.NotContains(t, response.Body.String(), "access_token")
}

func TestAuth_LoginHandlerUnknownEmail(t *testing.T) {
	ta := newTestApp()
	ta.userDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	response := ta.do(httptest.NewRequest("POST", "/auth/login", stringsReader(`{"email": "who@example.com", "password": "x"}`)))

	assert.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestAuth_LoginHandlerBadBody(t *testing.T) {
	ta := newTestApp()

	response := ta.do(httptest.NewRequest("POST", "/auth/login", stringsReader(`{"email":`)))
	assert.Equal(t, http.StatusBadRequest, response.Code)

	response = ta.do(httptest.NewRequest("POST", "/auth/login", stringsReader(`{"email": "", "password": ""}`)))
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestAuth_MeHandler(t *testing.T) {
	ta := newTestApp()
	stored := patient
	stored.PasswordHash = "hash"
	ta.userDB.On("FindOne", mock.Anything, bson.M{"_id": "patient-1"}).Return(&stored, nil)

	response := ta.do(authedRequest(t, "GET", "/users/me", patient, nil))

	require.Equal(t, http.StatusOK, response.Code)
	assert.NotContains(t, response.Body.String(), "hash")

	var got models.User
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &got))
	assert.Equal(t, "Sarah Wilson", got.FullName)
}

func TestAuth_MeHandlerNotFound(t *testing.T) {
	ta := newTestApp()
	ta.userDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))

	response := ta.do(authedRequest(t, "GET", "/users/me", patient, nil))

	assert.Equal(t, http.StatusNotFound, response.Code)
	assert.Equal(t, `{"response": "failed to get user by ID, mocked-error"}`, response.Body.String())
}
