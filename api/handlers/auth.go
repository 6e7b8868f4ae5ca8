package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/primecare-chat/api"
	"github.com/linesmerrill/primecare-chat/config"
	"github.com/linesmerrill/primecare-chat/databases"
	"github.com/linesmerrill/primecare-chat/models"
)

var errInvalidCredentials = errors.New("invalid email or password")

// Auth exchanges credentials for access tokens
type Auth struct {
	DB       databases.UserDatabase
	Secret   string
	TokenTTL time.Duration
}

// LoginHandler verifies an email and password and returns a signed access token
func (a Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		config.ErrorStatus("email and password are required", http.StatusBadRequest, w, errInvalidCredentials)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.DB.FindOne(ctx, bson.M{"email": email})
	if err != nil {
		zap.S().Debugw("login for unknown email", "email", email, "error", err)
		config.ErrorStatus("failed to login", http.StatusUnauthorized, w, errInvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		config.ErrorStatus("failed to login", http.StatusUnauthorized, w, errInvalidCredentials)
		return
	}

	token, err := api.IssueToken(a.Secret, *user, a.TokenTTL)
	if err != nil {
		config.ErrorStatus("failed to issue token", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("user logged in", "user", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, models.LoginResponse{AccessToken: token})
}

// MeHandler returns the authenticated user
func (a Auth) MeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("failed to resolve user", http.StatusUnauthorized, w, errors.New("no actor"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.DB.FindOne(ctx, bson.M{"_id": actor.ID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
