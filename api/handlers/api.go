package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/linesmerrill/primecare-chat/api"
	"github.com/linesmerrill/primecare-chat/config"
	"github.com/linesmerrill/primecare-chat/databases"
)

// requestTimeout bounds every REST request. The websocket route is not wrapped.
const requestTimeout = 30 * time.Second

// App stores the router and db connection, so it can be reused
type App struct {
	Router *mux.Router
	Config config.Config
	Hub    *ChatHub

	// Collections default to the mongo database set up by Initialize
	UserDB databases.UserDatabase
	ConvDB databases.ConversationDatabase
	MsgDB  databases.MessageDatabase

	dbHelper    databases.DatabaseHelper
	client      databases.ClientHelper
	broadcaster Broadcaster
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	a.defaultCollections()

	guard := api.NewGuard(context.Background(), a.Config.JWTSecret)
	if a.Hub == nil {
		a.Hub = NewChatHub(a.ConvDB, a.MsgDB, a.broadcaster, a.Config.SendRate, a.Config.SendBurst)
	}

	auth := Auth{DB: a.UserDB, Secret: a.Config.JWTSecret}
	u := User{DB: a.UserDB}
	c := Chat{ConvDB: a.ConvDB, MsgDB: a.MsgDB, UserDB: a.UserDB}

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	// healthchex
	r.HandleFunc("/health", api.HealthCheckHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// websocket chat, token in the query string or the Authorization header
	r.Handle("/chat", guard.Middleware(http.HandlerFunc(a.Hub.ServeWS))).Methods("GET")

	rest := r.NewRoute().Subrouter()
	rest.Use(api.TimeoutMiddleware(requestTimeout))

	rest.HandleFunc("/auth/login", auth.LoginHandler).Methods("POST")
	rest.Handle("/users/me", guard.Middleware(http.HandlerFunc(auth.MeHandler))).Methods("GET")
	rest.Handle("/users/patients", guard.Middleware(api.AdminOnly(http.HandlerFunc(u.PatientsHandler)))).Methods("GET")

	rest.Handle("/chat/conversations", guard.Middleware(http.HandlerFunc(c.ConversationsHandler))).Methods("GET")
	rest.Handle("/chat/conversations", guard.Middleware(http.HandlerFunc(c.CreateConversationHandler))).Methods("POST")
	rest.Handle("/chat/conversations/{conversationId}/messages", guard.Middleware(http.HandlerFunc(c.MessagesHandler))).Methods("GET")

	return r
}

func (a *App) defaultCollections() {
	if a.UserDB == nil {
		a.UserDB = databases.NewUserDatabase(a.dbHelper)
	}
	if a.ConvDB == nil {
		a.ConvDB = databases.NewConversationDatabase(a.dbHelper)
	}
	if a.MsgDB == nil {
		a.MsgDB = databases.NewMessageDatabase(a.dbHelper)
	}
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize(ctx context.Context) error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client = client
	zap.S().Info("primecare-chat has connected to the database")

	if a.Config.RedisURL != "" {
		rb, err := NewRedisBroadcaster(ctx, a.Config.RedisURL)
		if err != nil {
			zap.S().With(err).Error("failed to connect to redis")
			return err
		}
		a.broadcaster = rb
		zap.S().Info("chat rooms fan out through redis")
	} else {
		a.broadcaster = NewLocalBroadcaster(0)
	}

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Database returns the database set up by Initialize
func (a *App) Database() databases.DatabaseHelper {
	return a.dbHelper
}

// Close releases the database and broadcaster connections
func (a *App) Close(ctx context.Context) {
	if rb, ok := a.broadcaster.(*RedisBroadcaster); ok {
		if err := rb.Close(); err != nil {
			zap.S().Warnw("failed to close redis", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect from database", "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
