package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
)

// tokenCacheTTL bounds how long a validated token is served from the strategy cache
const tokenCacheTTL = 10 * time.Minute

// Guard authenticates requests carrying a signed access token
type Guard struct {
	secret        string
	authenticator auth.Authenticator
}

// NewGuard sets up go-guardian with a cached bearer strategy backed by ParseToken
func NewGuard(ctx context.Context, secret string) *Guard {
	g := &Guard{secret: secret, authenticator: auth.New()}
	cache := store.NewFIFO(ctx, tokenCacheTTL)
	tokenStrategy := bearer.New(g.validateToken, cache)
	g.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
	return g
}

func (g *Guard) validateToken(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	claims, err := ParseToken(g.secret, token)
	if err != nil {
		return nil, err
	}
	return auth.NewDefaultUser(claims.Name, claims.Subject, []string{claims.Role}, map[string][]string{
		"email": {claims.Email},
	}), nil
}

// Authenticate resolves the actor of r. Websocket clients that cannot set headers may pass
// the token in the "token" query field.
func (g *Guard) Authenticate(r *http.Request) (Actor, error) {
	if r.Header.Get("Authorization") == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
	info, err := g.authenticator.Authenticate(r)
	if err != nil {
		return Actor{}, err
	}
	actor := Actor{ID: info.ID(), Name: info.UserName()}
	if groups := info.Groups(); len(groups) > 0 {
		actor.Role = groups[0]
	}
	if emails := info.Extensions()["email"]; len(emails) > 0 {
		actor.Email = emails[0]
	}
	return actor, nil
}

// Middleware rejects unauthenticated requests and stores the actor on the request context
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := g.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL.Path,
				"error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugw("user authenticated", "user", actor.ID, "role", actor.Role)
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// AdminOnly rejects callers that are not on the care team. It must run after Middleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || !actor.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
