package api

import (
	"context"
	"time"

	"github.com/linesmerrill/primecare-chat/models"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// Actor is the authenticated caller of a request
type Actor struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// IsAdmin reports whether the actor belongs to the care team
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by the auth middleware
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
