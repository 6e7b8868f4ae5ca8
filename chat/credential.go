package chat

import "github.com/linesmerrill/primecare-chat/models"

// Credential is the session credential of the signed in actor
type Credential struct {
	Token  string
	UserID string
	Name   string
	Role   string
}

// Empty reports whether there is no bearer token
func (c Credential) Empty() bool {
	return c.Token == ""
}

// IsAdmin reports whether the actor belongs to the care team
func (c Credential) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}
