package domain

import "github.com/google/uuid"

// Caller is the authenticated principal invoking a loan operation.
type Caller struct {
	UserID  uuid.UUID
	IsAdmin bool
}
