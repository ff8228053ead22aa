// Package domain contains entity without logic, just meta-data
package domain

import (
	"github.com/google/uuid"
)

// UserID is the opaque identity issued to a connection for its lifetime.
type UserID string

// IDGenerator produces candidate identities. Uniqueness against live
// connections is checked by the caller.
type IDGenerator func() UserID

// NewUserID returns a random identity.
func NewUserID() UserID {
	return UserID(uuid.NewString())
}

func (id UserID) String() string { return string(id) }
