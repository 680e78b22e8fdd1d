// Package session tracks where each user is in a multi-step conversation.
//
// Sessions are volatile. A lost or expired session reads back as Idle, which
// sends the user to the start of the flow without touching any stored data.
package session

import (
	"context"
	"time"
)

// State is a conversation state
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingCode     State = "awaiting_code"
	StateAdminPanel       State = "admin_panel"
	StateAddingMovieCode  State = "adding_movie_code"
	StateAddingMovieTitle State = "adding_movie_title"
	StateDeletingMovie    State = "deleting_movie"
	StateBroadcasting     State = "broadcasting"
)

// IsAdmin reports whether the state belongs to the admin flow
func (s State) IsAdmin() bool {
	switch s {
	case StateAdminPanel, StateAddingMovieCode, StateAddingMovieTitle, StateDeletingMovie, StateBroadcasting:
		return true
	}
	return false
}

// Data keys
const (
	KeyMovieCode = "code"
)

// Session is the state slot of one user
type Session struct {
	State     State             `json:"state"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Idle returns the initial session
func Idle() Session {
	return Session{State: StateIdle}
}

// New returns a session in the given state with optional data
func New(state State, data map[string]string) Session {
	return Session{State: state, Data: data}
}

// Value returns a data field or an empty string
func (s Session) Value(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}

// Store keeps sessions by user id
type Store interface {
	// Get returns the user's session, or Idle if none is stored or it expired
	Get(ctx context.Context, userID int64) (Session, error)
	Set(ctx context.Context, userID int64, s Session) error
	// Clear is equivalent to setting Idle
	Clear(ctx context.Context, userID int64) error
}
