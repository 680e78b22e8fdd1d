package storage

import (
	"context"
	"time"

	"moviebot/internal/models"
)

// Storage defines the interface for durable bot state.
//
// Missing rows are reported through boolean results or nil records.
// Returned errors are always storage faults (see ErrFault).
type Storage interface {
	// Movie operations

	// AddMovie inserts a movie and reports false if the code is already taken
	AddMovie(ctx context.Context, code, title string) (bool, error)
	GetMovieByCode(ctx context.Context, code string) (*models.Movie, error)
	IncrementMovieUsage(ctx context.Context, code string) (bool, error)
	// ListMovies returns the catalog, most recently added first
	ListMovies(ctx context.Context) ([]models.Movie, error)
	DeleteMovie(ctx context.Context, code string) (bool, error)

	// User operations

	// UpsertUser creates the user or merges the profile. Nil fields keep the stored value.
	UpsertUser(ctx context.Context, userID int64, username, firstName, lastName *string) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// IncrementClickCount returns the new counter value, or 0 for an unknown user
	IncrementClickCount(ctx context.Context, userID int64) (int, error)
	ResetClickCount(ctx context.Context, userID int64) error
	SetAdminStatus(ctx context.Context, userID int64, isAdmin bool) error
	ListUsers(ctx context.Context) ([]models.User, error)

	// Join request operations

	// AddJoinRequest records a join request. An approved request never goes back to pending.
	AddJoinRequest(ctx context.Context, userID, channelID int64, status models.JoinRequestStatus) error
	UpdateJoinRequestStatus(ctx context.Context, userID, channelID int64, status models.JoinRequestStatus) (bool, error)
	GetJoinRequest(ctx context.Context, userID, channelID int64) (*models.JoinRequest, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// RedemptionLog records code submissions for statistics
type RedemptionLog interface {
	RecordRedemption(ctx context.Context, r models.Redemption) error
	// Summary counts attempts made at or after since
	Summary(ctx context.Context, since time.Time) (models.RedemptionSummary, error)
	TopCodes(ctx context.Context, limit int, since time.Time) ([]models.CodeStat, error)

	Initialize(ctx context.Context) error
	Close() error
}
