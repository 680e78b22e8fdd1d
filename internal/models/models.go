package models

import (
	"time"

	"github.com/google/uuid"
)

// Movie is a catalog entry addressed by its code
type Movie struct {
	Code       string
	Title      string
	UsageCount int64
	CreatedAt  time.Time
}

// User is a known bot user. Profile fields are nil when Telegram never sent them.
type User struct {
	UserID     int64
	Username   *string
	FirstName  *string
	LastName   *string
	JoinedAt   time.Time
	IsAdmin    bool
	ClickCount int
}

// JoinRequestStatus is the lifecycle of a channel join request
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
)

// JoinRequest is a membership application to a monitored channel
type JoinRequest struct {
	UserID    int64
	ChannelID int64
	Status    JoinRequestStatus
}

// Redemption is a single code submission by a user
type Redemption struct {
	ID         uuid.UUID
	UserID     int64
	Code       string
	Found      bool
	RedeemedAt time.Time
}

// CodeStat is the number of redemption attempts for a code
type CodeStat struct {
	Code     string
	Attempts uint64
}

// RedemptionSummary aggregates redemption attempts over a period
type RedemptionSummary struct {
	Attempts uint64
	Found    uint64
}
