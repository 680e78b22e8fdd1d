package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"moviebot/internal/config"
	"moviebot/internal/session"
	"moviebot/internal/storage"
)

// ClickThreshold is the number of "enter code" presses that unlocks code entry
const ClickThreshold = 3

// API is the part of the Telegram client the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
	StopReceivingUpdates()
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api         API
	db          storage.Storage
	sessions    session.Store
	redemptions storage.RedemptionLog
	admins      map[int64]bool
	channels    config.Channels
	channelIDs  map[int64]bool
	limiter     *rate.Limiter
	approval    ApprovalPolicy
	fsm         transitionTable
	dispatcher  *Dispatcher
	logger      *zap.Logger

	// ctx scopes background tasks; cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

// Options configures a Bot
type Options struct {
	AdminIDs []int64
	Channels config.Channels

	// BroadcastRate is the number of broadcast messages per second
	BroadcastRate  float64
	BroadcastBurst int

	Approval ApprovalPolicy

	Workers int
	// WorkerQueue caps pending updates per user
	WorkerQueue int
}

// ApprovalPolicy is the retry policy for join request approvals
type ApprovalPolicy struct {
	Retries uint64
	Backoff time.Duration
}

const defaultApprovalBackoff = 500 * time.Millisecond

func (p ApprovalPolicy) backoff() time.Duration {
	if p.Backoff <= 0 {
		return defaultApprovalBackoff
	}
	return p.Backoff
}

// EventKind classifies an inbound message
type EventKind int

const (
	EventText EventKind = iota
	EventCommand
	EventButton
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventButton:
		return "button"
	default:
		return "text"
	}
}

// Event is an inbound message reduced to what the conversation engine needs
type Event struct {
	UserID int64
	ChatID int64
	Kind   EventKind
	// Label is the command name or button label; empty for plain text
	Label string
	Text  string

	Username  *string
	FirstName *string
	LastName  *string
}
