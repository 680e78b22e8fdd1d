package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"moviebot/internal/session"
	"moviebot/internal/storage"
)

// NewBot creates a new Telegram bot
func NewBot(token string, db storage.Storage, sessions session.Store, redemptions storage.RedemptionLog, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return newBot(api, db, sessions, redemptions, opts, logger), nil
}

func newBot(api API, db storage.Storage, sessions session.Store, redemptions storage.RedemptionLog, opts Options, logger *zap.Logger) *Bot {
	if redemptions == nil {
		redemptions = storage.NopRedemptionLog{}
	}

	admins := make(map[int64]bool, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = true
	}

	channelIDs := make(map[int64]bool, len(opts.Channels))
	for _, id := range opts.Channels.IDs() {
		channelIDs[id] = true
	}

	limit := rate.Inf
	if opts.BroadcastRate > 0 {
		limit = rate.Limit(opts.BroadcastRate)
	}
	burst := opts.BroadcastBurst
	if burst < 1 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		api:         api,
		db:          db,
		sessions:    sessions,
		redemptions: redemptions,
		admins:      admins,
		channels:    opts.Channels,
		channelIDs:  channelIDs,
		limiter:     rate.NewLimiter(limit, burst),
		approval:    opts.Approval,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	b.fsm = b.buildTransitions()
	b.dispatcher = NewDispatcher(opts.Workers, opts.WorkerQueue, b.HandleUpdate, logger)

	return b
}

// IsAdmin reports whether the user is on the administrator allow-list
func (b *Bot) IsAdmin(userID int64) bool {
	return b.admins[userID]
}
