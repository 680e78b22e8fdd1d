package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"moviebot/internal/metrics"
	"moviebot/internal/models"
)

// handleJoinRequest records and approves join requests to monitored channels.
// Requests to other chats are ignored without touching the store.
func (b *Bot) handleJoinRequest(ctx context.Context, req *tgbotapi.ChatJoinRequest) {
	userID := req.From.ID
	channelID := req.Chat.ID

	if !b.channelIDs[channelID] {
		metrics.JoinRequests.WithLabelValues("ignored").Inc()
		b.logger.Debug("Ignoring join request for unmonitored chat",
			zap.Int64("user_id", userID),
			zap.Int64("chat_id", channelID),
		)
		return
	}

	logger := b.logger.With(zap.Int64("user_id", userID), zap.Int64("channel_id", channelID))

	if err := b.db.AddJoinRequest(ctx, userID, channelID, models.JoinRequestPending); err != nil {
		logger.Error("Failed to record join request", zap.Error(err))
		return
	}

	if err := b.approveJoinRequest(ctx, userID, channelID); err != nil {
		metrics.JoinRequests.WithLabelValues("failed").Inc()
		logger.Error("Failed to approve join request", zap.Error(err))
		return
	}

	if _, err := b.db.UpdateJoinRequestStatus(ctx, userID, channelID, models.JoinRequestApproved); err != nil {
		logger.Error("Join request approved but status update failed", zap.Error(err))
		return
	}

	metrics.JoinRequests.WithLabelValues("approved").Inc()
	logger.Info("Join request approved")
}

// approveJoinRequest calls Telegram with exponential backoff
func (b *Bot) approveJoinRequest(ctx context.Context, userID, channelID int64) error {
	approve := tgbotapi.ApproveChatJoinRequestConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: channelID},
		UserID:     userID,
	}

	backoff := retry.WithMaxRetries(b.approval.Retries, retry.NewExponential(b.approval.backoff()))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if _, err := b.api.Request(approve); err != nil {
			b.logger.Warn("Join request approval attempt failed",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Int64("user_id", userID),
				zap.Int64("channel_id", channelID),
			)
			return retry.RetryableError(fmt.Errorf("approve join request: %w", err))
		}
		return nil
	})
}
