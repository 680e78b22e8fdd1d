package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moviebot/internal/metrics"
	"moviebot/internal/models"
)

// broadcast sends text to each user at the configured pace and returns the
// number of successful sends. A failed recipient never stops the batch.
func (b *Bot) broadcast(ctx context.Context, users []models.User, text string) int {
	sent := 0
	for i, user := range users {
		if err := b.limiter.Wait(ctx); err != nil {
			b.logger.Warn("Broadcast interrupted",
				zap.Error(err),
				zap.Int("sent", sent),
				zap.Int("remaining", len(users)-i),
			)
			break
		}

		if _, err := b.api.Send(tgbotapi.NewMessage(user.UserID, text)); err != nil {
			metrics.BroadcastMessages.WithLabelValues("failure").Inc()
			b.logger.Warn("Failed to deliver broadcast message",
				zap.Error(err),
				zap.Int64("user_id", user.UserID),
			)
			continue
		}

		metrics.BroadcastMessages.WithLabelValues("success").Inc()
		sent++
	}
	return sent
}
