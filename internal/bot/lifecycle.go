package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moviebot/internal/metrics"
)

// allowedUpdates limits what Telegram delivers to the bot
var allowedUpdates = []string{"message", "chat_join_request"}

// Start starts the bot in polling mode and blocks until updates stop
func (b *Bot) Start() error {
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	b.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = allowedUpdates

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	for update := range updates {
		b.Submit(update)
	}
	return nil
}

// StartWebhook sets up the bot to receive updates via webhook
func (b *Bot) StartWebhook(webhookURL string) error {
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + "/telegram-webhook")
	if err != nil {
		return err
	}
	webhookConfig.MaxConnections = 40
	webhookConfig.AllowedUpdates = allowedUpdates

	if _, err := b.api.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	// Get webhook info to verify
	info, err := b.api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}

	b.registerCommands()

	b.logger.Info("Bot configured for webhook mode")
	return nil
}

// Submit queues an update for handling. It never blocks the caller.
func (b *Bot) Submit(update tgbotapi.Update) {
	err := b.dispatcher.Submit(update)
	if err == nil {
		return
	}

	reason := "stopped"
	if errors.Is(err, ErrUserQueueFull) {
		reason = "queue_full"
	}
	metrics.DroppedUpdates.WithLabelValues(reason).Inc()
	b.logger.Warn("Dropping update",
		zap.Error(err),
		zap.Int("update_id", update.UpdateID),
		zap.Int64("user_id", updateUserID(update)),
	)
}

// Stop stops polling, waits for queued updates to finish and then
// interrupts background work such as running broadcasts
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	b.dispatcher.Stop()
	b.cancel()
	b.tasks.Wait()
}

// goBackground runs fn outside the update workers. fn gets a context that
// is cancelled by Stop.
func (b *Bot) goBackground(fn func(ctx context.Context)) {
	b.tasks.Add(1)
	go func() {
		defer b.tasks.Done()
		fn(b.ctx)
	}()
}

func (b *Bot) registerCommands() {
	if _, err := b.api.Request(botCommands()); err != nil {
		b.logger.Warn("Failed to register bot commands", zap.Error(err))
	}
}
