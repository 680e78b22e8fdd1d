package bot

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moviebot/internal/metrics"
	"moviebot/internal/session"
	"moviebot/internal/storage"
)

// HandleUpdate processes a single update. A panic in any handler is
// logged and, for messages, answered with the failure text.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic while handling update",
				zap.Any("panic", r),
				zap.Int("update_id", update.UpdateID),
				zap.Int64("user_id", updateUserID(update)),
			)
			if update.Message != nil && update.Message.Chat != nil {
				b.reply(update.Message.Chat.ID, failureText)
			}
		}
	}()

	start := time.Now()

	switch {
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
		metrics.ObserveUpdate("message", time.Since(start).Seconds())
	case update.ChatJoinRequest != nil:
		b.handleJoinRequest(ctx, update.ChatJoinRequest)
		metrics.ObserveUpdate("join_request", time.Since(start).Seconds())
	}
}

// handleMessage runs one message through the conversation engine
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	ev := eventFromMessage(message)

	if err := b.db.UpsertUser(ctx, ev.UserID, ev.Username, ev.FirstName, ev.LastName); err != nil {
		b.fail(ev, "upsert user", err)
		return
	}

	cur, err := b.sessions.Get(ctx, ev.UserID)
	if err != nil {
		b.fail(ev, "get session", err)
		return
	}

	// Admin sessions of users no longer on the allow-list are void
	if cur.State.IsAdmin() && !b.IsAdmin(ev.UserID) {
		b.logger.Warn("Discarding admin session of non-admin user",
			zap.Int64("user_id", ev.UserID),
			zap.String("state", string(cur.State)),
		)
		cur = session.Idle()
	}

	handler, ok := b.fsm.lookup(cur.State, ev)
	if !ok {
		b.logger.Debug("No transition for event",
			zap.Int64("user_id", ev.UserID),
			zap.String("state", string(cur.State)),
			zap.Stringer("kind", ev.Kind),
			zap.String("label", ev.Label),
		)
		return
	}

	next, err := handler(ctx, ev, cur)
	if err != nil {
		b.fail(ev, string(cur.State), err)
		return
	}

	if err := b.saveSession(ctx, ev.UserID, next); err != nil {
		b.logger.Error("Failed to save session",
			zap.Error(err),
			zap.Int64("user_id", ev.UserID),
			zap.String("state", string(next.State)),
		)
	}
}

func (b *Bot) saveSession(ctx context.Context, userID int64, s session.Session) error {
	if s.State == session.StateIdle && len(s.Data) == 0 {
		return b.sessions.Clear(ctx, userID)
	}
	return b.sessions.Set(ctx, userID, s)
}

// fail logs a failed request and sends the generic failure message.
// The user's session is left as it was.
func (b *Bot) fail(ev Event, op string, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("op", op),
		zap.Int64("user_id", ev.UserID),
	}
	if errors.Is(err, storage.ErrFault) {
		b.logger.Error("Storage fault while handling message", fields...)
	} else {
		b.logger.Error("Failed to handle message", fields...)
	}
	b.reply(ev.ChatID, failureText)
}

// eventFromMessage classifies a message as a command, a known button or text
func eventFromMessage(message *tgbotapi.Message) Event {
	ev := Event{
		UserID:    message.From.ID,
		ChatID:    message.Chat.ID,
		Kind:      EventText,
		Text:      message.Text,
		Username:  optional(message.From.UserName),
		FirstName: optional(message.From.FirstName),
		LastName:  optional(message.From.LastName),
	}

	switch {
	case message.IsCommand():
		ev.Kind = EventCommand
		ev.Label = message.Command()
	case buttonLabels[message.Text]:
		ev.Kind = EventButton
		ev.Label = message.Text
	}

	return ev
}
