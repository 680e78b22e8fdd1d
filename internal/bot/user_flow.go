package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"moviebot/internal/metrics"
	"moviebot/internal/models"
	"moviebot/internal/session"
)

const (
	greetingText = "Привет! Для поиска фильма нажимай кнопку «Ввести код». Фильмы пополняются ежедневно.\n\n" +
		"Спасибо за выбор нашего кинобота!"
	enterCodeText     = "Введите код фильма:"
	movieFoundFormat  = "Название фильма: %s"
	movieNotFoundText = "Фильм с таким кодом не найден. Пожалуйста, проверьте код и попробуйте снова."
)

// handleStart greets the user and resets any flow in progress
func (b *Bot) handleStart(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	b.replyWithKeyboard(ev.ChatID, greetingText, startKeyboard())
	return session.Idle(), nil
}

// handleEnterCode counts "enter code" presses and unlocks code entry at the threshold
func (b *Bot) handleEnterCode(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	count, err := b.db.IncrementClickCount(ctx, ev.UserID)
	if err != nil {
		return cur, err
	}

	if count < ClickThreshold {
		b.sendSubscribeMessage(ev.ChatID)
		return cur, nil
	}

	if err := b.db.ResetClickCount(ctx, ev.UserID); err != nil {
		return cur, err
	}
	metrics.CodeUnlocks.Inc()

	b.reply(ev.ChatID, enterCodeText)
	return session.New(session.StateAwaitingCode, nil), nil
}

// sendSubscribeMessage asks the user to join the monitored channels
func (b *Bot) sendSubscribeMessage(chatID int64) {
	var sb strings.Builder
	sb.WriteString("Для пользования ботом нужно обязательно подписаться на каналы команды!\n\n")
	for _, ch := range b.channels {
		fmt.Fprintf(&sb, "<a href=\"%s\">%s</a>\n", html.EscapeString(ch.URL()), html.EscapeString(ch.DisplayTitle()))
	}
	sb.WriteString("\nБлагодарим за поддержку!\n\n")

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	b.send(msg)
}

// handleCodeInput redeems a movie code. The flow ends either way.
func (b *Bot) handleCodeInput(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	code := strings.TrimSpace(ev.Text)
	if code == "" {
		b.reply(ev.ChatID, enterCodeText)
		return cur, nil
	}

	movie, err := b.db.GetMovieByCode(ctx, code)
	if err != nil {
		return cur, err
	}

	found := movie != nil
	if found {
		// Count first: a failed write must not leave a delivered title behind
		if _, err := b.db.IncrementMovieUsage(ctx, code); err != nil {
			return cur, err
		}
		b.reply(ev.ChatID, fmt.Sprintf(movieFoundFormat, movie.Title))
		metrics.Redemptions.WithLabelValues("found").Inc()
	} else {
		b.reply(ev.ChatID, movieNotFoundText)
		metrics.Redemptions.WithLabelValues("not_found").Inc()
	}

	b.recordRedemption(ctx, ev.UserID, code, found)

	return session.Idle(), nil
}

// recordRedemption writes to the analytics log; failures only get logged
func (b *Bot) recordRedemption(ctx context.Context, userID int64, code string, found bool) {
	err := b.redemptions.RecordRedemption(ctx, models.Redemption{
		ID:         uuid.New(),
		UserID:     userID,
		Code:       code,
		Found:      found,
		RedeemedAt: time.Now(),
	})
	if err != nil {
		b.logger.Warn("Failed to record redemption",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("code", code),
		)
	}
}
