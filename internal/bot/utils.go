package bot

import (
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxMessageLength is Telegram's limit for a single text message
const maxMessageLength = 4096

const failureText = "Произошла ошибка. Попробуйте позже."

// send delivers a message and reports whether it went through.
// Delivery failures are logged and never returned to the flow.
func (b *Bot) send(msg tgbotapi.MessageConfig) bool {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", msg.ChatID),
		)
		return false
	}
	return true
}

// reply sends plain text to a chat
func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// replyWithKeyboard sends text together with a reply keyboard
func (b *Bot) replyWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

// replyLong sends text split into chunks that fit in a message
func (b *Bot) replyLong(chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		b.reply(chatID, chunk)
	}
}

// splitMessage splits text on line boundaries into chunks of at most limit runes.
// A single line longer than limit is cut hard.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen > limit {
			flush()
		}
		for lineLen > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			lineLen -= limit
		}
		current.WriteString(line)
		currentLen += lineLen
	}
	flush()

	return chunks
}

// optional converts an empty Telegram profile field into nil
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
