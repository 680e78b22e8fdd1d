package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Commands
const (
	CommandStart = "start"
	CommandAdmin = "admin"
)

// Reply keyboard labels. Buttons are matched by exact text.
const (
	ButtonEnterCode   = "Ввести код"
	ButtonAddMovie    = "Добавить фильм"
	ButtonListMovies  = "Список фильмов"
	ButtonDeleteMovie = "Удалить фильм"
	ButtonBroadcast   = "Рассылка"
	ButtonStats       = "Статистика"
	ButtonExitAdmin   = "Выйти из админ-панели"
)

var buttonLabels = map[string]bool{
	ButtonEnterCode:   true,
	ButtonAddMovie:    true,
	ButtonListMovies:  true,
	ButtonDeleteMovie: true,
	ButtonBroadcast:   true,
	ButtonStats:       true,
	ButtonExitAdmin:   true,
}

// startKeyboard is shown to regular users
func startKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonEnterCode)),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// adminKeyboard is the admin panel menu, one action per row
func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	labels := []string{ButtonAddMovie, ButtonListMovies, ButtonDeleteMovie, ButtonBroadcast, ButtonStats, ButtonExitAdmin}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
	}

	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// botCommands is the command menu registered with Telegram
func botCommands() tgbotapi.SetMyCommandsConfig {
	return tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: CommandStart, Description: "Запустить бота"},
		tgbotapi.BotCommand{Command: CommandAdmin, Description: "Админ-панель (только для администраторов)"},
	)
}
