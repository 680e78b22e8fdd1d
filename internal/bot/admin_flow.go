package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"moviebot/internal/models"
	"moviebot/internal/session"
)

const (
	accessDeniedText     = "У вас нет прав для доступа к админ-панели."
	adminWelcomeText     = "Вы вошли в админ-панель. Выберите действие:"
	adminExitText        = "Вы вышли из админ-панели."
	enterTitleText       = "Введите название фильма:"
	addMovieFailedText   = "Произошла ошибка при добавлении фильма. Пожалуйста, попробуйте снова."
	noMoviesText         = "В базе данных нет фильмов."
	noMoviesToDeleteText = "В базе данных нет фильмов для удаления."
	enterBroadcastText   = "Введите текст для рассылки всем пользователям:"
	noRecipientsText     = "В базе данных нет пользователей для рассылки."
)

// statsWindow is the redemption period covered by the stats screen
const statsWindow = 24 * time.Hour

const statsTopCodes = 5

// handleAdmin opens the admin panel for allow-listed users
func (b *Bot) handleAdmin(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	if !b.IsAdmin(ev.UserID) {
		b.logger.Warn("Unauthorized admin panel access attempt", zap.Int64("user_id", ev.UserID))
		b.reply(ev.ChatID, accessDeniedText)
		return cur, nil
	}

	if err := b.db.SetAdminStatus(ctx, ev.UserID, true); err != nil {
		return cur, err
	}

	b.replyWithKeyboard(ev.ChatID, adminWelcomeText, adminKeyboard())
	return adminPanel(), nil
}

func (b *Bot) handleExitAdmin(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	b.replyWithKeyboard(ev.ChatID, adminExitText, startKeyboard())
	return session.Idle(), nil
}

func (b *Bot) handleAddMovieStart(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	b.reply(ev.ChatID, enterCodeText)
	return session.New(session.StateAddingMovieCode, nil), nil
}

// handleMovieCodeInput takes the code of a new movie and aborts on duplicates
func (b *Bot) handleMovieCodeInput(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	code := strings.TrimSpace(ev.Text)
	if code == "" {
		b.reply(ev.ChatID, enterCodeText)
		return cur, nil
	}

	existing, err := b.db.GetMovieByCode(ctx, code)
	if err != nil {
		return cur, err
	}

	if existing != nil {
		b.replyWithKeyboard(ev.ChatID, fmt.Sprintf(
			"Фильм с кодом '%s' уже существует: %s.\nИспользований: %d\n"+
				"Пожалуйста, введите другой код или вернитесь в админ-панель.",
			code, existing.Title, existing.UsageCount,
		), adminKeyboard())
		return adminPanel(), nil
	}

	b.reply(ev.ChatID, enterTitleText)
	return session.New(session.StateAddingMovieTitle, map[string]string{session.KeyMovieCode: code}), nil
}

// handleMovieTitleInput stores the movie under the code kept in the session
func (b *Bot) handleMovieTitleInput(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	title := strings.TrimSpace(ev.Text)
	if title == "" {
		b.reply(ev.ChatID, enterTitleText)
		return cur, nil
	}

	code := cur.Value(session.KeyMovieCode)
	if code == "" {
		// Session lost its data, start the add flow over
		b.replyWithKeyboard(ev.ChatID, addMovieFailedText, adminKeyboard())
		return adminPanel(), nil
	}

	added, err := b.db.AddMovie(ctx, code, title)
	if err != nil {
		return cur, err
	}

	if added {
		b.logger.Info("Movie added", zap.String("code", code), zap.Int64("admin_id", ev.UserID))
		b.replyWithKeyboard(ev.ChatID, fmt.Sprintf(
			"Фильм успешно добавлен:\nКод: %s\nНазвание: %s\nИспользований: 0", code, title,
		), adminKeyboard())
	} else {
		b.replyWithKeyboard(ev.ChatID, addMovieFailedText, adminKeyboard())
	}

	return adminPanel(), nil
}

func (b *Bot) handleListMovies(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	movies, err := b.db.ListMovies(ctx)
	if err != nil {
		return cur, err
	}

	if len(movies) == 0 {
		b.reply(ev.ChatID, noMoviesText)
		return cur, nil
	}

	b.replyLong(ev.ChatID, formatMovieList("Список фильмов:\n\n", movies))
	return cur, nil
}

func (b *Bot) handleDeleteMovieStart(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	movies, err := b.db.ListMovies(ctx)
	if err != nil {
		return cur, err
	}

	if len(movies) == 0 {
		b.reply(ev.ChatID, noMoviesToDeleteText)
		return cur, nil
	}

	b.replyLong(ev.ChatID, formatMovieList("Выберите фильм для удаления. Введите код фильма:\n\n", movies))
	return session.New(session.StateDeletingMovie, nil), nil
}

func (b *Bot) handleDeleteMovieInput(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	code := strings.TrimSpace(ev.Text)
	if code == "" {
		b.reply(ev.ChatID, enterCodeText)
		return cur, nil
	}

	deleted, err := b.db.DeleteMovie(ctx, code)
	if err != nil {
		return cur, err
	}

	if deleted {
		b.logger.Info("Movie deleted", zap.String("code", code), zap.Int64("admin_id", ev.UserID))
		b.replyWithKeyboard(ev.ChatID, fmt.Sprintf("Фильм с кодом '%s' успешно удален.", code), adminKeyboard())
	} else {
		b.replyWithKeyboard(ev.ChatID, fmt.Sprintf(
			"Фильм с кодом '%s' не найден. Пожалуйста, проверьте код и попробуйте снова.", code,
		), adminKeyboard())
	}

	return adminPanel(), nil
}

func (b *Bot) handleBroadcastStart(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	b.reply(ev.ChatID, enterBroadcastText)
	return session.New(session.StateBroadcasting, nil), nil
}

// handleBroadcastInput starts sending the whole message text to every known
// user. The fan-out runs in the background and the admin is back in the
// panel right away; the totals arrive once the batch ends.
func (b *Bot) handleBroadcastInput(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	if strings.TrimSpace(ev.Text) == "" {
		b.reply(ev.ChatID, enterBroadcastText)
		return cur, nil
	}

	users, err := b.db.ListUsers(ctx)
	if err != nil {
		return cur, err
	}

	if len(users) == 0 {
		b.replyWithKeyboard(ev.ChatID, noRecipientsText, adminKeyboard())
		return adminPanel(), nil
	}

	b.replyWithKeyboard(ev.ChatID, fmt.Sprintf("Начинаю рассылку %d пользователям...", len(users)), adminKeyboard())

	text := ev.Text
	b.goBackground(func(ctx context.Context) {
		sent := b.broadcast(ctx, users, text)

		b.logger.Info("Broadcast finished",
			zap.Int64("admin_id", ev.UserID),
			zap.Int("sent", sent),
			zap.Int("total", len(users)),
			zap.Bool("interrupted", ctx.Err() != nil),
		)

		status := "Рассылка завершена."
		if ctx.Err() != nil {
			status = "Рассылка прервана."
		}
		b.reply(ev.ChatID, fmt.Sprintf("%s\nУспешно отправлено: %d из %d", status, sent, len(users)))
	})

	return adminPanel(), nil
}

// handleStats shows catalog size, audience, popular movies and recent redemptions
func (b *Bot) handleStats(ctx context.Context, ev Event, cur session.Session) (session.Session, error) {
	movies, err := b.db.ListMovies(ctx)
	if err != nil {
		return cur, err
	}
	users, err := b.db.ListUsers(ctx)
	if err != nil {
		return cur, err
	}

	var sb strings.Builder
	sb.WriteString("Статистика:\n\n")
	fmt.Fprintf(&sb, "Фильмов: %d\n", len(movies))
	fmt.Fprintf(&sb, "Пользователей: %d\n", len(users))

	if popular := topByUsage(movies, statsTopCodes); len(popular) > 0 {
		sb.WriteString("\nПопулярные фильмы:\n")
		for i, movie := range popular {
			fmt.Fprintf(&sb, "%d. %s - %s (%d)\n", i+1, movie.Code, movie.Title, movie.UsageCount)
		}
	}

	since := time.Now().Add(-statsWindow)
	summary, err := b.redemptions.Summary(ctx, since)
	if err != nil {
		b.logger.Warn("Failed to load redemption summary", zap.Error(err))
	} else if summary.Attempts > 0 {
		fmt.Fprintf(&sb, "\nЗапросов кодов за 24 часа: %d (найдено: %d)\n", summary.Attempts, summary.Found)

		requested, err := b.redemptions.TopCodes(ctx, statsTopCodes, since)
		if err != nil {
			b.logger.Warn("Failed to load top codes", zap.Error(err))
		}
		if len(requested) > 0 {
			sb.WriteString("Чаще всего запрашивали:\n")
			for i, stat := range requested {
				fmt.Fprintf(&sb, "%d. %s (%d)\n", i+1, stat.Code, stat.Attempts)
			}
		}
	}

	b.replyLong(ev.ChatID, sb.String())
	return cur, nil
}

// topByUsage returns up to n movies that were redeemed at least once, most used first
func topByUsage(movies []models.Movie, n int) []models.Movie {
	used := make([]models.Movie, 0, len(movies))
	for _, m := range movies {
		if m.UsageCount > 0 {
			used = append(used, m)
		}
	}
	sort.SliceStable(used, func(i, j int) bool {
		return used[i].UsageCount > used[j].UsageCount
	})
	if len(used) > n {
		used = used[:n]
	}
	return used
}

func formatMovieList(header string, movies []models.Movie) string {
	var sb strings.Builder
	sb.WriteString(header)
	for i, movie := range movies {
		fmt.Fprintf(&sb, "%d. Код: %s - %s (Использований: %d)\n", i+1, movie.Code, movie.Title, movie.UsageCount)
	}
	return sb.String()
}

func adminPanel() session.Session {
	return session.New(session.StateAdminPanel, nil)
}
