package bot

import (
	"context"
	"strconv"
	"strings"

	"prokat/internal/menu"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const keyboardColumns = 5

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	l := zerolog.Ctx(ctx)

	if b.metrics != nil {
		b.metrics.MessagesProcessed.Inc()
		if strings.HasPrefix(text, "/") {
			b.metrics.CommandsProcessed.Inc()
		}
	}

	l.Debug().
		Int64("chat_id", chatID).
		Str("text", text).
		Msg("Handling message")

	switch strings.ToLower(text) {
	case "/start", "/menu", "reset":
		if err := b.dialog.Reset(ctx, chatID); err != nil {
			l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to reset menu session")
		}
		b.showMenu(chatID, "")
		return
	case "/logout":
		if err := b.dialog.Forget(ctx, chatID); err != nil {
			l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to drop menu session")
		}
		b.showMenu(chatID, "Logged out.")
		return
	}

	reply, err := b.dialog.Handle(ctx, chatID, msg.Text)
	if err != nil {
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		l.Error().Err(err).Int64("chat_id", chatID).Msg("Menu failed to handle message")
		b.send(chatID, "Something went wrong. Please try again later.")
		return
	}

	switch {
	case reply.Exit:
		// Выход завершает сессию чата, следующее сообщение начнёт новую
		if err := b.dialog.Forget(ctx, chatID); err != nil {
			l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to drop menu session")
		}
		if _, err := b.tgService.RemoveKeyboard(chatID, reply.Text); err != nil {
			l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		}
	case reply.Done:
		b.showMenu(chatID, reply.Text)
	default:
		if _, err := b.tgService.RemoveKeyboard(chatID, reply.Text); err != nil {
			l.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		}
	}
}

// showMenu sends text followed by the numbered menu and its keyboard.
func (b *Bot) showMenu(chatID int64, text string) {
	body := menu.Text()
	if text != "" {
		body = text + "\n\n" + body
	}
	if _, err := b.tgService.SendWithKeyboard(chatID, body, menuKeyboard()); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send menu")
	}
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func menuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	choices := menu.Choices()
	var rows [][]tgbotapi.KeyboardButton
	for start := 0; start < len(choices); start += keyboardColumns {
		end := start + keyboardColumns
		if end > len(choices) {
			end = len(choices)
		}
		row := make([]tgbotapi.KeyboardButton, 0, end-start)
		for _, n := range choices[start:end] {
			row = append(row, tgbotapi.NewKeyboardButton(strconv.Itoa(n)))
		}
		rows = append(rows, row)
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}
