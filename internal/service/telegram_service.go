package service

import (
	"strings"
	"unicode/utf8"

	"prokat/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageLimit is the longest text Telegram accepts in one message.
const MessageLimit = 4096

type TelegramService struct {
	bot domain.TelegramSender
}

func NewTelegramService(bot domain.TelegramSender) *TelegramService {
	return &TelegramService{
		bot: bot,
	}
}

func (s *TelegramService) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.bot.Send(c)
}

func (s *TelegramService) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return s.bot.Request(c)
}

// SendMessage sends text, split into several messages when it is too long.
func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	return s.send(chatID, text, nil)
}

// SendWithKeyboard is SendMessage with a reply keyboard on the last part.
func (s *TelegramService) SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error) {
	return s.send(chatID, text, keyboard)
}

// RemoveKeyboard sends text and hides any reply keyboard.
func (s *TelegramService) RemoveKeyboard(chatID int64, text string) (tgbotapi.Message, error) {
	return s.send(chatID, text, tgbotapi.NewRemoveKeyboard(true))
}

func (s *TelegramService) send(chatID int64, text string, markup interface{}) (tgbotapi.Message, error) {
	parts := SplitMessage(text, MessageLimit)
	var sent tgbotapi.Message
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 && markup != nil {
			msg.ReplyMarkup = markup
		}
		var err error
		if sent, err = s.bot.Send(msg); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func (s *TelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.bot.GetUpdatesChan(config)
}

func (s *TelegramService) GetSelf() tgbotapi.User {
	return s.bot.GetSelf()
}

func (s *TelegramService) StopReceivingUpdates() {
	s.bot.StopReceivingUpdates()
}

// SplitMessage cuts text into parts of at most limit runes, preferring line
// breaks. Empty text yields one empty part.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	size := 0
	flush := func() {
		if size > 0 {
			parts = append(parts, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		// Строка длиннее лимита режется по символам
		for n > limit {
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		current.WriteString(line)
		size += n
	}
	flush()
	return parts
}
