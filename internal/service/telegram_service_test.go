package service

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *mockTelegramSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *mockTelegramSender) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.UpdatesChannel)
}

func (m *mockTelegramSender) GetSelf() tgbotapi.User {
	args := m.Called()
	return args.Get(0).(tgbotapi.User)
}

func (m *mockTelegramSender) StopReceivingUpdates() {
	m.Called()
}

func TestTelegramService(t *testing.T) {
	mockSender := new(mockTelegramSender)
	svc := NewTelegramService(mockSender)

	t.Run("SendMessage", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.Text == "hello" && msg.ChatID == 123 && msg.ReplyMarkup == nil
		})).Return(tgbotapi.Message{MessageID: 1}, nil).Once()

		sent, err := svc.SendMessage(123, "hello")
		assert.NoError(t, err)
		assert.Equal(t, 1, sent.MessageID)
		mockSender.AssertExpectations(t)
	})

	t.Run("SendWithKeyboard", func(t *testing.T) {
		keyboard := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("1")))
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			if !ok {
				return false
			}
			_, hasKeyboard := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
			return hasKeyboard
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.SendWithKeyboard(123, "menu", keyboard)
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("RemoveKeyboard", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			if !ok {
				return false
			}
			_, removes := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardRemove)
			return removes
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.RemoveKeyboard(123, "bye")
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("LongMessageIsSplit", func(t *testing.T) {
		line := strings.Repeat("x", 100) + "\n"
		text := strings.Repeat(line, 50)

		mockSender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Twice()

		_, err := svc.SendMessage(123, text)
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("SendErrorStops", func(t *testing.T) {
		sender := new(mockTelegramSender)
		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("boom")).Once()

		_, err := NewTelegramService(sender).SendMessage(1, strings.Repeat("y\n", MessageLimit))
		assert.EqualError(t, err, "boom")
		sender.AssertNumberOfCalls(t, "Send", 1)
	})
}

func TestSplitMessage(t *testing.T) {
	t.Run("Short", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, SplitMessage("hello", 10))
		assert.Equal(t, []string{""}, SplitMessage("", 10))
	})

	t.Run("OnLineBreaks", func(t *testing.T) {
		assert.Equal(t, []string{"aaa\n", "bbb\n", "cc"}, SplitMessage("aaa\nbbb\ncc", 5))
		assert.Equal(t, []string{"aa\nbb\n", "cc"}, SplitMessage("aa\nbb\ncc", 6))
	})

	t.Run("LongLine", func(t *testing.T) {
		assert.Equal(t, []string{"abcd", "efgh", "ij"}, SplitMessage("abcdefghij", 4))
	})

	t.Run("Runes", func(t *testing.T) {
		text := strings.Repeat("ё", 10)
		parts := SplitMessage(text, 4)
		require.Len(t, parts, 3)
		for _, p := range parts {
			assert.LessOrEqual(t, utf8.RuneCountInString(p), 4)
		}
		assert.Equal(t, text, strings.Join(parts, ""))
	})
}
