package domain

import (
	"context"
	"time"

	"prokat/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// SheetsWriter mirrors the catalog to a spreadsheet.
type SheetsWriter interface {
	ReplaceCatalog(ctx context.Context, items []models.RentalItem) error
}

// SnapshotStore keeps a full-fidelity copy of the catalog.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, items []models.RentalItem) error
	LoadSnapshot(ctx context.Context) ([]models.RentalItem, error)
}
