package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"prokat/internal/domain"
	"prokat/internal/events"
	"prokat/internal/metrics"
	"prokat/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const deadLetterKey = "prokat:sheets:deadletter"

// CatalogSource is what the worker republishes.
type CatalogSource interface {
	All() []models.RentalItem
}

// deadLetter is kept in Redis when every retry of a publish failed.
type deadLetter struct {
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	ItemCount int       `json:"item_count"`
	FailedAt  time.Time `json:"failed_at"`
}

// SheetsWorker mirrors the catalog to Google Sheets after changes. Bursts
// of catalog events collapse into one publish of the latest catalog.
type SheetsWorker struct {
	source      CatalogSource
	sheets      domain.SheetsWriter
	redis       *redis.Client
	retryPolicy RetryPolicy
	debounce    time.Duration
	trigger     chan struct{}
	logger      *zerolog.Logger

	mu        sync.Mutex
	published int
}

// NewSheetsWorker builds a worker with sane defaults. redisClient may be nil.
func NewSheetsWorker(source CatalogSource, sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SheetsWorker{
		source:      source,
		sheets:      sheets,
		redis:       redisClient,
		retryPolicy: retry,
		debounce:    500 * time.Millisecond,
		trigger:     make(chan struct{}, 1),
		logger:      logger,
	}
}

// Subscribe makes every catalog event schedule a publish.
func (w *SheetsWorker) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(func(event *events.Event) error {
		w.Notify()
		return nil
	})
}

// Notify schedules a publish without blocking.
func (w *SheetsWorker) Notify() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start launches main loop; stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sheets worker started")
	defer w.logger.Info().Msg("sheets worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
		}

		if !w.settle(ctx) {
			return
		}

		if err := w.publishWithRetry(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Msg("sheets publish gave up")
		}
	}
}

// settle waits until no new trigger arrived for the debounce period.
func (w *SheetsWorker) settle(ctx context.Context) bool {
	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-w.trigger:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			return true
		}
	}
}

func (w *SheetsWorker) publishWithRetry(ctx context.Context) error {
	var lastErr error
	items := 0
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		catalog := w.source.All()
		items = len(catalog)

		lastErr = w.sheets.ReplaceCatalog(ctx, catalog)
		if lastErr == nil {
			metrics.IncSheetsPublish(metrics.OutcomeOK)
			w.mu.Lock()
			w.published++
			w.mu.Unlock()
			w.logger.Info().Int("items", items).Int("attempt", attempt).Msg("catalog published to sheets")
			return nil
		}

		metrics.IncSheetsPublish(metrics.OutcomeError)
		if attempt == w.retryPolicy.MaxRetries {
			break
		}

		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Warn().Err(lastErr).Int("attempt", attempt).Dur("retry_in", delay).Msg("sheets publish failed")

		if err := w.retryPolicy.Wait(ctx, attempt); err != nil {
			return err
		}
	}

	w.pushDeadLetter(ctx, deadLetter{
		Error:     lastErr.Error(),
		Attempts:  w.retryPolicy.MaxRetries,
		ItemCount: items,
		FailedAt:  time.Now(),
	})
	return lastErr
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, entry deadLetter) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		w.logger.Error().Err(err).Msg("encode sheets deadletter")
		return
	}
	if err := w.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Msg("sheets deadletter push failed")
	}
}

// Published returns how many publishes succeeded.
func (w *SheetsWorker) Published() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.published
}
