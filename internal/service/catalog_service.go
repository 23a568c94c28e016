package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"prokat/internal/auth"
	"prokat/internal/catalog"
	"prokat/internal/codec"
	"prokat/internal/domain"
	"prokat/internal/events"
	"prokat/internal/metrics"
	"prokat/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService owns the rental catalog and every state transition on it.
type CatalogService struct {
	mu        sync.RWMutex
	store     *catalog.Store
	eventBus  domain.EventPublisher
	snapshots domain.SnapshotStore
	sheets    domain.SheetsWriter
	logger    *zerolog.Logger
	now       func() time.Time
}

type Option func(*CatalogService)

// WithClock replaces time.Now for reservation and notification arithmetic.
func WithClock(now func() time.Time) Option {
	return func(s *CatalogService) { s.now = now }
}

func WithSnapshotStore(store domain.SnapshotStore) Option {
	return func(s *CatalogService) { s.snapshots = store }
}

func WithSheetsWriter(writer domain.SheetsWriter) Option {
	return func(s *CatalogService) { s.sheets = writer }
}

// WithItems pre-populates the catalog without publishing events.
func WithItems(items ...models.RentalItem) Option {
	return func(s *CatalogService) { s.store.Replace(items) }
}

func NewCatalogService(eventBus domain.EventPublisher, logger *zerolog.Logger, opts ...Option) *CatalogService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &CatalogService{
		store:    catalog.NewStore(),
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CatalogService) Add(item models.RentalItem) {
	s.mu.Lock()
	s.store.Add(item)
	s.mu.Unlock()

	s.logger.Info().Str("name", item.Name).Str("item_type", item.ItemType).Float64("price", item.Price).Msg("rental item added")
	s.finish("add", nil)
	s.publishEvent(events.EventItemAdded, item, "", "")
}

func (s *CatalogService) FindByType(itemType string) []models.RentalItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.FindByType(itemType)
}

func (s *CatalogService) FindByName(name string) (models.RentalItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.store.FindByName(name)
	if !ok {
		return models.RentalItem{}, notFound(name)
	}
	return item, nil
}

// All returns the whole catalog in insertion order.
func (s *CatalogService) All() []models.RentalItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.All()
}

func (s *CatalogService) Remove(name string) error {
	s.mu.Lock()
	item, found := s.store.FindByName(name)
	if found {
		s.store.Remove(name)
	}
	s.mu.Unlock()

	if !found {
		err := notFound(name)
		s.finish("remove", err)
		return err
	}

	s.logger.Info().Str("name", item.Name).Msg("rental item removed")
	s.finish("remove", nil)
	s.publishEvent(events.EventItemRemoved, item, "", "")
	return nil
}

// Rent marks the first item with the given name as rented. It does not
// check current availability and leaves the return date alone.
func (s *CatalogService) Rent(name, renter, period string) (models.RentalItem, error) {
	item, err := s.mutate("rent", name, func(item *models.RentalItem) {
		item.Availability = false
	})
	if err != nil {
		return item, err
	}

	s.logger.Info().Str("name", item.Name).Str("renter", renter).Str("period", period).Msg("rental item rented")
	s.publishEvent(events.EventItemRented, item, renter, period)
	return item, nil
}

// Reserve takes the first available item with the given name for days
// calendar days. The caller must hold an admin grant.
func (s *CatalogService) Reserve(grant auth.Grant, name, user string, days int) (models.RentalItem, error) {
	if err := grant.RequireAdmin(); err != nil {
		s.finish("reserve", err)
		return models.RentalItem{}, err
	}

	due := s.now().AddDate(0, 0, days)

	var reserved models.RentalItem
	s.mu.Lock()
	ok := s.store.Update(
		func(item *models.RentalItem) bool { return item.HasName(name) && item.Availability },
		func(item *models.RentalItem) {
			item.Availability = false
			item.ReturnDate = &due
			reserved = item.Clone()
		},
	)
	s.mu.Unlock()

	if !ok {
		err := fmt.Errorf("%w: %q", domain.ErrNotFoundOrUnavailable, name)
		s.finish("reserve", err)
		return models.RentalItem{}, err
	}

	s.logger.Info().
		Str("name", reserved.Name).
		Str("user", user).
		Str("admin", grant.Username()).
		Int("days", days).
		Time("return_date", due).
		Msg("rental item reserved")
	s.finish("reserve", nil)
	s.publishEvent(events.EventItemReserved, reserved, user, strconv.Itoa(days)+" days")
	return reserved, nil
}

// Return marks the item available again. The return date is kept.
func (s *CatalogService) Return(name string) (models.RentalItem, error) {
	item, err := s.mutate("return", name, func(item *models.RentalItem) {
		item.Availability = true
	})
	if err != nil {
		return item, err
	}

	s.logger.Info().Str("name", item.Name).Msg("rental item returned")
	s.publishEvent(events.EventItemReturned, item, "", "")
	return item, nil
}

func (s *CatalogService) SetReturnDate(name string, date time.Time) (models.RentalItem, error) {
	item, err := s.mutate("set_return_date", name, func(item *models.RentalItem) {
		d := date
		item.ReturnDate = &d
	})
	if err != nil {
		return item, err
	}

	s.publishEvent(events.EventItemUpdated, item, "", "return date "+item.FormatReturnDate())
	return item, nil
}

// ModifyRental applies the fields that are present. With neither present
// it only checks that the item exists.
func (s *CatalogService) ModifyRental(name string, price *float64, details *string) (models.RentalItem, error) {
	item, err := s.mutate("modify", name, func(item *models.RentalItem) {
		if price != nil {
			item.Price = *price
		}
		if details != nil {
			item.SetDetails(*details)
		}
	})
	if err != nil {
		return item, err
	}

	s.publishEvent(events.EventItemUpdated, item, "", "modified")
	return item, nil
}

func (s *CatalogService) AddCondition(name, text string) (models.RentalItem, error) {
	return s.annotate("add_condition", name, models.AnnotationCondition, text)
}

func (s *CatalogService) AddReview(name, text string) (models.RentalItem, error) {
	return s.annotate("add_review", name, models.AnnotationReview, text)
}

func (s *CatalogService) annotate(op, name, kind, text string) (models.RentalItem, error) {
	item, err := s.mutate(op, name, func(item *models.RentalItem) {
		item.Annotate(kind, text)
	})
	if err != nil {
		return item, err
	}

	s.publishEvent(events.EventItemUpdated, item, "", kind)
	return item, nil
}

// SearchByKeyword returns items whose details contain keyword, ignoring case.
func (s *CatalogService) SearchByKeyword(keyword string) []models.RentalItem {
	needle := strings.ToLower(keyword)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Filter(func(item *models.RentalItem) bool {
		return strings.Contains(strings.ToLower(item.Details), needle)
	})
}

// FilterByMaxPrice parses criteria as a number and returns items priced at
// or below it.
func (s *CatalogService) FilterByMaxPrice(criteria string) ([]models.RentalItem, error) {
	ceiling, err := strconv.ParseFloat(strings.TrimSpace(criteria), 64)
	if err != nil || math.IsNaN(ceiling) {
		err = fmt.Errorf("price criteria %q: %w", criteria, domain.ErrInvalidInput)
		s.finish("filter", err)
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Filter(func(item *models.RentalItem) bool {
		return item.Price <= ceiling
	}), nil
}

func (s *CatalogService) Statistics() models.CatalogStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *CatalogService) statsLocked() models.CatalogStats {
	var stats models.CatalogStats
	for _, item := range s.store.All() {
		stats.Total++
		if item.Availability {
			stats.Available++
		}
	}
	stats.Rented = stats.Total - stats.Available
	return stats
}

// NotifyDue lists items whose return date is more than zero and at most
// daysBefore whole days away. Availability is not consulted.
func (s *CatalogService) NotifyDue(daysBefore int) []models.DueNotice {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	notices := make([]models.DueNotice, 0)
	for _, item := range s.store.All() {
		if item.ReturnDate == nil {
			continue
		}
		days := DaysUntil(now, *item.ReturnDate)
		if days > 0 && days <= daysBefore {
			notices = append(notices, models.DueNotice{Name: item.Name, DaysUntil: days, Date: *item.ReturnDate})
		}
	}
	return notices
}

// DaysUntil counts whole days from now to date, rounding toward negative
// infinity. Both are read as wall-clock times in now's zone, so a DST
// switch in between does not shorten the count.
func DaysUntil(now, date time.Time) int {
	elapsed := wallClock(date.In(now.Location())).Sub(wallClock(now))
	return int(math.Floor(elapsed.Hours() / 24))
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func (s *CatalogService) SaveJSON(path string) error { return s.Save(path, codec.FormatJSON) }

func (s *CatalogService) LoadJSON(path string) (int, error) { return s.Load(path, codec.FormatJSON) }

func (s *CatalogService) SaveCSV(path string) error { return s.Save(path, codec.FormatCSV) }

func (s *CatalogService) LoadCSV(path string) (int, error) { return s.Load(path, codec.FormatCSV) }

// Save writes the catalog to path. The catalog is never modified.
func (s *CatalogService) Save(path string, format codec.Format) error {
	items := s.All()
	err := codec.WriteFile(path, format, items)
	s.finish("save_"+string(format), err)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to save catalog")
		return err
	}
	s.logger.Info().Str("path", path).Int("count", len(items)).Msg("catalog saved")
	return nil
}

// Load replaces the catalog with the content of path. On any error the
// current catalog is left as it was.
func (s *CatalogService) Load(path string, format codec.Format) (int, error) {
	items, err := codec.ReadFile(path, format)
	s.finish("load_"+string(format), err)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to load catalog")
		return 0, err
	}

	s.replace(items, path)
	return len(items), nil
}

// Import replaces the catalog with items decoded from r. A decode error
// leaves the catalog untouched.
func (s *CatalogService) Import(r io.Reader, format codec.Format) (int, error) {
	items, err := codec.Decode(r, format)
	s.finish("import_"+string(format), err)
	if err != nil {
		return 0, err
	}

	s.replace(items, "import")
	return len(items), nil
}

func (s *CatalogService) ExportXLSX(path string) error {
	err := codec.ExportXLSX(path, s.All())
	s.finish("export_xlsx", err)
	return err
}

// SaveSnapshot stores the full catalog, availability and return dates
// included.
func (s *CatalogService) SaveSnapshot(ctx context.Context) error {
	if s.snapshots == nil {
		return fmt.Errorf("snapshot store: %w", domain.ErrNotConfigured)
	}
	err := s.snapshots.SaveSnapshot(ctx, s.All())
	s.finish("save_snapshot", err)
	return err
}

func (s *CatalogService) LoadSnapshot(ctx context.Context) (int, error) {
	if s.snapshots == nil {
		return 0, fmt.Errorf("snapshot store: %w", domain.ErrNotConfigured)
	}
	items, err := s.snapshots.LoadSnapshot(ctx)
	s.finish("load_snapshot", err)
	if err != nil {
		return 0, err
	}

	s.replace(items, "snapshot")
	return len(items), nil
}

// PublishSheet pushes the current catalog to the configured spreadsheet.
func (s *CatalogService) PublishSheet(ctx context.Context) error {
	if s.sheets == nil {
		return fmt.Errorf("google sheets: %w", domain.ErrNotConfigured)
	}
	err := s.sheets.ReplaceCatalog(ctx, s.All())
	s.finish("publish_sheet", err)
	return err
}

func (s *CatalogService) replace(items []models.RentalItem, source string) {
	s.mu.Lock()
	s.store.Replace(items)
	stats := s.statsLocked()
	s.mu.Unlock()

	metrics.SetCatalog(stats.Total, stats.Available)
	s.logger.Info().Str("source", source).Int("count", len(items)).Msg("catalog loaded")

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventCatalogLoaded, events.ItemEventPayload{Note: source, Count: len(items)}); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish catalog loaded event")
		}
	}
}

// mutate applies fn to the first item with the given name and returns the
// updated copy.
func (s *CatalogService) mutate(op, name string, fn func(*models.RentalItem)) (models.RentalItem, error) {
	var updated models.RentalItem
	s.mu.Lock()
	ok := s.store.UpdateByName(name, func(item *models.RentalItem) {
		fn(item)
		updated = item.Clone()
	})
	s.mu.Unlock()

	if !ok {
		err := notFound(name)
		s.finish(op, err)
		return models.RentalItem{}, err
	}

	s.finish(op, nil)
	return updated, nil
}

func (s *CatalogService) finish(op string, err error) {
	metrics.IncOperation(op, outcome(err))
	if err != nil {
		return
	}
	stats := s.Statistics()
	metrics.SetCatalog(stats.Total, stats.Available)
}

func (s *CatalogService) publishEvent(eventType string, item models.RentalItem, actor, note string) {
	if s.eventBus == nil {
		return
	}

	payload := events.ItemEventPayload{
		ItemType:     item.ItemType,
		Name:         item.Name,
		Availability: item.Availability,
		ReturnDate:   item.ReturnDate,
		Actor:        actor,
		Note:         note,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", domain.ErrItemNotFound, name)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrNotFoundOrUnavailable):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrAdminRequired):
		return metrics.OutcomeDenied
	default:
		return metrics.OutcomeError
	}
}
