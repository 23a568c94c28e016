package menu

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prokat/internal/auth"
	"prokat/internal/config"
	"prokat/internal/models"
	"prokat/internal/repository"
	"prokat/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.Local)

type fixture struct {
	menu    *Menu
	catalog *service.CatalogService
	storage config.StorageConfig
}

func newFixture(t *testing.T, items ...models.RentalItem) *fixture {
	t.Helper()
	dir := t.TempDir()
	storage := config.StorageConfig{
		JSONPath: filepath.Join(dir, "catalog.json"),
		CSVPath:  filepath.Join(dir, "catalog.csv"),
		XLSXPath: filepath.Join(dir, "catalog.xlsx"),
	}
	catalog := service.NewCatalogService(nil, nil,
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithItems(items...),
	)
	access := auth.NewAccess(nil, []models.Credential{{Username: "root", Password: "toor"}})
	states := repository.NewMemoryStateRepository(time.Hour)
	return &fixture{
		menu:    New(catalog, access, states, storage, nil),
		catalog: catalog,
		storage: storage,
	}
}

// drive feeds inputs one by one and returns the last reply.
func (f *fixture) drive(t *testing.T, session int64, inputs ...string) Reply {
	t.Helper()
	var reply Reply
	for _, in := range inputs {
		var err error
		reply, err = f.menu.Handle(context.Background(), session, in)
		require.NoError(t, err)
	}
	return reply
}

func TestText(t *testing.T) {
	text := Text()
	assert.True(t, strings.HasPrefix(text, "===== Rental Service Menu ====="))
	assert.Contains(t, text, "1. Add Electronic Goods for Rent\n")
	assert.Contains(t, text, "23. Admin Login\n")
	assert.Contains(t, text, "29. Show Statistics\n")
	assert.Contains(t, text, "24. Exit\nEnter your choice (1-29): ")

	choices := Choices()
	assert.Len(t, choices, 29)
	assert.Equal(t, exitOption, choices[len(choices)-1])
	choices[0] = 100
	assert.Equal(t, 1, Choices()[0])
}

func TestAddElectronicAndDisplay(t *testing.T) {
	f := newFixture(t)

	reply := f.drive(t, 1, "1")
	assert.Equal(t, "=== Adding Electronic Goods for Rent ===\nEnter electronic item name: ", reply.Text)
	assert.False(t, reply.Done)

	assert.Equal(t, "Enter rent price: ", f.drive(t, 1, "Laptop").Text)
	assert.Equal(t, "Enter brand: ", f.drive(t, 1, "5").Text)

	reply = f.drive(t, 1, "Dell")
	assert.Equal(t, "Goods added successfully!", reply.Text)
	assert.True(t, reply.Done)

	reply = f.drive(t, 1, "4")
	assert.Equal(t, "=== Displaying All Goods ===\nAll Goods:\nItem: Laptop, Type: Electronic, Details: Brand: Dell, Price: 5.0, Availability: True", reply.Text)
}

func TestAddBook_InvalidPrice(t *testing.T) {
	f := newFixture(t)

	reply := f.drive(t, 1, "2", "Dune", "cheap", "Herbert")
	assert.Equal(t, invalidPriceText, reply.Text)
	assert.True(t, reply.Done)
	assert.Empty(t, f.catalog.All())

	// Сессия вернулась в меню
	reply = f.drive(t, 1, "29")
	assert.Contains(t, reply.Text, "Total items: 0")
}

func TestChoose(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		input string
		want  Reply
	}{
		{"99", Reply{Text: "Invalid choice. Please enter a number from 1 to 29.", Done: true}},
		{"abc", Reply{Text: "Invalid choice. Please enter a number from 1 to 29.", Done: true}},
		{"", Reply{Text: "Invalid choice. Please enter a number from 1 to 29.", Done: true}},
		{"24", Reply{Text: "Exiting program. Goodbye!", Exit: true}},
		{" 24 ", Reply{Text: "Exiting program. Goodbye!", Exit: true}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, f.drive(t, 7, tt.input))
		})
	}
}

func TestNotFoundMessages(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "Rental item 'Ghost' not found.", f.drive(t, 1, "10", "Ghost").Text)
	assert.Equal(t, "Rental item 'Ghost' not found.", f.drive(t, 1, "15", "Ghost", "bob", "week").Text)
	assert.Equal(t, "Rental item 'Ghost' not found.", f.drive(t, 1, "16", "Ghost").Text)
	assert.Equal(t, "Rental item 'Ghost' not found.", f.drive(t, 1, "11", "Ghost", "no pets").Text)
	assert.Equal(t, "Rental item 'Ghost' not found.", f.drive(t, 1, "9", "Ghost", "", "").Text)
}

func TestRentReturnAndAnnotate(t *testing.T) {
	f := newFixture(t, models.NewBook("Dune", 3, "Herbert"))

	assert.Equal(t, "Item 'Dune' rented successfully by bob for two weeks!", f.drive(t, 1, "15", "Dune", "bob", "two weeks").Text)
	assert.False(t, f.catalog.All()[0].Availability)

	assert.Equal(t, "Item 'Dune' returned successfully!", f.drive(t, 1, "16", "Dune").Text)
	assert.True(t, f.catalog.All()[0].Availability)

	assert.Equal(t, "Rental conditions added successfully for 'Dune'!", f.drive(t, 1, "11", "Dune", "No water").Text)
	assert.Equal(t, "Review added successfully for 'Dune'!", f.drive(t, 1, "12", "Dune", "Great").Text)
	assert.Equal(t, "Author: Herbert, Conditions: No water, Review: Great", f.catalog.All()[0].Details)
}

func TestModify_BlankKeepsValues(t *testing.T) {
	f := newFixture(t, models.NewBook("Dune", 3, "Herbert"))

	assert.Equal(t, "Rental item 'Dune' details modified successfully!", f.drive(t, 1, "9", "Dune", "", "").Text)
	item := f.catalog.All()[0]
	assert.Equal(t, 3.0, item.Price)
	assert.Equal(t, "Author: Herbert", item.Details)

	f.drive(t, 1, "9", "Dune", "4.5", "")
	assert.Equal(t, 4.5, f.catalog.All()[0].Price)

	assert.Equal(t, invalidPriceText, f.drive(t, 1, "9", "Dune", "x", "").Text)
}

func TestSearchAndFilter(t *testing.T) {
	f := newFixture(t,
		models.NewBook("Dune", 3, "Herbert"),
		models.NewElectronic("Laptop", 10, "Dell"),
	)

	assert.Equal(t, "=== Searching by Keyword ===\nEnter keyword to search: ", f.drive(t, 1, "13").Text)
	assert.Equal(t, "Found rental items:\nItem: Laptop, Details: Brand: Dell, Price: 10.0", f.drive(t, 1, "dell").Text)
	assert.Equal(t, "No rental items found matching the keyword.", f.drive(t, 1, "13", "tolkien").Text)

	assert.Equal(t, "Filtered rental items:\nItem: Dune, Details: Author: Herbert, Price: 3.0", f.drive(t, 1, "14", "3").Text)
	assert.Equal(t, "Invalid input for criteria. Please enter a valid price.", f.drive(t, 1, "14", "cheap").Text)

	reply := f.drive(t, 1, "3", "book")
	assert.Equal(t, "Available Goods:\nItem: Dune, Type: Book, Details: Author: Herbert, Price: 3.0, Availability: True", reply.Text)
}

func TestReturnDatesAndNotifications(t *testing.T) {
	f := newFixture(t, models.NewBook("Dune", 3, "Herbert"))

	assert.Equal(t, "Invalid date format. Please use YYYY-MM-DD.", f.drive(t, 1, "17", "Dune", "12/03/2025").Text)
	assert.Equal(t, "Return date set successfully for 'Dune'!", f.drive(t, 1, "17", "Dune", "2025-03-13").Text)

	assert.Equal(t, "Return due in 2 days for item 'Dune'. Please return soon!", f.drive(t, 1, "18", "3").Text)
	assert.Equal(t, "No returns due.", f.drive(t, 1, "18", "1").Text)
	assert.Equal(t, invalidDaysText, f.drive(t, 1, "18", "soon").Text)
}

func TestAdminGate(t *testing.T) {
	f := newFixture(t, models.NewBook("Dune", 3, "Herbert"))

	t.Run("ReserveWithoutLogin", func(t *testing.T) {
		reply := f.drive(t, 1, "21")
		assert.Equal(t, adminOnlyText, reply.Text)
		assert.True(t, reply.Done)
		// Следующий ввод снова выбор пункта меню
		assert.Contains(t, f.drive(t, 1, "29").Text, "Total items: 1")
	})

	t.Run("RegisterAdminWithoutLogin", func(t *testing.T) {
		assert.Equal(t, adminOnlyText, f.drive(t, 1, "22").Text)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		assert.Equal(t, "Invalid admin username or password.", f.drive(t, 1, "23", "root", "nope").Text)
		assert.Equal(t, adminOnlyText, f.drive(t, 1, "21").Text)
	})

	t.Run("Reserve", func(t *testing.T) {
		assert.Equal(t, "Admin login successful!", f.drive(t, 1, "23", "root", "toor").Text)

		reply := f.drive(t, 1, "21", "Dune", "alice", "3")
		assert.Equal(t, "Item 'Dune' reserved successfully by alice for 3 days!", reply.Text)

		item := f.catalog.All()[0]
		assert.False(t, item.Availability)
		require.NotNil(t, item.ReturnDate)
		assert.Equal(t, fixedNow.AddDate(0, 0, 3), *item.ReturnDate)

		reply = f.drive(t, 1, "21", "Dune", "carol", "1")
		assert.Equal(t, "Rental item 'Dune' not found or already rented.", reply.Text)
		assert.Equal(t, invalidDaysText, f.drive(t, 1, "21", "Dune", "carol", "x").Text)
	})

	t.Run("GrantIsPerSession", func(t *testing.T) {
		assert.Equal(t, adminOnlyText, f.drive(t, 2, "21").Text)
	})

	t.Run("RegisterAdmin", func(t *testing.T) {
		assert.Equal(t, "Admin 'ops' registered successfully!", f.drive(t, 1, "22", "ops", "pw").Text)
		assert.Equal(t, "Admin login successful!", f.drive(t, 2, "23", "ops", "pw").Text)
	})

	t.Run("FailedLoginRevokes", func(t *testing.T) {
		f.drive(t, 2, "23", "ops", "wrong")
		assert.Equal(t, adminOnlyText, f.drive(t, 2, "22").Text)
	})

	t.Run("Forget", func(t *testing.T) {
		require.NoError(t, f.menu.Forget(context.Background(), 1))
		assert.Equal(t, adminOnlyText, f.drive(t, 1, "22").Text)
	})
}

func TestUsers(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "Invalid username or password.", f.drive(t, 1, "20", "bob", "pw").Text)
	assert.Equal(t, "User 'bob' registered successfully!", f.drive(t, 1, "19", "bob", "pw").Text)
	assert.Equal(t, "Login successful!", f.drive(t, 1, "20", "bob", "pw").Text)

	// Вход обычного пользователя не даёт прав администратора
	assert.Equal(t, adminOnlyText, f.drive(t, 1, "21").Text)
}

func TestAnswersKeptVerbatim(t *testing.T) {
	f := newFixture(t, models.NewBook("Dune", 3, "Herbert"))

	assert.Equal(t, "=== Adding Review ===\nEnter item name to add review: ", f.drive(t, 1, " 12 ").Text)
	f.drive(t, 1, "Dune", "  Great read ")
	item := f.catalog.All()[0]
	assert.Equal(t, "Author: Herbert, Review:   Great read ", item.Details)
	assert.Equal(t, "  Great read ", item.Annotations[0].Text)

	f.drive(t, 1, "19", "alice", " pa ss ")
	assert.Equal(t, "Invalid username or password.", f.drive(t, 1, "20", "alice", "pa ss").Text)
	assert.Equal(t, "Login successful!", f.drive(t, 1, "20", "alice", " pa ss ").Text)

	f.drive(t, 1, "17", "Dune", " 2025-03-13 ")
	assert.Equal(t, "Return due in 2 days for item 'Dune'. Please return soon!", f.drive(t, 1, "18", " 3 ").Text)

	f.drive(t, 1, "9", "Dune", " 4.5 ", " Author: Someone")
	item = f.catalog.All()[0]
	assert.Equal(t, 4.5, item.Price)
	assert.Equal(t, " Author: Someone", item.Details)
	assert.Empty(t, item.Annotations)

	f.drive(t, 1, "1", "Laptop")
	assert.Equal(t, Reply{Text: "Cancelled.", Done: true}, f.drive(t, 1, " cancel\r"))
}

func TestCancelAndReset(t *testing.T) {
	f := newFixture(t)

	f.drive(t, 1, "1", "Laptop")
	reply := f.drive(t, 1, "CANCEL")
	assert.Equal(t, Reply{Text: "Cancelled.", Done: true}, reply)
	assert.Empty(t, f.catalog.All())

	f.drive(t, 1, "2", "Dune")
	require.NoError(t, f.menu.Reset(context.Background(), 1))
	assert.Contains(t, f.drive(t, 1, "29").Text, "Total items: 0")
}

func TestSessionsAreIndependent(t *testing.T) {
	f := newFixture(t)

	f.drive(t, 1, "1", "Laptop")
	f.drive(t, 2, "2", "Dune")
	f.drive(t, 1, "5", "Dell")
	f.drive(t, 2, "3", "Herbert")

	items := f.catalog.All()
	require.Len(t, items, 2)
	assert.Equal(t, models.NewElectronic("Laptop", 5, "Dell"), items[0])
	assert.Equal(t, models.NewBook("Dune", 3, "Herbert"), items[1])
}

func TestPersistenceOptions(t *testing.T) {
	f := newFixture(t, models.NewBook("Dune", 3, "Herbert"))

	assert.Equal(t, "=== Saving to JSON ===\nData saved to "+f.storage.JSONPath, f.drive(t, 1, "5").Text)
	assert.Equal(t, "=== Saving to CSV ===\nData saved to "+f.storage.CSVPath, f.drive(t, 1, "6").Text)
	assert.Equal(t, "=== Exporting to Excel ===\nCatalog exported to "+f.storage.XLSXPath, f.drive(t, 1, "25").Text)
	assert.FileExists(t, f.storage.XLSXPath)

	f.drive(t, 1, "10", "Dune")
	assert.Empty(t, f.catalog.All())

	assert.Equal(t, "=== Loading from CSV ===\nData loaded from "+f.storage.CSVPath, f.drive(t, 1, "8").Text)
	assert.Len(t, f.catalog.All(), 1)

	f.drive(t, 1, "10", "Dune")
	assert.Equal(t, "=== Loading from JSON ===\nData loaded from "+f.storage.JSONPath, f.drive(t, 1, "7").Text)
	assert.Len(t, f.catalog.All(), 1)

	require.NoError(t, os.WriteFile(f.storage.JSONPath, []byte("{broken"), 0o644))
	reply := f.drive(t, 1, "7")
	assert.Contains(t, reply.Text, "Error: ")
	assert.Len(t, f.catalog.All(), 1)
}

func TestNotConfigured(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "=== Saving SQLite Snapshot ===\nThis feature is not configured.", f.drive(t, 1, "26").Text)
	assert.Equal(t, "=== Loading SQLite Snapshot ===\nThis feature is not configured.", f.drive(t, 1, "27").Text)
	assert.Equal(t, "=== Publishing to Google Sheets ===\nThis feature is not configured.", f.drive(t, 1, "28").Text)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t,
		models.NewBook("Dune", 3, "Herbert"),
		models.NewElectronic("Laptop", 10, "Dell"),
	)
	f.drive(t, 1, "15", "Laptop", "bob", "week")

	assert.Equal(t, "=== Catalog Statistics ===\nTotal items: 2\nAvailable items: 1\nRented items: 1", f.drive(t, 1, "29").Text)
}

func TestHandle_RedisBackedState(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	catalog := service.NewCatalogService(nil, nil)
	m := New(catalog, auth.NewAccess(nil, nil), repository.NewRedisStateRepository(client, time.Hour), config.StorageConfig{}, nil)
	ctx := context.Background()

	for _, in := range []string{"15", "Dune", "bob"} {
		_, err := m.Handle(ctx, 42, in)
		require.NoError(t, err)
	}
	assert.True(t, s.Exists("prokat:menu_state:42"))

	// Ответы пережили JSON в Redis
	reply, err := m.Handle(ctx, 42, "week")
	require.NoError(t, err)
	assert.Equal(t, "Rental item 'Dune' not found.", reply.Text)
	assert.False(t, s.Exists("prokat:menu_state:42"))
}

func TestHandle_StateError(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	m := New(service.NewCatalogService(nil, nil), auth.NewAccess(nil, nil), repository.NewRedisStateRepository(client, time.Hour), config.StorageConfig{}, nil)
	_, err = m.Handle(context.Background(), 1, "4")
	assert.Error(t, err)
}
