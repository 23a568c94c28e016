package menu

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"prokat/internal/codec"
	"prokat/internal/domain"
	"prokat/internal/models"
)

const (
	exitOption = 24
	lastOption = 29

	adminOnlyText    = "Only admins can access this feature. Please login as admin."
	invalidPriceText = "Invalid input. Please enter a valid price."
	invalidDaysText  = "Invalid input. Please enter a whole number of days."
)

type action func(m *Menu, ctx context.Context, sessionID int64, answers []string) string

type option struct {
	label   string
	title   string
	prompts []string
	admin   bool
	action  action
}

var order = []int{
	1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23,
	25, 26, 27, 28, 29, 24,
}

var options = map[int]option{
	1: {
		label:   "Add Electronic Goods for Rent",
		title:   "Adding Electronic Goods for Rent",
		prompts: []string{"Enter electronic item name: ", "Enter rent price: ", "Enter brand: "},
		action:  (*Menu).addElectronic,
	},
	2: {
		label:   "Add Book for Rent",
		title:   "Adding Book for Rent",
		prompts: []string{"Enter book name: ", "Enter rent price: ", "Enter author: "},
		action:  (*Menu).addBook,
	},
	3: {
		label:   "Find Goods for Rent",
		title:   "Finding Goods for Rent",
		prompts: []string{"Enter item type to find: "},
		action:  (*Menu).findGoods,
	},
	4: {
		label:  "Display All Goods",
		title:  "Displaying All Goods",
		action: (*Menu).displayAll,
	},
	5:  {label: "Save to JSON", title: "Saving to JSON", action: (*Menu).saveJSON},
	6:  {label: "Save to CSV", title: "Saving to CSV", action: (*Menu).saveCSV},
	7:  {label: "Load from JSON", title: "Loading from JSON", action: (*Menu).loadJSON},
	8:  {label: "Load from CSV", title: "Loading from CSV", action: (*Menu).loadCSV},
	9: {
		label: "Modify Rental Item",
		title: "Modifying Rental Item",
		prompts: []string{
			"Enter item name to modify: ",
			"Enter new rent price (leave blank to keep the same): ",
			"Enter new item details (leave blank to keep the same): ",
		},
		action: (*Menu).modify,
	},
	10: {
		label:   "Remove Rental Item",
		title:   "Removing Rental Item",
		prompts: []string{"Enter item name to remove: "},
		action:  (*Menu).remove,
	},
	11: {
		label:   "Add Rental Condition",
		title:   "Adding Rental Condition",
		prompts: []string{"Enter item name to add rental condition: ", "Enter rental conditions: "},
		action:  (*Menu).addCondition,
	},
	12: {
		label:   "Add Review",
		title:   "Adding Review",
		prompts: []string{"Enter item name to add review: ", "Enter review: "},
		action:  (*Menu).addReview,
	},
	13: {
		label:   "Search by Keyword",
		title:   "Searching by Keyword",
		prompts: []string{"Enter keyword to search: "},
		action:  (*Menu).search,
	},
	14: {
		label:   "Filter Items",
		title:   "Filtering Items",
		prompts: []string{"Enter criteria to filter items: "},
		action:  (*Menu).filter,
	},
	15: {
		label:   "Rent Item",
		title:   "Renting Item",
		prompts: []string{"Enter item name to rent: ", "Enter renter information: ", "Enter rental period: "},
		action:  (*Menu).rent,
	},
	16: {
		label:   "Return Item",
		title:   "Returning Item",
		prompts: []string{"Enter item name to return: "},
		action:  (*Menu).returnItem,
	},
	17: {
		label:   "Set Return Date",
		title:   "Set Return Date",
		prompts: []string{"Enter item name: ", "Enter return date (YYYY-MM-DD): "},
		action:  (*Menu).setReturnDate,
	},
	18: {
		label:   "Show Return Notifications",
		title:   "Show Return Notifications",
		prompts: []string{"Enter number of days before return for notification: "},
		action:  (*Menu).notifications,
	},
	19: {
		label:   "Register User",
		title:   "Register User",
		prompts: []string{"Enter username: ", "Enter password: "},
		action:  (*Menu).registerUser,
	},
	20: {
		label:   "Login",
		title:   "Login",
		prompts: []string{"Enter username: ", "Enter password: "},
		action:  (*Menu).login,
	},
	21: {
		label:   "Reserve Item",
		title:   "Reserve Item",
		prompts: []string{"Enter item name to reserve: ", "Enter user name: ", "Enter reservation period (in days): "},
		admin:   true,
		action:  (*Menu).reserve,
	},
	22: {
		label:   "Register Admin",
		title:   "Register Admin",
		prompts: []string{"Enter admin username: ", "Enter admin password: "},
		admin:   true,
		action:  (*Menu).registerAdmin,
	},
	23: {
		label:   "Admin Login",
		title:   "Admin Login",
		prompts: []string{"Enter admin username: ", "Enter admin password: "},
		action:  (*Menu).adminLogin,
	},
	24: {label: "Exit", title: "Exit"},
	25: {label: "Export to Excel", title: "Exporting to Excel", action: (*Menu).exportXLSX},
	26: {label: "Save SQLite Snapshot", title: "Saving SQLite Snapshot", action: (*Menu).saveSnapshot},
	27: {label: "Load SQLite Snapshot", title: "Loading SQLite Snapshot", action: (*Menu).loadSnapshot},
	28: {label: "Publish to Google Sheets", title: "Publishing to Google Sheets", action: (*Menu).publishSheet},
	29: {label: "Show Statistics", title: "Catalog Statistics", action: (*Menu).statistics},
}

func (m *Menu) addElectronic(_ context.Context, _ int64, a []string) string {
	price, err := codec.ParsePrice(a[1])
	if err != nil {
		return invalidPriceText
	}
	m.catalog.Add(models.NewElectronic(a[0], price, a[2]))
	return "Goods added successfully!"
}

func (m *Menu) addBook(_ context.Context, _ int64, a []string) string {
	price, err := codec.ParsePrice(a[1])
	if err != nil {
		return invalidPriceText
	}
	m.catalog.Add(models.NewBook(a[0], price, a[2]))
	return "Goods added successfully!"
}

func (m *Menu) findGoods(_ context.Context, _ int64, a []string) string {
	return "Available Goods:" + listFull(m.catalog.FindByType(a[0]))
}

func (m *Menu) displayAll(_ context.Context, _ int64, _ []string) string {
	return "All Goods:" + listFull(m.catalog.All())
}

func (m *Menu) saveJSON(_ context.Context, _ int64, _ []string) string {
	return m.saved(m.storage.JSONPath, m.catalog.SaveJSON(m.storage.JSONPath))
}

func (m *Menu) saveCSV(_ context.Context, _ int64, _ []string) string {
	return m.saved(m.storage.CSVPath, m.catalog.SaveCSV(m.storage.CSVPath))
}

func (m *Menu) loadJSON(_ context.Context, _ int64, _ []string) string {
	_, err := m.catalog.LoadJSON(m.storage.JSONPath)
	return m.loaded(m.storage.JSONPath, err)
}

func (m *Menu) loadCSV(_ context.Context, _ int64, _ []string) string {
	_, err := m.catalog.LoadCSV(m.storage.CSVPath)
	return m.loaded(m.storage.CSVPath, err)
}

func (m *Menu) modify(_ context.Context, _ int64, a []string) string {
	var price *float64
	if strings.TrimSpace(a[1]) != "" {
		p, err := codec.ParsePrice(a[1])
		if err != nil {
			return invalidPriceText
		}
		price = &p
	}
	var details *string
	if a[2] != "" {
		details = &a[2]
	}
	if _, err := m.catalog.ModifyRental(a[0], price, details); err != nil {
		return m.failure(a[0], err)
	}
	return fmt.Sprintf("Rental item '%s' details modified successfully!", a[0])
}

func (m *Menu) remove(_ context.Context, _ int64, a []string) string {
	if err := m.catalog.Remove(a[0]); err != nil {
		return m.failure(a[0], err)
	}
	return fmt.Sprintf("Rental item '%s' removed successfully!", a[0])
}

func (m *Menu) addCondition(_ context.Context, _ int64, a []string) string {
	if _, err := m.catalog.AddCondition(a[0], a[1]); err != nil {
		return m.failure(a[0], err)
	}
	return fmt.Sprintf("Rental conditions added successfully for '%s'!", a[0])
}

func (m *Menu) addReview(_ context.Context, _ int64, a []string) string {
	if _, err := m.catalog.AddReview(a[0], a[1]); err != nil {
		return m.failure(a[0], err)
	}
	return fmt.Sprintf("Review added successfully for '%s'!", a[0])
}

func (m *Menu) search(_ context.Context, _ int64, a []string) string {
	found := m.catalog.SearchByKeyword(a[0])
	if len(found) == 0 {
		return "No rental items found matching the keyword."
	}
	return "Found rental items:" + listShort(found)
}

func (m *Menu) filter(_ context.Context, _ int64, a []string) string {
	found, err := m.catalog.FilterByMaxPrice(a[0])
	if err != nil {
		return "Invalid input for criteria. Please enter a valid price."
	}
	return "Filtered rental items:" + listShort(found)
}

func (m *Menu) rent(_ context.Context, _ int64, a []string) string {
	if _, err := m.catalog.Rent(a[0], a[1], a[2]); err != nil {
		return m.failure(a[0], err)
	}
	return fmt.Sprintf("Item '%s' rented successfully by %s for %s!", a[0], a[1], a[2])
}

func (m *Menu) returnItem(_ context.Context, _ int64, a []string) string {
	if _, err := m.catalog.Return(a[0]); err != nil {
		return m.failure(a[0], err)
	}
	return fmt.Sprintf("Item '%s' returned successfully!", a[0])
}

func (m *Menu) setReturnDate(_ context.Context, _ int64, a []string) string {
	date, err := models.ParseDate(a[1])
	if err != nil {
		return "Invalid date format. Please use YYYY-MM-DD."
	}
	if _, err := m.catalog.SetReturnDate(a[0], date); err != nil {
		return m.failure(a[0], err)
	}
	return fmt.Sprintf("Return date set successfully for '%s'!", a[0])
}

func (m *Menu) notifications(_ context.Context, _ int64, a []string) string {
	days, err := strconv.Atoi(strings.TrimSpace(a[0]))
	if err != nil {
		return invalidDaysText
	}
	notices := m.catalog.NotifyDue(days)
	if len(notices) == 0 {
		return "No returns due."
	}
	lines := make([]string, 0, len(notices))
	for _, n := range notices {
		lines = append(lines, fmt.Sprintf("Return due in %d days for item '%s'. Please return soon!", n.DaysUntil, n.Name))
	}
	return strings.Join(lines, "\n")
}

func (m *Menu) registerUser(_ context.Context, _ int64, a []string) string {
	m.access.RegisterUser(a[0], a[1])
	return fmt.Sprintf("User '%s' registered successfully!", a[0])
}

func (m *Menu) login(_ context.Context, _ int64, a []string) string {
	if m.access.AuthenticateUser(a[0], a[1]) {
		return "Login successful!"
	}
	return "Invalid username or password."
}

func (m *Menu) reserve(_ context.Context, sessionID int64, a []string) string {
	days, err := strconv.Atoi(strings.TrimSpace(a[2]))
	if err != nil {
		return invalidDaysText
	}
	if _, err := m.catalog.Reserve(m.grant(sessionID), a[0], a[1], days); err != nil {
		switch {
		case errors.Is(err, domain.ErrAdminRequired):
			return adminOnlyText
		case errors.Is(err, domain.ErrNotFoundOrUnavailable):
			return fmt.Sprintf("Rental item '%s' not found or already rented.", a[0])
		default:
			return m.failure(a[0], err)
		}
	}
	return fmt.Sprintf("Item '%s' reserved successfully by %s for %d days!", a[0], a[1], days)
}

func (m *Menu) registerAdmin(_ context.Context, sessionID int64, a []string) string {
	if err := m.access.RegisterAdmin(m.grant(sessionID), a[0], a[1]); err != nil {
		return adminOnlyText
	}
	return fmt.Sprintf("Admin '%s' registered successfully!", a[0])
}

// adminLogin replaces the session grant; a failed attempt revokes it.
func (m *Menu) adminLogin(_ context.Context, sessionID int64, a []string) string {
	grant, ok := m.access.AuthenticateAdmin(a[0], a[1])
	m.setGrant(sessionID, grant, ok)
	if !ok {
		return "Invalid admin username or password."
	}
	m.logger.Info().Int64("session_id", sessionID).Str("admin", a[0]).Msg("Admin logged in")
	return "Admin login successful!"
}

func (m *Menu) exportXLSX(_ context.Context, _ int64, _ []string) string {
	if err := m.catalog.ExportXLSX(m.storage.XLSXPath); err != nil {
		return m.failure("", err)
	}
	return "Catalog exported to " + m.storage.XLSXPath
}

func (m *Menu) saveSnapshot(ctx context.Context, _ int64, _ []string) string {
	if err := m.catalog.SaveSnapshot(ctx); err != nil {
		return m.failure("", err)
	}
	return "Catalog snapshot saved."
}

func (m *Menu) loadSnapshot(ctx context.Context, _ int64, _ []string) string {
	n, err := m.catalog.LoadSnapshot(ctx)
	if err != nil {
		return m.failure("", err)
	}
	return fmt.Sprintf("Loaded %d items from snapshot.", n)
}

func (m *Menu) publishSheet(ctx context.Context, _ int64, _ []string) string {
	if err := m.catalog.PublishSheet(ctx); err != nil {
		return m.failure("", err)
	}
	return "Catalog published to Google Sheets."
}

func (m *Menu) statistics(_ context.Context, _ int64, _ []string) string {
	stats := m.catalog.Statistics()
	return fmt.Sprintf("Total items: %d\nAvailable items: %d\nRented items: %d", stats.Total, stats.Available, stats.Rented)
}

func (m *Menu) saved(path string, err error) string {
	if err != nil {
		return m.failure("", err)
	}
	return "Data saved to " + path
}

func (m *Menu) loaded(path string, err error) string {
	if err != nil {
		return m.failure("", err)
	}
	return "Data loaded from " + path
}

// failure turns an engine error into the message shown to the user.
func (m *Menu) failure(name string, err error) string {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return fmt.Sprintf("Rental item '%s' not found.", name)
	case errors.Is(err, domain.ErrNotConfigured):
		return "This feature is not configured."
	case errors.Is(err, domain.ErrAdminRequired):
		return adminOnlyText
	}
	m.logger.Error().Err(err).Str("item", name).Msg("Menu action failed")
	return "Error: " + err.Error()
}

func listFull(items []models.RentalItem) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "\nItem: %s, Type: %s, Details: %s, Price: %s, Availability: %s",
			item.Name, item.ItemType, item.Details, codec.FormatPrice(item.Price), codec.FormatAvailability(item.Availability))
	}
	return b.String()
}

func listShort(items []models.RentalItem) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "\nItem: %s, Details: %s, Price: %s", item.Name, item.Details, codec.FormatPrice(item.Price))
	}
	return b.String()
}
