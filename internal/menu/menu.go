package menu

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"prokat/internal/auth"
	"prokat/internal/config"
	"prokat/internal/domain"
	"prokat/internal/models"

	"github.com/rs/zerolog"
)

// Catalog is the subset of the catalog service the menu dispatches to.
type Catalog interface {
	Add(item models.RentalItem)
	FindByType(itemType string) []models.RentalItem
	All() []models.RentalItem
	Remove(name string) error
	Rent(name, renter, period string) (models.RentalItem, error)
	Reserve(grant auth.Grant, name, user string, days int) (models.RentalItem, error)
	Return(name string) (models.RentalItem, error)
	SetReturnDate(name string, date time.Time) (models.RentalItem, error)
	ModifyRental(name string, price *float64, details *string) (models.RentalItem, error)
	AddCondition(name, text string) (models.RentalItem, error)
	AddReview(name, text string) (models.RentalItem, error)
	SearchByKeyword(keyword string) []models.RentalItem
	FilterByMaxPrice(criteria string) ([]models.RentalItem, error)
	Statistics() models.CatalogStats
	NotifyDue(daysBefore int) []models.DueNotice
	SaveJSON(path string) error
	LoadJSON(path string) (int, error)
	SaveCSV(path string) error
	LoadCSV(path string) (int, error)
	ExportXLSX(path string) error
	SaveSnapshot(ctx context.Context) error
	LoadSnapshot(ctx context.Context) (int, error)
	PublishSheet(ctx context.Context) error
}

const (
	answersKey    = "answers"
	stepPrefix    = "option:"
	cancelCommand = "cancel"
)

// Reply is what the front-end shows after one line of input.
type Reply struct {
	Text string
	// Done means the chosen action has finished and the menu can be shown again.
	Done bool
	Exit bool
}

// Menu turns numbered choices and prompt answers into catalog calls. Every
// session has its own dialogue state and its own admin grant.
type Menu struct {
	catalog Catalog
	access  *auth.Access
	states  domain.StateRepository
	storage config.StorageConfig
	logger  *zerolog.Logger

	mu     sync.Mutex
	grants map[int64]auth.Grant
}

func New(catalog Catalog, access *auth.Access, states domain.StateRepository, storage config.StorageConfig, logger *zerolog.Logger) *Menu {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Menu{
		catalog: catalog,
		access:  access,
		states:  states,
		storage: storage,
		logger:  logger,
		grants:  make(map[int64]auth.Grant),
	}
}

// Choices lists the option numbers in display order.
func Choices() []int {
	return append([]int(nil), order...)
}

// Text renders the numbered menu.
func Text() string {
	var b strings.Builder
	b.WriteString("===== Rental Service Menu =====\n")
	for _, n := range order {
		fmt.Fprintf(&b, "%d. %s\n", n, options[n].label)
	}
	fmt.Fprintf(&b, "Enter your choice (1-%d): ", lastOption)
	return b.String()
}

// Handle consumes one line of input for a session: a menu choice when the
// session is idle, otherwise the answer to the pending prompt. Answers are
// kept verbatim; only choices and numeric or date answers are trimmed.
func (m *Menu) Handle(ctx context.Context, sessionID int64, input string) (Reply, error) {
	input = strings.TrimSuffix(input, "\r")

	state, err := m.states.GetState(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("get menu state: %w", err)
	}
	if state == nil || !strings.HasPrefix(state.CurrentStep, stepPrefix) {
		return m.choose(ctx, sessionID, input)
	}

	if strings.EqualFold(strings.TrimSpace(input), cancelCommand) {
		if err := m.states.ClearState(ctx, sessionID); err != nil {
			return Reply{}, fmt.Errorf("clear menu state: %w", err)
		}
		return Reply{Text: "Cancelled.", Done: true}, nil
	}

	number, err := strconv.Atoi(strings.TrimPrefix(state.CurrentStep, stepPrefix))
	opt, ok := options[number]
	if err != nil || !ok || len(opt.prompts) == 0 {
		// Состояние устарело, начинаем заново
		if err := m.states.ClearState(ctx, sessionID); err != nil {
			return Reply{}, fmt.Errorf("clear menu state: %w", err)
		}
		return m.choose(ctx, sessionID, input)
	}

	answers := append(state.GetStrings(answersKey), input)
	if len(answers) < len(opt.prompts) {
		if state.TempData == nil {
			state.TempData = make(map[string]interface{})
		}
		state.TempData[answersKey] = answers
		if err := m.states.SetState(ctx, state); err != nil {
			return Reply{}, fmt.Errorf("save menu state: %w", err)
		}
		return Reply{Text: opt.prompts[len(answers)]}, nil
	}

	if err := m.states.ClearState(ctx, sessionID); err != nil {
		return Reply{}, fmt.Errorf("clear menu state: %w", err)
	}
	return Reply{Text: m.run(ctx, sessionID, number, answers), Done: true}, nil
}

// Reset abandons any pending prompt sequence. The admin grant is kept.
func (m *Menu) Reset(ctx context.Context, sessionID int64) error {
	return m.states.ClearState(ctx, sessionID)
}

// Forget drops everything the menu holds for a session.
func (m *Menu) Forget(ctx context.Context, sessionID int64) error {
	m.mu.Lock()
	delete(m.grants, sessionID)
	m.mu.Unlock()
	return m.states.ClearState(ctx, sessionID)
}

func (m *Menu) choose(ctx context.Context, sessionID int64, input string) (Reply, error) {
	number, err := strconv.Atoi(strings.TrimSpace(input))
	if number == exitOption && err == nil {
		return Reply{Text: "Exiting program. Goodbye!", Exit: true}, nil
	}
	opt, ok := options[number]
	if err != nil || !ok {
		return Reply{Text: fmt.Sprintf("Invalid choice. Please enter a number from 1 to %d.", lastOption), Done: true}, nil
	}

	if opt.admin && !m.grant(sessionID).Admin() {
		return Reply{Text: adminOnlyText, Done: true}, nil
	}

	header := "=== " + opt.title + " ==="
	if len(opt.prompts) == 0 {
		return Reply{Text: header + "\n" + m.run(ctx, sessionID, number, nil), Done: true}, nil
	}

	state := &models.UserState{
		UserID:      sessionID,
		CurrentStep: stepPrefix + strconv.Itoa(number),
		TempData:    map[string]interface{}{answersKey: []string{}},
	}
	if err := m.states.SetState(ctx, state); err != nil {
		return Reply{}, fmt.Errorf("save menu state: %w", err)
	}
	return Reply{Text: header + "\n" + opt.prompts[0]}, nil
}

func (m *Menu) run(ctx context.Context, sessionID int64, number int, answers []string) string {
	opt := options[number]
	m.logger.Debug().
		Int64("session_id", sessionID).
		Int("option", number).
		Str("action", opt.label).
		Msg("Running menu action")
	return opt.action(m, ctx, sessionID, answers)
}

func (m *Menu) grant(sessionID int64) auth.Grant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grants[sessionID]
}

func (m *Menu) setGrant(sessionID int64, grant auth.Grant, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.grants[sessionID] = grant
		return
	}
	delete(m.grants, sessionID)
}
