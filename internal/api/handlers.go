package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"prokat/internal/codec"
	"prokat/internal/domain"
	"prokat/internal/models"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 10 << 20

type itemRequest struct {
	ItemType string  `json:"item_type"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Details  string  `json:"details"`
}

type modifyRequest struct {
	Price   *float64 `json:"price"`
	Details *string  `json:"details"`
}

type rentRequest struct {
	Renter string `json:"renter"`
	Period string `json:"period"`
}

type reserveRequest struct {
	User string `json:"user"`
	Days int    `json:"days"`
}

type returnDateRequest struct {
	Date string `json:"date"`
}

type textRequest struct {
	Text string `json:"text"`
}

type credentialRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := 0
	for _, key := range []string{"type", "keyword", "max_price"} {
		if q.Has(key) {
			filters++
		}
	}
	if filters > 1 {
		writeError(w, http.StatusBadRequest, "use at most one of type, keyword, max_price")
		return
	}

	var items []models.RentalItem
	switch {
	case q.Has("type"):
		items = s.catalog.FindByType(q.Get("type"))
	case q.Has("keyword"):
		items = s.catalog.SearchByKeyword(q.Get("keyword"))
	case q.Has("max_price"):
		var err error
		if items, err = s.catalog.FilterByMaxPrice(q.Get("max_price")); err != nil {
			s.writeFailure(w, r, err)
			return
		}
	default:
		items = s.catalog.All()
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var body itemRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.ItemType) == "" {
		writeError(w, http.StatusBadRequest, "item_type and name are required")
		return
	}

	item := models.NewRentalItem(body.ItemType, body.Name, body.Price, body.Details)
	s.catalog.Add(item)
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.catalog.FindByName(r.PathValue("name"))
	s.writeItem(w, r, item, err)
}

func (s *HTTPServer) handleModifyItem(w http.ResponseWriter, r *http.Request) {
	var body modifyRequest
	if !decodeBody(w, r, &body) {
		return
	}
	item, err := s.catalog.ModifyRental(r.PathValue("name"), body.Price, body.Details)
	s.writeItem(w, r, item, err)
}

func (s *HTTPServer) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Remove(r.PathValue("name")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleRent(w http.ResponseWriter, r *http.Request) {
	var body rentRequest
	if !decodeBody(w, r, &body) {
		return
	}
	item, err := s.catalog.Rent(r.PathValue("name"), body.Renter, body.Period)
	s.writeItem(w, r, item, err)
}

func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var body reserveRequest
	if !decodeBody(w, r, &body) {
		return
	}
	item, err := s.catalog.Reserve(adminGrant(s.access, r), r.PathValue("name"), body.User, body.Days)
	s.writeItem(w, r, item, err)
}

func (s *HTTPServer) handleReturn(w http.ResponseWriter, r *http.Request) {
	item, err := s.catalog.Return(r.PathValue("name"))
	s.writeItem(w, r, item, err)
}

func (s *HTTPServer) handleSetReturnDate(w http.ResponseWriter, r *http.Request) {
	var body returnDateRequest
	if !decodeBody(w, r, &body) {
		return
	}
	date, err := models.ParseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	item, err := s.catalog.SetReturnDate(r.PathValue("name"), date)
	s.writeItem(w, r, item, err)
}

func (s *HTTPServer) handleAddCondition(w http.ResponseWriter, r *http.Request) {
	var body textRequest
	if !decodeBody(w, r, &body) {
		return
	}
	item, err := s.catalog.AddCondition(r.PathValue("name"), body.Text)
	s.writeItem(w, r, item, err)
}

func (s *HTTPServer) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var body textRequest
	if !decodeBody(w, r, &body) {
		return
	}
	item, err := s.catalog.AddReview(r.PathValue("name"), body.Text)
	s.writeItem(w, r, item, err)
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Statistics())
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	days := s.notify
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be a whole number")
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"days_before": days, "notices": s.catalog.NotifyDue(days)})
}

func (s *HTTPServer) handleSave(w http.ResponseWriter, r *http.Request) {
	format, path, ok := s.fileFormat(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Save(path, format); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "count": s.catalog.Statistics().Total})
}

func (s *HTTPServer) handleLoad(w http.ResponseWriter, r *http.Request) {
	format, path, ok := s.fileFormat(w, r)
	if !ok {
		return
	}
	n, err := s.catalog.Load(path, format)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "count": n})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	items := s.catalog.All()
	switch format := r.URL.Query().Get("format"); format {
	case "", string(codec.FormatJSON):
		w.Header().Set("Content-Type", "application/json")
		_ = codec.EncodeJSON(w, items)
	case string(codec.FormatCSV):
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="catalog.csv"`)
		_ = codec.EncodeCSV(w, items)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="catalog.xlsx"`)
		if err := codec.WriteXLSX(w, items); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to write xlsx export")
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	format := codec.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = codec.FormatJSON
	}
	n, err := s.catalog.Import(http.MaxBytesReader(w, r.Body, maxBodyBytes), format)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *HTTPServer) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.SaveSnapshot(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": s.catalog.Statistics().Total})
}

func (s *HTTPServer) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	n, err := s.catalog.LoadSnapshot(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (s *HTTPServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.PublishSheet(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "published"})
}

func (s *HTTPServer) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var body credentialRequest
	if !decodeCredentials(w, r, &body) {
		return
	}
	s.access.RegisterUser(body.Username, body.Password)
	writeJSON(w, http.StatusCreated, map[string]string{"username": body.Username})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialRequest
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": s.access.AuthenticateUser(body.Username, body.Password)})
}

func (s *HTTPServer) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var body credentialRequest
	if !decodeCredentials(w, r, &body) {
		return
	}
	if err := s.access.RegisterAdmin(adminGrant(s.access, r), body.Username, body.Password); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": body.Username})
}

// fileFormat resolves ?format= to a codec and its configured file path.
func (s *HTTPServer) fileFormat(w http.ResponseWriter, r *http.Request) (codec.Format, string, bool) {
	switch format := r.URL.Query().Get("format"); format {
	case "", string(codec.FormatJSON):
		return codec.FormatJSON, s.storage.JSONPath, true
	case string(codec.FormatCSV):
		return codec.FormatCSV, s.storage.CSVPath, true
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return "", "", false
	}
}

func (s *HTTPServer) writeItem(w http.ResponseWriter, r *http.Request, item models.RentalItem, err error) {
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// writeFailure maps engine errors onto HTTP status codes.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrNotFoundOrUnavailable):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAdminRequired):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":      "internal error",
			"request_id": requestID(r.Context()),
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func decodeCredentials(w http.ResponseWriter, r *http.Request, body *credentialRequest) bool {
	if !decodeBody(w, r, body) {
		return false
	}
	if strings.TrimSpace(body.Username) == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return false
	}
	return true
}
