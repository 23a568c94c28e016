package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"prokat/internal/auth"
	"prokat/internal/codec"
	"prokat/internal/config"
	"prokat/internal/metrics"
	"prokat/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// Catalog is the part of the catalog service exposed over HTTP.
type Catalog interface {
	Add(item models.RentalItem)
	FindByType(itemType string) []models.RentalItem
	FindByName(name string) (models.RentalItem, error)
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
	Save(path string, format codec.Format) error
	Load(path string, format codec.Format) (int, error)
	Import(r io.Reader, format codec.Format) (int, error)
	SaveSnapshot(ctx context.Context) error
	LoadSnapshot(ctx context.Context) (int, error)
	PublishSheet(ctx context.Context) error
}

// ReadyFunc reports whether the backing stores are reachable.
type ReadyFunc func(ctx context.Context) error

// HTTPServer exposes the catalog as a JSON API.
type HTTPServer struct {
	cfg     config.APIConfig
	storage config.StorageConfig
	notify  int
	catalog Catalog
	access  *auth.Access
	ready   ReadyFunc
	server  *http.Server
	auth    *HTTPAuth
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg *config.Config, catalog Catalog, access *auth.Access, ready ReadyFunc, logger *zerolog.Logger) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:     cfg.API,
		storage: cfg.Storage,
		notify:  cfg.Catalog.NotifyDaysBefore,
		catalog: catalog,
		access:  access,
		ready:   ready,
		auth:    NewHTTPAuth(cfg.API),
		logger:  &base,
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	handler := srv.recoverMiddleware(srv.loggingMiddleware(corsMiddleware(srv.auth.Wrap(mux))))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /healthz", s.handleHealthz)
	s.handle(mux, "GET /readyz", s.handleReadyz)

	s.handle(mux, "GET /api/v1/items", s.handleListItems)
	s.handle(mux, "POST /api/v1/items", s.handleAddItem)
	s.handle(mux, "GET /api/v1/items/{name}", s.handleGetItem)
	s.handle(mux, "PATCH /api/v1/items/{name}", s.handleModifyItem)
	s.handle(mux, "DELETE /api/v1/items/{name}", s.handleRemoveItem)
	s.handle(mux, "POST /api/v1/items/{name}/rent", s.handleRent)
	s.handle(mux, "POST /api/v1/items/{name}/reserve", s.handleReserve)
	s.handle(mux, "POST /api/v1/items/{name}/return", s.handleReturn)
	s.handle(mux, "PUT /api/v1/items/{name}/return-date", s.handleSetReturnDate)
	s.handle(mux, "POST /api/v1/items/{name}/conditions", s.handleAddCondition)
	s.handle(mux, "POST /api/v1/items/{name}/reviews", s.handleAddReview)

	s.handle(mux, "GET /api/v1/stats", s.handleStats)
	s.handle(mux, "GET /api/v1/notifications", s.handleNotifications)

	s.handle(mux, "POST /api/v1/catalog/save", s.handleSave)
	s.handle(mux, "POST /api/v1/catalog/load", s.handleLoad)
	s.handle(mux, "GET /api/v1/catalog/export", s.handleExport)
	s.handle(mux, "POST /api/v1/catalog/import", s.handleImport)
	s.handle(mux, "POST /api/v1/catalog/snapshot", s.handleSaveSnapshot)
	s.handle(mux, "POST /api/v1/catalog/snapshot/restore", s.handleLoadSnapshot)
	s.handle(mux, "POST /api/v1/catalog/publish", s.handlePublish)

	s.handle(mux, "POST /api/v1/users", s.handleRegisterUser)
	s.handle(mux, "POST /api/v1/users/login", s.handleLogin)
	s.handle(mux, "POST /api/v1/admins", s.handleRegisterAdmin)
}

// handle registers fn and counts requests under the route pattern.
func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		fn(w, r)
	})
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		l := s.logger.With().Str("request_id", id).Logger()
		ctx := context.WithValue(l.WithContext(r.Context()), requestIDKey{}, id)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Recovered from panic in http handler")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, x-api-extra, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
