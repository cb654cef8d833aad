// Package api serves the booking portal: the public booking pages, a JSON
// API for externally hosted widgets and the admin dashboard.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Miketheless/workshopneu/internal/admin"
	"github.com/Miketheless/workshopneu/internal/availability"
	"github.com/Miketheless/workshopneu/internal/booking"
	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/domain"
	"github.com/Miketheless/workshopneu/internal/logging"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/gorilla/csrf"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// SlotLoader loads the current slot snapshot.
type SlotLoader interface {
	Load(ctx context.Context, today time.Time) availability.Snapshot
}

// Submitter submits a booking request.
type Submitter interface {
	Submit(ctx context.Context, req models.BookingRequest) (*booking.Confirmation, error)
}

// Submissions allowed per client address and window.
const (
	bookLimit  = 10
	bookWindow = time.Hour
)

// Deps are the collaborators of the portal server.
type Deps struct {
	Slots    SlotLoader
	Bookings Submitter
	// NewDashboard creates the state object of a fresh admin session.
	NewDashboard func() *admin.Dashboard
	// Views keeps admin sort state and booking rate-limit counters. Optional.
	Views    domain.StateRepository
	Location *time.Location
	Now      func() time.Time
}

type HTTPServer struct {
	cfg      config.HTTPConfig
	deps     Deps
	sessions *sessionStore
	renderer *pageRenderer
	limiter  *rateLimiter
	logger   zerolog.Logger
	server   *http.Server
}

func NewHTTPServer(cfg config.HTTPConfig, deps Deps, logger *zerolog.Logger) (*HTTPServer, error) {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	l := logging.Component(logger, "http")
	renderer, err := newPageRenderer(deps.Location)
	if err != nil {
		return nil, err
	}

	srv := &HTTPServer{
		cfg:      cfg,
		deps:     deps,
		sessions: newSessionStore(deps.NewDashboard, sessionIdleTTL),
		renderer: renderer,
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   l,
	}
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv, nil
}

// Handler builds the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/slots", s.handleAPISlots)
	api.HandleFunc("POST /api/book", s.handleAPIBook)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(api)

	pages := http.NewServeMux()
	for _, rt := range s.pageRoutes() {
		pages.HandleFunc(rt.pattern, rt.handler)
	}

	csrfKey := sha256.Sum256([]byte(s.cfg.CSRFKey))
	protect := csrf.Protect(csrfKey[:],
		csrf.Secure(s.cfg.SecureCookie),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.handleCSRFFailure)),
	)
	protected := protect(pages)
	if !s.cfg.SecureCookie {
		protected = plaintext(protected)
	}

	root := http.NewServeMux()
	root.Handle("/api/", corsHandler)
	root.HandleFunc("GET /healthz", s.handleHealthz)
	root.Handle("/", protected)

	return s.loggingMiddleware(securityHeaders(s.limiter.middleware(root)))
}

type route struct {
	pattern string
	handler http.HandlerFunc
}

func (s *HTTPServer) pageRoutes() []route {
	return []route{
		{"GET /{$}", s.handleBookingPage},
		{"POST /book", s.handleBookingSubmit},
		{"GET /admin", s.handleAdminPage},
		{"POST /admin/login", s.handleAdminLogin},
		{"POST /admin/logout", s.handleAdminLogout},
		{"POST /admin/refresh", s.handleAdminRefresh},
		{"GET /admin/sort", s.handleAdminSort},
		{"POST /admin/field", s.handleAdminField},
		{"POST /admin/cancel", s.handleAdminCancel},
		{"POST /admin/restore", s.handleAdminRestore},
		{"POST /admin/add", s.handleAdminAdd},
		{"GET /admin/export.csv", s.handleAdminExportCSV},
		{"GET /admin/export.xlsx", s.handleAdminExportXLSX},
	}
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP portal listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.sessions.closeAll()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleCSRFFailure(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().Err(csrf.FailureReason(r)).Str("path", r.URL.Path).Msg("CSRF check failed")
	http.Error(w, "Sitzung abgelaufen. Bitte laden Sie die Seite neu.", http.StatusForbidden)
}

// allowBooking applies the per-address submission limit. Store errors
// let the request through.
func (s *HTTPServer) allowBooking(r *http.Request) bool {
	if s.deps.Views == nil {
		return true
	}
	ok, err := s.deps.Views.CheckRateLimit(r.Context(), "book:"+clientKey(r), bookLimit, bookWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Booking rate limit unavailable")
		return true
	}
	return ok
}

// plaintext marks requests as served over plain HTTP so the CSRF check
// does not demand a TLS referer.
func plaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{"ok": false, "message": message})
}
