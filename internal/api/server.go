package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/watchsec/commnode/internal/api/handler"
	mw "github.com/watchsec/commnode/internal/api/middleware"
	"github.com/watchsec/commnode/internal/core"
	"github.com/watchsec/commnode/internal/model"
	"github.com/watchsec/commnode/internal/notify"
)

const readyTimeout = 3 * time.Second

// Pinger reports whether the database is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router      chi.Router
	logger      zerolog.Logger
	services    *core.Services
	db          Pinger
	notifier    *notify.Notifier
	auditLogger *mw.AuditLogger
}

// NewServer builds the API router. A nil notifier disables notifications; a
// nil auditLogger disables auditing.
func NewServer(logger zerolog.Logger, db Pinger, services *core.Services, notifier *notify.Notifier, auditLogger *mw.AuditLogger) *Server {
	if notifier == nil {
		notifier = notify.New(nil, notify.WithLogger(logger))
	}

	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger,
		services:    services,
		db:          db,
		notifier:    notifier,
		auditLogger: auditLogger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

// setupRoutes is the access policy: every operation is listed under the
// level it requires. Access is checked before the body is looked at.
func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	creds := s.services.Credential

	s.router.Route("/api", func(r chi.Router) {
		if s.auditLogger != nil {
			r.Use(s.auditLogger.Middleware)
		}

		// Configurator: employees provisioning devices.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAccess(creds, model.LevelProvisioning))

			configurator := handler.NewConfigurator(s.services.Device, creds, s.services.Business)
			r.With(mw.RequireJSON("api_key", "device_location", "motion", "sound", "fire", "gas", "business_id")).
				Post("/register_device", configurator.RegisterDevice)
			r.Get("/validate_employee_auth_token", configurator.ValidateEmployeeToken)
			r.Post("/validate_employee_auth_token", configurator.ValidateEmployeeToken)
			r.Get("/business_exists/{id}", configurator.BusinessExists)
			r.With(mw.RequireJSON("api_key")).
				Post("/validate_device_registration", configurator.ValidateDeviceRegistration)
		})

		// Devices reporting events.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAccess(creds, model.LevelDevice))

			device := handler.NewDevice(s.services.Event, s.notifier)
			r.With(mw.RequireJSON("alert_type")).Post("/send_alert", device.SendAlert)
			r.With(mw.RequireJSON("malfunction_type")).Post("/send_malfunction", device.SendMalfunction)
			r.With(mw.RequireJSON("log_type")).Post("/send_log", device.SendLog)
		})

		// Dashboard: business administration and event views.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAccess(creds, model.LevelBusinessAdmin))

			business := handler.NewBusiness(s.services.Business)
			r.Get("/businesses", business.List)
			r.Get("/fetchAllBusinesses", business.List)
			r.With(mw.RequireJSON("name", "latitude", "longitude", "address")).Post("/businesses", business.Create)
			r.Get("/businesses/{id}", business.Get)
			r.Delete("/businesses/{id}", business.Delete)
			r.Get("/businesses/{id}/devices", business.Devices)

			event := handler.NewEvent(s.services.Event)
			r.Get("/alerts", event.List(model.EventAlert))
			r.Post("/alerts/{id}/solve", event.Solve(model.EventAlert))
			r.Get("/malfunctions", event.List(model.EventMalfunction))
			r.Post("/malfunctions/{id}/solve", event.Solve(model.EventMalfunction))
			r.Get("/logs", event.List(model.EventLog))

			employee := handler.NewEmployee(s.services.Employee)
			r.Get("/employees", employee.List)
			r.With(mw.RequireJSON("first_name", "last_name")).Post("/employees", employee.Create)
			r.Delete("/employees/{id}", employee.Delete)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleReadyz fails only on the database. The notifier state is reported
// but notifications are best effort.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.db.Ping(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness: database unreachable")
		checks["database"] = "unreachable"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if s.notifier.Enabled() {
		checks["notifier"] = s.notifier.State().String()
	} else {
		checks["notifier"] = "disabled"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
