package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-booking/internal/appointment"
	"github.com/noah-isme/backend-booking/internal/audit"
	"github.com/noah-isme/backend-booking/internal/auth"
	"github.com/noah-isme/backend-booking/internal/booking"
	"github.com/noah-isme/backend-booking/internal/catalog"
	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/config"
	"github.com/noah-isme/backend-booking/internal/customer"
	"github.com/noah-isme/backend-booking/internal/form"
	"github.com/noah-isme/backend-booking/internal/health"
	"github.com/noah-isme/backend-booking/internal/obs"
	"github.com/noah-isme/backend-booking/internal/payment"
	"github.com/noah-isme/backend-booking/internal/queue"
	"github.com/noah-isme/backend-booking/internal/ratelimit"
	"github.com/noah-isme/backend-booking/internal/security"
	"github.com/noah-isme/backend-booking/internal/settings"
)

type handlers struct {
	catalog      *catalog.Handler
	customers    *customer.Handler
	forms        *form.Handler
	appointments *appointment.Handler
	payments     *payment.Handler
	webhook      payment.WebhookHandler
	bookings     *booking.Handler
	settings     *settings.Handler
	queues       *queue.AdminHandler
	audit        audit.Handler
	auditLog     audit.HTTPRecorder
	health       health.Handler
	auth         auth.Middleware
	idem         common.Idem
	limiter      ratelimit.Handler
}

func newRouter(cfg *config.Config, logger zerolog.Logger, metrics *obs.HTTPMetrics, tracing bool, h handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracing {
		r.Use(obs.TracingMiddleware)
	}
	if metrics != nil {
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Quiet: []string{"/health/", "/metrics"}}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.Headers{
		Enable:          cfg.SecurityHeaders,
		EnableHSTS:      cfg.EnableHSTS,
		NoStorePrefixes: []string{"/api/v1/admin", "/api/v1/stripe"},
	}.Middleware)

	if metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	r.Get("/health/live", h.health.Live)
	r.Get("/health/ready", h.health.Ready)

	bodyLimit := security.BodyLimit{Max: cfg.APIMaxBodyBytes}.Middleware

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", h.catalog.PublicCategories)
		v.Get("/services", h.catalog.PublicServices)
		v.With(bodyLimit, h.idem.Middleware).Post("/appointments", h.bookings.Book)

		v.Route("/stripe", func(s chi.Router) {
			s.With(h.limiter.Middleware, bodyLimit).Post("/checkout-session", h.payments.CheckoutSession)
			// the webhook enforces its own body cap before signature checks
			s.Method(http.MethodPost, "/webhook", h.webhook)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(h.auth.RequireAdmin)
			admin.Use(bodyLimit)
			admin.Use(h.auditLog.Middleware)

			admin.Route("/categories", func(c chi.Router) {
				c.Get("/", h.catalog.ListCategories)
				c.Post("/", h.catalog.CreateCategory)
				c.Get("/{id}", h.catalog.GetCategory)
				c.Put("/{id}", h.catalog.UpdateCategory)
				c.Delete("/{id}", h.catalog.DeleteCategory)
			})
			admin.Route("/services", func(c chi.Router) {
				c.Get("/", h.catalog.ListServices)
				c.Post("/", h.catalog.CreateService)
				c.Get("/{id}", h.catalog.GetService)
				c.Put("/{id}", h.catalog.UpdateService)
				c.Delete("/{id}", h.catalog.DeleteService)
			})
			admin.Route("/customers", func(c chi.Router) {
				c.Get("/", h.customers.List)
				c.Post("/", h.customers.Create)
				c.Get("/{id}", h.customers.Get)
				c.Put("/{id}", h.customers.Update)
				c.Delete("/{id}", h.customers.Delete)
			})
			admin.Route("/forms", func(c chi.Router) {
				c.Get("/", h.forms.List)
				c.Post("/", h.forms.Create)
				c.Get("/{id}", h.forms.Get)
				c.Put("/{id}", h.forms.Update)
				c.Delete("/{id}", h.forms.Delete)
			})
			admin.Route("/appointments", func(c chi.Router) {
				c.Get("/", h.appointments.List)
				c.Get("/{id}", h.appointments.Get)
				c.Patch("/{id}/status", h.appointments.UpdateStatus)
				c.Delete("/{id}", h.appointments.Delete)
			})
			admin.Get("/payments", h.payments.List)
			admin.Get("/payments/{id}", h.payments.Get)

			admin.Route("/settings", func(c chi.Router) {
				c.Get("/", h.settings.Get)
				c.Put("/stripe", h.settings.PutStripe)
				c.Put("/general", h.settings.PutGeneral)
				c.Put("/pages", h.settings.PutPages)
			})
			admin.Route("/recoveries", func(c chi.Router) {
				c.Get("/", h.bookings.ListRecoveries)
				c.Get("/{id}", h.bookings.GetRecovery)
				c.Post("/{id}/retry", h.bookings.RetryRecovery)
			})
			admin.Get("/audit-logs", h.audit.List)
			admin.Route("/queues", func(c chi.Router) {
				c.Get("/", h.queues.Stats)
				c.Get("/{queue}/archived", h.queues.ListArchived)
				c.Post("/{queue}/archived/{id}/run", h.queues.RunArchived)
			})
		})
	})

	return r
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if strings.TrimSpace(user) == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
