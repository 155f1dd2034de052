/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request logging plus duration histogram
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a browser frontend

AUTHENTICATION:
  POST /api/login is public. Every other /api route requires a bearer
  token, and each route is gated on one pharmacy.Permission:
    admin:       manage medicines, manage users, view reports
    pharmacist:  manage prescriptions, fulfill, bill
    both:        view medicines, view transactions

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Tokens and role gates
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	r.Get("/metrics", h.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.With(h.require(pharmacy.PermManageUsers)).Post("/users", h.CreateUser)

			// Medicine routes
			r.Route("/medicines", func(r chi.Router) {
				r.With(h.require(pharmacy.PermViewMedicines)).Get("/", h.ListMedicines)
				r.With(h.require(pharmacy.PermViewMedicines)).Get("/{id}", h.GetMedicine)
				r.With(h.require(pharmacy.PermManageMedicines)).Post("/", h.CreateMedicine)
				r.With(h.require(pharmacy.PermManageMedicines)).Patch("/{id}", h.UpdateMedicine)
				r.With(h.require(pharmacy.PermManageMedicines)).Delete("/{id}", h.DeleteMedicine)
			})

			// Prescription routes
			r.Route("/prescriptions", func(r chi.Router) {
				r.Use(h.require(pharmacy.PermManagePrescriptions))
				r.Get("/", h.ListPrescriptions)
				r.Post("/", h.CreatePrescription)
				r.Get("/{id}", h.GetPrescription)
				r.Patch("/{id}", h.UpdatePrescription)
				r.Delete("/{id}", h.DeletePrescription)
				r.Post("/{id}/items", h.AddPrescriptionItem)
				r.With(h.require(pharmacy.PermFulfill)).Post("/{id}/fulfill", h.FulfillPrescription)
				r.With(h.require(pharmacy.PermBill)).Post("/{id}/bill", h.BillPrescription)
				r.Get("/{id}/transaction", h.GetPrescriptionTransaction)
			})

			// Transaction routes
			r.Route("/transactions", func(r chi.Router) {
				r.Use(h.require(pharmacy.PermViewTransactions))
				r.Get("/", h.ListTransactions)
				r.Get("/{id}", h.GetTransaction)
			})

			// Report and admin routes
			r.With(h.require(pharmacy.PermViewReports)).Get("/reports/{kind}", h.GetReport)
			r.With(h.require(pharmacy.PermViewReports)).Get("/audit", h.ListAudit)
			r.With(h.require(pharmacy.PermManageMedicines)).Post("/admin/save", h.SaveNow)

			// Scenario routes
			r.Route("/scenarios", func(r chi.Router) {
				r.Use(h.require(pharmacy.PermManageMedicines))
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		})
	})

	return r
}

// requestLogger logs each request with zap and feeds the duration histogram.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		if h.metrics != nil {
			h.metrics.ObserveRequest(r.Method, route, status, elapsed)
		}
		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
