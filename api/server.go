/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters
  5. CORS:       Cross-origin requests for the frontend

SEE ALSO:
  - handlers.go: Handler implementations
  - metrics.go: Prometheus instrumentation
  - cmd/server/main.go: Server startup
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khedma/ministry-engine/activity"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		crud := func(r chi.Router, list, create http.HandlerFunc, get, update, del http.HandlerFunc) {
			r.Get("/", list)
			r.Post("/", create)
			r.Get("/{id}", get)
			r.Put("/{id}", update)
			r.Delete("/{id}", del)
		}

		r.Route("/classes", func(r chi.Router) {
			crud(r, h.ListClasses, h.CreateClass, h.GetClass, h.UpdateClass, h.DeleteClass)
		})
		r.Route("/years", func(r chi.Router) {
			crud(r, h.ListYears, h.CreateYear, h.GetYear, h.UpdateYear, h.DeleteYear)
		})
		r.Route("/servants", func(r chi.Router) {
			crud(r, h.ListServants, h.CreateServant, h.GetServant, h.UpdateServant, h.DeleteServant)
		})

		r.Route("/batches", func(r chi.Router) {
			crud(r, h.ListBatches, h.CreateBatch, h.GetBatch, h.UpdateBatch, h.DeleteBatch)
			r.Post("/{id}/advance", h.AdvanceBatch)
		})
		r.Route("/batch-years", func(r chi.Router) {
			r.Get("/", h.ListBatchYears)
			r.Get("/{id}", h.GetBatchYear)
		})

		r.Route("/students", func(r chi.Router) {
			crud(r, h.ListStudents, h.CreateStudent, h.GetStudent, h.UpdateStudent, h.DeleteStudent)
			r.Post("/{id}/exclude", h.ExcludeStudent)
			r.Post("/{id}/include", h.IncludeStudent)
			r.Get("/{id}/totals", h.GetStudentTotals)
		})

		activityRoutes := func(kind activity.Kind) func(chi.Router) {
			return func(r chi.Router) {
				crud(r, h.ListActivity(kind), h.CreateActivity(kind),
					h.GetActivity(kind), h.UpdateActivity(kind), h.DeleteActivity(kind))
			}
		}
		r.Route("/attendance", activityRoutes(activity.KindAttendance))
		r.Route("/confessions", activityRoutes(activity.KindConfession))
		r.Route("/masses", activityRoutes(activity.KindMass))

		r.Route("/home-visits", func(r chi.Router) {
			crud(r, h.ListHomeVisits, h.CreateHomeVisit, h.GetHomeVisit, h.UpdateHomeVisit, h.DeleteHomeVisit)
		})

		r.Route("/point-types", func(r chi.Router) {
			crud(r, h.ListPointTypes, h.CreatePointType, h.GetPointType, h.UpdatePointType, h.DeletePointType)
		})
		r.Route("/points", func(r chi.Router) {
			crud(r, h.ListEntries, h.CreateEntry, h.GetEntry, h.UpdateEntry, h.DeleteEntry)
		})
		r.Get("/summaries", h.ListSummaries)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// =============================================================================
// RESPONSE WRITERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
