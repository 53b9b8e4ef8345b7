package delivery

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the full API surface. All business routes live under /v1;
// /health and /metrics sit at the root for probes and scrapers.
func NewRouter(flags *FlagHandler, segments *SegmentHandler, rules *RuleHandler, experiments *ExperimentHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/flags", func(r chi.Router) {
			r.Post("/", flags.Create)
			r.Get("/", flags.List)
			r.Post("/evaluate", flags.EvaluateBulk)
			r.Get("/{flagKey}", flags.Get)
			r.Put("/{flagKey}", flags.Update)
			r.Delete("/{flagKey}", flags.Delete)
			r.Post("/{flagKey}/evaluate", flags.Evaluate)
		})

		r.Route("/segments", func(r chi.Router) {
			r.Post("/", segments.Create)
			r.Get("/", segments.List)
			r.Get("/{segmentKey}", segments.Get)
			r.Put("/{segmentKey}", segments.Update)
			r.Delete("/{segmentKey}", segments.Delete)
			r.Post("/{segmentKey}/evaluate", segments.Evaluate)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", rules.Create)
			r.Get("/", rules.List)
			r.Post("/evaluate", rules.Evaluate)
			r.Get("/{ruleKey}", rules.Get)
			r.Put("/{ruleKey}", rules.Update)
			r.Delete("/{ruleKey}", rules.Delete)
		})

		r.Route("/experiments", func(r chi.Router) {
			r.Post("/", experiments.Create)
			r.Get("/", experiments.List)
			r.Get("/{experimentKey}", experiments.Get)
			r.Put("/{experimentKey}", experiments.Update)
			r.Delete("/{experimentKey}", experiments.Delete)
			r.Post("/{experimentKey}/assign", experiments.Assign)
			r.Post("/{experimentKey}/results", experiments.Results)
			r.Post("/{experimentKey}/conclude", experiments.Conclude)
		})
	})

	return r
}
