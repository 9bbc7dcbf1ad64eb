package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthcontroller "github.com/wawire/rentpulse-backend/api/controllers/health"
	remindercontrollers "github.com/wawire/rentpulse-backend/api/controllers/reminders"
	webhookcontrollers "github.com/wawire/rentpulse-backend/api/controllers/webhooks"
	"github.com/wawire/rentpulse-backend/api/middleware"
	"github.com/wawire/rentpulse-backend/pkg/config"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

// RouterParams carries everything the router wires together.
type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	Health    *healthcontroller.Controller
	Webhooks  *webhookcontrollers.Controller
	Reminders *remindercontrollers.Controller
	Metrics   http.Handler
}

// NewRouter assembles the API surface: health probes, Prometheus metrics,
// the guarded M-Pesa callback endpoints and the manual reminder operations.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", params.Health.Live)
		r.Get("/ready", params.Health.Ready)
	})

	metricsHandler := params.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/webhooks/mpesa", func(r chi.Router) {
		r.Use(middleware.WebhookGuard(params.Config.Webhook, params.Logger))
		r.Post("/validation", params.Webhooks.Validation)
		r.Post("/confirmation", params.Webhooks.Confirmation)
		r.Post("/stkpush/callback", params.Webhooks.StkResult)
		r.Post("/disbursement/result", params.Webhooks.B2CResult)
		r.Post("/disbursement/timeout", params.Webhooks.B2CTimeout)
	})

	r.Route("/api/v1/reminders", func(r chi.Router) {
		r.Post("/dispatch", params.Reminders.Dispatch)
		r.Post("/cancel", params.Reminders.Cancel)
	})

	return r
}
