package health

import (
	"context"
	"net/http"

	"github.com/wawire/rentpulse-backend/api/responses"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller serves liveness and readiness probes.
type Controller struct {
	logg *logger.Logger
	deps map[string]Pinger
}

// NewController builds the health controller. deps maps a dependency name to
// its pinger; readiness fails if any dependency does.
func NewController(logg *logger.Logger, deps map[string]Pinger) *Controller {
	return &Controller{logg: logg, deps: deps}
}

func (c *Controller) Live(w http.ResponseWriter, r *http.Request) {
	responses.WriteSuccess(w, map[string]string{"status": "ok"})
}

func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{}
	healthy := true
	for name, dep := range c.deps {
		if err := dep.Ping(ctx); err != nil {
			healthy = false
			status[name] = "down"
			c.logg.Error(c.logg.WithField(ctx, "dependency", name), "readiness check failed", err)
			continue
		}
		status[name] = "up"
	}
	if !healthy {
		responses.WriteError(ctx, c.logg, w,
			pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").WithDetails(status))
		return
	}
	responses.WriteSuccess(w, status)
}
