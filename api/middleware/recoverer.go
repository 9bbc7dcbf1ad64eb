package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/wawire/rentpulse-backend/api/responses"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

// Recoverer converts a handler panic into a 500 envelope. A panic in one
// callback must never take down the listener serving the rest.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic": rec,
						"stack": string(debug.Stack()),
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
