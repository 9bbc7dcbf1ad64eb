package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/wawire/rentpulse-backend/api/responses"
	"github.com/wawire/rentpulse-backend/pkg/config"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

const webhookTokenHeader = "X-Webhook-Token"

// WebhookGuard gates the gateway callback surface with an IP allowlist and a
// shared-secret token. Both checks are skipped when unconfigured so sandbox
// environments work out of the box; production config is expected to set both.
// Rejections here are the one case where a webhook request does not get the
// gateway ack shape: the request never reached the ingestion contract.
func WebhookGuard(cfg config.WebhookConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	for _, ip := range cfg.AllowedIPs {
		trimmed := strings.TrimSpace(ip)
		if trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if len(allowed) > 0 {
				source := sourceIP(r)
				if _, ok := allowed[source]; !ok {
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "source_ip", source), "webhook rejected: source not allowlisted")
					}
					responses.WriteError(ctx, logg, w,
						pkgerrors.New(pkgerrors.CodeForbidden, "source address not allowed"))
					return
				}
			}

			// An empty token only happens in dev runs; config.Validate
			// refuses to boot prod without one.
			if cfg.Token != "" {
				provided := r.Header.Get(webhookTokenHeader)
				if subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.Token)) != 1 {
					if logg != nil {
						logg.Warn(ctx, "webhook rejected: bad or missing token")
					}
					responses.WriteError(ctx, logg, w,
						pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook token"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// sourceIP prefers the first X-Forwarded-For hop, set by the load balancer,
// over the socket peer address.
func sourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
