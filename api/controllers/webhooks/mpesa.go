package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wawire/rentpulse-backend/api/responses"
	"github.com/wawire/rentpulse-backend/api/validators"
	"github.com/wawire/rentpulse-backend/internal/transactions"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
	"github.com/wawire/rentpulse-backend/pkg/metrics"
	"github.com/wawire/rentpulse-backend/pkg/redis"
)

// Callback endpoints always return HTTP 200 with the gateway's ack shape once
// a request passes the guard. The gateway treats anything else as undelivered
// and retries, so processing failures are logged and acked, never surfaced.

const (
	validationRejectCode = "C2B00012"

	endpointValidation  = "validation"
	endpointConfirm     = "confirmation"
	endpointStkResult   = "stk_result"
	endpointB2CResult   = "b2c_result"
	endpointB2CTimeout  = "b2c_timeout"
	defaultDedupeWindow = 72 * time.Hour
)

type ackBody struct {
	ResultCode any    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func ackAccepted() ackBody { return ackBody{ResultCode: 0, ResultDesc: "Accepted"} }
func ackSuccess() ackBody  { return ackBody{ResultCode: 0, ResultDesc: "Success"} }
func ackRejected() ackBody {
	return ackBody{ResultCode: validationRejectCode, ResultDesc: "Rejected"}
}

// ingestor is the slice of the transaction service the controller consumes.
type ingestor interface {
	HandleValidation(ctx context.Context, cb transactions.C2BCallback) transactions.ValidationOutcome
	HandleConfirmation(ctx context.Context, cb transactions.C2BCallback, raw string) error
	HandleStkResult(ctx context.Context, env transactions.StkCallbackEnvelope, raw string) error
	HandleDisbursementResult(ctx context.Context, env transactions.B2CResultEnvelope, raw string) error
	HandleDisbursementTimeout(ctx context.Context, env transactions.B2CResultEnvelope, raw string) error
}

// ControllerParams bundles the dependencies for NewController.
type ControllerParams struct {
	Ingestor     ingestor
	Idempotency  redis.IdempotencyStore
	DedupeWindow time.Duration
	Logger       *logger.Logger
	Metrics      *metrics.WebhookMetrics
}

// Controller terminates the M-Pesa callback surface.
type Controller struct {
	ingestor     ingestor
	idempotency  redis.IdempotencyStore
	dedupeWindow time.Duration
	logg         *logger.Logger
	metrics      *metrics.WebhookMetrics
}

// NewController validates dependencies and constructs a Controller.
func NewController(params ControllerParams) (*Controller, error) {
	if params.Ingestor == nil {
		return nil, fmt.Errorf("webhooks: ingestor is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("webhooks: logger is required")
	}
	window := params.DedupeWindow
	if window <= 0 {
		window = defaultDedupeWindow
	}
	return &Controller{
		ingestor:     params.Ingestor,
		idempotency:  params.Idempotency,
		dedupeWindow: window,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

// Validation handles the C2B validation probe. This is the only callback with
// a real accept/reject decision.
func (c *Controller) Validation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c.metrics.IncReceived(endpointValidation)

	var cb transactions.C2BCallback
	if _, err := validators.DecodeWebhookBody(r, &cb); err != nil {
		c.logg.Warn(ctx, "validation callback body unreadable, rejecting")
		c.metrics.IncOutcome(endpointValidation, "rejected")
		responses.WriteJSON(w, http.StatusOK, ackRejected())
		return
	}

	outcome := c.ingestor.HandleValidation(ctx, cb)
	if !outcome.Accepted {
		c.metrics.IncOutcome(endpointValidation, "rejected")
		responses.WriteJSON(w, http.StatusOK, ackRejected())
		return
	}
	c.metrics.IncOutcome(endpointValidation, "accepted")
	responses.WriteJSON(w, http.StatusOK, ackAccepted())
}

// Confirmation handles the C2B confirmation callback.
func (c *Controller) Confirmation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c.metrics.IncReceived(endpointConfirm)

	var cb transactions.C2BCallback
	raw, err := validators.DecodeWebhookBody(r, &cb)
	if err != nil {
		c.logg.Error(ctx, "confirmation callback body unreadable", err)
		c.metrics.IncOutcome(endpointConfirm, "failed")
		responses.WriteJSON(w, http.StatusOK, ackSuccess())
		return
	}

	if err := c.ingestor.HandleConfirmation(ctx, cb, string(raw)); err != nil {
		c.logg.Error(ctx, "confirmation processing failed", err)
		c.metrics.IncOutcome(endpointConfirm, "failed")
	} else {
		c.metrics.IncOutcome(endpointConfirm, "processed")
	}
	responses.WriteJSON(w, http.StatusOK, ackSuccess())
}

// StkResult handles the push-payment result callback. Deliveries are deduped
// on the checkout request id within the dedupe window; the conditional status
// transition underneath is the real guarantee, the guard just short-circuits
// obvious replays.
func (c *Controller) StkResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c.metrics.IncReceived(endpointStkResult)

	var env transactions.StkCallbackEnvelope
	raw, err := validators.DecodeWebhookBody(r, &env)
	if err != nil {
		c.logg.Error(ctx, "stk callback body unreadable", err)
		c.metrics.IncOutcome(endpointStkResult, "failed")
		responses.WriteJSON(w, http.StatusOK, ackSuccess())
		return
	}

	checkoutID := env.Body.StkCallback.CheckoutRequestID
	dedupeKey, fresh := c.claim(ctx, endpointStkResult, checkoutID)
	if !fresh {
		c.logg.Info(c.logg.WithField(ctx, "checkout_request_id", checkoutID),
			"duplicate stk callback delivery ignored")
		c.metrics.IncOutcome(endpointStkResult, "duplicate")
		responses.WriteJSON(w, http.StatusOK, ackSuccess())
		return
	}

	if err := c.ingestor.HandleStkResult(ctx, env, string(raw)); err != nil {
		c.logOutcomeError(ctx, endpointStkResult, err)
		c.release(ctx, dedupeKey, err)
	} else {
		c.metrics.IncOutcome(endpointStkResult, "processed")
	}
	responses.WriteJSON(w, http.StatusOK, ackSuccess())
}

// B2CResult handles the disbursement result callback.
func (c *Controller) B2CResult(w http.ResponseWriter, r *http.Request) {
	c.handleB2C(w, r, endpointB2CResult, c.ingestor.HandleDisbursementResult)
}

// B2CTimeout handles the disbursement queue-timeout callback.
func (c *Controller) B2CTimeout(w http.ResponseWriter, r *http.Request) {
	c.handleB2C(w, r, endpointB2CTimeout, c.ingestor.HandleDisbursementTimeout)
}

func (c *Controller) handleB2C(w http.ResponseWriter, r *http.Request, endpoint string,
	handle func(context.Context, transactions.B2CResultEnvelope, string) error) {
	ctx := r.Context()
	c.metrics.IncReceived(endpoint)

	var env transactions.B2CResultEnvelope
	raw, err := validators.DecodeWebhookBody(r, &env)
	if err != nil {
		c.logg.Error(ctx, "disbursement callback body unreadable", err)
		c.metrics.IncOutcome(endpoint, "failed")
		responses.WriteJSON(w, http.StatusOK, ackSuccess())
		return
	}

	if err := handle(ctx, env, string(raw)); err != nil {
		c.logOutcomeError(ctx, endpoint, err)
	} else {
		c.metrics.IncOutcome(endpoint, "processed")
	}
	responses.WriteJSON(w, http.StatusOK, ackSuccess())
}

// claim marks a delivery as seen. With no idempotency store configured, or on
// store errors, every delivery counts as fresh and the database transition
// does the dedupe.
func (c *Controller) claim(ctx context.Context, endpoint, id string) (string, bool) {
	if c.idempotency == nil || id == "" {
		return "", true
	}
	key := c.idempotency.IdempotencyKey("webhook:"+endpoint, id)
	fresh, err := c.idempotency.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), c.dedupeWindow)
	if err != nil {
		c.logg.Error(ctx, "idempotency claim failed, processing anyway", err)
		return "", true
	}
	return key, fresh
}

// release frees a claimed key after a processing failure so the gateway's
// retry is not swallowed by the dedupe guard. Not-found failures keep the
// claim: retrying an unknown checkout id cannot succeed later.
func (c *Controller) release(ctx context.Context, key string, cause error) {
	if c.idempotency == nil || key == "" {
		return
	}
	if typed := pkgerrors.As(cause); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
		return
	}
	if err := c.idempotency.Del(ctx, key); err != nil {
		c.logg.Error(ctx, "releasing idempotency claim failed", err)
	}
}

func (c *Controller) logOutcomeError(ctx context.Context, endpoint string, err error) {
	c.metrics.IncOutcome(endpoint, "failed")
	c.logg.Error(ctx, endpoint+" processing failed", err)
}
