// Package reminders exposes the manual reminder operations: sending one
// reminder outside the cron cadence (also the only retry path for failed
// sends) and cancelling a scheduled one.
package reminders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/wawire/rentpulse-backend/api/responses"
	"github.com/wawire/rentpulse-backend/api/validators"
	pkgerrors "github.com/wawire/rentpulse-backend/pkg/errors"
	"github.com/wawire/rentpulse-backend/pkg/logger"
)

// dispatcher is the slice of the reminder dispatcher the controller consumes.
type dispatcher interface {
	DispatchOne(ctx context.Context, id uuid.UUID) error
}

// canceller is the slice of the reminder scheduler the controller consumes.
type canceller interface {
	CancelReminder(ctx context.Context, id uuid.UUID) error
}

// ControllerParams bundles the dependencies for NewController.
type ControllerParams struct {
	Dispatcher dispatcher
	Canceller  canceller
	Logger     *logger.Logger
}

type Controller struct {
	dispatcher dispatcher
	canceller  canceller
	logg       *logger.Logger
}

// NewController validates dependencies and constructs a Controller.
func NewController(params ControllerParams) (*Controller, error) {
	if params.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reminders controller: dispatcher is required")
	}
	if params.Canceller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reminders controller: canceller is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reminders controller: logger is required")
	}
	return &Controller{
		dispatcher: params.Dispatcher,
		canceller:  params.Canceller,
		logg:       params.Logger,
	}, nil
}

type reminderActionRequest struct {
	ReminderID string `json:"reminder_id" validate:"required,uuid"`
}

type reminderActionResponse struct {
	ReminderID string `json:"reminder_id"`
	Action     string `json:"action"`
}

// Dispatch sends one reminder immediately. Scheduled and failed reminders are
// accepted; the paid re-check and quiet hours still apply.
func (c *Controller) Dispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reminderActionRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	id := uuid.MustParse(req.ReminderID)

	if err := c.dispatcher.DispatchOne(c.logg.WithField(ctx, "reminder_id", id.String()), id); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, reminderActionResponse{ReminderID: id.String(), Action: "dispatched"})
}

// Cancel drops one scheduled reminder.
func (c *Controller) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reminderActionRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	id := uuid.MustParse(req.ReminderID)

	if err := c.canceller.CancelReminder(c.logg.WithField(ctx, "reminder_id", id.String()), id); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, reminderActionResponse{ReminderID: id.String(), Action: "cancelled"})
}
