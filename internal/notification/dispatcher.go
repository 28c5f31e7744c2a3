// Package notification composes SMS messages from domain events and
// dispatches them asynchronously, keeping event-consumer goroutines fully
// decoupled from delivery latency.
package notification

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careops/careops/internal/platform/sms"
	"github.com/careops/careops/internal/platform/workerpool"
)

// RecipientDirectory resolves a patient id to a phone number. It is a
// read-only external collaborator; an error means the patient does not
// exist, an empty phone with a nil error means the patient has no usable
// phone number on file.
type RecipientDirectory interface {
	PhoneByID(ctx context.Context, patientID string) (string, error)
}

// request is the immutable per-dispatch projection of a domain event. It is
// created per call and never shared across dispatches.
type request struct {
	patientID string // entity id to resolve, empty for direct sends
	phone     string // raw phone for direct sends
	kind      Kind
	params    map[string]string
	body      string // pre-rendered body for direct sends
}

// Stats are in-process dispatch counters, exposed over HTTP for operators.
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
}

// Dispatcher is the only entry point event handlers call. Every public
// method returns a *Delivery immediately; recipient lookup, template
// rendering and the gateway call all run on the notification pool.
type Dispatcher struct {
	gateway   *sms.Gateway
	directory RecipientDirectory
	templates *TemplateEngine
	pool      *workerpool.Pool
	logger    zerolog.Logger

	baseCtx context.Context

	dispatched atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
}

// NewDispatcher builds a Dispatcher borrowing the given notification pool.
// baseCtx bounds all in-flight work; canceling it (at shutdown) stops new
// gateway calls from starting.
func NewDispatcher(baseCtx context.Context, gateway *sms.Gateway, directory RecipientDirectory, pool *workerpool.Pool, logger zerolog.Logger) *Dispatcher {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Dispatcher{
		gateway:   gateway,
		directory: directory,
		templates: NewTemplateEngine(),
		pool:      pool,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		baseCtx:   baseCtx,
	}
}

// AppointmentAccepted notifies a patient that a doctor accepted their
// appointment request.
func (d *Dispatcher) AppointmentAccepted(patientID, doctorName, date, timeOfDay string) *Delivery {
	return d.dispatch(request{
		patientID: patientID,
		kind:      KindAppointmentAccepted,
		params: map[string]string{
			"doctor_name": doctorName,
			"date":        date,
			"time":        timeOfDay,
		},
	})
}

// AppointmentRejected notifies a patient that their appointment request was
// declined. An empty reason renders as a safe default phrase.
func (d *Dispatcher) AppointmentRejected(patientID, doctorName, reason string) *Delivery {
	return d.dispatch(request{
		patientID: patientID,
		kind:      KindAppointmentRejected,
		params: map[string]string{
			"doctor_name": doctorName,
			"reason":      reason,
		},
	})
}

// OrderPlaced confirms a pharmacy order to the patient.
func (d *Dispatcher) OrderPlaced(patientID, orderID string, totalAmount float64) *Delivery {
	return d.dispatch(request{
		patientID: patientID,
		kind:      KindOrderPlaced,
		params: map[string]string{
			"order_id": orderID,
			"amount":   fmt.Sprintf("%.2f", totalAmount),
		},
	})
}

// OrderShipped notifies the patient that their order shipped.
func (d *Dispatcher) OrderShipped(patientID, orderID string) *Delivery {
	return d.dispatch(request{
		patientID: patientID,
		kind:      KindOrderShipped,
		params:    map[string]string{"order_id": orderID},
	})
}

// OrderDelivered notifies the patient that their order was delivered.
func (d *Dispatcher) OrderDelivered(patientID, orderID string) *Delivery {
	return d.dispatch(request{
		patientID: patientID,
		kind:      KindOrderDelivered,
		params:    map[string]string{"order_id": orderID},
	})
}

// Direct sends an arbitrary message to a raw phone number, bypassing
// recipient lookup and template rendering.
func (d *Dispatcher) Direct(phoneNumber, body string) *Delivery {
	return d.dispatch(request{
		phone: phoneNumber,
		kind:  KindDirect,
		body:  body,
	})
}

// Stats returns a snapshot of the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched: d.dispatched.Load(),
		Succeeded:  d.succeeded.Load(),
		Failed:     d.failed.Load(),
	}
}

// dispatch enqueues the work and returns the handle without blocking. The
// notification pool uses caller-runs, so under sustained overload the
// submitting goroutine executes the task inline; that is the accepted
// backpressure tradeoff rather than dropping the notification.
func (d *Dispatcher) dispatch(req request) *Delivery {
	del := newDelivery(uuid.NewString(), d.logger)
	d.dispatched.Add(1)

	if err := d.pool.Submit(func() {
		d.process(req, del)
	}); err != nil {
		// Only possible on a reject-policy pool or after shutdown; resolve
		// the handle rather than surfacing the error to the event handler.
		d.failed.Add(1)
		del.complete(sms.Failure(sms.ReasonRejected, err))
	}
	return del
}

// process runs on a notification-pool goroutine and is the only place a
// dispatch blocks: recipient lookup, then the gateway's bounded wait.
func (d *Dispatcher) process(req request, del *Delivery) {
	phone := req.phone
	if req.patientID != "" {
		resolved, err := d.directory.PhoneByID(d.baseCtx, req.patientID)
		if err != nil {
			d.logger.Warn().
				Str("patient_id", req.patientID).
				Str("kind", string(req.kind)).
				Err(err).
				Msg("recipient not found")
			d.failed.Add(1)
			del.complete(sms.Failure(sms.ReasonNotFound, err))
			return
		}
		if resolved == "" {
			d.logger.Warn().
				Str("patient_id", req.patientID).
				Str("kind", string(req.kind)).
				Msg("recipient has no phone number")
			d.failed.Add(1)
			del.complete(sms.Failure(sms.ReasonNoPhone, nil))
			return
		}
		phone = resolved
	}

	body := req.body
	if req.kind != KindDirect {
		rendered, err := d.templates.Render(req.kind, req.params)
		if err != nil {
			d.logger.Error().Str("kind", string(req.kind)).Err(err).Msg("template render failed")
			d.failed.Add(1)
			del.complete(sms.Failure(sms.ReasonRejected, err))
			return
		}
		body = rendered
	}

	out := d.gateway.Deliver(d.baseCtx, phone, body)
	if out.OK {
		d.succeeded.Add(1)
	} else {
		d.failed.Add(1)
	}
	d.logger.Info().
		Str("delivery_id", del.ID()).
		Str("kind", string(req.kind)).
		Bool("ok", out.OK).
		Str("reason", string(out.Reason)).
		Dur("latency", out.Duration).
		Msg("dispatch completed")
	del.complete(out)
}
