package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/careops/careops/internal/notification"
	"github.com/careops/careops/internal/platform/sms"
)

// notifier is the subset of the dispatcher the event handlers use. Every
// method returns immediately with a handle.
type notifier interface {
	AppointmentAccepted(patientID, doctorName, date, timeOfDay string) *notification.Delivery
	AppointmentRejected(patientID, doctorName, reason string) *notification.Delivery
	OrderPlaced(patientID, orderID string, totalAmount float64) *notification.Delivery
	OrderShipped(patientID, orderID string) *notification.Delivery
	OrderDelivered(patientID, orderID string) *notification.Delivery
}

// ConsumerConfig carries the Kafka wiring for the notifier consumer group.
type ConsumerConfig struct {
	Brokers          []string
	GroupID          string
	AppointmentTopic string
	OrderTopic       string
}

// Consumer runs a sarama consumer group over the appointment and order
// topics and feeds the notification dispatcher.
type Consumer struct {
	cfg        ConsumerConfig
	group      sarama.ConsumerGroup
	dispatcher notifier
	logger     zerolog.Logger
}

// NewConsumer connects the consumer group. Offsets start at the newest
// message: the subsystem notifies about live status changes and has no use
// for historical ones.
func NewConsumer(cfg ConsumerConfig, dispatcher notifier, logger zerolog.Logger) (*Consumer, error) {
	if cfg.GroupID == "" {
		cfg.GroupID = "careops-notifier"
	}
	if cfg.AppointmentTopic == "" {
		cfg.AppointmentTopic = "appointments"
	}
	if cfg.OrderTopic == "" {
		cfg.OrderTopic = "orders"
	}

	sc := sarama.NewConfig()
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		cfg:        cfg,
		group:      group,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "event-consumer").Logger(),
	}, nil
}

// Run consumes until ctx is canceled. It blocks, so callers start it on its
// own goroutine.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error().Err(err).Msg("consumer group error")
		}
	}()

	topics := []string{c.cfg.AppointmentTopic, c.cfg.OrderTopic}
	handler := &groupHandler{consumer: c}
	for {
		if err := c.group.Consume(ctx, topics, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("consume session failed, rejoining")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error { return c.group.Close() }

type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes one partition. Every message is marked regardless
// of outcome: a notification that cannot be dispatched is logged and
// dropped, never redelivered — delivery failure must not fail or replay the
// domain event.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.consumer.Handle(msg.Topic, msg.Value)
		session.MarkMessage(msg, "")
	}
	return nil
}

// Handle routes one raw message by topic. Exported for direct use in tests;
// it only enqueues work and returns immediately.
func (c *Consumer) Handle(topic string, payload []byte) {
	switch topic {
	case c.cfg.AppointmentTopic:
		c.handleAppointment(payload)
	case c.cfg.OrderTopic:
		c.handleOrder(payload)
	default:
		c.logger.Warn().Str("topic", topic).Msg("message from unexpected topic")
	}
}

func (c *Consumer) handleAppointment(payload []byte) {
	var evt AppointmentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		c.logger.Error().Err(err).Msg("malformed appointment event, dropping")
		return
	}

	logger := c.logger.With().
		Str("appointment_id", evt.AppointmentID).
		Str("patient_id", evt.PatientID).
		Str("action", evt.Action).
		Logger()

	switch strings.ToLower(evt.Action) {
	case "accepted":
		logger.Info().Msg("appointment accepted, queueing patient notification")
		del := c.dispatcher.AppointmentAccepted(evt.PatientID, evt.DoctorName, evt.Date, evt.Time)
		c.observe(del, logger)
	case "rejected":
		logger.Info().Msg("appointment rejected, queueing patient notification")
		del := c.dispatcher.AppointmentRejected(evt.PatientID, evt.DoctorName, evt.RejectionReason)
		c.observe(del, logger)
	case "created", "updated", "cancelled":
		// Lifecycle actions with no patient-facing SMS.
		logger.Info().Msg("appointment event processed, no notification")
	default:
		logger.Warn().Msg("unknown appointment action")
	}
}

func (c *Consumer) handleOrder(payload []byte) {
	var evt OrderEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		c.logger.Error().Err(err).Msg("malformed order event, dropping")
		return
	}

	logger := c.logger.With().
		Str("order_id", evt.OrderID).
		Str("patient_id", evt.PatientID).
		Str("action", evt.Action).
		Logger()

	switch strings.ToLower(evt.Action) {
	case "created":
		logger.Info().Msg("order placed, queueing patient notification")
		del := c.dispatcher.OrderPlaced(evt.PatientID, evt.OrderID, evt.TotalPrice)
		c.observe(del, logger)
	case "shipped":
		logger.Info().Msg("order shipped, queueing patient notification")
		del := c.dispatcher.OrderShipped(evt.PatientID, evt.OrderID)
		c.observe(del, logger)
	case "delivered":
		logger.Info().Msg("order delivered, queueing patient notification")
		del := c.dispatcher.OrderDelivered(evt.PatientID, evt.OrderID)
		c.observe(del, logger)
	case "updated":
		logger.Info().Msg("order event processed, no notification")
	default:
		logger.Warn().Msg("unknown order action")
	}
}

// observe attaches a fire-and-forget logging observer. The observer runs on
// a pool goroutine; the consumer goroutine has already moved on.
func (c *Consumer) observe(del *notification.Delivery, logger zerolog.Logger) {
	id := del.ID()
	del.OnComplete(func(out sms.Outcome) {
		if out.OK {
			logger.Info().
				Str("delivery_id", id).
				Str("message_id", out.MessageID).
				Msg("notification delivered")
			return
		}
		logger.Warn().
			Str("delivery_id", id).
			Str("reason", string(out.Reason)).
			Err(out.Err).
			Msg("notification failed")
	})
}
