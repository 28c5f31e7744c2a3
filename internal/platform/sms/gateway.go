// Package sms wraps the third-party SMS service behind a delivery gateway
// with phone normalization and a hard wall-clock bound on every send.
package sms

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/careops/careops/internal/platform/workerpool"
)

// FailureReason classifies why a delivery did not succeed.
type FailureReason string

const (
	ReasonNone             FailureReason = ""
	ReasonInvalidRecipient FailureReason = "invalid-recipient"
	ReasonNotConfigured    FailureReason = "not-configured"
	ReasonTimeout          FailureReason = "timeout"
	ReasonRejected         FailureReason = "gateway-rejected"
	ReasonNoPhone          FailureReason = "no-phone"
	ReasonNotFound         FailureReason = "recipient-not-found"
)

// Outcome is the definite result of one delivery attempt. It is consumed by
// completion observers and logs only; nothing is persisted.
type Outcome struct {
	OK          bool
	MessageID   string
	Reason      FailureReason
	Err         error
	Duration    time.Duration
	CompletedAt time.Time
}

// Failure builds a failed Outcome stamped with the current time.
func Failure(reason FailureReason, err error) Outcome {
	return Outcome{Reason: reason, Err: err, CompletedAt: time.Now().UTC()}
}

// GatewayConfig bounds the gateway's behavior.
type GatewayConfig struct {
	// DefaultCountryCode is prepended to national-format numbers, e.g. "+1".
	DefaultCountryCode string
	// SendTimeout is the hard wall-clock bound on one send. The calling
	// goroutine never waits longer than this regardless of provider latency.
	SendTimeout time.Duration
}

// Gateway performs exactly one outbound SMS send per call with a hard
// timeout. The blocking provider call runs on the gateway-send pool, so the
// only goroutine that waits is the notification-pool goroutine that called
// Deliver — never an event-consumer goroutine.
type Gateway struct {
	sender Sender
	pool   *workerpool.Pool
	cfg    GatewayConfig
	logger zerolog.Logger
}

// NewGateway builds a Gateway borrowing the given gateway-send pool.
func NewGateway(sender Sender, pool *workerpool.Pool, cfg GatewayConfig, logger zerolog.Logger) *Gateway {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.DefaultCountryCode == "" {
		cfg.DefaultCountryCode = "+1"
	}
	return &Gateway{
		sender: sender,
		pool:   pool,
		cfg:    cfg,
		logger: logger.With().Str("component", "sms-gateway").Logger(),
	}
}

// Deliver sends body to rawPhone and always returns a definite Outcome; it
// never panics and never blocks longer than the configured timeout plus
// scheduling overhead. Timeout cancellation of the in-flight provider call
// is best-effort: the context is canceled, but if the underlying HTTP
// exchange does not observe it the call finishes in the background and its
// result is logged and discarded.
func (g *Gateway) Deliver(ctx context.Context, rawPhone, body string) Outcome {
	start := time.Now()

	if !g.sender.Configured() {
		g.logger.Error().Msg("send skipped: gateway not configured")
		return Failure(ReasonNotConfigured, nil)
	}

	to, err := Normalize(rawPhone, g.cfg.DefaultCountryCode)
	if err != nil {
		g.logger.Warn().Str("to", Redact(rawPhone)).Err(err).Msg("send skipped: invalid recipient")
		return Failure(ReasonInvalidRecipient, err)
	}

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type sendResult struct {
		messageID string
		err       error
	}
	// Buffered so a late-finishing send never leaks its goroutine.
	resultCh := make(chan sendResult, 1)

	if err := g.pool.Submit(func() {
		id, err := g.sender.Send(sendCtx, to, body)
		resultCh <- sendResult{messageID: id, err: err}
	}); err != nil {
		g.logger.Warn().Str("to", Redact(to)).Err(err).Msg("send rejected by gateway pool")
		return Failure(ReasonRejected, err)
	}

	timer := time.NewTimer(g.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		out := g.outcomeFrom(to, res.messageID, res.err, start)
		return out
	case <-timer.C:
		// Request cancellation and hand the late result to a logger; the
		// caller gets a definite timeout now.
		cancel()
		go func() {
			res := <-resultCh
			evt := g.logger.Warn().Str("to", Redact(to))
			if res.err != nil {
				evt.Err(res.err).Msg("late result for timed-out send (discarded)")
				return
			}
			evt.Str("message_id", res.messageID).Msg("timed-out send eventually succeeded (discarded)")
		}()
		g.logger.Error().
			Str("to", Redact(to)).
			Dur("timeout", g.cfg.SendTimeout).
			Msg("send timed out")
		return Outcome{
			Reason:      ReasonTimeout,
			Err:         context.DeadlineExceeded,
			Duration:    time.Since(start),
			CompletedAt: time.Now().UTC(),
		}
	}
}

func (g *Gateway) outcomeFrom(to, messageID string, err error, start time.Time) Outcome {
	elapsed := time.Since(start)
	if err != nil {
		g.logger.Error().
			Str("to", Redact(to)).
			Dur("latency", elapsed).
			Err(err).
			Msg("send failed")
		return Outcome{
			Reason:      ReasonRejected,
			Err:         err,
			Duration:    elapsed,
			CompletedAt: time.Now().UTC(),
		}
	}
	g.logger.Info().
		Str("to", Redact(to)).
		Str("message_id", messageID).
		Dur("latency", elapsed).
		Msg("send succeeded")
	return Outcome{
		OK:          true,
		MessageID:   messageID,
		Duration:    elapsed,
		CompletedAt: time.Now().UTC(),
	}
}
