package sms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careops/careops/internal/platform/workerpool"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testSendPool(t *testing.T) *workerpool.Pool {
	t.Helper()
	p, err := workerpool.New(workerpool.Config{
		Name:          "gateway-send",
		Core:          2,
		Max:           2,
		QueueCapacity: 4,
		Policy:        workerpool.PolicyReject,
	}, testLogger())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.Shutdown(ctx)
	})
	return p
}

func TestGateway_DeliverSuccess(t *testing.T) {
	sender := &MockSender{MessageID: "SM123"}
	g := NewGateway(sender, testSendPool(t), GatewayConfig{DefaultCountryCode: "+1"}, testLogger())

	out := g.Deliver(context.Background(), "555-123-4567", "hello")
	if !out.OK {
		t.Fatalf("Deliver() = %+v, want OK", out)
	}
	if out.MessageID != "SM123" {
		t.Errorf("MessageID = %q, want SM123", out.MessageID)
	}
	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("sender called %d times, want 1", len(calls))
	}
	if calls[0].To != "+15551234567" {
		t.Errorf("sent to %q, want normalized +15551234567", calls[0].To)
	}
	if calls[0].Body != "hello" {
		t.Errorf("body = %q, want hello", calls[0].Body)
	}
}

func TestGateway_DeliverTimeout(t *testing.T) {
	sender := &MockSender{Delay: 2 * time.Second, HonorContext: true}
	g := NewGateway(sender, testSendPool(t), GatewayConfig{SendTimeout: 50 * time.Millisecond}, testLogger())

	start := time.Now()
	out := g.Deliver(context.Background(), "+15551234567", "slow")
	elapsed := time.Since(start)

	if out.OK {
		t.Fatal("Deliver() succeeded, want timeout")
	}
	if out.Reason != ReasonTimeout {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonTimeout)
	}
	if !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want context.DeadlineExceeded", out.Err)
	}
	if elapsed > time.Second {
		t.Errorf("Deliver() blocked %v, want return shortly after the 50ms timeout", elapsed)
	}
}

func TestGateway_DeliverNotConfigured(t *testing.T) {
	sender := &MockSender{NotConfigured: true}
	g := NewGateway(sender, testSendPool(t), GatewayConfig{}, testLogger())

	out := g.Deliver(context.Background(), "+15551234567", "x")
	if out.Reason != ReasonNotConfigured {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonNotConfigured)
	}
	if len(sender.Calls()) != 0 {
		t.Errorf("sender called %d times, want 0", len(sender.Calls()))
	}
}

func TestGateway_DeliverInvalidRecipient(t *testing.T) {
	sender := &MockSender{}
	g := NewGateway(sender, testSendPool(t), GatewayConfig{}, testLogger())

	out := g.Deliver(context.Background(), "   ", "x")
	if out.Reason != ReasonInvalidRecipient {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonInvalidRecipient)
	}
	if !errors.Is(out.Err, ErrInvalidRecipient) {
		t.Errorf("Err = %v, want ErrInvalidRecipient", out.Err)
	}
	if len(sender.Calls()) != 0 {
		t.Errorf("sender called %d times, want 0", len(sender.Calls()))
	}
}

func TestGateway_DeliverProviderError(t *testing.T) {
	sender := &MockSender{ShouldFail: true, FailError: "21211 invalid 'To' number"}
	g := NewGateway(sender, testSendPool(t), GatewayConfig{}, testLogger())

	out := g.Deliver(context.Background(), "+15551234567", "x")
	if out.OK {
		t.Fatal("Deliver() succeeded, want provider failure")
	}
	if out.Reason != ReasonRejected {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonRejected)
	}
	if out.Err == nil || out.Err.Error() != "21211 invalid 'To' number" {
		t.Errorf("Err = %v, want provider error", out.Err)
	}
}

func TestGateway_DeliverPoolSaturated(t *testing.T) {
	p, err := workerpool.New(workerpool.Config{
		Name:          "gateway-send",
		Core:          1,
		Max:           1,
		QueueCapacity: 1,
		Policy:        workerpool.PolicyReject,
	}, testLogger())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.Shutdown(ctx)
	}()

	// Occupy the single worker and the single queue slot.
	block := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func() { close(started); <-block }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started
	if err := p.Submit(func() {}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	defer close(block)

	sender := &MockSender{}
	g := NewGateway(sender, p, GatewayConfig{}, testLogger())
	out := g.Deliver(context.Background(), "+15551234567", "x")
	if out.Reason != ReasonRejected {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonRejected)
	}
	if len(sender.Calls()) != 0 {
		t.Errorf("sender called %d times, want 0", len(sender.Calls()))
	}
}
