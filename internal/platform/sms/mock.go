package sms

import (
	"context"
	"errors"
	"sync"
	"time"
)

// SendCall records a single call to MockSender.Send.
type SendCall struct {
	To   string
	Body string
}

// MockSender is a test double for Sender. It records calls and can be
// configured to fail, block, or return a fixed message id.
type MockSender struct {
	mu    sync.Mutex
	calls []SendCall

	MessageID     string
	ShouldFail    bool
	FailError     string
	Delay         time.Duration
	NotConfigured bool
	// HonorContext makes a delayed Send return early when ctx is canceled,
	// simulating a provider client that observes cancellation.
	HonorContext bool
}

// Send records the call, optionally sleeps, and returns the configured result.
func (m *MockSender) Send(ctx context.Context, to, body string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SendCall{To: to, Body: body})
	m.mu.Unlock()

	if m.Delay > 0 {
		if m.HonorContext {
			select {
			case <-time.After(m.Delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		} else {
			time.Sleep(m.Delay)
		}
	}
	if m.ShouldFail {
		msg := m.FailError
		if msg == "" {
			msg = "mock send failure"
		}
		return "", errors.New(msg)
	}
	if m.MessageID != "" {
		return m.MessageID, nil
	}
	return "SM-mock", nil
}

// Configured reports the inverse of NotConfigured.
func (m *MockSender) Configured() bool { return !m.NotConfigured }

// Calls returns a copy of recorded calls.
func (m *MockSender) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}
