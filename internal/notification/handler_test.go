package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careops/careops/internal/platform/sms"
)

func TestHandleSendSMS(t *testing.T) {
	env := newTestEnv(t, &sms.MockSender{})
	h := NewHandler(env.dispatcher)

	e := echo.New()
	body := `{"phone":"+15551234567","body":"gateway check"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/sms", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.HandleSendSMS(e.NewContext(req, rec)); err != nil {
		t.Fatalf("HandleSendSMS() error = %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	var resp sendSMSResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DeliveryID == "" || resp.Status != "queued" {
		t.Errorf("response = %+v", resp)
	}

	deadline := time.After(5 * time.Second)
	for len(env.sender.Calls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("dispatch never reached the sender")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHandleSendSMS_Validation(t *testing.T) {
	env := newTestEnv(t, &sms.MockSender{})
	h := NewHandler(env.dispatcher)
	e := echo.New()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing phone", body: `{"body":"x"}`},
		{name: "missing body", body: `{"phone":"+15551234567"}`},
		{name: "malformed json", body: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/sms", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			if err := h.HandleSendSMS(e.NewContext(req, rec)); err != nil {
				t.Fatalf("HandleSendSMS() error = %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(env.sender.Calls()) != 0 {
				t.Errorf("sender called %d times, want 0", len(env.sender.Calls()))
			}
		})
	}
}

func TestHandleStats(t *testing.T) {
	env := newTestEnv(t, &sms.MockSender{})
	h := NewHandler(env.dispatcher)
	e := echo.New()

	waitOutcome(t, env.dispatcher.Direct("+15551234567", "one"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/stats", nil)
	rec := httptest.NewRecorder()
	if err := h.HandleStats(e.NewContext(req, rec)); err != nil {
		t.Fatalf("HandleStats() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Dispatched != 1 || stats.Succeeded != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
