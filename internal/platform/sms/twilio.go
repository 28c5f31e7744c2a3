package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sender abstracts the third-party SMS service. Send blocks until the
// provider accepts or refuses the message and returns the provider-assigned
// message identifier on success.
type Sender interface {
	Send(ctx context.Context, to, body string) (messageID string, err error)
	Configured() bool
}

// TwilioConfig holds the Twilio credentials and sender identity. Either
// MessagingServiceSID or FromNumber must be set for sends to succeed;
// MessagingServiceSID wins when both are present.
type TwilioConfig struct {
	AccountSID          string
	AuthToken           string
	FromNumber          string
	MessagingServiceSID string
	// BaseURL overrides the Twilio API endpoint, used by tests.
	BaseURL string
}

// TwilioSender sends SMS through the Twilio Messages REST API.
type TwilioSender struct {
	cfg        TwilioConfig
	httpClient *http.Client
	logger     zerolog.Logger
	configured bool
}

// NewTwilioSender builds a TwilioSender. Missing credentials do not fail
// construction — the process still serves traffic and every send reports
// not-configured — but the condition is logged prominently once here.
func NewTwilioSender(cfg TwilioConfig, logger zerolog.Logger) *TwilioSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	configured := cfg.AccountSID != "" && cfg.AuthToken != "" &&
		(cfg.MessagingServiceSID != "" || cfg.FromNumber != "")

	s := &TwilioSender{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger:     logger.With().Str("component", "twilio").Logger(),
		configured: configured,
	}
	if configured {
		sid := cfg.AccountSID
		if len(sid) > 4 {
			sid = sid[:4] + "..."
		}
		s.logger.Info().Str("account_sid", sid).Msg("twilio sender initialized")
	} else {
		s.logger.Error().Msg("twilio credentials not configured, SMS delivery will fail")
	}
	return s
}

// Configured reports whether credentials and a sender identity are present.
func (s *TwilioSender) Configured() bool { return s.configured }

// twilioMessage is the subset of the Messages API response we read.
type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// Send posts the message to /2010-04-01/Accounts/{sid}/Messages.json and
// returns the message SID. Provider refusals come back as errors; the caller
// (the delivery gateway) converts them into outcomes.
func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if !s.configured {
		return "", fmt.Errorf("twilio: sender not configured")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("Body", body)
	if s.cfg.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", s.cfg.MessagingServiceSID)
	} else {
		form.Set("From", s.cfg.FromNumber)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.cfg.BaseURL, s.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio: send: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("twilio: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var terr twilioError
		if json.Unmarshal(payload, &terr) == nil && terr.Message != "" {
			return "", fmt.Errorf("twilio: %s (code %d)", terr.Message, terr.Code)
		}
		return "", fmt.Errorf("twilio: http %d", resp.StatusCode)
	}

	var msg twilioMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", fmt.Errorf("twilio: decode response: %w", err)
	}
	if msg.ErrorCode != nil {
		return "", fmt.Errorf("twilio: %s (code %d)", msg.ErrorMessage, *msg.ErrorCode)
	}
	return msg.SID, nil
}
