package sms

import (
	"errors"
	"strings"
)

// ErrInvalidRecipient is returned when a phone number is empty or contains
// no digits after stripping formatting characters.
var ErrInvalidRecipient = errors.New("invalid recipient phone number")

// Normalize converts arbitrary phone text into E.164 form
// ("+<countrycode><digits>"). Input already starting with "+" is returned
// as-is, so the function is idempotent for normalized numbers. Otherwise all
// non-digit characters are stripped and defaultCountryCode is prepended
// (gaining a "+" prefix when the configured code omits one).
func Normalize(raw, defaultCountryCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidRecipient
	}
	if strings.HasPrefix(raw, "+") {
		return raw, nil
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return "", ErrInvalidRecipient
	}

	cc := strings.TrimSpace(defaultCountryCode)
	if cc == "" {
		return "+" + digits.String(), nil
	}
	if !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	return cc + digits.String(), nil
}

// Redact masks a phone number for logging, keeping the prefix and the last
// four digits: "+15551234567" -> "+1******4567".
func Redact(phone string) string {
	if len(phone) <= 6 {
		return phone
	}
	head := phone[:2]
	tail := phone[len(phone)-4:]
	return head + strings.Repeat("*", len(phone)-6) + tail
}
