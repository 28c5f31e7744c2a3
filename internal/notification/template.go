package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Kind identifies the message template used for a dispatch.
type Kind string

const (
	KindAppointmentAccepted Kind = "appointment-accepted"
	KindAppointmentRejected Kind = "appointment-rejected"
	KindOrderPlaced         Kind = "order-placed"
	KindOrderShipped        Kind = "order-shipped"
	KindOrderDelivered      Kind = "order-delivered"
	KindDirect              Kind = "direct"
)

// Template defines a reusable SMS message template.
type Template struct {
	Kind Kind
	Body string
	// Defaults supplies a safe phrase for optional parameters the caller
	// left empty, e.g. a missing rejection reason.
	Defaults map[string]string
}

// TemplateEngine holds the per-kind SMS templates and renders them with
// {{key}} parameter substitution.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[Kind]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[Kind]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			Kind: KindAppointmentAccepted,
			Body: "Great news! Your appointment request has been accepted by Dr. {{doctor_name}} on {{date}} at {{time}}. Please check your dashboard for more details. Reply STOP to unsubscribe.",
			Defaults: map[string]string{
				"doctor_name": "your doctor",
				"date":        "the scheduled date",
				"time":        "the scheduled time",
			},
		},
		{
			Kind: KindAppointmentRejected,
			Body: "Your appointment request with Dr. {{doctor_name}} has been declined. Reason: {{reason}}. Please visit your dashboard to request another appointment. Reply STOP to unsubscribe.",
			Defaults: map[string]string{
				"doctor_name": "your doctor",
				"reason":      "Request declined",
			},
		},
		{
			Kind: KindOrderPlaced,
			Body: "Your order {{order_id}} has been placed successfully. Total: {{amount}}. We'll notify you when it ships. Reply STOP to unsubscribe.",
			Defaults: map[string]string{
				"amount": "0.00",
			},
		},
		{
			Kind: KindOrderShipped,
			Body: "Good news! Your order {{order_id}} has shipped. Track delivery from your account. Reply STOP to unsubscribe.",
		},
		{
			Kind: KindOrderDelivered,
			Body: "Your order {{order_id}} has been delivered. Thank you for shopping with us! Reply STOP to unsubscribe.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.Kind] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.Kind] = &t
}

// Render looks up the template for kind and performs {{key}} replacement.
// Empty parameter values fall back to the template's defaults.
func (e *TemplateEngine) Render(kind Kind, params map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[kind]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no template for kind %q", kind)
	}

	body := t.Body
	for k, v := range t.Defaults {
		if params[k] == "" {
			body = strings.ReplaceAll(body, "{{"+k+"}}", v)
		}
	}
	for k, v := range params {
		if v == "" {
			continue
		}
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return body, nil
}
