package notification

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Handler exposes notification operations over HTTP via Echo. CRUD for the
// underlying entities lives elsewhere; this surface only covers direct sends
// (used by operators to verify gateway configuration) and dispatch counters.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a new Handler.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// RegisterRoutes registers the notification routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/notifications/sms", h.HandleSendSMS)
	g.GET("/notifications/stats", h.HandleStats)
}

// sendSMSRequest is the JSON body for POST /notifications/sms.
type sendSMSRequest struct {
	Phone string `json:"phone"`
	Body  string `json:"body"`
}

// sendSMSResponse acknowledges an accepted dispatch. Delivery happens
// asynchronously; the id can be correlated with the delivery logs.
type sendSMSResponse struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}

// HandleSendSMS handles POST /notifications/sms. It returns 202 as soon as
// the dispatch is enqueued; it never waits for the gateway.
func (h *Handler) HandleSendSMS(c echo.Context) error {
	var req sendSMSRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Phone) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "phone is required"})
	}
	if strings.TrimSpace(req.Body) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "body is required"})
	}

	del := h.dispatcher.Direct(req.Phone, req.Body)
	return c.JSON(http.StatusAccepted, sendSMSResponse{
		DeliveryID: del.ID(),
		Status:     "queued",
	})
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dispatcher.Stats())
}
