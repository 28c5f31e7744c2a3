// Package events consumes appointment and order domain events from Kafka
// and turns them into asynchronous SMS dispatches. Consumer goroutines only
// decode, enqueue and ack; they never wait on delivery.
package events

// AppointmentEvent is the appointment status-change payload published to the
// appointments topic by the scheduling services.
type AppointmentEvent struct {
	AppointmentID   string `json:"appointmentId"`
	PatientID       string `json:"patientId"`
	PatientName     string `json:"patientName,omitempty"`
	DoctorID        string `json:"doctorId,omitempty"`
	DoctorName      string `json:"doctorName,omitempty"`
	Date            string `json:"date,omitempty"`
	Time            string `json:"time,omitempty"`
	Status          string `json:"status,omitempty"`
	Action          string `json:"action"` // created, updated, cancelled, accepted, rejected
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// OrderEvent is the pharmacy-order status-change payload published to the
// orders topic.
type OrderEvent struct {
	OrderID    string  `json:"orderId"`
	PatientID  string  `json:"patientId"`
	PharmacyID string  `json:"pharmacyId,omitempty"`
	TotalPrice float64 `json:"totalPrice,omitempty"`
	Status     string  `json:"status,omitempty"`
	Action     string  `json:"action"` // created, updated, shipped, delivered
}
