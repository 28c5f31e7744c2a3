package identity

import (
	"context"
	"sync"
)

// InMemoryDirectory is a thread-safe Directory used in tests and local
// development without a database.
type InMemoryDirectory struct {
	mu     sync.RWMutex
	phones map[string]string
}

// NewInMemoryDirectory creates an empty in-memory directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{phones: make(map[string]string)}
}

// SetPhone registers a patient's phone number. An empty phone models a
// patient with no usable number on file.
func (d *InMemoryDirectory) SetPhone(patientID, phone string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.phones[patientID] = phone
}

// PhoneByID implements Directory.
func (d *InMemoryDirectory) PhoneByID(_ context.Context, patientID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	phone, ok := d.phones[patientID]
	if !ok {
		return "", ErrPatientNotFound
	}
	return phone, nil
}
