// Package identity provides read-only patient contact lookups for the
// notification subsystem. Full patient CRUD lives in the main platform; the
// dispatcher only needs a phone number per patient id.
package identity

import (
	"context"
	"errors"
)

// ErrPatientNotFound is returned when the patient id does not resolve.
var ErrPatientNotFound = errors.New("patient not found")

// Directory resolves patient ids to phone numbers. An empty phone with a
// nil error means the patient exists but has no phone on file.
type Directory interface {
	PhoneByID(ctx context.Context, patientID string) (string, error)
}
