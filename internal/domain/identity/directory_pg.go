package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type directoryPG struct{ pool *pgxpool.Pool }

// NewDirectoryPG returns a Directory backed by the patient table.
func NewDirectoryPG(pool *pgxpool.Pool) Directory {
	return &directoryPG{pool: pool}
}

func (d *directoryPG) PhoneByID(ctx context.Context, patientID string) (string, error) {
	var phone *string
	err := d.pool.QueryRow(ctx,
		`SELECT phone FROM patient WHERE id = $1`, patientID,
	).Scan(&phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPatientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup patient phone: %w", err)
	}
	if phone == nil {
		return "", nil
	}
	return *phone, nil
}
