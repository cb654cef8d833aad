package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/Miketheless/workshopneu/internal/availability"
	"github.com/Miketheless/workshopneu/internal/models"
)

// Editable reports whether field may be changed from the dashboard.
func Editable(field string) bool {
	return models.IsCheckboxField(field) || models.IsDateField(field)
}

// ApplyFieldEdit returns a copy of b with field set to value. Cancelled
// bookings reject every edit. Date fields take an empty value or a date
// ParseDate understands.
func ApplyFieldEdit(b models.Booking, field, value string) (models.Booking, error) {
	if !Editable(field) {
		return b, fmt.Errorf("%w: %s", ErrNotEditable, field)
	}
	if !b.IsConfirmed() {
		return b, fmt.Errorf("%w: %s", ErrRowDisabled, b.BookingID)
	}
	if models.IsDateField(field) {
		if v := strings.TrimSpace(value); v != "" && !availability.ParseDate(v).Valid() {
			return b, fmt.Errorf("%w: %s=%q", ErrInvalidDate, field, v)
		}
	}
	out := b
	if err := out.SetField(field, value); err != nil {
		return b, err
	}
	return out, nil
}

// OptimisticEdit applies a local change, persists it and calls the undo
// returned by apply when persisting fails. The persist error is returned
// unchanged.
func OptimisticEdit(ctx context.Context, apply func() (undo func()), persist func(ctx context.Context) error) error {
	undo := apply()
	if err := persist(ctx); err != nil {
		if undo != nil {
			undo()
		}
		return err
	}
	return nil
}
