package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"
)

// RecordEdit appends an admin field edit to the journal.
func (db *DB) RecordEdit(ctx context.Context, rec *models.EditRecord) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO edit_log (booking_id, field, old_value, new_value, outcome, error, occurred_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.BookingID, rec.Field, rec.OldValue, rec.NewValue, rec.Outcome, rec.Error, rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("record edit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("record edit id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListEdits returns the newest edits first. An empty bookingID lists all.
func (db *DB) ListEdits(ctx context.Context, bookingID string, limit int) ([]models.EditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, booking_id, field, old_value, new_value, outcome, error, occurred_at
              FROM edit_log`
	args := []any{}
	if bookingID != "" {
		query += ` WHERE booking_id = ?`
		args = append(args, bookingID)
	}
	query += ` ORDER BY occurred_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	defer rows.Close()

	var out []models.EditRecord
	for rows.Next() {
		var r models.EditRecord
		if err := rows.Scan(&r.ID, &r.BookingID, &r.Field, &r.OldValue, &r.NewValue, &r.Outcome, &r.Error, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
