package domain

import (
	"context"
	"time"

	"github.com/Miketheless/workshopneu/internal/events"
	"github.com/Miketheless/workshopneu/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Booker submits bookings to the backend.
type Booker interface {
	Book(ctx context.Context, req models.BookingRequest) (*models.BookResult, error)
}

// AdminBackend is the admin-key protected part of the backend contract.
type AdminBackend interface {
	AdminBookings(ctx context.Context, adminKey string) ([]models.Booking, error)
	UpdateField(ctx context.Context, adminKey, bookingID, field, value string) error
	Cancel(ctx context.Context, adminKey, bookingID string) error
	Restore(ctx context.Context, adminKey, bookingID string) error
	AddBooking(ctx context.Context, adminKey string, req models.BookingRequest) (string, error)
	ExportCSV(ctx context.Context, adminKey string) (string, error)
}

type StateRepository interface {
	GetState(ctx context.Context, sessionID string) (*models.ViewState, error)
	SetState(ctx context.Context, state *models.ViewState) error
	ClearState(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EditJournal records admin field edits and their outcome.
type EditJournal interface {
	RecordEdit(ctx context.Context, rec *models.EditRecord) error
}

// SyncEnqueuer schedules a mirror of the admin tables.
type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, taskType, bookingID string, bookings []models.Booking) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type EventPublisher interface {
	PublishBooking(eventType string, payload events.BookingEventPayload) error
}

// Notifier delivers a booking notification outside the portal.
type Notifier interface {
	Notify(ctx context.Context, payload events.BookingEventPayload) error
}
