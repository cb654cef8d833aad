package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Miketheless/workshopneu/internal/availability"
	"github.com/Miketheless/workshopneu/internal/domain"
	"github.com/Miketheless/workshopneu/internal/events"
	"github.com/Miketheless/workshopneu/internal/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Telegram forwards booking events to admin chats.
type Telegram struct {
	bot     domain.TelegramSender
	chatIDs []int64
	logger  zerolog.Logger
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatIDs []int64, logger *zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return NewTelegramWithSender(bot, chatIDs, logger), nil
}

func NewTelegramWithSender(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Telegram {
	l := logging.Component(logger, "telegram")
	return &Telegram{bot: bot, chatIDs: chatIDs, logger: l}
}

// Attach subscribes t to every booking event on bus.
func (t *Telegram) Attach(bus *events.EventBus) {
	bus.SubscribeAll(func(e *events.Event) error {
		p, err := e.Decode()
		if err != nil {
			return err
		}
		return t.send(e.Type, p)
	})
}

// Notify sends a booking_created message.
func (t *Telegram) Notify(_ context.Context, payload events.BookingEventPayload) error {
	return t.send(events.EventBookingCreated, payload)
}

func (t *Telegram) send(eventType string, p events.BookingEventPayload) error {
	text := FormatEvent(eventType, p)
	var firstErr error
	for _, chatID := range t.chatIDs {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", chatID).Str("event", eventType).Msg("Failed to send notification")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// FormatEvent renders the admin chat message for an event.
func FormatEvent(eventType string, p events.BookingEventPayload) string {
	var b strings.Builder
	switch eventType {
	case events.EventBookingCreated, events.EventBookingAdded:
		fmt.Fprintf(&b, "Neue Buchung %s\n", p.BookingID)
		if p.SlotID != "" {
			fmt.Fprintf(&b, "Termin: %s\n", availability.FormatLong(p.SlotID))
		}
		fmt.Fprintf(&b, "Teilnehmer: %s\n", availability.PersonLabel(p.Participants))
		if p.ContactEmail != "" {
			fmt.Fprintf(&b, "Kontakt: %s\n", p.ContactEmail)
		}
		if p.EmailSent != nil && !*p.EmailSent {
			b.WriteString("Bestätigungs-E-Mail wurde nicht versendet.\n")
		}
	case events.EventBookingCancelled:
		fmt.Fprintf(&b, "Buchung %s storniert\n", p.BookingID)
	case events.EventBookingRestored:
		fmt.Fprintf(&b, "Buchung %s wiederhergestellt\n", p.BookingID)
	case events.EventFieldUpdated:
		fmt.Fprintf(&b, "Buchung %s: %s = %s\n", p.BookingID, p.Field, p.Value)
	default:
		fmt.Fprintf(&b, "%s: %s\n", eventType, p.BookingID)
	}
	return strings.TrimRight(b.String(), "\n")
}
