// Package notify delivers booking notifications to a webhook and to
// Telegram admin chats.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/events"
	"github.com/Miketheless/workshopneu/internal/logging"
	"github.com/Miketheless/workshopneu/internal/worker"

	"github.com/rs/zerolog"
)

var ErrWebhookDisabled = errors.New("webhook not configured")

// Webhook posts booking payloads with a short timeout and exactly one
// retry after a fixed delay.
type Webhook struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	policy     worker.RetryPolicy
	logger     zerolog.Logger
}

func NewWebhook(cfg config.WebhookConfig, logger *zerolog.Logger) *Webhook {
	l := logging.Component(logger, "webhook")
	return &Webhook{
		url:        cfg.URL,
		httpClient: &http.Client{},
		timeout:    cfg.Timeout,
		policy:     worker.FixedRetry(1, cfg.RetryDelay),
		logger:     l,
	}
}

// Enabled reports whether a URL is configured.
func (w *Webhook) Enabled() bool {
	return w != nil && w.url != ""
}

// Notify delivers payload. The returned error is advisory only.
func (w *Webhook) Notify(ctx context.Context, payload events.BookingEventPayload) error {
	if !w.Enabled() {
		return ErrWebhookDisabled
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; !w.policy.Exhausted(attempt); attempt++ {
		if attempt > 0 {
			delay := w.policy.NextDelay(attempt)
			w.logger.Debug().Err(lastErr).Dur("delay", delay).Str("booking_id", payload.BookingID).Msg("Retrying webhook")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if lastErr = w.post(ctx, body); lastErr == nil {
			return nil
		}
	}
	w.logger.Warn().Err(lastErr).Str("booking_id", payload.BookingID).Msg("Webhook delivery failed")
	return lastErr
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	timeout := w.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook http %d", resp.StatusCode)
	}
	return nil
}
