// Package backend talks to the spreadsheet-backed script endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/logging"
	"github.com/Miketheless/workshopneu/internal/metrics"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Backend actions.
const (
	ActionSlots           = "slots"
	ActionBook            = "book"
	ActionAdminBookings   = "admin_bookings"
	ActionAdminUpdate     = "admin_update"
	ActionAdminCancel     = "admin_cancel"
	ActionAdminRestore    = "admin_restore"
	ActionAdminAddBooking = "admin_add_booking"
	ActionAdminExportCSV  = "admin_export_csv"
)

const (
	slotsCacheKey  = "platzreife:slots"
	maxBodyBytes   = 8 << 20
	defaultTimeout = 15 * time.Second
)

// Client calls the backend. All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeouts   config.BackendConfig
	limiter    *rate.Limiter
	logger     zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient builds a client from the backend section of the config.
func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{},
		timeouts:   cfg,
		logger:     logging.Component(logger, "backend"),
	}
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}
	return c
}

// UseRedisCache enables caching of the slot listing.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// FetchSlots returns the raw slot records.
func (c *Client) FetchSlots(ctx context.Context) ([]map[string]any, error) {
	var resp struct {
		Slots []map[string]any `json:"slots"`
	}
	if c.readCache(ctx, slotsCacheKey, &resp) {
		return resp.Slots, nil
	}

	ctx, cancel := c.withTimeout(ctx, c.timeouts.SlotsTimeout)
	defer cancel()
	if err := c.get(ctx, ActionSlots, nil, &resp); err != nil {
		return nil, err
	}
	c.writeCache(ctx, slotsCacheKey, resp)
	return resp.Slots, nil
}

// InvalidateSlots drops the cached listing after a booking changed capacity.
func (c *Client) InvalidateSlots(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, slotsCacheKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to invalidate slot cache")
	}
}

// Book submits a booking. It is never retried here.
func (c *Client) Book(ctx context.Context, req models.BookingRequest) (*models.BookResult, error) {
	ctx, cancel := c.withTimeout(ctx, c.timeouts.BookTimeout)
	defer cancel()

	var resp struct {
		BookingID string `json:"booking_id"`
		EmailSent *bool  `json:"email_sent"`
	}
	if err := c.post(ctx, ActionBook, req, &resp); err != nil {
		return nil, err
	}
	c.InvalidateSlots(context.WithoutCancel(ctx))
	return &models.BookResult{BookingID: resp.BookingID, EmailSent: resp.EmailSent}, nil
}

// AdminBookings lists all bookings; a wrong key yields a LogicalError.
func (c *Client) AdminBookings(ctx context.Context, adminKey string) ([]models.Booking, error) {
	ctx, cancel := c.withTimeout(ctx, c.timeouts.AdminTimeout)
	defer cancel()

	var resp struct {
		Bookings []models.Booking `json:"bookings"`
	}
	if err := c.get(ctx, ActionAdminBookings, url.Values{"admin_key": {adminKey}}, &resp); err != nil {
		return nil, err
	}
	return resp.Bookings, nil
}

// UpdateField writes one administrative cell.
func (c *Client) UpdateField(ctx context.Context, adminKey, bookingID, field, value string) error {
	ctx, cancel := c.withTimeout(ctx, c.timeouts.AdminTimeout)
	defer cancel()
	params := url.Values{
		"admin_key":  {adminKey},
		"booking_id": {bookingID},
		"field":      {field},
		"value":      {value},
	}
	return c.get(ctx, ActionAdminUpdate, params, nil)
}

// Cancel marks a booking CANCELLED.
func (c *Client) Cancel(ctx context.Context, adminKey, bookingID string) error {
	return c.statusChange(ctx, ActionAdminCancel, adminKey, bookingID)
}

// Restore marks a booking CONFIRMED again.
func (c *Client) Restore(ctx context.Context, adminKey, bookingID string) error {
	return c.statusChange(ctx, ActionAdminRestore, adminKey, bookingID)
}

func (c *Client) statusChange(ctx context.Context, action, adminKey, bookingID string) error {
	ctx, cancel := c.withTimeout(ctx, c.timeouts.AdminTimeout)
	defer cancel()
	if err := c.get(ctx, action, url.Values{"admin_key": {adminKey}, "booking_id": {bookingID}}, nil); err != nil {
		return err
	}
	c.InvalidateSlots(context.WithoutCancel(ctx))
	return nil
}

// AddBooking creates a booking on behalf of a customer.
func (c *Client) AddBooking(ctx context.Context, adminKey string, req models.BookingRequest) (string, error) {
	data, err := EncodePayload(req)
	if err != nil {
		return "", err
	}
	ctx, cancel := c.withTimeout(ctx, c.timeouts.BookTimeout)
	defer cancel()

	var resp struct {
		BookingID string `json:"booking_id"`
	}
	if err := c.get(ctx, ActionAdminAddBooking, url.Values{"admin_key": {adminKey}, "data": {data}}, &resp); err != nil {
		return "", err
	}
	c.InvalidateSlots(context.WithoutCancel(ctx))
	return resp.BookingID, nil
}

// ExportCSV returns the backend's CSV export without BOM.
func (c *Client) ExportCSV(ctx context.Context, adminKey string) (string, error) {
	ctx, cancel := c.withTimeout(ctx, c.timeouts.AdminTimeout)
	defer cancel()

	var resp struct {
		CSV string `json:"csv"`
	}
	if err := c.get(ctx, ActionAdminExportCSV, url.Values{"admin_key": {adminKey}}, &resp); err != nil {
		return "", err
	}
	return resp.CSV, nil
}

// EncodePayload renders the data= query parameter.
func EncodePayload(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (c *Client) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

func (c *Client) endpoint(action string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("action", action)
	return c.baseURL + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, action string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(action, params), nil)
	if err != nil {
		return err
	}
	return c.do(req, action, out)
}

func (c *Client) post(ctx context.Context, action string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(action, nil), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, action, out)
}

func (c *Client) do(req *http.Request, action string, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveBackend(action, outcomeOf(err), time.Since(start).Seconds())
		if err != nil {
			c.logger.Warn().Err(err).Str("action", action).Dur("elapsed", time.Since(start)).Msg("Backend call failed")
		} else {
			c.logger.Debug().Str("action", action).Dur("elapsed", time.Since(start)).Msg("Backend call")
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("%w: %w", ErrNetwork, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return decode(action, body, out)
}

type envelope struct {
	OK      *bool           `json:"ok"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Slots   json.RawMessage `json:"slots"`
}

func (e envelope) succeeded(action string) bool {
	if e.OK == nil && e.Success == nil {
		// older deployments answer action=slots with a bare listing
		return action == ActionSlots && bytes.HasPrefix(bytes.TrimSpace(e.Slots), []byte("["))
	}
	return (e.OK != nil && *e.OK) || (e.Success != nil && *e.Success)
}

func decode(action string, body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if !env.succeeded(action) {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = MsgUnknown
		}
		return &LogicalError{Action: action, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

func outcomeOf(err error) string {
	var le *LogicalError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &le):
		return "logical"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "network"
	}
}
