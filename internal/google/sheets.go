// Package google mirrors the admin tables into a Google spreadsheet.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/table"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	BookingsSheet     = "Buchungen"
	ParticipantsSheet = "Teilnehmer"
)

// statusColumn is the A1 column of "status" in the bookings sheet.
var statusColumn = columnLetter(table.BookingColumns, "status")

type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	location      *time.Location

	cacheMu  sync.RWMutex
	rowCache map[string]int
}

// NewSheetsService authenticates with a service account key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	cfg, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return NewSheetsServiceWithOptions(ctx, spreadsheetID, option.WithHTTPClient(cfg.Client(ctx)))
}

// NewSheetsServiceWithOptions builds the service from raw client options.
func NewSheetsServiceWithOptions(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		location:      time.Local,
		rowCache:      make(map[string]int),
	}, nil
}

// SetLocation sets the zone timestamps are rendered in.
func (s *SheetsService) SetLocation(loc *time.Location) {
	s.location = loc
}

// TestConnection reads the first cell of the bookings sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	if _, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, BookingsSheet+"!A1").Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetServiceAccountEmail returns the address the spreadsheet must be shared with.
func GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// ReplaceBookingsSheet rewrites the bookings sheet with a header row and
// one row per booking.
func (s *SheetsService) ReplaceBookingsSheet(ctx context.Context, bookings []models.Booking) error {
	values := toValues(table.BookingColumns.Headers(), table.Records(table.BookingColumns, bookings, s.location))
	if err := s.replace(ctx, BookingsSheet, values); err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.rowCache = make(map[string]int, len(bookings))
	for i, b := range bookings {
		s.rowCache[b.BookingID] = i + 2
	}
	s.cacheMu.Unlock()
	return nil
}

// ReplaceParticipantsSheet rewrites the participants sheet.
func (s *SheetsService) ReplaceParticipantsSheet(ctx context.Context, rows []models.ParticipantRow) error {
	values := toValues(table.ParticipantColumns.Headers(), table.Records(table.ParticipantColumns, rows, s.location))
	return s.replace(ctx, ParticipantsSheet, values)
}

// UpdateBookingStatus patches the status cell of a mirrored booking.
func (s *SheetsService) UpdateBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus) error {
	row, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!%s%d", BookingsSheet, statusColumn, row)
	vr := &sheets.ValueRange{Values: [][]interface{}{{string(status)}}}
	if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update status of %s: %w", bookingID, err)
	}
	return nil
}

// FindBookingRow returns the 1-based sheet row of bookingID.
func (s *SheetsService) FindBookingRow(ctx context.Context, bookingID string) (int, error) {
	s.cacheMu.RLock()
	row, ok := s.rowCache[bookingID]
	s.cacheMu.RUnlock()
	if ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, BookingsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read booking ids: %w", err)
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for i, r := range resp.Values {
		if i == 0 || len(r) == 0 {
			continue
		}
		if id := fmt.Sprint(r[0]); id != "" {
			s.rowCache[id] = i + 1
		}
	}
	if row, ok := s.rowCache[bookingID]; ok {
		return row, nil
	}
	return 0, fmt.Errorf("booking %s not found in sheet", bookingID)
}

func (s *SheetsService) replace(ctx context.Context, sheet string, values [][]interface{}) error {
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, sheet+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s sheet: %w", sheet, err)
	}
	vr := &sheets.ValueRange{Values: values}
	if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, sheet+"!A1", vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s sheet: %w", sheet, err)
	}
	return nil
}

func toValues(headers []string, records [][]string) [][]interface{} {
	out := make([][]interface{}, 0, len(records)+1)
	out = append(out, toRow(headers))
	for _, r := range records {
		out = append(out, toRow(r))
	}
	return out
}

func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func columnLetter[R any](schema table.Schema[R], key string) string {
	for i, c := range schema.Columns() {
		if c.Key == key {
			return string(rune('A' + i))
		}
	}
	return "A"
}
