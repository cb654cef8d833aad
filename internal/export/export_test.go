package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() []models.Booking {
	return []models.Booking{
		{BookingID: "B1", Timestamp: "2026-01-17T10:15:00Z", SlotID: "2026-03-14", Status: models.StatusConfirmed,
			ContactEmail: "anna@example.at", Participants: []models.Participant{{FirstName: "Anna", LastName: "Huber", Zip: "5020", City: "Salzburg"}}},
		{BookingID: "B2", SlotID: "2026-04-04", Status: models.StatusCancelled, ParticipantsCount: 2},
	}
}

func TestWithBOM(t *testing.T) {
	assert.Equal(t, []byte("\uFEFFa;b"), WithBOM("a;b"))
	assert.Equal(t, []byte("\uFEFFa;b"), WithBOM("\uFEFFa;b"), "not doubled")
}

func TestCSV(t *testing.T) {
	data, err := CSV(table.BookingColumns.Headers(), table.Records(table.BookingColumns, sample(), time.UTC))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte(BOM)))

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), BOM)))
	r.Comma = Separator
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Buchungs-ID", rows[0][0])
	assert.Equal(t, "B1", rows[1][0])
	assert.Equal(t, "14.03.2026", rows[1][2])
}

func TestWorkbook(t *testing.T) {
	bookings := sample()
	wb := Workbook{Bookings: bookings, Participants: table.ExpandParticipants(bookings), Location: time.UTC}

	var buf bytes.Buffer
	require.NoError(t, wb.WriteXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetBookings, SheetParticipants}, f.GetSheetList())

	v, err := f.GetCellValue(SheetBookings, "A2")
	require.NoError(t, err)
	assert.Equal(t, "B1", v)

	rows, err := f.GetRows(SheetParticipants)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header + one participant + one placeholder")

	path, err := wb.Save(t.TempDir(), time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "buchungen_2026-03-01_093000.xlsx", filepath.Base(path))
	assert.FileExists(t, path)
}
