package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/table"

	"github.com/xuri/excelize/v2"
)

const (
	SheetBookings     = "Buchungen"
	SheetParticipants = "Teilnehmer"
)

// Workbook holds the two admin tables in display order.
type Workbook struct {
	Bookings     []models.Booking
	Participants []models.ParticipantRow
	Location     *time.Location
}

// WriteXLSX renders w as an .xlsx document.
func (wb Workbook) WriteXLSX(out io.Writer) error {
	f, err := wb.build()
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Save writes the workbook to dir and returns the file path.
func (wb Workbook) Save(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	f, err := wb.build()
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, fmt.Sprintf("buchungen_%s.xlsx", now.Format("2006-01-02_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save xlsx: %w", err)
	}
	return path, nil
}

func (wb Workbook) build() (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	cancelledStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cancelled style: %w", err)
	}

	bookingRows := table.Records(table.BookingColumns, wb.Bookings, wb.Location)
	cancelled := make([]bool, len(wb.Bookings))
	for i, b := range wb.Bookings {
		cancelled[i] = !b.IsConfirmed()
	}
	if err := writeSheet(f, SheetBookings, table.BookingColumns.Headers(), bookingRows, cancelled, headerStyle, cancelledStyle); err != nil {
		f.Close()
		return nil, err
	}

	participantRows := table.Records(table.ParticipantColumns, wb.Participants, wb.Location)
	cancelled = make([]bool, len(wb.Participants))
	for i, r := range wb.Participants {
		cancelled[i] = r.BookingStatus == models.StatusCancelled
	}
	if err := writeSheet(f, SheetParticipants, table.ParticipantColumns.Headers(), participantRows, cancelled, headerStyle, cancelledStyle); err != nil {
		f.Close()
		return nil, err
	}

	if idx, err := f.GetSheetIndex(SheetBookings); err == nil {
		f.SetActiveSheet(idx)
	}
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]string, cancelled []bool, headerStyle, cancelledStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
		if cancelled[r] {
			_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", r+2), fmt.Sprintf("%s%d", lastCol, r+2), cancelledStyle)
		}
	}

	_ = f.SetColWidth(sheet, "A", lastCol, 18)
	_ = f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return nil
}
