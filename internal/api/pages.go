package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/Miketheless/workshopneu/internal/availability"
	"github.com/Miketheless/workshopneu/internal/booking"
	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/table"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"booking.html", "confirmation.html", "login.html", "dashboard.html"}

type pageRenderer struct {
	pages map[string]*template.Template
}

func newPageRenderer(loc *time.Location) (*pageRenderer, error) {
	formatTimestamp := func(raw string) string {
		return table.FormatTimestamp(raw, loc)
	}
	funcs := template.FuncMap{
		"formatLong":      availability.FormatLong,
		"formatShort":     availability.FormatShort,
		"monthLabel":      availability.MonthLabel,
		"personLabel":     availability.PersonLabel,
		"formatDate":      table.FormatDate,
		"formatTimestamp": formatTimestamp,
		"sortIcon":        table.SortIcon,
		"isoDate":         isoDate,
		"add":             add,
	}

	r := &pageRenderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tpl
	}
	return r, nil
}

// render executes a page into a buffer first so a template error never
// produces a half-written response.
func (p *pageRenderer) render(w http.ResponseWriter, status int, name string, data any) error {
	tpl, ok := p.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %s", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func add(a, b int) int { return a + b }

// isoDate renders a date cell as YYYY-MM-DD for date inputs.
func isoDate(raw string) string {
	if d := availability.ParseDate(raw); d.Valid() {
		return d.String()
	}
	return ""
}

// slotView is one line of the date listing.
type slotView struct {
	ID         string
	DateLabel  string
	Time       string
	Free       int
	BadgeClass string
	BadgeLabel string
	Bookable   bool
	Selected   bool
}

type monthOption struct {
	Value    string
	Label    string
	Selected bool
}

type participantForm struct {
	Index int
	models.Participant
	Error string
}

type bookingPage struct {
	CSRFField     template.HTML
	Months        []monthOption
	Month         string
	Slots         []slotView
	Weekdays      []string
	Calendar      [][]availability.CalendarDay
	CalendarLabel string
	Fallback      bool
	Selected      *slotView
	Count         int
	CountOptions  []int
	Participants  []participantForm
	Form          models.BookingRequest
	Errors        map[string]string
	Error         string
}

type confirmationPage struct {
	CSRFField    template.HTML
	Confirmation *booking.Confirmation
}

type loginPage struct {
	CSRFField template.HTML
	Error     string
}

type headerCell struct {
	Table string
	Key   string
	Label string
	Icon  string
}

type flagCell struct {
	Key     string
	Label   string
	Checked bool
}

type dateCell struct {
	Key   string
	Label string
	Value string
}

type bookingRow struct {
	ID        string
	Cells     []string
	Cancelled bool
	Controls  table.Controls
	Flags     []flagCell
	Dates     []dateCell
}

type dashboardPage struct {
	CSRFField          template.HTML
	Message            string
	Stats              table.Stats
	Summary            table.ParticipantSummary
	BookingHeaders     []headerCell
	FlagHeaders        []string
	DateHeaders        []string
	Bookings           []bookingRow
	ParticipantHeaders []headerCell
	Participants       [][]string
	AddCount           int
	AddCountOptions    []int
	AddParticipants    []participantForm
	LoadedAt           string
	EmptyText          string
}
