// Command admin runs dashboard operations from the shell.
//
//	admin [flags] list [-table bookings|participants] [-sort column] [-desc] [-columns a,b,c]
//	admin [flags] cancel <booking_id>
//	admin [flags] restore <booking_id>
//	admin [flags] set <booking_id> <field> <value>
//	admin [flags] export [-format csv|xlsx] [-out path]
//	admin [flags] edits <booking_id>
//	admin [flags] failed
//	admin [flags] mirror
//
// The admin key is read from -key or ADMIN_KEY.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Miketheless/workshopneu/internal/admin"
	"github.com/Miketheless/workshopneu/internal/backend"
	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/database"
	"github.com/Miketheless/workshopneu/internal/google"
	"github.com/Miketheless/workshopneu/internal/logging"
	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/table"

	"github.com/rs/zerolog"
)

var errUsage = errors.New("usage: admin [-config path] [-key key] list|cancel|restore|set|export|edits|failed|mirror ...")

var defaultListColumns = map[string]string{
	admin.TableBookings:     "booking_id,timestamp,slot_id,status,contact_email,participants_count",
	admin.TableParticipants: "booking_id,participant_nr,slot_id,booking_status,full_name,full_address",
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to config.yaml")
		adminKey   = flag.String("key", os.Getenv("ADMIN_KEY"), "admin key")
	)
	flag.Parse()
	if flag.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Logging.Output = "stderr"
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dash := admin.NewDashboard(admin.Deps{
		Backend:  backend.NewClient(cfg.Backend, logger),
		Journal:  db,
		Timeout:  cfg.Backend.AdminTimeout,
		Location: loc,
		Logger:   logger,
	})
	if err := dash.Login(ctx, *adminKey); err != nil {
		return fmt.Errorf("%s: %w", admin.LoginMessage(err), err)
	}

	c := &cli{
		dash:     dash,
		journal:  db,
		out:      os.Stdout,
		location: loc,
		exports:  cfg.Exports.Path,
		now:      time.Now,
		mirror: func(ctx context.Context) (mirror, error) {
			return newMirror(ctx, cfg.Google, loc)
		},
		logger: logger,
	}
	return c.run(ctx, flag.Args())
}

// mirror is the part of the sheets service the mirror command needs.
type mirror interface {
	ReplaceBookingsSheet(ctx context.Context, bookings []models.Booking) error
	ReplaceParticipantsSheet(ctx context.Context, rows []models.ParticipantRow) error
}

// journal is the local audit and sync-queue store.
type journal interface {
	ListEdits(ctx context.Context, bookingID string, limit int) ([]models.EditRecord, error)
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
}

type cli struct {
	dash     *admin.Dashboard
	journal  journal
	out      io.Writer
	location *time.Location
	exports  string
	now      func() time.Time
	mirror   func(ctx context.Context) (mirror, error)
	logger   *zerolog.Logger
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return c.list(rest)
	case "cancel", "restore":
		if len(rest) != 1 {
			return fmt.Errorf("usage: admin %s <booking_id>", cmd)
		}
		return c.transition(ctx, cmd, rest[0])
	case "set":
		if len(rest) != 3 {
			return errors.New("usage: admin set <booking_id> <field> <value>")
		}
		if err := c.dash.EditField(ctx, rest[0], rest[1], rest[2]); err != nil {
			return fmt.Errorf("%s: %w", admin.ActionMessage(err), err)
		}
		fmt.Fprintf(c.out, "%s: %s = %s\n", rest[0], rest[1], rest[2])
		return nil
	case "export":
		return c.export(ctx, rest)
	case "edits":
		if len(rest) != 1 {
			return errors.New("usage: admin edits <booking_id>")
		}
		return c.listEdits(ctx, rest[0])
	case "failed":
		return c.listFailed(ctx)
	case "mirror":
		return c.runMirror(ctx)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func (c *cli) list(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.out)
	tableName := fs.String("table", admin.TableBookings, "bookings or participants")
	sortBy := fs.String("sort", "", "column to sort by")
	desc := fs.Bool("desc", false, "sort descending")
	columns := fs.String("columns", "", "comma separated column keys")
	if err := fs.Parse(args); err != nil {
		return err
	}

	view := c.dash.View()
	if *sortBy != "" {
		spec := models.SortSpec{Column: *sortBy, Direction: models.Asc}
		if *desc {
			spec.Direction = models.Desc
		}
		switch *tableName {
		case admin.TableBookings:
			view.Bookings = spec
		case admin.TableParticipants:
			view.Participants = spec
		}
		c.dash.RestoreView(view)
	}

	keys := *columns
	if keys == "" {
		keys = defaultListColumns[*tableName]
	}

	switch *tableName {
	case admin.TableBookings:
		rows, err := c.dash.Bookings()
		if err != nil {
			return err
		}
		if err := printTable(c.out, table.BookingColumns, rows, keys, c.location); err != nil {
			return err
		}
		s := c.dash.Stats()
		fmt.Fprintf(c.out, "\n%d Buchungen, %d bestätigt, %d storniert, %d Teilnehmer\n", s.Total, s.Confirmed, s.Cancelled, s.Participants)
		return nil
	case admin.TableParticipants:
		rows, err := c.dash.Participants()
		if err != nil {
			return err
		}
		return printTable(c.out, table.ParticipantColumns, rows, keys, c.location)
	default:
		return fmt.Errorf("%w: %s", admin.ErrUnknownTable, *tableName)
	}
}

func printTable[R any](w io.Writer, schema table.Schema[R], rows []R, keys string, loc *time.Location) error {
	var cols []table.Column[R]
	for _, key := range strings.Split(keys, ",") {
		col, ok := schema.Column(strings.TrimSpace(key))
		if !ok {
			return fmt.Errorf("%w: %s", table.ErrUnknownColumn, key)
		}
		cols = append(cols, col)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	labels := make([]string, len(cols))
	for i, col := range cols {
		labels[i] = col.Label
	}
	fmt.Fprintln(tw, strings.Join(labels, "\t"))
	for _, r := range rows {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = col.Cell(r, loc)
			if cells[i] == "" {
				cells[i] = table.Empty
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func (c *cli) transition(ctx context.Context, cmd, bookingID string) error {
	var err error
	if cmd == "cancel" {
		err = c.dash.Cancel(ctx, bookingID)
	} else {
		err = c.dash.Restore(ctx, bookingID)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", admin.ActionMessage(err), err)
	}
	b, _ := c.dash.Booking(bookingID)
	fmt.Fprintf(c.out, "%s: %s\n", bookingID, b.Status)
	return nil
}

func (c *cli) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.out)
	format := fs.String("format", "csv", "csv or xlsx")
	out := fs.String("out", "", "output file (default: a dated file in the exports directory)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "csv" && *format != "xlsx" {
		return fmt.Errorf("unknown export format %q", *format)
	}

	if *format == "xlsx" && *out == "" {
		wb, err := c.dash.Workbook()
		if err != nil {
			return err
		}
		path, err := wb.Save(c.exports, c.now().In(c.location))
		if err != nil {
			return fmt.Errorf("export xlsx: %w", err)
		}
		fmt.Fprintln(c.out, path)
		return nil
	}

	path := *out
	if path == "" {
		name := fmt.Sprintf("buchungen_%s.csv", c.now().In(c.location).Format("2006-01-02"))
		path = filepath.Join(c.exports, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if *format == "xlsx" {
		err = c.dash.ExportXLSX(f)
	} else {
		var data []byte
		data, err = c.dash.ExportCSV(ctx)
		if err == nil {
			_, err = f.Write(data)
		}
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", *format, err)
	}
	fmt.Fprintln(c.out, path)
	return f.Close()
}

func (c *cli) listEdits(ctx context.Context, bookingID string) error {
	records, err := c.journal.ListEdits(ctx, bookingID, 50)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Zeitpunkt\tFeld\tAlt\tNeu\tErgebnis")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.OccurredAt.In(c.location).Format("02.01.2006, 15:04"), rec.Field, rec.OldValue, rec.NewValue, rec.Outcome)
	}
	return tw.Flush()
}

func (c *cli) listFailed(ctx context.Context) error {
	tasks, err := c.journal.GetFailedSyncTasks(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAufgabe\tBuchung\tVersuche\tErstellt\tFehler")
	for _, task := range tasks {
		lastErr := table.Empty
		if task.LastError != nil {
			lastErr = *task.LastError
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			task.ID, task.TaskType, task.BookingID, task.RetryCount,
			task.CreatedAt.In(c.location).Format("02.01.2006, 15:04"), lastErr)
	}
	return tw.Flush()
}

func (c *cli) runMirror(ctx context.Context) error {
	sheets, err := c.mirror(ctx)
	if err != nil {
		return err
	}
	bookings, err := c.dash.Bookings()
	if err != nil {
		return err
	}
	if err := sheets.ReplaceBookingsSheet(ctx, bookings); err != nil {
		return fmt.Errorf("mirror bookings: %w", err)
	}
	if err := sheets.ReplaceParticipantsSheet(ctx, table.ExpandParticipants(bookings)); err != nil {
		return fmt.Errorf("mirror participants: %w", err)
	}
	c.logger.Info().Int("bookings", len(bookings)).Msg("Mirrored to Google Sheets")
	fmt.Fprintf(c.out, "%d Buchungen gespiegelt\n", len(bookings))
	return nil
}

func newMirror(ctx context.Context, cfg config.GoogleConfig, loc *time.Location) (mirror, error) {
	if cfg.GoogleCredentialsFile == "" || cfg.MirrorSpreadSheetID == "" {
		return nil, errors.New("google credentials_file and mirror_spreadsheet_id are required")
	}
	sheets, err := google.NewSheetsService(ctx, cfg.GoogleCredentialsFile, cfg.MirrorSpreadSheetID)
	if err != nil {
		return nil, err
	}
	sheets.SetLocation(loc)
	return sheets, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
