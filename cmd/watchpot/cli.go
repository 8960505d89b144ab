package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mzanella/watchpot/internal/archive"
	"github.com/mzanella/watchpot/internal/capture"
	"github.com/mzanella/watchpot/internal/combine"
	"github.com/mzanella/watchpot/internal/config"
	"github.com/mzanella/watchpot/internal/device"
	"github.com/mzanella/watchpot/internal/errors"
	"github.com/mzanella/watchpot/internal/journal"
	"github.com/mzanella/watchpot/internal/mail"
	"github.com/mzanella/watchpot/internal/report"
	"github.com/mzanella/watchpot/internal/schedule"
	"github.com/mzanella/watchpot/internal/sysinfo"
)

// errorTail is how many recent error events a report body includes.
const errorTail = 20

var slotFlagPattern = regexp.MustCompile(`^\d{4}$`)

// runtime holds state shared between Before and the command actions.
type runtime struct {
	cfg *config.Config
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	rt := &runtime{}
	app := &cli.App{
		Name:    "watchpot",
		Usage:   "Unattended periodic photo capture and email report agent",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: config.DefaultPath, Usage: "Configuration file path"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("debug") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return outputError(err)
			}
			rt.cfg = cfg
			return nil
		},
		Commands: []*cli.Command{
			tickCmd(rt),
			captureCmd(rt),
			sendCmd(rt),
			cleanupCmd(rt),
			listCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// tickCmd creates the tick command, the single entry point the external
// scheduler (cron, systemd timer) invokes once per cadence interval.
func tickCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "tick",
		Usage: "Run one scheduling pass: capture, prune and report if a trigger point matches",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "now", Usage: "Override the wall clock (RFC3339), for dry runs"},
		},
		Action: func(c *cli.Context) error {
			now, err := resolveNow(c)
			if err != nil {
				return outputError(errors.NewInvalidConfig(fmt.Sprintf("invalid --now value: %v", err)))
			}
			cfg := rt.cfg

			db, err := journal.Init(cfg.JournalDir)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer db.Close()

			result := tickResult{Time: now.Format(time.RFC3339)}

			// The two trigger sets are independent: a failed capture is
			// journaled and must not stop a report matching the same pass.
			// That report is exactly where the failure becomes visible.
			var captureErr error
			if slot, ok := schedule.Match(cfg.CaptureTimes, cfg.Tolerance(), now); ok {
				rec, err := runCapture(c.Context, cfg, db, now, slot)
				if err != nil {
					captureErr = err
					slog.Error("capture failed", "slot", slot, "error", err)
				} else {
					result.Captured = rec.Name
				}

				// Retention piggybacks on the capture trigger; a prune
				// failure must not block the report either.
				removed, err := runPrune(cfg, db, now)
				if err != nil {
					slog.Warn("retention prune failed", "error", err)
				}
				result.Pruned = removed
			}

			if _, ok := schedule.Match(cfg.ReportTimes, cfg.Tolerance(), now); ok {
				if err := runDispatch(c.Context, cfg, db, now, true); err != nil {
					return outputError(err)
				}
				result.Reported = true
			}

			if captureErr != nil {
				return outputError(captureErr)
			}
			return outputJSON(result)
		},
	}
}

// captureCmd creates the capture command.
func captureCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Capture one photo into today's bucket",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Capture even when no capture point matches"},
			&cli.StringFlag{Name: "slot", Usage: "Slot label HHMM (default: matched point, or current time with --force)"},
		},
		Action: func(c *cli.Context) error {
			cfg := rt.cfg
			now := time.Now()

			slot := c.String("slot")
			if slot != "" && !slotFlagPattern.MatchString(slot) {
				return outputError(errors.NewInvalidConfig(fmt.Sprintf("slot %q is not HHMM", slot)))
			}
			if slot == "" {
				matched, ok := schedule.Match(cfg.CaptureTimes, cfg.Tolerance(), now)
				switch {
				case ok:
					slot = matched
				case c.Bool("force"):
					slot = now.Format("1504")
				default:
					return outputJSON(captureResult{Captured: false, Reason: "no capture point within tolerance"})
				}
			}

			db, err := journal.Init(cfg.JournalDir)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer db.Close()

			rec, err := runCapture(c.Context, cfg, db, now, slot)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(captureResult{Captured: true, Photo: rec.Name, Bytes: rec.Size})
		},
	}
}

// sendCmd creates the send command.
func sendCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send today's report now",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "full", Usage: "Include every photo in the bucket, ignoring sent state"},
		},
		Action: func(c *cli.Context) error {
			cfg := rt.cfg
			now := time.Now()

			db, err := journal.Init(cfg.JournalDir)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer db.Close()

			incremental := !c.Bool("full")
			if err := runDispatch(c.Context, cfg, db, now, incremental); err != nil {
				return outputError(err)
			}
			return outputJSON(sendResult{Sent: true, Incremental: incremental})
		},
	}
}

// cleanupCmd creates the cleanup command.
func cleanupCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Remove daily buckets older than the retention window",
		Action: func(c *cli.Context) error {
			cfg := rt.cfg

			db, err := journal.Init(cfg.JournalDir)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer db.Close()

			removed, err := runPrune(cfg, db, time.Now())
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(cleanupResult{Removed: removed})
		},
	}
}

// listCmd creates the list command.
func listCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List one bucket's photos, sent state and journal events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Bucket date YYYYMMDD (default: today)"},
		},
		Action: func(c *cli.Context) error {
			cfg := rt.cfg

			date := time.Now()
			if s := c.String("date"); s != "" {
				var err error
				date, err = time.Parse(archive.DateLayout, s)
				if err != nil {
					return outputError(errors.NewInvalidConfig(fmt.Sprintf("date %q is not YYYYMMDD", s)))
				}
			}

			a := newArchive(cfg)
			records, err := a.Records(date)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			sentSet, err := a.LoadSent(date)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			sent := make([]string, 0, len(sentSet))
			for name := range sentSet {
				sent = append(sent, name)
			}
			sort.Strings(sent)

			out := listResult{Date: date.Format(archive.DateLayout), Sent: sent}
			for _, r := range records {
				out.Photos = append(out.Photos, listPhoto{Name: r.Name, Slot: r.Slot, Bytes: r.Size})
			}

			db, err := journal.Init(cfg.JournalDir)
			if err == nil {
				defer db.Close()
				events, err := journal.RecentEvents(db, out.Date, errorTail)
				if err != nil {
					slog.Warn("failed to read journal events", "error", err)
				}
				out.Events = events
			}

			return outputJSON(out)
		},
	}
}

// Command wiring

// runCapture performs one orchestrated capture and journals the outcome.
func runCapture(ctx context.Context, cfg *config.Config, db *sql.DB, now time.Time, slot string) (*archive.Record, error) {
	cam := &device.RpicamStill{
		Command: cfg.CameraCommand,
		Width:   cfg.PhotoWidth,
		Height:  cfg.PhotoHeight,
		Quality: cfg.PhotoQuality,
	}
	o := capture.New(newArchive(cfg), cam, cfg.MinPhotoBytes, cfg.CaptureAttempts, cfg.CaptureBackoff(), cfg.CaptureTimeout())
	o.Now = func() time.Time { return now }

	bucket := now.Format(archive.DateLayout)
	rec, err := o.Capture(ctx, slot)
	if err != nil {
		journalRecord(db, journal.KindCapture, journal.OutcomeError, bucket, err.Error())
		return nil, err
	}
	journalRecord(db, journal.KindCapture, journal.OutcomeOK, bucket, rec.Name)
	return rec, nil
}

// runDispatch assembles the dispatcher from configuration and sends the
// report for today's bucket.
func runDispatch(ctx context.Context, cfg *config.Config, db *sql.DB, now time.Time, incremental bool) error {
	if err := cfg.RequireTransport(); err != nil {
		return err
	}

	planner := &report.Planner{
		Combiner: &combine.Magick{Command: cfg.ConvertCommand},
		Geometry: report.Geometry{
			Width:      cfg.GifWidth,
			Height:     cfg.GifHeight,
			CropOffset: cfg.GifCropOffset,
			FrameDelay: cfg.GifFrameDelay,
		},
		BudgetBytes:        cfg.AttachmentBudgetBytes(),
		WantRepresentative: cfg.AttachLatestPhoto,
		Selection:          report.Selection(cfg.LatestSelection),
	}

	d := &report.Dispatcher{
		Archive: newArchive(cfg),
		Planner: planner,
		Mailer: &mail.SMTPMailer{
			Server:     cfg.SMTPServer,
			Port:       cfg.SMTPPort,
			Sender:     cfg.SenderEmail,
			Password:   cfg.SenderPassword,
			Recipients: cfg.Recipients,
			UseTLS:     cfg.TLSEnabled(),
		},
		Telemetry:       sysinfo.New(),
		Journal:         db,
		ErrorTail:       errorTail,
		SubjectTemplate: cfg.SubjectTemplate,
		BodyTemplate:    cfg.BodyTemplate,
		CaptureTimes:    cfg.CaptureTimes,
		MaxAttempts:     cfg.SendAttempts,
		Backoff:         cfg.SendBackoff(),
		Timeout:         cfg.SendTimeout(),
		Now:             func() time.Time { return now },
		Sleep:           time.Sleep,
	}
	return d.Dispatch(ctx, incremental)
}

// runPrune removes expired buckets and journals the outcome.
func runPrune(cfg *config.Config, db *sql.DB, now time.Time) ([]string, error) {
	removed, err := newArchive(cfg).Prune(cfg.RetentionDays, now)
	if err != nil {
		journalRecord(db, journal.KindPrune, journal.OutcomeError, "", err.Error())
		return nil, err
	}
	if len(removed) > 0 {
		journalRecord(db, journal.KindPrune, journal.OutcomeOK, "", fmt.Sprintf("removed %d buckets", len(removed)))
	}
	return removed, nil
}

func newArchive(cfg *config.Config) *archive.Archive {
	return archive.New(cfg.PhotosDir, cfg.PhotoPrefix)
}

func journalRecord(db *sql.DB, kind, outcome, bucket, detail string) {
	if err := journal.Record(db, kind, outcome, bucket, detail); err != nil {
		slog.Warn("failed to record journal event", "kind", kind, "error", err)
	}
}

// resolveNow returns the --now override or the wall clock.
func resolveNow(c *cli.Context) (time.Time, error) {
	if s := c.String("now"); s != "" {
		return time.Parse(time.RFC3339, s)
	}
	return time.Now(), nil
}

// Command output shapes

type tickResult struct {
	Time     string   `json:"time"`
	Captured string   `json:"captured,omitempty"`
	Pruned   []string `json:"pruned,omitempty"`
	Reported bool     `json:"reported"`
}

type captureResult struct {
	Captured bool   `json:"captured"`
	Photo    string `json:"photo,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type sendResult struct {
	Sent        bool `json:"sent"`
	Incremental bool `json:"incremental"`
}

type cleanupResult struct {
	Removed []string `json:"removed"`
}

type listResult struct {
	Date   string          `json:"date"`
	Photos []listPhoto     `json:"photos"`
	Sent   []string        `json:"sent"`
	Events []journal.Event `json:"events,omitempty"`
}

type listPhoto struct {
	Name  string `json:"name"`
	Slot  string `json:"slot"`
	Bytes int64  `json:"bytes"`
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if agentErr, ok := err.(*errors.AgentError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", agentErr.Code, agentErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
