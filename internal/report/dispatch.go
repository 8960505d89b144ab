package report

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mzanella/watchpot/internal/archive"
	"github.com/mzanella/watchpot/internal/errors"
	"github.com/mzanella/watchpot/internal/journal"
	"github.com/mzanella/watchpot/internal/schedule"
)

// Message is one fully-rendered outgoing report.
type Message struct {
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer is the transport collaborator. All transport errors are treated as
// retryable; the dispatcher owns the retry budget.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// Telemetry supplies the opaque system-information block embedded verbatim
// in the report body.
type Telemetry interface {
	Collect(ctx context.Context) string
}

// Dispatcher assembles and sends one daily report, committing sent-state on
// success so later incremental dispatches skip already-reported photos.
type Dispatcher struct {
	Archive   *archive.Archive
	Planner   *Planner
	Mailer    Mailer
	Telemetry Telemetry

	// Journal is optional; when set, dispatch outcomes are recorded and the
	// last ErrorTail error events are included in the report body.
	Journal   *sql.DB
	ErrorTail int

	SubjectTemplate string
	BodyTemplate    string
	CaptureTimes    []string

	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

// Dispatch sends the report for today's bucket. When incremental is true only
// photos not yet marked sent are included, and on transport success their
// names are committed to the sent-state before returning. A run with zero
// candidate photos still sends a "no captures" notification so the daily
// liveness signal is never silently skipped.
//
// Each retry re-reads the bucket and rebuilds the plan, since captures may
// land between attempts. A terminal failure is returned, never emailed:
// email is the reporting channel, so failure to send cannot depend on it.
func (d *Dispatcher) Dispatch(ctx context.Context, incremental bool) error {
	date := d.Now()
	bucket := date.Format(archive.DateLayout)

	var lastErr error
	for attempt := 1; attempt <= d.MaxAttempts; attempt++ {
		sentNames, err := d.attempt(ctx, date, incremental)
		if err == nil {
			if incremental {
				if err := d.Archive.CommitSent(date, sentNames); err != nil {
					// Transport succeeded; a commit failure only degrades
					// dedup to at-least-once on the next run.
					slog.Error("failed to commit sent state", "error", err)
				}
			}
			d.record(journal.OutcomeOK, bucket, "")
			slog.Info("report dispatched", "bucket", bucket, "photos", len(sentNames), "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.Warn("dispatch attempt failed", "attempt", attempt, "error", err)
		if attempt < d.MaxAttempts {
			d.Sleep(d.Backoff)
		}
	}

	terminal := errors.NewDispatchFailed(d.MaxAttempts, lastErr)
	d.record(journal.OutcomeError, bucket, terminal.Message)
	return terminal
}

// attempt performs one full dispatch attempt and returns the names of the
// photos it reported.
func (d *Dispatcher) attempt(ctx context.Context, date time.Time, incremental bool) ([]string, error) {
	records, err := d.Archive.Records(date)
	if err != nil {
		return nil, err
	}

	candidates := records
	if incremental {
		sent, err := d.Archive.LoadSent(date)
		if err != nil {
			return nil, err
		}
		candidates = archive.Delta(records, sent)
	}

	data := BodyData{
		Date:     date.Format("2006-01-02"),
		Count:    len(candidates),
		Schedule: schedule.FormatPoints(d.CaptureTimes),
	}

	subject, err := RenderSubject(d.SubjectTemplate, data)
	if err != nil {
		return nil, err
	}

	var telemetry string
	if d.Telemetry != nil {
		telemetry = d.Telemetry.Collect(ctx)
	}

	var recent []journal.Event
	if d.Journal != nil && d.ErrorTail > 0 {
		recent, err = journal.RecentErrors(d.Journal, d.ErrorTail)
		if err != nil {
			slog.Warn("failed to read recent errors", "error", err)
			recent = nil
		}
	}

	body, err := RenderBody(d.BodyTemplate, data, telemetry, recent)
	if err != nil {
		return nil, err
	}

	plan := d.Planner.Plan(ctx, candidates, d.Archive.SummaryPath(date))

	sendCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	msg := &Message{Subject: subject, Body: body, Attachments: plan.All()}
	if err := d.Mailer.Send(sendCtx, msg); err != nil {
		return nil, err
	}

	names := make([]string, len(candidates))
	for i, r := range candidates {
		names[i] = r.Name
	}
	return names, nil
}

func (d *Dispatcher) record(outcome, bucket, detail string) {
	if d.Journal == nil {
		return
	}
	if err := journal.Record(d.Journal, journal.KindDispatch, outcome, bucket, detail); err != nil {
		slog.Warn("failed to record dispatch event", "error", err)
	}
}
