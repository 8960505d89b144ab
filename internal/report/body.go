package report

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/mzanella/watchpot/internal/journal"
)

const sectionRule = "========================================"

// BodyData is the value set available to subject and body templates.
type BodyData struct {
	Date     string // "2006-01-02"
	Count    int
	Schedule string // formatted capture times, e.g. "08:00, 12:00"
}

// RenderSubject renders the configured subject template.
func RenderSubject(tmpl string, data BodyData) (string, error) {
	return render("subject", tmpl, data)
}

// RenderBody renders the configured body template and appends the telemetry
// block verbatim plus, when present, a recent-errors section. Telemetry is
// opaque pre-formatted text; it is never parsed or validated here.
func RenderBody(tmpl string, data BodyData, telemetry string, recent []journal.Event) (string, error) {
	body, err := render("body", tmpl, data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(body)
	if data.Count == 0 {
		sb.WriteString("\nNo photos were captured today.\n")
	}

	if telemetry != "" {
		sb.WriteString("\n")
		sb.WriteString(sectionRule)
		sb.WriteString("\n           SYSTEM INFORMATION\n")
		sb.WriteString(sectionRule)
		sb.WriteString("\n")
		sb.WriteString(telemetry)
		if !strings.HasSuffix(telemetry, "\n") {
			sb.WriteString("\n")
		}
	}

	if len(recent) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionRule)
		sb.WriteString("\n           RECENT ERRORS\n")
		sb.WriteString(sectionRule)
		sb.WriteString("\n")
		for _, e := range recent {
			ts := time.Unix(e.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05")
			fmt.Fprintf(&sb, "%s  %s: %s\n", ts, e.Kind, e.Detail)
		}
	}

	return sb.String(), nil
}

func render(name, tmpl string, data BodyData) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return sb.String(), nil
}
