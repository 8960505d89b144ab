package report

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/mzanella/watchpot/internal/archive"
)

// Geometry is the visual configuration passed through to the combination
// tool: output dimensions, a center-weighted crop offset, and the per-frame
// delay in centiseconds. The planner does not interpret these.
type Geometry struct {
	Width      int
	Height     int
	CropOffset int
	FrameDelay int
}

// Combiner builds one consolidated artifact from the ordered input photos.
// A non-nil error means "artifact unavailable" and triggers the individual
// fallback; it is never fatal to a dispatch.
type Combiner interface {
	Combine(ctx context.Context, inputs []string, output string, geom Geometry) error
}

// Selection picks the representative photo attached next to the artifact.
type Selection string

const (
	SelectFirst  Selection = "first"
	SelectLast   Selection = "last"
	SelectMiddle Selection = "middle"
	SelectRandom Selection = "random"
)

// Attachment is one file destined for the outgoing message.
type Attachment struct {
	Filename string
	Path     string
	MIMEType string
}

// Plan is the attachment decision for one dispatch attempt: either a
// consolidated artifact (optionally plus one representative photo) or every
// photo individually.
type Plan struct {
	Consolidated   bool
	Artifact       *Attachment  // set when Consolidated
	Representative *Attachment  // optional, only when Consolidated
	Items          []Attachment // set when !Consolidated, ascending slot order
}

// All returns the attachments in send order.
func (p *Plan) All() []Attachment {
	if !p.Consolidated {
		return p.Items
	}
	out := []Attachment{*p.Artifact}
	if p.Representative != nil {
		out = append(out, *p.Representative)
	}
	return out
}

// Planner decides between the consolidated artifact and individual photos.
type Planner struct {
	Combiner           Combiner
	Geometry           Geometry
	BudgetBytes        int64
	WantRepresentative bool
	Selection          Selection

	// Rand drives SelectRandom; tests inject a seeded source.
	Rand *rand.Rand
}

// Plan builds the attachment plan for the records. It cannot fail: a combine
// error or an over-budget artifact falls back to attaching every photo
// individually, and selection is defined for any non-empty record set.
func (p *Planner) Plan(ctx context.Context, records []archive.Record, artifactPath string) *Plan {
	if len(records) == 0 {
		return &Plan{}
	}

	inputs := make([]string, len(records))
	for i, r := range records {
		inputs[i] = r.Path
	}

	if err := p.Combiner.Combine(ctx, inputs, artifactPath, p.Geometry); err != nil {
		slog.Warn("combine failed, attaching photos individually", "error", err)
		return individual(records)
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		slog.Warn("combine output missing, attaching photos individually", "error", err)
		return individual(records)
	}
	if info.Size() > p.BudgetBytes {
		slog.Info("artifact exceeds size budget, attaching photos individually",
			"artifact_bytes", info.Size(), "budget_bytes", p.BudgetBytes)
		return individual(records)
	}

	plan := &Plan{
		Consolidated: true,
		Artifact: &Attachment{
			Filename: filepath.Base(artifactPath),
			Path:     artifactPath,
			MIMEType: "image/gif",
		},
	}
	if p.WantRepresentative {
		r := p.pick(records)
		plan.Representative = &Attachment{
			Filename: r.Name,
			Path:     r.Path,
			MIMEType: "image/jpeg",
		}
	}
	return plan
}

// pick selects the representative record. Total for non-empty input; an
// unknown selection value falls back to the last record.
func (p *Planner) pick(records []archive.Record) archive.Record {
	switch p.Selection {
	case SelectFirst:
		return records[0]
	case SelectMiddle:
		return records[len(records)/2]
	case SelectRandom:
		if p.Rand != nil {
			return records[p.Rand.Intn(len(records))]
		}
		return records[rand.Intn(len(records))]
	default:
		return records[len(records)-1]
	}
}

func individual(records []archive.Record) *Plan {
	items := make([]Attachment, len(records))
	for i, r := range records {
		items[i] = Attachment{
			Filename: r.Name,
			Path:     r.Path,
			MIMEType: "image/jpeg",
		}
	}
	return &Plan{Items: items}
}
