// Package combine adapts ImageMagick's convert tool to the report.Combiner
// interface, producing one animated GIF from the day's photos.
package combine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mzanella/watchpot/internal/report"
)

// Magick builds the consolidated artifact with `convert`. The command name is
// configurable (some installs expose `magick` instead) and substitutable in
// tests.
type Magick struct {
	Command string
}

// Combine runs convert over the ordered inputs. A non-zero exit means the
// artifact is unavailable; the caller falls back to individual attachments.
func (m *Magick) Combine(ctx context.Context, inputs []string, output string, geom report.Geometry) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no input photos")
	}

	cmd := exec.CommandContext(ctx, m.Command, args(inputs, output, geom)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", m.Command, err, msg)
		}
		return fmt.Errorf("%s failed: %w", m.Command, err)
	}
	return nil
}

func args(inputs []string, output string, geom report.Geometry) []string {
	out := []string{
		"-delay", strconv.Itoa(geom.FrameDelay),
		"-loop", "0",
	}
	out = append(out, inputs...)
	out = append(out,
		"-resize", fmt.Sprintf("%dx%d^", geom.Width, geom.Height),
		"-gravity", "center",
		"-extent", fmt.Sprintf("%dx%d+%d+0", geom.Width, geom.Height, geom.CropOffset),
		output,
	)
	return out
}
