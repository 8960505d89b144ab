package combine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mzanella/watchpot/internal/report"
)

func TestArgs(t *testing.T) {
	geom := report.Geometry{Width: 800, Height: 600, CropOffset: 40, FrameDelay: 80}

	got := strings.Join(args([]string{"a.jpg", "b.jpg"}, "out.gif", geom), " ")
	want := "-delay 80 -loop 0 a.jpg b.jpg -resize 800x600^ -gravity center -extent 800x600+40+0 out.gif"
	if got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestCombine_NoInputs(t *testing.T) {
	m := &Magick{Command: "convert"}

	err := m.Combine(context.Background(), nil, "out.gif", report.Geometry{})
	if err == nil {
		t.Fatal("expected error for empty input list")
	}
}

func TestCombine_RunsCommand(t *testing.T) {
	// Fake convert: last argument is the output file.
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-convert.sh")
	body := "#!/bin/sh\nfor last; do :; done\necho gif > \"$last\"\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	m := &Magick{Command: script}
	out := filepath.Join(dir, "summary.gif")
	err := m.Combine(context.Background(), []string{"a.jpg"}, out, report.Geometry{Width: 800, Height: 600, FrameDelay: 80})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestCombine_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-convert.sh")
	body := "#!/bin/sh\necho \"convert: unable to open image\" >&2\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	m := &Magick{Command: script}
	err := m.Combine(context.Background(), []string{"a.jpg"}, filepath.Join(dir, "out.gif"), report.Geometry{})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "unable to open image") {
		t.Errorf("error should carry stderr, got: %v", err)
	}
}
