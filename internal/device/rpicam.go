// Package device adapts the rpicam-still camera tool to the capture.Camera
// interface.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// RpicamStill shells out to rpicam-still for one immediate, preview-less
// capture. The command name is configurable so tests can substitute a script.
type RpicamStill struct {
	Command string
	Width   int
	Height  int
	Quality int
}

// Capture runs the camera tool. The context bounds the process; a non-zero
// exit is returned with the tool's stderr attached, not parsed.
func (r *RpicamStill) Capture(ctx context.Context, outputPath string) error {
	cmd := exec.CommandContext(ctx, r.Command, r.args(outputPath)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", r.Command, err, msg)
		}
		return fmt.Errorf("%s failed: %w", r.Command, err)
	}
	return nil
}

func (r *RpicamStill) args(outputPath string) []string {
	return []string{
		"-o", outputPath,
		"--width", strconv.Itoa(r.Width),
		"--height", strconv.Itoa(r.Height),
		"--quality", strconv.Itoa(r.Quality),
		"--immediate",
		"--nopreview",
	}
}
