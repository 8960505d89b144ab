// Package capture turns one scheduler tick into at most one verified photo
// on disk, retrying the device a bounded number of times.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mzanella/watchpot/internal/archive"
	"github.com/mzanella/watchpot/internal/errors"
)

// Camera is the image-acquisition device. Implementations must honor the
// context deadline so a hung device cannot stall the agent.
type Camera interface {
	Capture(ctx context.Context, outputPath string) error
}

// Orchestrator drives the capture attempt loop for one slot.
type Orchestrator struct {
	Archive     *archive.Archive
	Camera      Camera
	MinBytes    int64
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration

	// Now and Sleep are injectable so tests can assert attempt counts and
	// backoff intervals without real delays.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// New returns an Orchestrator with the real clock.
func New(a *archive.Archive, cam Camera, minBytes int64, maxAttempts int, backoff, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		Archive:     a,
		Camera:      cam,
		MinBytes:    minBytes,
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		Timeout:     timeout,
		Now:         time.Now,
		Sleep:       time.Sleep,
	}
}

// Capture acquires a verified photo for the slot on today's bucket. If a
// verified capture for the slot already exists it is returned as-is, so a
// trigger firing twice inside one tolerance window stays a single capture.
// Otherwise the device is invoked up to MaxAttempts times with Backoff
// between attempts; output that is missing or smaller than MinBytes counts
// as a failed attempt and is deleted.
func (o *Orchestrator) Capture(ctx context.Context, slot string) (*archive.Record, error) {
	date := o.Now()

	if o.Archive.HasRecord(date, slot) {
		slog.Info("capture already exists for slot", "slot", slot)
		return o.existingRecord(date, slot)
	}

	if _, err := o.Archive.EnsureBucket(date); err != nil {
		return nil, errors.NewInternal(err)
	}

	path := o.Archive.RecordPath(date, slot)

	var lastErr error
	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		lastErr = o.attempt(ctx, path)
		if lastErr == nil {
			slog.Info("capture verified", "slot", slot, "path", path, "attempt", attempt)
			return o.existingRecord(date, slot)
		}

		slog.Warn("capture attempt failed", "slot", slot, "attempt", attempt, "error", lastErr)
		if attempt < o.MaxAttempts {
			o.Sleep(o.Backoff)
		}
	}

	return nil, errors.NewCaptureFailed(slot, o.MaxAttempts, lastErr)
}

// attempt runs the device once and verifies its output.
func (o *Orchestrator) attempt(ctx context.Context, path string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	if err := o.Camera.Capture(attemptCtx, path); err != nil {
		// Device failure may still leave a partial file behind.
		os.Remove(path)
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("device reported success but output is missing: %w", err)
	}
	if info.Size() < o.MinBytes {
		os.Remove(path)
		return fmt.Errorf("output too small to be a photo: %d bytes (min %d)", info.Size(), o.MinBytes)
	}
	return nil
}

func (o *Orchestrator) existingRecord(date time.Time, slot string) (*archive.Record, error) {
	path := o.Archive.RecordPath(date, slot)
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &archive.Record{
		Name:    o.Archive.RecordName(date, slot),
		Path:    path,
		Slot:    slot,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
