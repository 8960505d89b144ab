package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Prune removes every daily bucket strictly older than today minus
// retentionDays, sent-state included, and returns the removed bucket dates
// in YYYYMMDD form. Directory names that do not parse as bucket dates are
// left alone: unrecognized data is never deleted. A failure removing one
// bucket is logged and does not stop the rest of the sweep.
func (a *Archive) Prune(retentionDays int, today time.Time) ([]string, error) {
	entries, err := os.ReadDir(a.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive root: %w", err)
	}

	// Bucket dates parse to midnight UTC, so the cutoff must be a calendar
	// date too or today's clock time deletes the boundary bucket a day early.
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := day.AddDate(0, 0, -retentionDays)

	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		date, err := BucketDate(entry.Name())
		if err != nil {
			slog.Debug("skipping non-bucket directory", "name", entry.Name())
			continue
		}
		if !date.Before(cutoff) {
			continue
		}

		path := filepath.Join(a.Root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("failed to remove expired bucket", "bucket", entry.Name(), "error", err)
			continue
		}
		slog.Info("removed expired bucket", "bucket", entry.Name())
		removed = append(removed, date.Format(DateLayout))
	}

	return removed, nil
}
