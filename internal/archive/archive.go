// Package archive owns the on-disk capture tree: one daily_YYYYMMDD bucket
// per calendar date under the archive root, capture files named
// <prefix>_YYYYMMDD_<slot>.jpg inside it, and a hidden per-bucket sent-state
// file. The layout is the durability boundary; nothing about a prior run is
// assumed to survive in process memory.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar-date form used in bucket and file names.
	DateLayout = "20060102"

	bucketPrefix = "daily_"
	photoExt     = ".jpg"
)

// slotPattern matches the four-digit HHMM slot label in a capture filename.
var slotPattern = regexp.MustCompile(`^\d{4}$`)

// Record is one verified capture: identity is (bucket date, slot label).
type Record struct {
	Name    string // filename within the bucket
	Path    string // absolute path
	Slot    string // "HHMM" label
	Size    int64
	ModTime time.Time
}

// Archive provides access to the capture tree rooted at Root.
type Archive struct {
	Root   string
	Prefix string
}

// New returns an Archive over root using prefix for capture filenames.
func New(root, prefix string) *Archive {
	return &Archive{Root: root, Prefix: prefix}
}

// BucketName returns the bucket directory name for a date.
func BucketName(date time.Time) string {
	return bucketPrefix + date.Format(DateLayout)
}

// BucketDate parses a bucket directory name back into its date. Names that do
// not follow the daily_YYYYMMDD pattern are rejected.
func BucketDate(name string) (time.Time, error) {
	rest, found := strings.CutPrefix(name, bucketPrefix)
	if !found {
		return time.Time{}, fmt.Errorf("%q is not a daily bucket name", name)
	}
	date, err := time.Parse(DateLayout, rest)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a daily bucket name: %w", name, err)
	}
	return date, nil
}

// BucketPath returns the bucket directory path for a date.
func (a *Archive) BucketPath(date time.Time) string {
	return filepath.Join(a.Root, BucketName(date))
}

// EnsureBucket creates the bucket directory for a date if needed.
func (a *Archive) EnsureBucket(date time.Time) (string, error) {
	path := a.BucketPath(date)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create bucket directory: %w", err)
	}
	return path, nil
}

// RecordName returns the capture filename for a date and slot.
func (a *Archive) RecordName(date time.Time, slot string) string {
	return fmt.Sprintf("%s_%s_%s%s", a.Prefix, date.Format(DateLayout), slot, photoExt)
}

// RecordPath returns the capture file path for a date and slot.
func (a *Archive) RecordPath(date time.Time, slot string) string {
	return filepath.Join(a.BucketPath(date), a.RecordName(date, slot))
}

// SummaryPath returns the consolidated artifact path for a date. The summary
// lives in the bucket so retention removes it with everything else.
func (a *Archive) SummaryPath(date time.Time) string {
	name := fmt.Sprintf("%s_%s_summary.gif", a.Prefix, date.Format(DateLayout))
	return filepath.Join(a.BucketPath(date), name)
}

// HasRecord reports whether a verified capture already exists for the slot.
// This is what makes repeated trigger firings within one tolerance window
// idempotent: at most one capture per slot per day.
func (a *Archive) HasRecord(date time.Time, slot string) bool {
	info, err := os.Stat(a.RecordPath(date, slot))
	return err == nil && info.Size() > 0
}

// Records lists the bucket's captures in ascending slot order. A missing
// bucket yields an empty list, not an error. Files that do not follow the
// capture naming pattern (the summary artifact, the sent-state file, stray
// data) are ignored.
func (a *Archive) Records(date time.Time) ([]Record, error) {
	bucket := a.BucketPath(date)
	entries, err := os.ReadDir(bucket)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read bucket %s: %w", bucket, err)
	}

	want := a.Prefix + "_" + date.Format(DateLayout) + "_"
	var records []Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, want) || !strings.HasSuffix(name, photoExt) {
			continue
		}
		slot := strings.TrimSuffix(strings.TrimPrefix(name, want), photoExt)
		if !slotPattern.MatchString(slot) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, Record{
			Name:    name,
			Path:    filepath.Join(bucket, name),
			Slot:    slot,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Slot < records[j].Slot })
	return records, nil
}
