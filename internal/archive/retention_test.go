package archive

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestPrune_ExpiredBuckets(t *testing.T) {
	a := New(t.TempDir(), "watchpot")
	today := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

	for _, daysAgo := range []int{10, 8, 5} {
		date := today.AddDate(0, 0, -daysAgo)
		writeFile(t, a.RecordPath(date, "0800"), 100)
		writeFile(t, filepath.Join(a.BucketPath(date), SentStateFile), 10)
	}

	removed, err := a.Prune(7, today)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	slices.Sort(removed)
	want := []string{"20250304", "20250306"} // D-10 and D-8
	if !slices.Equal(removed, want) {
		t.Errorf("removed = %v, want %v", removed, want)
	}

	// D-5 survives, sent state and all; D-10 and D-8 are gone entirely.
	if _, err := os.Stat(a.BucketPath(today.AddDate(0, 0, -5))); err != nil {
		t.Errorf("D-5 bucket should remain: %v", err)
	}
	for _, daysAgo := range []int{10, 8} {
		if _, err := os.Stat(a.BucketPath(today.AddDate(0, 0, -daysAgo))); !os.IsNotExist(err) {
			t.Errorf("D-%d bucket should be removed", daysAgo)
		}
	}
}

func TestPrune_NeverRemovesUnrecognizedDirs(t *testing.T) {
	a := New(t.TempDir(), "watchpot")
	today := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

	stray := filepath.Join(a.Root, "daily_notadate")
	if err := os.MkdirAll(stray, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	other := filepath.Join(a.Root, "backups")
	if err := os.MkdirAll(other, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	removed, err := a.Prune(7, today)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}
	for _, dir := range []string{stray, other} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory %s should survive pruning: %v", dir, err)
		}
	}
}

func TestPrune_BoundaryIsStrict(t *testing.T) {
	a := New(t.TempDir(), "watchpot")
	today := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

	// Exactly retentionDays old: not strictly older, kept.
	boundary := today.AddDate(0, 0, -7)
	writeFile(t, a.RecordPath(boundary, "0800"), 100)

	removed, err := a.Prune(7, today)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}
}

func TestPrune_BoundaryWithWallClockToday(t *testing.T) {
	a := New(t.TempDir(), "watchpot")

	// Real invocations pass time.Now(): a clock time and a non-UTC zone must
	// not push the bucket exactly retentionDays old past the cutoff.
	zone := time.FixedZone("CET", 3600)
	today := time.Date(2025, time.March, 14, 8, 2, 47, 0, zone)

	boundary := today.AddDate(0, 0, -7) // daily_20250307
	expired := today.AddDate(0, 0, -8)  // daily_20250306
	writeFile(t, a.RecordPath(boundary, "0800"), 100)
	writeFile(t, a.RecordPath(expired, "0800"), 100)

	removed, err := a.Prune(7, today)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	want := []string{"20250306"}
	if !slices.Equal(removed, want) {
		t.Errorf("removed = %v, want %v", removed, want)
	}
	if _, err := os.Stat(a.BucketPath(boundary)); err != nil {
		t.Errorf("boundary bucket should remain: %v", err)
	}
}

func TestPrune_MissingRoot(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "never-created"), "watchpot")

	removed, err := a.Prune(7, time.Now())
	if err != nil {
		t.Fatalf("Prune on missing root failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}
}

func TestPrune_IgnoresPlainFiles(t *testing.T) {
	a := New(t.TempDir(), "watchpot")
	today := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

	// A plain file whose name looks like an expired bucket.
	writeFile(t, filepath.Join(a.Root, "daily_20200101"), 10)

	removed, err := a.Prune(7, today)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}
	if _, err := os.Stat(filepath.Join(a.Root, "daily_20200101")); err != nil {
		t.Errorf("plain file should survive pruning: %v", err)
	}
}
