package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SentStateFile is the hidden per-bucket file tracking filenames already
// included in a successful dispatch, one per line, append-only within a day.
const SentStateFile = ".sent"

// SentStatePath returns the sent-state file path for a bucket date.
func (a *Archive) SentStatePath(date time.Time) string {
	return filepath.Join(a.BucketPath(date), SentStateFile)
}

// LoadSent returns the set of filenames already dispatched for the bucket.
// A missing file or missing bucket yields an empty set.
func (a *Archive) LoadSent(date time.Time) (map[string]bool, error) {
	f, err := os.Open(a.SentStatePath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("failed to open sent state: %w", err)
	}
	defer f.Close()

	sent := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			sent[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sent state: %w", err)
	}
	return sent, nil
}

// CommitSent records names as dispatched. Must only be called after the
// transport reported success; a crash between transport success and this
// commit means those names are re-sent next time (at-least-once, accepted).
// Names already present are not duplicated. The updated file is written to a
// temporary file, fsynced, then renamed over the old one so an overlapping
// invocation never observes a half-written state.
func (a *Archive) CommitSent(date time.Time, names []string) error {
	if len(names) == 0 {
		return nil
	}

	bucket, err := a.EnsureBucket(date)
	if err != nil {
		return err
	}

	sent, err := a.LoadSent(date)
	if err != nil {
		return err
	}

	var sb strings.Builder
	existing, err := os.ReadFile(a.SentStatePath(date))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read sent state: %w", err)
	}
	sb.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		sb.WriteByte('\n')
	}

	appended := false
	for _, name := range names {
		if sent[name] {
			continue
		}
		sent[name] = true
		sb.WriteString(name)
		sb.WriteByte('\n')
		appended = true
	}
	if !appended {
		return nil
	}

	tmp, err := os.CreateTemp(bucket, SentStateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create sent state temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sent state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush sent state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close sent state: %w", err)
	}

	if err := os.Rename(tmpName, a.SentStatePath(date)); err != nil {
		return fmt.Errorf("failed to replace sent state: %w", err)
	}
	return nil
}

// Delta returns the records not yet in the sent set, preserving ascending
// slot order.
func Delta(records []Record, sent map[string]bool) []Record {
	var pending []Record
	for _, r := range records {
		if !sent[r.Name] {
			pending = append(pending, r)
		}
	}
	return pending
}
