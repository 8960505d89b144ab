package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSent_Missing(t *testing.T) {
	a := New(t.TempDir(), "watchpot")

	sent, err := a.LoadSent(testDate)
	if err != nil {
		t.Fatalf("LoadSent failed: %v", err)
	}
	if len(sent) != 0 {
		t.Errorf("sent = %v, want empty", sent)
	}
}

func TestCommitSent_RoundTrip(t *testing.T) {
	a := New(t.TempDir(), "watchpot")

	names := []string{"watchpot_20250314_0800.jpg", "watchpot_20250314_1200.jpg"}
	if err := a.CommitSent(testDate, names); err != nil {
		t.Fatalf("CommitSent failed: %v", err)
	}

	sent, err := a.LoadSent(testDate)
	if err != nil {
		t.Fatalf("LoadSent failed: %v", err)
	}
	for _, name := range names {
		if !sent[name] {
			t.Errorf("sent should contain %q", name)
		}
	}
	if len(sent) != 2 {
		t.Errorf("len(sent) = %d, want 2", len(sent))
	}
}

func TestCommitSent_AppendsWithoutDuplicates(t *testing.T) {
	a := New(t.TempDir(), "watchpot")

	if err := a.CommitSent(testDate, []string{"a.jpg", "b.jpg"}); err != nil {
		t.Fatalf("CommitSent failed: %v", err)
	}
	// Second commit repeats one name and adds one.
	if err := a.CommitSent(testDate, []string{"b.jpg", "c.jpg"}); err != nil {
		t.Fatalf("CommitSent failed: %v", err)
	}

	data, err := os.ReadFile(a.SentStatePath(testDate))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("sent state has %d lines, want 3: %q", len(lines), string(data))
	}
	// Append-only: prior entries keep their position.
	if lines[0] != "a.jpg" || lines[1] != "b.jpg" || lines[2] != "c.jpg" {
		t.Errorf("lines = %v, want [a.jpg b.jpg c.jpg]", lines)
	}
}

func TestCommitSent_EmptyAndAllDuplicatesAreNoops(t *testing.T) {
	a := New(t.TempDir(), "watchpot")

	if err := a.CommitSent(testDate, nil); err != nil {
		t.Fatalf("CommitSent(nil) failed: %v", err)
	}
	if _, err := os.Stat(a.SentStatePath(testDate)); !os.IsNotExist(err) {
		t.Error("empty commit should not create a sent state file")
	}

	if err := a.CommitSent(testDate, []string{"a.jpg"}); err != nil {
		t.Fatalf("CommitSent failed: %v", err)
	}
	before, err := os.Stat(a.SentStatePath(testDate))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	if err := a.CommitSent(testDate, []string{"a.jpg"}); err != nil {
		t.Fatalf("CommitSent duplicate failed: %v", err)
	}
	after, err := os.Stat(a.SentStatePath(testDate))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if after.Size() != before.Size() {
		t.Errorf("duplicate-only commit changed file size %d -> %d", before.Size(), after.Size())
	}
}

func TestCommitSent_LeavesNoTempFiles(t *testing.T) {
	a := New(t.TempDir(), "watchpot")

	if err := a.CommitSent(testDate, []string{"a.jpg"}); err != nil {
		t.Fatalf("CommitSent failed: %v", err)
	}

	entries, err := os.ReadDir(a.BucketPath(testDate))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadSent_SkipsBlankLines(t *testing.T) {
	a := New(t.TempDir(), "watchpot")
	if _, err := a.EnsureBucket(testDate); err != nil {
		t.Fatalf("EnsureBucket failed: %v", err)
	}
	content := "a.jpg\n\n  \nb.jpg\n"
	if err := os.WriteFile(a.SentStatePath(testDate), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	sent, err := a.LoadSent(testDate)
	if err != nil {
		t.Fatalf("LoadSent failed: %v", err)
	}
	if len(sent) != 2 || !sent["a.jpg"] || !sent["b.jpg"] {
		t.Errorf("sent = %v, want {a.jpg, b.jpg}", sent)
	}
}

func TestDelta(t *testing.T) {
	records := []Record{
		{Name: "a.jpg", Slot: "0800"},
		{Name: "b.jpg", Slot: "1200"},
		{Name: "c.jpg", Slot: "1600"},
	}
	sent := map[string]bool{"b.jpg": true}

	pending := Delta(records, sent)
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].Name != "a.jpg" || pending[1].Name != "c.jpg" {
		t.Errorf("pending = %v, want [a.jpg c.jpg]", pending)
	}

	// Fully sent bucket: nothing pending.
	all := map[string]bool{"a.jpg": true, "b.jpg": true, "c.jpg": true}
	if got := Delta(records, all); len(got) != 0 {
		t.Errorf("Delta with all sent = %v, want empty", got)
	}

	// Stale sent entries (records deleted) are harmless.
	stale := map[string]bool{"gone.jpg": true}
	if got := Delta(records, stale); len(got) != 3 {
		t.Errorf("Delta with stale entries = %d records, want 3", len(got))
	}
}

func TestSentStatePath_HiddenInBucket(t *testing.T) {
	a := New(t.TempDir(), "watchpot")

	path := a.SentStatePath(testDate)
	if filepath.Base(path) != ".sent" {
		t.Errorf("sent state file = %q, want .sent", filepath.Base(path))
	}
	if filepath.Dir(path) != a.BucketPath(testDate) {
		t.Errorf("sent state dir = %q, want bucket dir", filepath.Dir(path))
	}
}
