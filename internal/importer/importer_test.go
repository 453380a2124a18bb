package importer

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/veloplan/internal/ingest"
)

func f64(v float64) *float64 { return &v }

func rawAt(start time.Time) ingest.RawActivity {
	return ingest.RawActivity{
		StartTime: start,
		Duration:  json.RawMessage("3600"),
	}
}

// TestMergeDuplicates verifies that two recordings of the same ride collapse
// into one entry with the power recording as the base.
func TestMergeDuplicates(t *testing.T) {
	start := time.Date(2026, 3, 2, 18, 5, 0, 0, time.UTC)

	headUnit := rawAt(start)
	headUnit.AvgPower = f64(210)
	headUnit.NormalizedPower = f64(225)

	phone := rawAt(start)
	phone.AvgHeartRate = f64(148)
	phone.PerceivedEffort = f64(6)

	other := rawAt(start.Add(48 * time.Hour))

	merged := mergeDuplicates([]ingest.RawActivity{phone, headUnit, other})
	if len(merged) != 2 {
		t.Fatalf("merged = %d entries, want 2", len(merged))
	}

	got := merged[0]
	if got.NormalizedPower == nil || *got.NormalizedPower != 225 {
		t.Errorf("normalizedPower = %v, want 225", got.NormalizedPower)
	}
	if got.AvgHeartRate == nil || *got.AvgHeartRate != 148 {
		t.Errorf("avgHeartRate = %v, want 148 filled from second recording", got.AvgHeartRate)
	}
	if got.PerceivedEffort == nil || *got.PerceivedEffort != 6 {
		t.Errorf("perceivedEffort = %v, want 6", got.PerceivedEffort)
	}
}

// TestMergeDuplicatesKeepsBaseValues verifies the power recording's own
// signals are never overwritten by the duplicate.
func TestMergeDuplicatesKeepsBaseValues(t *testing.T) {
	start := time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC)

	a := rawAt(start)
	a.AvgPower = f64(200)
	a.AvgHeartRate = f64(140)

	b := rawAt(start)
	b.AvgHeartRate = f64(155)

	merged := mergeDuplicates([]ingest.RawActivity{a, b})
	if len(merged) != 1 {
		t.Fatalf("merged = %d entries, want 1", len(merged))
	}
	if *merged[0].AvgHeartRate != 140 {
		t.Errorf("avgHeartRate = %v, want the power recording's 140", *merged[0].AvgHeartRate)
	}
}

func writeExport(t *testing.T, path, content string, compress bool) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	if _, err := io.WriteString(w, content); err != nil {
		t.Fatal(err)
	}
}

const exportA = `DATE;START;MINUTES;AVG_W;NP_W;AVG_HR;RPE;LOCATION
2026-03-02;18:05;90;210;225;142;6;indoor
2026-03-04;06:30;60;;;;4;outdoor
`

const exportB = `DATE;START;MINUTES;AVG_W;NP_W;AVG_HR;RPE;LOCATION
2026-03-02;18:05;90;;;148;;outdoor
2026-03-07;09:00;180;195;;151;;outdoor
`

// TestImportDryRun runs a full import over a directory containing a plain
// and a gzip export, without touching a database.
func TestImportDryRun(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, filepath.Join(dir, "2026-w10.csv"), exportA, false)
	writeExport(t, filepath.Join(dir, "backup.csv.gz"), exportB, true)
	writeExport(t, filepath.Join(dir, "notes.txt"), "not an export", false)

	im := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), true)
	stats, err := im.Import(context.Background(), dir, "athlete-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if stats.FilesScanned != 2 {
		t.Errorf("filesScanned = %d, want 2", stats.FilesScanned)
	}
	if stats.Entries != 4 {
		t.Errorf("entries = %d, want 4", stats.Entries)
	}
	if stats.Merged != 1 {
		t.Errorf("merged = %d, want 1", stats.Merged)
	}
	if stats.Inserted != 3 {
		t.Errorf("inserted = %d, want 3", stats.Inserted)
	}
	if stats.Rejected != 0 {
		t.Errorf("rejected = %d, want 0", stats.Rejected)
	}
}

// TestImportSkipsUnreadableFile verifies a corrupt export is counted and
// skipped rather than aborting the run.
func TestImportSkipsUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, filepath.Join(dir, "good.csv"), exportA, false)
	writeExport(t, filepath.Join(dir, "broken.csv.gz"), "not gzip data", false)

	im := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), true)
	stats, err := im.Import(context.Background(), dir, "athlete-1")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.FilesErrored != 1 {
		t.Errorf("filesErrored = %d, want 1", stats.FilesErrored)
	}
	if stats.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", stats.Inserted)
	}
}

// TestImportRequiresAthlete covers the empty athlete id guard.
func TestImportRequiresAthlete(t *testing.T) {
	im := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), true)
	if _, err := im.Import(context.Background(), t.TempDir(), ""); err == nil {
		t.Fatal("want error for empty athlete id")
	}
}
