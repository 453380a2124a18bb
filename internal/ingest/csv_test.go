package ingest

import (
	"strings"
	"testing"
	"time"
)

const sampleExport = `# ride log export
DATE;START;MINUTES;AVG_W;NP_W;AVG_HR;RPE;LOCATION
2026-03-02;18:05;90;210;225;142;6;indoor
2026-03-04;06:30;60;;;;4;outdoor
2026-03-07;09:00;180;195;;151;;outdoor
`

// TestParseCSV verifies a well-formed export parses into raw activities
// with absent metrics left nil.
func TestParseCSV(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	first := rows[0]
	want := time.Date(2026, 3, 2, 18, 5, 0, 0, time.UTC)
	if !first.StartTime.Equal(want) {
		t.Errorf("startTime = %v, want %v", first.StartTime, want)
	}
	if string(first.Duration) != "5400" {
		t.Errorf("duration = %s, want 5400", first.Duration)
	}
	if first.AvgPower == nil || *first.AvgPower != 210 {
		t.Errorf("avgPower = %v, want 210", first.AvgPower)
	}
	if !first.Indoor {
		t.Error("first row should be indoor")
	}

	second := rows[1]
	if second.AvgPower != nil || second.AvgHeartRate != nil {
		t.Error("absent columns should stay nil")
	}
	if second.PerceivedEffort == nil || *second.PerceivedEffort != 4 {
		t.Errorf("rpe = %v, want 4", second.PerceivedEffort)
	}
	if second.Indoor {
		t.Error("second row should be outdoor")
	}
}

// TestParseCSVSkipsCommentsAndBlanks verifies decoration lines do not
// produce rows.
func TestParseCSVSkipsCommentsAndBlanks(t *testing.T) {
	input := "# exported 2026-03-08\n\nDATE;START;MINUTES;AVG_W;NP_W;AVG_HR;RPE;LOCATION\n2026-03-02;18:05;90;;;;;indoor\n"
	rows, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

// TestParseCSVRejectsMalformedRow verifies a garbled row fails with the
// line number in the error.
func TestParseCSVRejectsMalformedRow(t *testing.T) {
	input := "2026-03-02;18:05;ninety;;;;;indoor\n"
	if _, err := ParseCSV(strings.NewReader(input)); err == nil {
		t.Error("expected error for malformed row")
	}

	input = "garbage line\n"
	if _, err := ParseCSV(strings.NewReader(input)); err == nil {
		t.Error("expected error for unrecognized row")
	}
}
