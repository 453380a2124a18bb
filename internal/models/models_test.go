package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestScheduledSessionPerceivedEffort(t *testing.T) {
	s := ScheduledSession{
		ID:           uuid.New(),
		Date:         "2026-03-05",
		Category:     CategoryLIT,
		SubType:      "endurance",
		DurationSec:  5400,
		TargetStress: 65,
	}

	// Not yet ridden: the field stays off the wire entirely.
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "perceived_effort") {
		t.Error("perceived_effort present before the session was completed")
	}

	rpe := 7.0
	s.PerceivedEffort = &rpe
	raw, err = json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"perceived_effort":7`) {
		t.Errorf("perceived_effort missing from %s", raw)
	}

	var back ScheduledSession
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.PerceivedEffort == nil || *back.PerceivedEffort != 7 {
		t.Errorf("perceived effort = %v, want 7", back.PerceivedEffort)
	}
}
