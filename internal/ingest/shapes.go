package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/veloplan/internal/models"
)

// Payload is the bulk import body.
type Payload struct {
	AthleteID  string        `json:"athlete_id"`
	Activities []RawActivity `json:"activities"`
}

// RawActivity is one imported activity before validation. Duration is raw
// because exports disagree on its format.
type RawActivity struct {
	ID              string          `json:"id,omitempty"`
	StartTime       time.Time       `json:"start_time"`
	Duration        json.RawMessage `json:"duration"`
	AvgPower        *float64        `json:"avg_power,omitempty"`
	NormalizedPower *float64        `json:"normalized_power,omitempty"`
	AvgHeartRate    *float64        `json:"avg_heart_rate,omitempty"`
	PerceivedEffort *float64        `json:"perceived_effort,omitempty"`
	Indoor          bool            `json:"indoor"`
	Source          string          `json:"source,omitempty"`
}

// DurationFormat describes how an export encodes activity duration.
type DurationFormat int

const (
	DurationSeconds DurationFormat = iota // number: 5400
	DurationClock                         // string: "1:30" or "1:30:00"
)

// DetectDurationFormat examines a raw duration value.
func DetectDurationFormat(raw json.RawMessage) DurationFormat {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		return DurationClock
	}
	return DurationSeconds
}

// parseDuration returns the duration in seconds.
func parseDuration(raw json.RawMessage) (float64, error) {
	switch DetectDurationFormat(raw) {
	case DurationClock:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}
		return parseClockDuration(s)
	default:
		var sec float64
		if err := json.Unmarshal(raw, &sec); err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}
		return sec, nil
	}
}

// parseClockDuration parses "h:mm" or "h:mm:ss" into seconds.
func parseClockDuration(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("duration %q: want h:mm or h:mm:ss", s)
	}
	var total float64
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("duration %q: bad component %q", s, part)
		}
		total = total*60 + float64(n)
	}
	if len(parts) == 2 {
		total *= 60 // h:mm has no seconds component
	}
	return total, nil
}

// ToActivity validates and converts one raw entry.
func (r RawActivity) ToActivity(athleteID string) (models.Activity, error) {
	var a models.Activity
	if r.StartTime.IsZero() {
		return a, fmt.Errorf("start_time required")
	}
	if len(r.Duration) == 0 {
		return a, fmt.Errorf("duration required")
	}
	durationSec, err := parseDuration(r.Duration)
	if err != nil {
		return a, err
	}
	if durationSec <= 0 {
		return a, fmt.Errorf("duration must be positive")
	}

	a = models.Activity{
		AthleteID:       athleteID,
		StartTime:       r.StartTime,
		DurationSec:     durationSec,
		AvgPower:        r.AvgPower,
		NormalizedPower: r.NormalizedPower,
		AvgHeartRate:    r.AvgHeartRate,
		PerceivedEffort: r.PerceivedEffort,
		Indoor:          r.Indoor,
		Source:          r.Source,
	}
	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return a, fmt.Errorf("id: %w", err)
		}
		a.ID = id
	}
	return a, nil
}
