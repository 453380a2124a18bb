package compliance

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/veloplan/internal/models"
)

var assessTime = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

func planWith(sessions ...models.ScheduledSession) models.WeeklyPlan {
	return models.WeeklyPlan{
		ID:       "2026-W10",
		Sessions: sessions,
	}
}

func session(date string, target float64) models.ScheduledSession {
	return models.ScheduledSession{
		ID:           uuid.New(),
		Date:         date,
		Category:     models.CategoryLIT,
		TargetStress: target,
	}
}

func activity(date string, stress float64) models.Activity {
	d, _ := time.Parse(models.DateLayout, date)
	return models.Activity{
		ID:          uuid.New(),
		StartTime:   d.Add(17 * time.Hour),
		DurationSec: 3600,
		StressScore: stress,
	}
}

func TestAssessWeekClassification(t *testing.T) {
	plan := planWith(
		session("2026-03-03", 60), // ridden close to plan
		session("2026-03-05", 80), // ridden at half: partial
		session("2026-03-07", 50), // overdone: modified
		session("2026-03-08", 70), // nothing recorded: missed
	)
	actual := []models.Activity{
		activity("2026-03-03", 55),
		activity("2026-03-05", 40),
		activity("2026-03-07", 75),
	}

	got := AssessWeek(DefaultConfig(), plan, actual, nil, assessTime)

	if got.Stats.Planned != 4 {
		t.Fatalf("planned = %d, want 4", got.Stats.Planned)
	}
	if got.Stats.Completed != 1 || got.Stats.Partial != 1 || got.Stats.Modified != 1 || got.Stats.Missed != 1 {
		t.Errorf("counts = %+v", got.Stats)
	}
	if got.Stats.Rate != 0.25 {
		t.Errorf("rate = %.2f, want 0.25", got.Stats.Rate)
	}

	byDate := map[string]models.ComplianceRecord{}
	for _, r := range got.Records {
		byDate[r.Date] = r
	}
	if byDate["2026-03-03"].Status != models.ComplianceCompleted {
		t.Errorf("03-03 status = %s, want completed", byDate["2026-03-03"].Status)
	}
	if byDate["2026-03-05"].Status != models.CompliancePartial {
		t.Errorf("03-05 status = %s, want partial", byDate["2026-03-05"].Status)
	}
	if byDate["2026-03-07"].Status != models.ComplianceModified {
		t.Errorf("03-07 status = %s, want modified", byDate["2026-03-07"].Status)
	}
	if byDate["2026-03-08"].Status != models.ComplianceMissed {
		t.Errorf("03-08 status = %s, want missed", byDate["2026-03-08"].Status)
	}
}

func TestAssessWeekHalfPlannedIsPartial(t *testing.T) {
	// 40 actual against 80 planned: partial with a -50% deviation.
	plan := planWith(session("2026-03-03", 80))
	got := AssessWeek(DefaultConfig(), plan, []models.Activity{activity("2026-03-03", 40)}, nil, assessTime)

	if len(got.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(got.Records))
	}
	rec := got.Records[0]
	if rec.Status != models.CompliancePartial {
		t.Errorf("status = %s, want partial", rec.Status)
	}
	if math.Abs(rec.DeviationPct-(-50)) > 0.01 {
		t.Errorf("deviation = %.1f%%, want -50%%", rec.DeviationPct)
	}
}

func TestAssessWeekEmptyPlan(t *testing.T) {
	got := AssessWeek(DefaultConfig(), planWith(), nil, nil, assessTime)
	if got.Stats.Rate != 0 {
		t.Errorf("rate = %.2f, want 0 for empty plan", got.Stats.Rate)
	}
	if got.Recommendation.Regenerate {
		t.Error("empty plan should not trigger regeneration")
	}
}

func TestAssessWeekFutureSessionsPending(t *testing.T) {
	// Mid-week check: the Saturday session is still ahead, not missed.
	plan := planWith(
		session("2026-03-03", 60),
		session("2026-03-07", 90),
	)
	midweek := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	got := AssessWeek(DefaultConfig(), plan, []models.Activity{activity("2026-03-03", 58)}, nil, midweek)

	if got.Stats.Missed != 0 {
		t.Errorf("missed = %d, future session counted as missed", got.Stats.Missed)
	}
	if len(got.Records) != 1 {
		t.Errorf("got %d records, want 1 (pending session has none yet)", len(got.Records))
	}
}

func TestRecommendationPolicy(t *testing.T) {
	form := func(v float64) *float64 { return &v }
	tests := []struct {
		name    string
		stats   models.ComplianceStats
		form    *float64
		regen   bool
		urgency Urgency
	}{
		{
			name:    "on track",
			stats:   models.ComplianceStats{Planned: 4, Completed: 4, Rate: 1},
			regen:   false,
			urgency: UrgencyNone,
		},
		{
			name:    "low rate",
			stats:   models.ComplianceStats{Planned: 4, Completed: 1, Rate: 0.25},
			regen:   true,
			urgency: UrgencyHigh,
		},
		{
			name:    "many missed",
			stats:   models.ComplianceStats{Planned: 5, Completed: 2, Missed: 3, Rate: 0.6},
			regen:   true,
			urgency: UrgencyMedium,
		},
		{
			name:    "modified sessions with mediocre rate",
			stats:   models.ComplianceStats{Planned: 5, Completed: 3, Modified: 2, Rate: 0.6},
			regen:   true,
			urgency: UrgencyMedium,
		},
		{
			name:    "deep fatigue overrides good compliance",
			stats:   models.ComplianceStats{Planned: 4, Completed: 4, Rate: 1},
			form:    form(-30),
			regen:   true,
			urgency: UrgencyHigh,
		},
		{
			name:    "mild negative form alone is fine",
			stats:   models.ComplianceStats{Planned: 4, Completed: 4, Rate: 1},
			form:    form(-10),
			regen:   false,
			urgency: UrgencyNone,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := recommend(DefaultConfig(), tc.stats, tc.form)
			if got.Regenerate != tc.regen {
				t.Errorf("regenerate = %v, want %v (%s)", got.Regenerate, tc.regen, got.Reason)
			}
			if got.Urgency != tc.urgency {
				t.Errorf("urgency = %s, want %s", got.Urgency, tc.urgency)
			}
		})
	}
}

func TestRateTrend(t *testing.T) {
	weeks := func(rates ...float64) []models.ComplianceStats {
		out := make([]models.ComplianceStats, len(rates))
		for i, r := range rates {
			out[i] = models.ComplianceStats{Rate: r}
		}
		return out
	}

	tests := []struct {
		name  string
		weeks []models.ComplianceStats
		want  Trend
	}{
		{"improving", weeks(0.4, 0.5, 0.8, 0.9), TrendImproving},
		{"declining", weeks(0.9, 0.8, 0.5, 0.4), TrendDeclining},
		{"stable", weeks(0.7, 0.75, 0.72, 0.74), TrendStable},
		{"single week", weeks(0.2), TrendStable},
		{"empty", nil, TrendStable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RateTrend(DefaultConfig(), tc.weeks); got != tc.want {
				t.Errorf("trend = %s, want %s", got, tc.want)
			}
		})
	}
}
