package loadmodel

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/veloplan/internal/models"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestStepFromZeroState(t *testing.T) {
	// A single 100 TSS day from a fresh state: fitness moves by one
	// 42-day smoothing step, fatigue by one 7-day step.
	got := Step(models.DailyLoad{}, "2026-03-02", 100)

	if !almostEqual(got.Fitness, 100*FitnessAlpha, 0.01) {
		t.Errorf("fitness = %.3f, want %.3f", got.Fitness, 100*FitnessAlpha)
	}
	if !almostEqual(got.Fatigue, 25.0, 0.01) {
		t.Errorf("fatigue = %.3f, want 25.0", got.Fatigue)
	}
	if !almostEqual(got.Form, got.Fitness-got.Fatigue, 1e-9) {
		t.Errorf("form = %.3f, want fitness-fatigue = %.3f", got.Form, got.Fitness-got.Fatigue)
	}
}

func TestStepRestDayDecays(t *testing.T) {
	prev := models.DailyLoad{Date: "2026-03-02", Fitness: 50, Fatigue: 60, Form: -10}
	got := Step(prev, "2026-03-03", 0)
	if got.Fitness >= prev.Fitness {
		t.Errorf("fitness did not decay: %.2f -> %.2f", prev.Fitness, got.Fitness)
	}
	if got.Fatigue >= prev.Fatigue {
		t.Errorf("fatigue did not decay: %.2f -> %.2f", prev.Fatigue, got.Fatigue)
	}
	// Fatigue sheds faster than fitness, so a rest day improves form.
	if got.Form <= prev.Form {
		t.Errorf("form did not recover on rest day: %.2f -> %.2f", prev.Form, got.Form)
	}
}

func TestBuildHistoryFillsGaps(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	daily := map[string]float64{
		"2026-03-02": 80,
		"2026-03-05": 120,
	}

	series, err := BuildHistory(models.DailyLoad{}, start, end, daily)
	if err != nil {
		t.Fatalf("BuildHistory: %v", err)
	}
	if len(series) != 7 {
		t.Fatalf("len(series) = %d, want 7", len(series))
	}
	if series[0].Date != "2026-03-02" || series[6].Date != "2026-03-08" {
		t.Errorf("series spans %s..%s, want 2026-03-02..2026-03-08", series[0].Date, series[6].Date)
	}
	if series[1].Stress != 0 {
		t.Errorf("gap day stress = %.1f, want 0", series[1].Stress)
	}
	if series[3].Stress != 120 {
		t.Errorf("day 4 stress = %.1f, want 120", series[3].Stress)
	}
	// Fatigue from day 1 should have partially decayed by day 3.
	if series[2].Fatigue >= series[0].Fatigue {
		t.Errorf("fatigue %.2f did not decay from %.2f over two rest days", series[2].Fatigue, series[0].Fatigue)
	}
}

func TestBuildHistoryRejectsInvertedRange(t *testing.T) {
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if _, err := BuildHistory(models.DailyLoad{}, start, end, nil); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestFromActivitiesSingleRide(t *testing.T) {
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	acts := []models.Activity{{
		ID:          uuid.New(),
		StartTime:   day,
		DurationSec: 3600,
		StressScore: 100,
	}}

	series, err := FromActivities(acts, day)
	if err != nil {
		t.Fatalf("FromActivities: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("len(series) = %d, want 1", len(series))
	}
	if !almostEqual(series[0].Fitness, 4.65, 0.01) {
		t.Errorf("fitness = %.3f, want ~4.65", series[0].Fitness)
	}
	if !almostEqual(series[0].Fatigue, 25.0, 0.01) {
		t.Errorf("fatigue = %.3f, want 25.0", series[0].Fatigue)
	}
}

func TestFromActivitiesSumsSameDay(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	acts := []models.Activity{
		{ID: uuid.New(), StartTime: day.Add(7 * time.Hour), DurationSec: 1800, StressScore: 30},
		{ID: uuid.New(), StartTime: day.Add(17 * time.Hour), DurationSec: 3600, StressScore: 70},
	}
	series, err := FromActivities(acts, day)
	if err != nil {
		t.Fatalf("FromActivities: %v", err)
	}
	if series[0].Stress != 100 {
		t.Errorf("day stress = %.1f, want 100", series[0].Stress)
	}
}

func TestForecastAppliesPlannedSessions(t *testing.T) {
	current := models.DailyLoad{Date: "2026-03-08", Fitness: 40, Fatigue: 45, Form: -5}
	sessions := []models.ScheduledSession{
		{Date: "2026-03-10", TargetStress: 90},
		{Date: "2026-03-12", TargetStress: 60},
	}

	series, err := Forecast(current, sessions, 5)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(series) != 5 {
		t.Fatalf("len(series) = %d, want 5", len(series))
	}
	if series[0].Date != "2026-03-09" {
		t.Errorf("first forecast day = %s, want 2026-03-09", series[0].Date)
	}
	if series[1].Stress != 90 || series[3].Stress != 60 {
		t.Errorf("planned stress not applied: got %.0f and %.0f", series[1].Stress, series[3].Stress)
	}
	if series[0].Stress != 0 {
		t.Errorf("rest day stress = %.1f, want 0", series[0].Stress)
	}
}

func TestStepConvergesUnderConstantStress(t *testing.T) {
	// Under a constant daily stress both averages converge on that value,
	// fatigue well ahead of fitness on its shorter time constant.
	const stress = 60.0
	state := models.DailyLoad{}
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var atTwoWeeks models.DailyLoad
	for i := 1; i <= 180; i++ {
		state = Step(state, day.AddDate(0, 0, i).Format(models.DateLayout), stress)
		if i == 14 {
			atTwoWeeks = state
		}
	}

	if atTwoWeeks.Fatigue <= atTwoWeeks.Fitness {
		t.Errorf("after 14 days fatigue %.1f should lead fitness %.1f", atTwoWeeks.Fatigue, atTwoWeeks.Fitness)
	}
	if atTwoWeeks.Fatigue < 0.9*stress {
		t.Errorf("fatigue %.1f not near %.0f after 14 days", atTwoWeeks.Fatigue, stress)
	}
	if atTwoWeeks.Fitness > 0.6*stress {
		t.Errorf("fitness %.1f converged too fast after 14 days", atTwoWeeks.Fitness)
	}

	if !almostEqual(state.Fitness, stress, 1.0) {
		t.Errorf("fitness = %.2f, want ~%.0f at steady state", state.Fitness, stress)
	}
	if !almostEqual(state.Fatigue, stress, 0.1) {
		t.Errorf("fatigue = %.2f, want ~%.0f at steady state", state.Fatigue, stress)
	}
	if math.Abs(state.Form) > 1.0 {
		t.Errorf("form = %.2f, want ~0 at steady state", state.Form)
	}
}

func TestForecastEmptySessionsDecays(t *testing.T) {
	// No planned sessions: the projection is all rest days, so both
	// averages decay and form recovers day over day.
	current := models.DailyLoad{Date: "2026-03-08", Fitness: 50, Fatigue: 60, Form: -10}

	series, err := Forecast(current, nil, 7)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(series) != 7 {
		t.Fatalf("len(series) = %d, want 7", len(series))
	}
	prev := current
	for _, day := range series {
		if day.Stress != 0 {
			t.Errorf("%s: stress = %.1f, want 0", day.Date, day.Stress)
		}
		if day.Fitness >= prev.Fitness || day.Fatigue >= prev.Fatigue {
			t.Errorf("%s: averages did not decay", day.Date)
		}
		if day.Form <= prev.Form {
			t.Errorf("%s: form did not recover", day.Date)
		}
		prev = day
	}
}

func TestForecastLeavesInputsUntouched(t *testing.T) {
	current := models.DailyLoad{Date: "2026-03-08", Fitness: 40, Fatigue: 45, Form: -5}
	sessions := []models.ScheduledSession{
		{Date: "2026-03-10", TargetStress: 90},
		{Date: "2026-03-12", TargetStress: 60},
	}
	savedCurrent := current
	savedSession := sessions[0]

	first, err := Forecast(current, sessions, 5)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	second, err := Forecast(current, sessions, 5)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if current != savedCurrent {
		t.Error("current state mutated by Forecast")
	}
	if sessions[0] != savedSession {
		t.Error("session mutated by Forecast")
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated forecasts differ for identical inputs")
	}

	if series, err := Forecast(current, sessions, 0); err != nil || series != nil {
		t.Errorf("Forecast with 0 days = (%v, %v), want (nil, nil)", series, err)
	}
}

func TestFormZone(t *testing.T) {
	tests := []struct {
		form float64
		want Zone
	}{
		{30, ZoneFresh},
		{25.1, ZoneFresh},
		{25, ZoneOptimal},
		{0, ZoneOptimal},
		{-10, ZoneOptimal},
		{-10.1, ZoneTired},
		{-30, ZoneTired},
		{-30.1, ZoneFatigued},
		{-50, ZoneFatigued},
	}
	for _, tc := range tests {
		if got := FormZone(tc.form); got != tc.want {
			t.Errorf("FormZone(%.1f) = %q, want %q", tc.form, got, tc.want)
		}
	}
}

func TestRampRate(t *testing.T) {
	prev := models.DailyLoad{Fitness: 50}
	cur := models.DailyLoad{Fitness: 54}
	if got := RampRate(prev, cur); !almostEqual(got, 0.08, 1e-9) {
		t.Errorf("RampRate = %.3f, want 0.08", got)
	}
	if got := RampRate(models.DailyLoad{}, cur); got != 0 {
		t.Errorf("RampRate from zero fitness = %.3f, want 0", got)
	}
}
