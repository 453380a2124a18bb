// Package loadmodel tracks chronic and acute training load as exponentially
// weighted averages of daily stress. Fitness responds over ~6 weeks, fatigue
// over ~1 week, and form is the gap between them.
package loadmodel

import (
	"fmt"
	"sort"
	"time"

	"github.com/claude/veloplan/internal/models"
)

const (
	// FitnessAlpha is the smoothing factor for the chronic load average
	// (42-day time constant).
	FitnessAlpha = 2.0 / 43.0

	// FatigueAlpha is the smoothing factor for the acute load average
	// (7-day time constant).
	FatigueAlpha = 2.0 / 8.0
)

// Zone classifies form into coaching bands.
type Zone string

const (
	ZoneFresh    Zone = "fresh"    // form > 25, detraining risk if sustained
	ZoneOptimal  Zone = "optimal"  // -10 to 25, ready to absorb training
	ZoneTired    Zone = "tired"    // -30 to -10, productive overload
	ZoneFatigued Zone = "fatigued" // form < -30, injury and illness risk
)

// FormZone maps a form value to its zone.
func FormZone(form float64) Zone {
	switch {
	case form > 25:
		return ZoneFresh
	case form >= -10:
		return ZoneOptimal
	case form >= -30:
		return ZoneTired
	default:
		return ZoneFatigued
	}
}

// Step advances the load state by one day given that day's total stress.
// A rest day is simply stress 0; the averages decay toward it.
func Step(prev models.DailyLoad, date string, stress float64) models.DailyLoad {
	fitness := prev.Fitness + FitnessAlpha*(stress-prev.Fitness)
	fatigue := prev.Fatigue + FatigueAlpha*(stress-prev.Fatigue)
	return models.DailyLoad{
		Date:    date,
		Fitness: fitness,
		Fatigue: fatigue,
		Form:    fitness - fatigue,
		Stress:  stress,
	}
}

// DailyStress sums activity stress scores by calendar date.
func DailyStress(activities []models.Activity) map[string]float64 {
	totals := make(map[string]float64, len(activities))
	for _, a := range activities {
		totals[a.Date()] += a.StressScore
	}
	return totals
}

// BuildHistory computes the load series for every day from start through end
// inclusive, seeding from the state before start. Days without activities
// contribute zero stress, so gaps in the training log still decay the
// averages.
func BuildHistory(seed models.DailyLoad, start, end time.Time, dailyStress map[string]float64) ([]models.DailyLoad, error) {
	start = models.Midnight(start)
	end = models.Midnight(end)
	if end.Before(start) {
		return nil, fmt.Errorf("load history: end %s before start %s",
			end.Format(models.DateLayout), start.Format(models.DateLayout))
	}

	var series []models.DailyLoad
	state := seed
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(models.DateLayout)
		state = Step(state, date, dailyStress[date])
		series = append(series, state)
	}
	return series, nil
}

// FromActivities builds the full load history covering every recorded
// activity, starting from a zero state on the first activity's date.
func FromActivities(activities []models.Activity, through time.Time) ([]models.DailyLoad, error) {
	if len(activities) == 0 {
		return nil, nil
	}
	daily := DailyStress(activities)
	dates := make([]string, 0, len(daily))
	for d := range daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	first, err := time.Parse(models.DateLayout, dates[0])
	if err != nil {
		return nil, fmt.Errorf("load history: parse date %q: %w", dates[0], err)
	}
	return BuildHistory(models.DailyLoad{}, first, through, daily)
}

// Forecast projects the load state forward over planned sessions. Each
// session's target stress lands on its scheduled date; unplanned days are
// rest days.
func Forecast(current models.DailyLoad, sessions []models.ScheduledSession, days int) ([]models.DailyLoad, error) {
	if days <= 0 {
		return nil, nil
	}
	base, err := time.Parse(models.DateLayout, current.Date)
	if err != nil {
		return nil, fmt.Errorf("forecast: parse current date %q: %w", current.Date, err)
	}

	planned := make(map[string]float64, len(sessions))
	for _, s := range sessions {
		planned[s.Date] += s.TargetStress
	}

	series := make([]models.DailyLoad, 0, days)
	state := current
	for i := 1; i <= days; i++ {
		date := base.AddDate(0, 0, i).Format(models.DateLayout)
		state = Step(state, date, planned[date])
		series = append(series, state)
	}
	return series, nil
}

// RampRate returns the week-over-week chronic load growth as a fraction,
// comparing the last entries of two consecutive weeks. Returns 0 when the
// earlier fitness is not positive.
func RampRate(prevWeekEnd, thisWeekEnd models.DailyLoad) float64 {
	if prevWeekEnd.Fitness <= 0 {
		return 0
	}
	return (thisWeekEnd.Fitness - prevWeekEnd.Fitness) / prevWeekEnd.Fitness
}
