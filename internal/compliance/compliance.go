// Package compliance compares a weekly plan against what the athlete
// actually rode, classifies each session, and decides whether the schedule
// is broken enough to regenerate. The regeneration decision runs through an
// ordered policy table, first match wins.
package compliance

import (
	"math"
	"sort"
	"time"

	"github.com/claude/veloplan/internal/models"
)

// Config holds the classification and regeneration thresholds. They are
// coaching heuristics, exposed for tuning rather than baked in.
type Config struct {
	// CompletedTolerance is the relative stress deviation under which a
	// matched session counts as completed (0.15 = 15%).
	CompletedTolerance float64 `yaml:"completed_tolerance"`
	// PartialBelow classifies a matched session as partial when actual
	// stress falls under this fraction of planned.
	PartialBelow float64 `yaml:"partial_below"`
	// RegenRateHigh triggers a high-urgency regeneration below this rate.
	RegenRateHigh float64 `yaml:"regen_rate_high"`
	// RegenRateMedium pairs with RegenModified for a medium trigger.
	RegenRateMedium float64 `yaml:"regen_rate_medium"`
	// RegenMissed triggers a medium regeneration at this many misses.
	RegenMissed int `yaml:"regen_missed"`
	// RegenModified is the modified-session count for the medium trigger.
	RegenModified int `yaml:"regen_modified"`
	// FormFloor triggers a high-urgency regeneration when current form
	// drops below it, regardless of compliance numbers.
	FormFloor float64 `yaml:"form_floor"`
	// TrendDelta is the rate difference that separates improving or
	// declining from stable.
	TrendDelta float64 `yaml:"trend_delta"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		CompletedTolerance: 0.15,
		PartialBelow:       0.50,
		RegenRateHigh:      0.50,
		RegenRateMedium:    0.70,
		RegenMissed:        3,
		RegenModified:      2,
		FormFloor:          -25,
		TrendDelta:         0.10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CompletedTolerance <= 0 {
		c.CompletedTolerance = d.CompletedTolerance
	}
	if c.PartialBelow <= 0 {
		c.PartialBelow = d.PartialBelow
	}
	if c.RegenRateHigh <= 0 {
		c.RegenRateHigh = d.RegenRateHigh
	}
	if c.RegenRateMedium <= 0 {
		c.RegenRateMedium = d.RegenRateMedium
	}
	if c.RegenMissed <= 0 {
		c.RegenMissed = d.RegenMissed
	}
	if c.RegenModified <= 0 {
		c.RegenModified = d.RegenModified
	}
	if c.FormFloor == 0 {
		c.FormFloor = d.FormFloor
	}
	if c.TrendDelta <= 0 {
		c.TrendDelta = d.TrendDelta
	}
	return c
}

// Urgency grades a regeneration recommendation.
type Urgency string

const (
	UrgencyNone   Urgency = "none"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Recommendation says whether and how urgently to regenerate the plan.
type Recommendation struct {
	Regenerate bool    `json:"regenerate"`
	Urgency    Urgency `json:"urgency"`
	Reason     string  `json:"reason"`
}

// Assessment is the full compliance picture for one week.
type Assessment struct {
	Stats          models.ComplianceStats    `json:"stats"`
	Records        []models.ComplianceRecord `json:"records"`
	Recommendation Recommendation            `json:"recommendation"`
}

// AssessWeek matches actual activities to the plan's sessions by calendar
// date, classifies each session and derives the weekly stats and a
// regeneration recommendation. currentForm, when known, can override the
// compliance numbers. asOf separates missed sessions from pending ones.
func AssessWeek(cfg Config, plan models.WeeklyPlan, actual []models.Activity, currentForm *float64, asOf time.Time) Assessment {
	cfg = cfg.withDefaults()

	dailyActual := make(map[string]float64)
	for _, a := range actual {
		dailyActual[a.Date()] += a.StressScore
	}
	today := asOf.UTC().Format(models.DateLayout)

	stats := models.ComplianceStats{Planned: len(plan.Sessions)}
	var records []models.ComplianceRecord

	sessions := make([]models.ScheduledSession, len(plan.Sessions))
	copy(sessions, plan.Sessions)
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Date < sessions[j].Date })

	claimed := make(map[string]bool)
	for _, s := range sessions {
		actualStress, matched := dailyActual[s.Date]
		if matched && claimed[s.Date] {
			matched = false
		}
		if !matched {
			if s.Date < today {
				stats.Missed++
				records = append(records, models.ComplianceRecord{
					SessionID:     s.ID,
					Date:          s.Date,
					Status:        models.ComplianceMissed,
					PlannedStress: s.TargetStress,
					Reason:        "no activity recorded on the scheduled date",
				})
			}
			continue
		}
		claimed[s.Date] = true

		rec := classify(cfg, s, actualStress)
		switch rec.Status {
		case models.ComplianceCompleted:
			stats.Completed++
		case models.CompliancePartial:
			stats.Partial++
		case models.ComplianceModified:
			stats.Modified++
		}
		records = append(records, rec)
	}

	if stats.Planned > 0 {
		stats.Rate = float64(stats.Completed) / float64(stats.Planned)
	}

	return Assessment{
		Stats:          stats,
		Records:        records,
		Recommendation: recommend(cfg, stats, currentForm),
	}
}

func classify(cfg Config, s models.ScheduledSession, actualStress float64) models.ComplianceRecord {
	rec := models.ComplianceRecord{
		SessionID:     s.ID,
		Date:          s.Date,
		PlannedStress: s.TargetStress,
		ActualStress:  actualStress,
	}
	if s.TargetStress <= 0 {
		rec.Status = models.ComplianceCompleted
		return rec
	}
	deviation := (actualStress - s.TargetStress) / s.TargetStress
	rec.DeviationPct = deviation * 100

	switch {
	case math.Abs(deviation) < cfg.CompletedTolerance:
		rec.Status = models.ComplianceCompleted
	case actualStress <= cfg.PartialBelow*s.TargetStress:
		rec.Status = models.CompliancePartial
		rec.Reason = "well under planned load"
	default:
		rec.Status = models.ComplianceModified
		rec.Reason = "planned and actual load diverged"
	}
	return rec
}

// regenRule is one row of the regeneration policy, checked in order.
type regenRule struct {
	matches func(cfg Config, stats models.ComplianceStats, form *float64) bool
	result  func(cfg Config) Recommendation
}

var regenPolicy = []regenRule{
	{
		// Deep fatigue overrides compliance numbers entirely.
		matches: func(cfg Config, _ models.ComplianceStats, form *float64) bool {
			return form != nil && *form < cfg.FormFloor
		},
		result: func(cfg Config) Recommendation {
			return Recommendation{Regenerate: true, Urgency: UrgencyHigh, Reason: "form has dropped into the fatigued zone"}
		},
	},
	{
		matches: func(cfg Config, stats models.ComplianceStats, _ *float64) bool {
			return stats.Planned > 0 && stats.Rate < cfg.RegenRateHigh
		},
		result: func(cfg Config) Recommendation {
			return Recommendation{Regenerate: true, Urgency: UrgencyHigh, Reason: "less than half the planned sessions were completed"}
		},
	},
	{
		matches: func(cfg Config, stats models.ComplianceStats, _ *float64) bool {
			return stats.Missed >= cfg.RegenMissed
		},
		result: func(cfg Config) Recommendation {
			return Recommendation{Regenerate: true, Urgency: UrgencyMedium, Reason: "too many sessions missed outright"}
		},
	},
	{
		matches: func(cfg Config, stats models.ComplianceStats, _ *float64) bool {
			return stats.Planned > 0 && stats.Rate < cfg.RegenRateMedium && stats.Modified >= cfg.RegenModified
		},
		result: func(cfg Config) Recommendation {
			return Recommendation{Regenerate: true, Urgency: UrgencyMedium, Reason: "completion rate low with repeated modifications"}
		},
	},
}

func recommend(cfg Config, stats models.ComplianceStats, form *float64) Recommendation {
	for _, r := range regenPolicy {
		if r.matches(cfg, stats, form) {
			return r.result(cfg)
		}
	}
	return Recommendation{Urgency: UrgencyNone, Reason: "plan is on track"}
}

// Trend describes how weekly compliance is moving.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// RateTrend compares the mean completion rate of the first half of the
// window against the second half.
func RateTrend(cfg Config, weeks []models.ComplianceStats) Trend {
	cfg = cfg.withDefaults()
	if len(weeks) < 2 {
		return TrendStable
	}
	half := len(weeks) / 2
	first := meanRate(weeks[:half])
	second := meanRate(weeks[half:])
	switch {
	case second-first > cfg.TrendDelta:
		return TrendImproving
	case first-second > cfg.TrendDelta:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func meanRate(weeks []models.ComplianceStats) float64 {
	if len(weeks) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range weeks {
		sum += w.Rate
	}
	return sum / float64(len(weeks))
}
