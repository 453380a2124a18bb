// Package models holds the data contracts exchanged between the planning
// core, the storage layer, and the HTTP/MCP surfaces.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the canonical day-granularity format used throughout.
const DateLayout = "2006-01-02"

// SessionCategory is the intensity class of a training session.
type SessionCategory string

const (
	CategoryHIT SessionCategory = "HIT" // high-intensity
	CategoryLIT SessionCategory = "LIT" // low-intensity
	CategoryREC SessionCategory = "REC" // active recovery
)

// AthleteProfile carries the physiological reference values and scheduling
// preferences the planner and scorer need. Threshold references are optional;
// the stress scorer cascades to lower-fidelity methods when they are absent.
type AthleteProfile struct {
	ID                string   `json:"id"`
	FTPWatts          *float64 `json:"ftp_watts,omitempty"`
	LTHRBpm           *float64 `json:"lthr_bpm,omitempty"`
	WeeklyHoursTarget float64  `json:"weekly_hours_target"`
	IndoorAllowed     bool     `json:"indoor_allowed"`
}

// Activity is one completed workout as reported by the athlete or an import.
type Activity struct {
	ID              uuid.UUID `json:"id"`
	AthleteID       string    `json:"athlete_id"`
	StartTime       time.Time `json:"start_time"`
	DurationSec     float64   `json:"duration_sec"`
	AvgPower        *float64  `json:"avg_power,omitempty"`
	NormalizedPower *float64  `json:"normalized_power,omitempty"`
	AvgHeartRate    *float64  `json:"avg_heart_rate,omitempty"`
	PerceivedEffort *float64  `json:"perceived_effort,omitempty"` // RPE, 1-10
	StressScore     float64   `json:"stress_score"`
	LowConfidence   bool      `json:"low_confidence,omitempty"`
	Indoor          bool      `json:"indoor"`
	Source          string    `json:"source"`
}

// Date returns the activity's UTC calendar day in DateLayout form.
func (a Activity) Date() string {
	return a.StartTime.UTC().Format(DateLayout)
}

// DailyLoad is one day of the rolling fitness/fatigue/form model.
// Fitness and fatigue are exponentially weighted aggregates of daily stress;
// form is their difference and may be negative.
type DailyLoad struct {
	Date    string  `json:"date"` // DateLayout
	Fitness float64 `json:"fitness"`
	Fatigue float64 `json:"fatigue"`
	Form    float64 `json:"form"`
	Stress  float64 `json:"stress"`
}

// ReadinessCheck is the athlete's subjective same-day self report.
// All ordinal fields use a 1-5 scale. For sleep quality and motivation 5 is
// best; for fatigue, soreness, and stress 1 is best.
type ReadinessCheck struct {
	AthleteID    string    `json:"athlete_id"`
	Date         string    `json:"date"` // DateLayout
	SleepQuality int       `json:"sleep_quality"`
	Fatigue      int       `json:"fatigue"`
	Motivation   int       `json:"motivation"`
	Soreness     int       `json:"soreness"`
	Stress       int       `json:"stress"`
	Score        *float64  `json:"score,omitempty"` // derived composite in [0,1]
	Notes        string    `json:"notes,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// LocationCapability describes where a time slot can be used.
type LocationCapability string

const (
	LocationIndoor  LocationCapability = "indoor"
	LocationOutdoor LocationCapability = "outdoor"
	LocationBoth    LocationCapability = "both"
)

// AvailabilityWindow is a recurring weekly training slot declared by the
// athlete. Times use 24h "15:04" strings; slots never span midnight.
type AvailabilityWindow struct {
	Weekday   time.Weekday       `json:"weekday"`
	StartTime string             `json:"start_time"`
	EndTime   string             `json:"end_time"`
	Location  LocationCapability `json:"location"`
	Priority  int                `json:"priority"` // 1=must use, 2=prefer, 3=optional
}

// ScheduledSession is one planned training session inside a weekly plan.
type ScheduledSession struct {
	ID           uuid.UUID       `json:"id"`
	Date         string          `json:"date"` // DateLayout
	Category     SessionCategory `json:"category"`
	SubType      string          `json:"sub_type"` // endurance, tempo, threshold, vo2max, recovery
	DurationSec  int             `json:"duration_sec"`
	TargetStress float64         `json:"target_stress"`
	Indoor       bool            `json:"indoor"`
	WorkoutID    string          `json:"workout_id,omitempty"`
	Description  string          `json:"description"`
	Notes        string          `json:"notes,omitempty"`
	StartTime    string          `json:"start_time,omitempty"` // HH:MM within the slot
	EndTime      string          `json:"end_time,omitempty"`
	// PerceivedEffort is the athlete's post-ride RPE on the 1-10 scale,
	// filled in once the session is done.
	PerceivedEffort *float64 `json:"perceived_effort,omitempty"`
}

// WarningType classifies plan-quality warnings.
type WarningType string

const (
	WarnSplitSession     WarningType = "split-session"
	WarnTSSReduced       WarningType = "tss-reduced"
	WarnInsufficientTime WarningType = "insufficient-time"
	WarnNoCatalogMatch   WarningType = "no-catalog-match"
)

// PlanWarning records a compromise made during plan generation.
type PlanWarning struct {
	Type     WarningType `json:"type"`
	Severity string      `json:"severity"` // info, warning, error
	Message  string      `json:"message"`
	Date     string      `json:"date,omitempty"`
}

// PlanAdjustments counts the compromises applied to fit the week's budget.
type PlanAdjustments struct {
	SplitSessions   int     `json:"split_sessions"`
	TSSReduced      int     `json:"tss_reduced"`
	TotalStressLost float64 `json:"total_stress_lost"`
}

// PlanFactors are the individual quality components, each in [0,1].
type PlanFactors struct {
	TimeSlotMatch        float64 `json:"time_slot_match"`
	TrainingDistribution float64 `json:"training_distribution"`
	RecoveryAdequacy     float64 `json:"recovery_adequacy"`
}

// PlanQuality summarizes how well a generated week matched its constraints.
type PlanQuality struct {
	Score       float64         `json:"score"` // 0-1
	Warnings    []PlanWarning   `json:"warnings"`
	Adjustments PlanAdjustments `json:"adjustments"`
	Factors     PlanFactors     `json:"factors"`
}

// WeeklyPlan is one generated training week. A regenerated week replaces the
// previous plan wholesale; plans are never patched in place.
type WeeklyPlan struct {
	ID          string             `json:"id"` // e.g. "2026-W31"
	AthleteID   string             `json:"athlete_id"`
	WeekStart   time.Time          `json:"week_start"` // Monday, midnight UTC
	WeekNumber  int                `json:"week_number"`
	Sessions    []ScheduledSession `json:"sessions"`
	TotalStress float64            `json:"total_stress"`
	TotalHours  float64            `json:"total_hours"`
	LITRatio    float64            `json:"lit_ratio"`
	HITSessions int                `json:"hit_sessions"`
	Quality     PlanQuality        `json:"quality"`
	Generated   time.Time          `json:"generated"`
}

// ComplianceStatus classifies how a scheduled session was executed.
type ComplianceStatus string

const (
	ComplianceCompleted ComplianceStatus = "completed"
	CompliancePartial   ComplianceStatus = "partial"
	ComplianceMissed    ComplianceStatus = "missed"
	ComplianceModified  ComplianceStatus = "modified"
)

// ComplianceRecord is the per-session outcome of a compliance assessment.
type ComplianceRecord struct {
	SessionID     uuid.UUID        `json:"session_id"`
	Date          string           `json:"date"`
	Status        ComplianceStatus `json:"status"`
	PlannedStress float64          `json:"planned_stress"`
	ActualStress  float64          `json:"actual_stress"`
	DeviationPct  float64          `json:"deviation_pct"`
	Reason        string           `json:"reason,omitempty"`
}

// ComplianceStats aggregates per-session outcomes over one week.
type ComplianceStats struct {
	Planned   int     `json:"planned"`
	Completed int     `json:"completed"`
	Partial   int     `json:"partial"`
	Missed    int     `json:"missed"`
	Modified  int     `json:"modified"`
	Rate      float64 `json:"rate"` // completed / planned, 0 when nothing planned
}

// Midnight normalizes a timestamp to midnight UTC of the same calendar day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Midnight(a).Equal(Midnight(b))
}
