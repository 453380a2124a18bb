// Package adapter makes the day-of call on a scheduled session: keep it,
// soften it, or swap it for recovery, based on the athlete's subjective
// readiness check and the recent form trend. Decisions run through an
// ordered policy table so each rule is testable on its own.
package adapter

import (
	"fmt"

	"github.com/claude/veloplan/internal/models"
)

// Config holds the adaptation thresholds. The magnitudes are coaching
// heuristics without a hard derivation; they are exposed for tuning.
type Config struct {
	// StrongReadiness is the composite score below which, combined with
	// declining form, the session is downgraded to recovery.
	StrongReadiness float64 `yaml:"strong_readiness"`
	// ModerateReadiness is the score below which the session is reduced
	// but keeps its category.
	ModerateReadiness float64 `yaml:"moderate_readiness"`
	// HighReadiness is the score above which an easy session may be
	// escalated, when escalation is enabled.
	HighReadiness float64 `yaml:"high_readiness"`
	// StrongFactor scales stress on a recovery downgrade.
	StrongFactor float64 `yaml:"strong_factor"`
	// ModerateFactor scales stress and duration on a moderate reduction.
	ModerateFactor float64 `yaml:"moderate_factor"`
	// EscalationFactor scales stress up on an escalation.
	EscalationFactor float64 `yaml:"escalation_factor"`
	// AllowEscalation gates the escalation rule. Off by default.
	AllowEscalation bool `yaml:"allow_escalation"`
}

// DefaultConfig returns the standard adaptation thresholds: strong
// reductions land around 50%, moderate ones around 25%.
func DefaultConfig() Config {
	return Config{
		StrongReadiness:   0.50,
		ModerateReadiness: 0.70,
		HighReadiness:     0.90,
		StrongFactor:      0.50,
		ModerateFactor:    0.75,
		EscalationFactor:  1.10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StrongReadiness <= 0 {
		c.StrongReadiness = d.StrongReadiness
	}
	if c.ModerateReadiness <= 0 {
		c.ModerateReadiness = d.ModerateReadiness
	}
	if c.HighReadiness <= 0 {
		c.HighReadiness = d.HighReadiness
	}
	if c.StrongFactor <= 0 {
		c.StrongFactor = d.StrongFactor
	}
	if c.ModerateFactor <= 0 {
		c.ModerateFactor = d.ModerateFactor
	}
	if c.EscalationFactor <= 0 {
		c.EscalationFactor = d.EscalationFactor
	}
	return c
}

// Composite readiness weights. Sleep and accumulated fatigue dominate;
// fatigue, soreness and stress count inverted (higher report = less ready).
const (
	sleepWeight      = 0.30
	fatigueWeight    = 0.30
	motivationWeight = 0.20
	sorenessWeight   = 0.15
	stressWeight     = 0.05
)

// CompositeScore folds the five ordinal readiness fields into [0,1], higher
// meaning more ready. Fields outside the 1-5 scale are rejected.
func CompositeScore(r models.ReadinessCheck) (float64, error) {
	fields := []struct {
		name  string
		value int
	}{
		{"sleep_quality", r.SleepQuality},
		{"fatigue", r.Fatigue},
		{"motivation", r.Motivation},
		{"soreness", r.Soreness},
		{"stress", r.Stress},
	}
	for _, f := range fields {
		if f.value < 1 || f.value > 5 {
			return 0, fmt.Errorf("readiness %s = %d outside 1-5", f.name, f.value)
		}
	}

	norm := func(v int) float64 { return float64(v-1) / 4 }
	inv := func(v int) float64 { return 1 - norm(v) }

	return sleepWeight*norm(r.SleepQuality) +
		fatigueWeight*inv(r.Fatigue) +
		motivationWeight*norm(r.Motivation) +
		sorenessWeight*inv(r.Soreness) +
		stressWeight*inv(r.Stress), nil
}

// Result is the adaptation outcome. Session is a copy; inputs are never
// mutated.
type Result struct {
	Session   models.ScheduledSession `json:"session"`
	Changed   bool                    `json:"changed"`
	Reason    string                  `json:"reason"`
	Readiness float64                 `json:"readiness"`
}

// rule is one row of the policy table. First matching rule wins.
type rule struct {
	name    string
	matches func(cfg Config, ctx ruleContext) bool
	apply   func(cfg Config, s models.ScheduledSession) (models.ScheduledSession, string)
}

type ruleContext struct {
	readiness     float64
	check         models.ReadinessCheck
	form          float64
	hasForm       bool
	trendForced   bool
	formDeclining bool
	category      models.SessionCategory
}

// Forced-recovery triggers. These fire ahead of the tunable thresholds and
// catch overtraining signals a single composite score can hide.
const (
	criticalReadiness = 0.40
	forcedSleepMax    = 2
	forcedFatigueMin  = 4
	forcedFormFloor   = -25.0
	forcedReadiness   = 0.55
	trendReadinessMax = 0.50
	trendMinDays      = 3
	trendDelta        = 0.10
)

var policy = []rule{
	{
		name: "forced-recovery-critical",
		matches: func(cfg Config, ctx ruleContext) bool {
			return ctx.readiness < criticalReadiness
		},
		apply: forcedRecovery("critically low readiness"),
	},
	{
		name: "forced-recovery-acute",
		matches: func(cfg Config, ctx ruleContext) bool {
			return ctx.check.SleepQuality <= forcedSleepMax && ctx.check.Fatigue >= forcedFatigueMin
		},
		apply: forcedRecovery("very poor sleep combined with high fatigue"),
	},
	{
		name: "forced-recovery-overreached",
		matches: func(cfg Config, ctx ruleContext) bool {
			return ctx.hasForm && ctx.form < forcedFormFloor && ctx.readiness < forcedReadiness
		},
		apply: forcedRecovery("deeply negative form with low readiness"),
	},
	{
		name: "forced-recovery-trend",
		matches: func(cfg Config, ctx ruleContext) bool {
			return ctx.trendForced
		},
		apply: forcedRecovery("readiness declining over several days"),
	},
	{
		name: "strong-reduction",
		matches: func(cfg Config, ctx ruleContext) bool {
			return ctx.readiness < cfg.StrongReadiness && ctx.formDeclining
		},
		apply: applyStrongReduction,
	},
	{
		name: "moderate-reduction",
		matches: func(cfg Config, ctx ruleContext) bool {
			return ctx.readiness < cfg.ModerateReadiness
		},
		apply: applyModerateReduction,
	},
	{
		name: "escalation",
		matches: func(cfg Config, ctx ruleContext) bool {
			return cfg.AllowEscalation &&
				ctx.readiness >= cfg.HighReadiness &&
				ctx.category == models.CategoryLIT
		},
		apply: applyEscalation,
	},
}

// Caps applied when a session is downgraded to recovery.
const (
	recoveryMaxStress      = 40.0
	recoveryMaxDurationSec = 3600
)

func applyStrongReduction(cfg Config, s models.ScheduledSession) (models.ScheduledSession, string) {
	from := s.Category
	return downgradeToRecovery(cfg, s),
		fmt.Sprintf("low readiness with declining form: %s replaced with recovery", from)
}

// forcedRecovery builds an apply func that swaps the session for recovery
// with the trigger named in the reason.
func forcedRecovery(trigger string) func(Config, models.ScheduledSession) (models.ScheduledSession, string) {
	return func(cfg Config, s models.ScheduledSession) (models.ScheduledSession, string) {
		from := s.Category
		return downgradeToRecovery(cfg, s),
			fmt.Sprintf("%s: %s replaced with recovery", trigger, from)
	}
}

func downgradeToRecovery(cfg Config, s models.ScheduledSession) models.ScheduledSession {
	s.Category = models.CategoryREC
	s.SubType = "recovery"
	s.WorkoutID = ""
	s.Description = "Easy recovery spin"
	s.TargetStress = min(s.TargetStress*cfg.StrongFactor, recoveryMaxStress)
	s.DurationSec = minInt(s.DurationSec/2, recoveryMaxDurationSec)
	return s
}

func applyModerateReduction(cfg Config, s models.ScheduledSession) (models.ScheduledSession, string) {
	s.TargetStress *= cfg.ModerateFactor
	s.DurationSec = int(float64(s.DurationSec) * cfg.ModerateFactor)
	return s, "readiness below normal: session reduced"
}

func applyEscalation(cfg Config, s models.ScheduledSession) (models.ScheduledSession, string) {
	s.TargetStress *= cfg.EscalationFactor
	return s, "high readiness: easy session extended"
}

// Adapt applies the policy table to one scheduled session. recent is the
// rolling load history, oldest first; prior holds the recent self-reports
// used for the trend trigger. Absent or malformed readiness always yields
// the original session with changed=false; adaptation never fails.
func Adapt(cfg Config, session models.ScheduledSession, readiness *models.ReadinessCheck, recent []models.DailyLoad, prior []models.ReadinessCheck) Result {
	cfg = cfg.withDefaults()

	if readiness == nil {
		return Result{Session: session, Reason: "no readiness check submitted"}
	}
	score, err := CompositeScore(*readiness)
	if err != nil {
		return Result{Session: session, Reason: fmt.Sprintf("readiness ignored: %v", err)}
	}

	avg, declining, days := readinessTrend(prior)
	ctx := ruleContext{
		readiness:     score,
		check:         *readiness,
		trendForced:   days >= trendMinDays && avg < trendReadinessMax && declining,
		formDeclining: formDeclining(recent),
		category:      session.Category,
	}
	if n := len(recent); n > 0 {
		ctx.form = recent[n-1].Form
		ctx.hasForm = true
	}

	for _, r := range policy {
		if !r.matches(cfg, ctx) {
			continue
		}
		adapted, reason := r.apply(cfg, session)
		return Result{Session: adapted, Changed: true, Reason: reason, Readiness: score}
	}
	return Result{Session: session, Reason: "readiness normal, session unchanged", Readiness: score}
}

// formDeclining reports whether form dropped over the recent window. Fewer
// than two days of history cannot establish a trend.
func formDeclining(recent []models.DailyLoad) bool {
	if len(recent) < 2 {
		return false
	}
	return recent[len(recent)-1].Form < recent[0].Form
}

// readinessTrend summarizes the recent self-reports, oldest first. declining
// needs at least four scored checks; it compares the older half of the
// window against the newer half.
func readinessTrend(prior []models.ReadinessCheck) (avg float64, declining bool, days int) {
	var scores []float64
	for _, c := range prior {
		if c.Score != nil {
			scores = append(scores, *c.Score)
			continue
		}
		if s, err := CompositeScore(c); err == nil {
			scores = append(scores, s)
		}
	}
	if len(scores) == 0 {
		return 0, false, 0
	}
	avg = mean(scores)
	if len(scores) < 4 {
		return avg, false, len(scores)
	}
	mid := len(scores) / 2
	return avg, mean(scores[mid:])-mean(scores[:mid]) < -trendDelta, len(scores)
}

func mean(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
