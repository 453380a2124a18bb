// Package planner turns an athlete's availability, load history and target
// event into concrete weekly training plans. Generation is a pure function
// of its inputs and configuration: the workout catalog is passed in by the
// caller and all tunable heuristics live in Config.
package planner

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/claude/veloplan/internal/catalog"
	"github.com/claude/veloplan/internal/models"
)

// ErrMalformedInput marks plan requests rejected outright, such as
// availability windows whose end precedes their start.
var ErrMalformedInput = errors.New("malformed plan request")

// UpstreamError wraps a collaborator failure (storage, activity provider)
// that planning surfaces verbatim rather than retrying.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure during %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Config holds every planning heuristic. The defaults follow common
// endurance coaching practice but none of them is sacred; they are exposed
// so a coach can tune them.
type Config struct {
	// RampRate caps week-over-week stress budget growth (0.08 = 8%).
	RampRate float64 `yaml:"ramp_rate"`
	// RecoveryWeekEvery marks every Nth week as a recovery week.
	RecoveryWeekEvery int `yaml:"recovery_week_every"`
	// RecoveryMultiplier scales the budget in a recovery week.
	RecoveryMultiplier float64 `yaml:"recovery_multiplier"`
	// MaxHITSessions caps high-intensity sessions per week.
	MaxHITSessions int `yaml:"max_hit_sessions"`
	// LITShare is the fraction of the stress budget reserved for
	// low-intensity and recovery work (polarized distribution).
	LITShare float64 `yaml:"lit_share"`
	// StressPerHour converts the athlete's weekly hours into a stress
	// budget.
	StressPerHour float64 `yaml:"stress_per_hour"`
	// MinSessionStress is the smallest session worth scheduling; slots
	// allocated less than this are left open.
	MinSessionStress float64 `yaml:"min_session_stress"`
	// BudgetTolerance is the relative overshoot allowed after catalog
	// matching before session targets are scaled back onto the budget.
	BudgetTolerance float64 `yaml:"budget_tolerance"`
	// TaperMultiplier scales the budget in taper weeks; intensity stays,
	// volume drops.
	TaperMultiplier float64 `yaml:"taper_multiplier"`
}

// DefaultConfig returns the standard planning heuristics.
func DefaultConfig() Config {
	return Config{
		RampRate:           0.08,
		RecoveryWeekEvery:  4,
		RecoveryMultiplier: 0.45,
		MaxHITSessions:     2,
		LITShare:           0.90,
		StressPerHour:      45,
		MinSessionStress:   15,
		BudgetTolerance:    0.10,
		TaperMultiplier:    0.5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RampRate <= 0 {
		c.RampRate = d.RampRate
	}
	if c.RecoveryWeekEvery <= 0 {
		c.RecoveryWeekEvery = d.RecoveryWeekEvery
	}
	if c.RecoveryMultiplier <= 0 {
		c.RecoveryMultiplier = d.RecoveryMultiplier
	}
	if c.MaxHITSessions <= 0 {
		c.MaxHITSessions = d.MaxHITSessions
	}
	if c.LITShare <= 0 {
		c.LITShare = d.LITShare
	}
	if c.StressPerHour <= 0 {
		c.StressPerHour = d.StressPerHour
	}
	if c.MinSessionStress <= 0 {
		c.MinSessionStress = d.MinSessionStress
	}
	if c.BudgetTolerance <= 0 {
		c.BudgetTolerance = d.BudgetTolerance
	}
	if c.TaperMultiplier <= 0 {
		c.TaperMultiplier = d.TaperMultiplier
	}
	return c
}

// WeekSummary carries the ramp-rate continuity state between weeks.
// BaseBudget is the budget before recovery or taper multipliers, so a
// recovery week does not ratchet the following week down.
type WeekSummary struct {
	WeekNumber  int
	TotalStress float64
	BaseBudget  float64
}

// Request is everything GenerateWeek needs for one week.
type Request struct {
	Profile      models.AthleteProfile
	Availability []models.AvailabilityWindow
	// WeekStart is any instant inside the target week; it is normalized
	// to that week's Monday.
	WeekStart  time.Time
	WeekNumber int
	EventDate  *time.Time
	PriorWeeks []WeekSummary
	// CurrentLoad, when known, feeds the recovery adequacy check.
	CurrentLoad *models.DailyLoad
	// Now stamps the generated plan; zero means the wall clock.
	Now time.Time
}

// Per-category stress capacity per hour of slot time. A slot cannot absorb
// more stress than riding it flat out in that category would produce.
var hourlyCapacity = map[models.SessionCategory]float64{
	models.CategoryHIT: 85,
	models.CategoryLIT: 60,
	models.CategoryREC: 30,
}

// slot is one availability window resolved onto a concrete date.
type slot struct {
	win      models.AvailabilityWindow
	date     time.Time
	seconds  int
	category models.SessionCategory
	target   float64
	placed   bool
}

// GenerateWeek builds the plan for one week. It degrades rather than fails:
// infeasible budgets produce smaller sessions and warnings, and only
// malformed input yields an error.
func GenerateWeek(cfg Config, cat *catalog.Catalog, req Request) (models.WeeklyPlan, error) {
	cfg = cfg.withDefaults()

	if req.Profile.WeeklyHoursTarget <= 0 {
		return models.WeeklyPlan{}, fmt.Errorf("%w: weekly hours target must be positive", ErrMalformedInput)
	}
	if req.WeekNumber <= 0 {
		return models.WeeklyPlan{}, fmt.Errorf("%w: week number must be positive", ErrMalformedInput)
	}

	weekStart := mondayOf(req.WeekStart)
	slots, err := resolveSlots(req.Availability, weekStart)
	if err != nil {
		return models.WeeklyPlan{}, err
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	phase := PhaseFor(weekStart, req.EventDate)
	params := paramsFor(cfg, phase)
	recovery := req.WeekNumber%cfg.RecoveryWeekEvery == 0

	var prior WeekSummary
	if n := len(req.PriorWeeks); n > 0 {
		prior = req.PriorWeeks[n-1]
	}
	baseBudget := baseWeekBudget(cfg, req.Profile, prior)
	budget := baseBudget * params.stressMult
	if recovery {
		budget = baseBudget * cfg.RecoveryMultiplier
	}

	var warnings []models.PlanWarning
	var adjust models.PlanAdjustments

	if len(slots) == 0 {
		warnings = append(warnings, models.PlanWarning{
			Type:     models.WarnInsufficientTime,
			Severity: "warn",
			Message:  "no availability windows declared for this week",
		})
		return assemblePlan(req, weekStart, nil, warnings, adjust, now, cfg), nil
	}

	hitCap := cfg.MaxHITSessions
	if params.hitCap >= 0 && params.hitCap < hitCap {
		hitCap = params.hitCap
	}
	if recovery {
		hitCap = 0
	}

	assignCategories(slots, hitCap, recovery)
	allocateStress(cfg, slots, budget, &warnings, &adjust)

	sessions := placeSessions(cat, slots, &warnings)
	reconcileBudget(cfg, sessions, budget, &warnings, &adjust)
	return assemblePlan(req, weekStart, sessions, warnings, adjust, now, cfg), nil
}

// GenerateHorizon builds consecutive weekly plans from start through the
// given number of weeks, threading ramp-rate continuity between them.
func GenerateHorizon(cfg Config, cat *catalog.Catalog, profile models.AthleteProfile, availability []models.AvailabilityWindow, start time.Time, weeks int, eventDate *time.Time) ([]models.WeeklyPlan, error) {
	cfg = cfg.withDefaults()
	if weeks <= 0 {
		return nil, fmt.Errorf("%w: horizon must cover at least one week", ErrMalformedInput)
	}

	plans := make([]models.WeeklyPlan, 0, weeks)
	var summaries []WeekSummary
	weekStart := mondayOf(start)
	for n := 1; n <= weeks; n++ {
		plan, err := GenerateWeek(cfg, cat, Request{
			Profile:      profile,
			Availability: availability,
			WeekStart:    weekStart,
			WeekNumber:   n,
			EventDate:    eventDate,
			PriorWeeks:   summaries,
		})
		if err != nil {
			return nil, fmt.Errorf("week %d: %w", n, err)
		}
		plans = append(plans, plan)

		var prior WeekSummary
		if len(summaries) > 0 {
			prior = summaries[len(summaries)-1]
		}
		summaries = append(summaries, WeekSummary{
			WeekNumber:  n,
			TotalStress: plan.TotalStress,
			BaseBudget:  baseWeekBudget(cfg, profile, prior),
		})
		weekStart = weekStart.AddDate(0, 0, 7)
	}
	return plans, nil
}

// baseWeekBudget derives this week's stress budget from the athlete's time
// budget, capped by ramp rate against the prior week.
func baseWeekBudget(cfg Config, profile models.AthleteProfile, prior WeekSummary) float64 {
	budget := profile.WeeklyHoursTarget * cfg.StressPerHour
	if prior.BaseBudget > 0 {
		if limit := prior.BaseBudget * (1 + cfg.RampRate); limit < budget {
			budget = limit
		}
	}
	return budget
}

func mondayOf(t time.Time) time.Time {
	t = models.Midnight(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// resolveSlots maps recurring windows onto this week's dates, ordered by
// priority then weekday.
func resolveSlots(windows []models.AvailabilityWindow, weekStart time.Time) ([]*slot, error) {
	slots := make([]*slot, 0, len(windows))
	for _, win := range windows {
		startMin, err := parseClock(win.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: window %s start: %v", ErrMalformedInput, win.Weekday, err)
		}
		endMin, err := parseClock(win.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: window %s end: %v", ErrMalformedInput, win.Weekday, err)
		}
		if endMin <= startMin {
			return nil, fmt.Errorf("%w: window %s ends before it starts", ErrMalformedInput, win.Weekday)
		}
		offset := (int(win.Weekday) + 6) % 7
		slots = append(slots, &slot{
			win:     win,
			date:    weekStart.AddDate(0, 0, offset),
			seconds: (endMin - startMin) * 60,
		})
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].win.Priority != slots[j].win.Priority {
			return slots[i].win.Priority > slots[j].win.Priority
		}
		return slots[i].date.Before(slots[j].date)
	})
	return slots, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// hitDayPreference orders weekdays for hard sessions so they land mid-week
// with recovery room around the weekend long ride.
var hitDayPreference = []time.Weekday{
	time.Tuesday, time.Friday, time.Thursday, time.Saturday,
	time.Wednesday, time.Monday, time.Sunday,
}

// assignCategories marks each slot HIT, LIT or REC. Hard days are spread at
// least two days apart; in a recovery week the longest slot stays LIT and
// the rest spin easy.
func assignCategories(slots []*slot, hitCap int, recovery bool) {
	if recovery {
		longest := 0
		for i, s := range slots {
			if s.seconds > slots[longest].seconds {
				longest = i
			}
			s.category = models.CategoryREC
		}
		slots[longest].category = models.CategoryLIT
		return
	}

	// Leave at least one easy slot so the week mixes intensities.
	if len(slots) > 1 && hitCap > len(slots)-1 {
		hitCap = len(slots) - 1
	}

	var hitDates []time.Time
	for _, wd := range hitDayPreference {
		if len(hitDates) >= hitCap {
			break
		}
		for _, s := range slots {
			if s.category != "" || s.win.Weekday != wd {
				continue
			}
			if len(hitDates) >= hitCap || !spacedFrom(s.date, hitDates, 2) {
				continue
			}
			s.category = models.CategoryHIT
			hitDates = append(hitDates, s.date)
		}
	}

	for _, s := range slots {
		if s.category != "" {
			continue
		}
		if len(slots) >= 4 && dayAfterAny(s.date, hitDates) {
			s.category = models.CategoryREC
		} else {
			s.category = models.CategoryLIT
		}
	}
}

func spacedFrom(date time.Time, others []time.Time, minDays int) bool {
	for _, o := range others {
		gap := math.Abs(date.Sub(o).Hours()) / 24
		if gap < float64(minDays) {
			return false
		}
	}
	return true
}

func dayAfterAny(date time.Time, others []time.Time) bool {
	for _, o := range others {
		if date.Sub(o) == 24*time.Hour {
			return true
		}
	}
	return false
}

// allocateStress distributes the weekly budget across slots: the HIT
// fraction of the budget is split evenly over hard days and the rest is
// spread over easy slots in proportion to their length. Targets above a
// slot's capacity spill into a spare slot when one exists, otherwise the
// excess is dropped with a warning.
func allocateStress(cfg Config, slots []*slot, budget float64, warnings *[]models.PlanWarning, adjust *models.PlanAdjustments) {
	var hitSlots, easySlots []*slot
	for _, s := range slots {
		if s.category == models.CategoryHIT {
			hitSlots = append(hitSlots, s)
		} else {
			easySlots = append(easySlots, s)
		}
	}

	hitBudget := (1 - cfg.LITShare) * budget
	if len(hitSlots) == 0 {
		hitBudget = 0
	}
	for _, s := range hitSlots {
		s.target = hitBudget / float64(len(hitSlots))
		s.placed = true
	}

	easyBudget := budget - hitBudget
	totalWeight := 0.0
	weight := func(s *slot) float64 {
		w := float64(s.seconds)
		if s.category == models.CategoryREC {
			w *= 0.5
		}
		return w
	}
	for _, s := range easySlots {
		totalWeight += weight(s)
	}
	for _, s := range easySlots {
		if totalWeight > 0 {
			s.target = easyBudget * weight(s) / totalWeight
		}
		s.placed = s.target >= cfg.MinSessionStress
	}

	// Spill overflow beyond slot capacity into unused slots.
	var spares []*slot
	for _, s := range easySlots {
		if !s.placed {
			spares = append(spares, s)
		}
	}
	for _, s := range slots {
		if !s.placed {
			continue
		}
		capacity := float64(s.seconds) / 3600 * hourlyCapacity[s.category]
		if s.target <= capacity {
			continue
		}
		overflow := s.target - capacity
		s.target = capacity

		if len(spares) > 0 && overflow >= cfg.MinSessionStress {
			spare := spares[0]
			spares = spares[1:]
			spareCap := float64(spare.seconds) / 3600 * hourlyCapacity[spare.category]
			spare.target = math.Min(overflow, spareCap)
			spare.placed = true
			adjust.SplitSessions++
			*warnings = append(*warnings, models.PlanWarning{
				Type:     models.WarnSplitSession,
				Severity: "info",
				Message: fmt.Sprintf("%s load split across a second slot on %s",
					s.date.Format(models.DateLayout), spare.date.Format(models.DateLayout)),
				Date: spare.date.Format(models.DateLayout),
			})
			overflow -= spare.target
		}
		if overflow > 0.5 {
			adjust.TSSReduced++
			adjust.TotalStressLost += overflow
			*warnings = append(*warnings, models.PlanWarning{
				Type:     models.WarnTSSReduced,
				Severity: "warn",
				Message: fmt.Sprintf("slot on %s cannot absorb %.0f planned stress",
					s.date.Format(models.DateLayout), overflow),
				Date: s.date.Format(models.DateLayout),
			})
		}
	}
}

// reconcileBudget is the final pass over the placed week. Catalog matching
// picks whole templates, so small weeks can end up carrying far more stress
// than allocation asked for. Beyond the configured tolerance, every session
// target is scaled back onto the budget so the ramp cap and recovery
// multiplier hold regardless of template granularity.
func reconcileBudget(cfg Config, sessions []models.ScheduledSession, budget float64, warnings *[]models.PlanWarning, adjust *models.PlanAdjustments) {
	if budget <= 0 || len(sessions) == 0 {
		return
	}
	total := 0.0
	for _, s := range sessions {
		total += s.TargetStress
	}
	if total <= budget*(1+cfg.BudgetTolerance) {
		return
	}

	scale := budget / total
	for i := range sessions {
		sessions[i].TargetStress *= scale
	}
	adjust.TSSReduced += len(sessions)
	adjust.TotalStressLost += total - budget
	*warnings = append(*warnings, models.PlanWarning{
		Type:     models.WarnTSSReduced,
		Severity: "warn",
		Message: fmt.Sprintf("placed workouts total %.0f stress against a %.0f budget; session targets scaled to fit",
			total, budget),
	})
}

// placeSessions matches each placed slot against the catalog and builds the
// scheduled sessions. A slot with no template match is left open rather
// than failing the week.
func placeSessions(cat *catalog.Catalog, slots []*slot, warnings *[]models.PlanWarning) []models.ScheduledSession {
	var sessions []models.ScheduledSession
	for _, s := range slots {
		if !s.placed {
			continue
		}
		indoor := s.win.Location == models.LocationIndoor
		w, ok := cat.BestMatch(s.category, s.seconds, s.target, indoor)
		if !ok {
			*warnings = append(*warnings, models.PlanWarning{
				Type:     models.WarnNoCatalogMatch,
				Severity: "warn",
				Message: fmt.Sprintf("no %s workout fits the %s slot",
					s.category, s.date.Format(models.DateLayout)),
				Date: s.date.Format(models.DateLayout),
			})
			s.placed = false
			continue
		}
		sessions = append(sessions, models.ScheduledSession{
			ID:           uuid.New(),
			Date:         s.date.Format(models.DateLayout),
			Category:     w.Category,
			SubType:      w.SubType,
			DurationSec:  w.DurationSec(),
			TargetStress: w.TargetStress(),
			Indoor:       indoor,
			WorkoutID:    w.ID,
			Description:  w.Name,
			Notes:        w.Description,
			StartTime:    s.win.StartTime,
			EndTime:      s.win.EndTime,
		})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Date < sessions[j].Date })
	return sessions
}

func assemblePlan(req Request, weekStart time.Time, sessions []models.ScheduledSession, warnings []models.PlanWarning, adjust models.PlanAdjustments, now time.Time, cfg Config) models.WeeklyPlan {
	var total, litStress float64
	var hours float64
	hit := 0
	for _, s := range sessions {
		total += s.TargetStress
		hours += float64(s.DurationSec) / 3600
		if s.Category == models.CategoryHIT {
			hit++
		} else {
			litStress += s.TargetStress
		}
	}
	litRatio := 0.0
	if total > 0 {
		litRatio = litStress / total
	}

	year, week := weekStart.ISOWeek()
	return models.WeeklyPlan{
		ID:          fmt.Sprintf("%d-W%02d", year, week),
		AthleteID:   req.Profile.ID,
		WeekStart:   weekStart,
		WeekNumber:  req.WeekNumber,
		Sessions:    sessions,
		TotalStress: total,
		TotalHours:  hours,
		LITRatio:    litRatio,
		HITSessions: hit,
		Quality:     planQuality(cfg, sessions, warnings, adjust, litRatio),
		Generated:   now,
	}
}
