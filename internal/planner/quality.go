package planner

import (
	"math"
	"time"

	"github.com/claude/veloplan/internal/models"
)

// Quality factor weights. Slot placement dominates because an unfillable
// week is worse than a skewed intensity mix.
const (
	slotMatchWeight    = 0.4
	distributionWeight = 0.3
	recoveryWeight     = 0.3
)

// planQuality scores the assembled week in [0,1] from three factors: how
// many intended slots were actually filled, how close the intensity mix is
// to the polarized target, and whether hard days leave room to recover.
func planQuality(cfg Config, sessions []models.ScheduledSession, warnings []models.PlanWarning, adjust models.PlanAdjustments, litRatio float64) models.PlanQuality {
	factors := models.PlanFactors{
		TimeSlotMatch:        slotMatchFactor(sessions, warnings),
		TrainingDistribution: distributionFactor(cfg, sessions, litRatio),
		RecoveryAdequacy:     recoveryFactor(sessions),
	}
	score := slotMatchWeight*factors.TimeSlotMatch +
		distributionWeight*factors.TrainingDistribution +
		recoveryWeight*factors.RecoveryAdequacy
	return models.PlanQuality{
		Score:       clamp01(score),
		Warnings:    warnings,
		Adjustments: adjust,
		Factors:     factors,
	}
}

func slotMatchFactor(sessions []models.ScheduledSession, warnings []models.PlanWarning) float64 {
	misses := 0
	for _, w := range warnings {
		switch w.Type {
		case models.WarnNoCatalogMatch, models.WarnInsufficientTime:
			misses++
		}
	}
	attempted := len(sessions) + misses
	if attempted == 0 {
		return 0
	}
	return float64(len(sessions)) / float64(attempted)
}

func distributionFactor(cfg Config, sessions []models.ScheduledSession, litRatio float64) float64 {
	if len(sessions) == 0 {
		return 0
	}
	return clamp01(1 - math.Abs(litRatio-cfg.LITShare)/cfg.LITShare)
}

// recoveryFactor penalizes hard days scheduled back to back and weeks with
// no full rest day.
func recoveryFactor(sessions []models.ScheduledSession) float64 {
	if len(sessions) == 0 {
		return 1
	}
	factor := 1.0

	var hitDates []time.Time
	busy := map[string]bool{}
	for _, s := range sessions {
		busy[s.Date] = true
		if s.Category != models.CategoryHIT {
			continue
		}
		d, err := time.Parse(models.DateLayout, s.Date)
		if err != nil {
			continue
		}
		hitDates = append(hitDates, d)
	}
	for i := 0; i < len(hitDates); i++ {
		for j := i + 1; j < len(hitDates); j++ {
			gap := math.Abs(hitDates[i].Sub(hitDates[j]).Hours()) / 24
			if gap < 2 {
				factor -= 0.4
			}
		}
	}
	if len(busy) >= 7 {
		factor -= 0.3
	}
	return clamp01(factor)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
