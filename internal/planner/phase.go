package planner

import (
	"time"
)

// Phase is the training macro-cycle a week falls into relative to the
// athlete's target event.
type Phase string

const (
	PhaseBase        Phase = "base"
	PhaseBuild       Phase = "build"
	PhasePeak        Phase = "peak"
	PhaseTaper       Phase = "taper"
	PhaseMaintenance Phase = "maintenance"
)

// Phase boundaries in whole weeks before the event.
const (
	baseCutoffWeeks  = 16
	buildCutoffWeeks = 8
	peakCutoffWeeks  = 3
)

// PhaseFor classifies the week starting at weekStart. Without an event, or
// after it has passed, the athlete is in maintenance.
func PhaseFor(weekStart time.Time, eventDate *time.Time) Phase {
	if eventDate == nil {
		return PhaseMaintenance
	}
	days := int(eventDate.Sub(weekStart).Hours() / 24)
	if days < 0 {
		return PhaseMaintenance
	}
	weeks := days / 7
	switch {
	case weeks > baseCutoffWeeks:
		return PhaseBase
	case weeks > buildCutoffWeeks:
		return PhaseBuild
	case weeks > peakCutoffWeeks:
		return PhasePeak
	default:
		return PhaseTaper
	}
}

// phaseParams tunes the weekly budget and intensity allowance per phase.
// The taper keeps intensity but sheds volume.
type phaseParams struct {
	stressMult float64
	hitCap     int // -1 means use the configured cap
}

func paramsFor(cfg Config, phase Phase) phaseParams {
	switch phase {
	case PhaseBase:
		return phaseParams{stressMult: 1.0, hitCap: 1}
	case PhaseTaper:
		return phaseParams{stressMult: cfg.TaperMultiplier, hitCap: 1}
	default:
		return phaseParams{stressMult: 1.0, hitCap: -1}
	}
}
