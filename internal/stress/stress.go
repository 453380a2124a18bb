// Package stress converts one completed activity into a normalized training
// stress score (TSS). It selects the highest-fidelity method the available
// data supports, cascading power -> heart rate -> perceived effort, and never
// fails on missing data: when no method is viable it returns a zero score
// flagged as low confidence.
package stress

import (
	"errors"
	"fmt"
)

// Method identifies which signal a score was derived from.
type Method string

const (
	MethodPower     Method = "power"
	MethodHeartRate Method = "heart_rate"
	MethodRPE       Method = "rpe"
	MethodNone      Method = "none"
)

// ErrMalformedInput marks inputs rejected outright (non-positive duration,
// out-of-range perceived effort). Missing data is not malformed; it cascades.
var ErrMalformedInput = errors.New("malformed stress input")

const (
	secondsPerHour = 3600.0

	// npFromAvgFactor estimates normalized power from average power for
	// steady efforts (NP typically runs 3-5% above average).
	npFromAvgFactor = 1.05

	// rpeScale maps session-RPE load (minutes x RPE) onto the TSS scale.
	// An hour at RPE 5 scores 60, close to a moderate endurance ride.
	rpeScale = 0.2
)

// Input is one activity's measurable signals. All signals are optional.
type Input struct {
	DurationSec     float64
	NormalizedPower *float64 // watts
	AvgPower        *float64 // watts, used to estimate NP when NP is absent
	AvgHeartRate    *float64 // bpm
	PerceivedEffort *float64 // RPE on a 1-10 scale
}

// References are the athlete's threshold values. Either may be absent, which
// forces a fallback to the next scoring method.
type References struct {
	FTPWatts *float64
	LTHRBpm  *float64
}

// Result is a computed stress score with its provenance.
type Result struct {
	Score         float64 `json:"score"`
	Method        Method  `json:"method"`
	LowConfidence bool    `json:"low_confidence"`
}

// Score computes the training stress score for one activity. It tries the
// power method first, then heart rate, then perceived effort. When no method
// has usable inputs the result is zero with LowConfidence set; only truly
// malformed input yields an error.
func Score(in Input, refs References) (Result, error) {
	if in.DurationSec <= 0 {
		return Result{}, fmt.Errorf("%w: duration must be positive, got %.0fs", ErrMalformedInput, in.DurationSec)
	}
	if in.PerceivedEffort != nil && (*in.PerceivedEffort < 1 || *in.PerceivedEffort > 10) {
		return Result{}, fmt.Errorf("%w: perceived effort %.1f outside 1-10", ErrMalformedInput, *in.PerceivedEffort)
	}

	if np, ok := normalizedPower(in); ok && refValid(refs.FTPWatts) {
		return Result{Score: powerScore(in.DurationSec, np, *refs.FTPWatts), Method: MethodPower}, nil
	}

	if in.AvgHeartRate != nil && *in.AvgHeartRate > 0 && refValid(refs.LTHRBpm) {
		return Result{Score: heartRateScore(in.DurationSec, *in.AvgHeartRate, *refs.LTHRBpm), Method: MethodHeartRate}, nil
	}

	if in.PerceivedEffort != nil {
		return Result{Score: rpeScore(in.DurationSec, *in.PerceivedEffort), Method: MethodRPE}, nil
	}

	return Result{Score: 0, Method: MethodNone, LowConfidence: true}, nil
}

func refValid(ref *float64) bool {
	return ref != nil && *ref > 0
}

// normalizedPower returns the activity's NP, estimating it from average power
// when only that is available.
func normalizedPower(in Input) (float64, bool) {
	if in.NormalizedPower != nil && *in.NormalizedPower > 0 {
		return *in.NormalizedPower, true
	}
	if in.AvgPower != nil && *in.AvgPower > 0 {
		return EstimateNormalizedPower(*in.AvgPower), true
	}
	return 0, false
}

// powerScore implements TSS = (durationSec * NP * IF) / (FTP * 3600) * 100
// with IF = NP / FTP.
func powerScore(durationSec, np, ftp float64) float64 {
	intensity := np / ftp
	return (durationSec * np * intensity) / (ftp * secondsPerHour) * 100
}

// heartRateScore approximates intensity from average HR relative to lactate
// threshold HR: HRSS = hours * (avgHR/LTHR)^2 * 100.
func heartRateScore(durationSec, avgHR, lthr float64) float64 {
	ratio := avgHR / lthr
	return durationSec / secondsPerHour * ratio * ratio * 100
}

// rpeScore is session-RPE load scaled to the TSS range:
// minutes * RPE * rpeScale. Used only when no objective signal exists.
func rpeScore(durationSec, rpe float64) float64 {
	return durationSec / 60 * rpe * rpeScale
}

// EstimateNormalizedPower approximates NP from average power using a
// conservative 5% uplift.
func EstimateNormalizedPower(avgPower float64) float64 {
	return avgPower * npFromAvgFactor
}

// IntensityFactor returns NP/FTP, or 0 when FTP is not positive.
func IntensityFactor(np, ftp float64) float64 {
	if ftp <= 0 {
		return 0
	}
	return np / ftp
}

// PlannedScore estimates the stress of a planned effort held at a fixed
// fraction of threshold power. Because intensity is already relative to FTP
// the athlete's absolute FTP cancels out:
// TSS = durationSec * intensity^2 / 3600 * 100.
func PlannedScore(durationSec, intensityOfFTP float64) float64 {
	return durationSec * intensityOfFTP * intensityOfFTP / secondsPerHour * 100
}
