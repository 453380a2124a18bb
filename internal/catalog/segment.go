package catalog

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/claude/veloplan/internal/stress"
)

// SegmentKind names the fixed set of workout segment shapes.
type SegmentKind string

const (
	SegmentWarmup    SegmentKind = "warmup"
	SegmentSteady    SegmentKind = "steady"
	SegmentIntervals SegmentKind = "intervals"
	SegmentCooldown  SegmentKind = "cooldown"
)

// Segment is one block of a workout. The set of implementations is closed:
// steady blocks (warmup, steady, cooldown) and interval sets.
type Segment interface {
	Kind() SegmentKind
	DurationSec() int
	// Stress is the segment's planned training stress, derived from its
	// duration and intensity relative to threshold power.
	Stress() float64

	sealed()
}

// SteadyBlock is a continuous effort at a single intensity. It covers
// warmups, steady riding, and cooldowns.
type SteadyBlock struct {
	BlockKind SegmentKind
	Seconds   int
	// Intensity is the target as a fraction of FTP, e.g. 0.65 for
	// endurance pace.
	Intensity float64
}

func (s SteadyBlock) Kind() SegmentKind { return s.BlockKind }
func (s SteadyBlock) DurationSec() int  { return s.Seconds }
func (s SteadyBlock) Stress() float64 {
	return stress.PlannedScore(float64(s.Seconds), s.Intensity)
}
func (s SteadyBlock) sealed() {}

// IntervalSet is repeated work/recovery pairs, e.g. 5x3min at 1.15 with
// 3min easy between.
type IntervalSet struct {
	Reps          int
	WorkSec       int
	WorkIntensity float64
	RestSec       int
	RestIntensity float64
}

func (s IntervalSet) Kind() SegmentKind { return SegmentIntervals }
func (s IntervalSet) DurationSec() int {
	return s.Reps * (s.WorkSec + s.RestSec)
}
func (s IntervalSet) Stress() float64 {
	work := stress.PlannedScore(float64(s.WorkSec), s.WorkIntensity)
	rest := stress.PlannedScore(float64(s.RestSec), s.RestIntensity)
	return float64(s.Reps) * (work + rest)
}
func (s IntervalSet) sealed() {}

// yamlSegment is the on-disk shape of a segment. Durations are minutes in
// the files for readability.
type yamlSegment struct {
	Kind          string  `yaml:"kind"`
	DurationMin   float64 `yaml:"duration_min"`
	Intensity     float64 `yaml:"intensity"`
	Reps          int     `yaml:"reps"`
	WorkMin       float64 `yaml:"work_min"`
	WorkIntensity float64 `yaml:"work_intensity"`
	RestMin       float64 `yaml:"rest_min"`
	RestIntensity float64 `yaml:"rest_intensity"`
}

func (y yamlSegment) toSegment() (Segment, error) {
	switch SegmentKind(y.Kind) {
	case SegmentWarmup, SegmentSteady, SegmentCooldown:
		if y.DurationMin <= 0 || y.Intensity <= 0 {
			return nil, fmt.Errorf("%s segment needs positive duration_min and intensity", y.Kind)
		}
		return SteadyBlock{
			BlockKind: SegmentKind(y.Kind),
			Seconds:   int(y.DurationMin * 60),
			Intensity: y.Intensity,
		}, nil
	case SegmentIntervals:
		if y.Reps <= 0 || y.WorkMin <= 0 || y.WorkIntensity <= 0 {
			return nil, fmt.Errorf("intervals segment needs positive reps, work_min and work_intensity")
		}
		return IntervalSet{
			Reps:          y.Reps,
			WorkSec:       int(y.WorkMin * 60),
			WorkIntensity: y.WorkIntensity,
			RestSec:       int(y.RestMin * 60),
			RestIntensity: y.RestIntensity,
		}, nil
	default:
		return nil, fmt.Errorf("unknown segment kind %q", y.Kind)
	}
}

// jsonSegment is the wire shape of a segment, discriminated by kind.
// Durations are seconds on the wire, matching the rest of the API.
type jsonSegment struct {
	Kind          SegmentKind `json:"kind"`
	DurationSec   int         `json:"duration_sec,omitempty"`
	Intensity     float64     `json:"intensity,omitempty"`
	Reps          int         `json:"reps,omitempty"`
	WorkSec       int         `json:"work_sec,omitempty"`
	WorkIntensity float64     `json:"work_intensity,omitempty"`
	RestSec       int         `json:"rest_sec,omitempty"`
	RestIntensity float64     `json:"rest_intensity,omitempty"`
}

func (j jsonSegment) toSegment() (Segment, error) {
	switch j.Kind {
	case SegmentWarmup, SegmentSteady, SegmentCooldown:
		if j.DurationSec <= 0 || j.Intensity <= 0 {
			return nil, fmt.Errorf("%s segment needs positive duration_sec and intensity", j.Kind)
		}
		return SteadyBlock{
			BlockKind: j.Kind,
			Seconds:   j.DurationSec,
			Intensity: j.Intensity,
		}, nil
	case SegmentIntervals:
		if j.Reps <= 0 || j.WorkSec <= 0 || j.WorkIntensity <= 0 {
			return nil, fmt.Errorf("intervals segment needs positive reps, work_sec and work_intensity")
		}
		return IntervalSet{
			Reps:          j.Reps,
			WorkSec:       j.WorkSec,
			WorkIntensity: j.WorkIntensity,
			RestSec:       j.RestSec,
			RestIntensity: j.RestIntensity,
		}, nil
	default:
		return nil, fmt.Errorf("unknown segment kind %q", j.Kind)
	}
}

// segmentList decodes a YAML sequence of mixed segment shapes.
type segmentList []Segment

func (l segmentList) MarshalJSON() ([]byte, error) {
	out := make([]jsonSegment, 0, len(l))
	for _, s := range l {
		switch seg := s.(type) {
		case SteadyBlock:
			out = append(out, jsonSegment{
				Kind:        seg.BlockKind,
				DurationSec: seg.Seconds,
				Intensity:   seg.Intensity,
			})
		case IntervalSet:
			out = append(out, jsonSegment{
				Kind:          SegmentIntervals,
				Reps:          seg.Reps,
				WorkSec:       seg.WorkSec,
				WorkIntensity: seg.WorkIntensity,
				RestSec:       seg.RestSec,
				RestIntensity: seg.RestIntensity,
			})
		default:
			return nil, fmt.Errorf("unknown segment type %T", s)
		}
	}
	return json.Marshal(out)
}

func (l *segmentList) UnmarshalJSON(data []byte) error {
	var raw []jsonSegment
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	segs := make([]Segment, 0, len(raw))
	for i, j := range raw {
		seg, err := j.toSegment()
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		segs = append(segs, seg)
	}
	*l = segs
	return nil
}

func (l *segmentList) UnmarshalYAML(node *yaml.Node) error {
	var raw []yamlSegment
	if err := node.Decode(&raw); err != nil {
		return err
	}
	segs := make([]Segment, 0, len(raw))
	for i, y := range raw {
		seg, err := y.toSegment()
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		segs = append(segs, seg)
	}
	*l = segs
	return nil
}
