// Package catalog holds the workout template library. Templates are YAML
// files compiled into the binary; each one describes a structured session as
// a list of segments with intensities relative to threshold power, so the
// planned stress of any template follows from its structure.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/claude/veloplan/internal/models"
)

//go:embed workouts/*.yaml
var workoutsFS embed.FS

// Workout is one template from the library.
type Workout struct {
	ID          string                 `yaml:"id"`
	Name        string                 `yaml:"name"`
	Category    models.SessionCategory `yaml:"category"`
	SubType     string                 `yaml:"sub_type"`
	Description string                 `yaml:"description"`
	Indoor      bool                   `yaml:"indoor"`
	Outdoor     bool                   `yaml:"outdoor"`
	Difficulty  int                    `yaml:"difficulty"` // 1 easiest to 5 hardest
	Tags        []string               `yaml:"tags"`
	Segments    segmentList            `yaml:"segments"`
}

// DurationSec is the total length of the workout.
func (w Workout) DurationSec() int {
	total := 0
	for _, s := range w.Segments {
		total += s.DurationSec()
	}
	return total
}

// TargetStress is the planned stress of the full workout.
func (w Workout) TargetStress() float64 {
	total := 0.0
	for _, s := range w.Segments {
		total += s.Stress()
	}
	return total
}

// SuitableFor reports whether the workout can be ridden at the given
// location.
func (w Workout) SuitableFor(indoor bool) bool {
	if indoor {
		return w.Indoor
	}
	return w.Outdoor
}

type workoutFile struct {
	Workouts []Workout `yaml:"workouts"`
}

// Catalog is an immutable, loaded workout library.
type Catalog struct {
	workouts []Workout
	byID     map[string]Workout
}

// Load reads every workout file under workouts/ in the given filesystem.
func Load(fsys fs.FS) (*Catalog, error) {
	entries, err := fs.Glob(fsys, "workouts/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob workout files: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no workout files found")
	}
	sort.Strings(entries)

	c := &Catalog{byID: make(map[string]Workout)}
	for _, path := range entries {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file workoutFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for _, w := range file.Workouts {
			if err := validateWorkout(w); err != nil {
				return nil, fmt.Errorf("%s: workout %q: %w", path, w.ID, err)
			}
			if _, dup := c.byID[w.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate workout id %q", path, w.ID)
			}
			c.byID[w.ID] = w
			c.workouts = append(c.workouts, w)
		}
	}
	return c, nil
}

// Default loads the built-in library.
func Default() (*Catalog, error) {
	return Load(workoutsFS)
}

func validateWorkout(w Workout) error {
	if w.ID == "" {
		return fmt.Errorf("missing id")
	}
	switch w.Category {
	case models.CategoryHIT, models.CategoryLIT, models.CategoryREC:
	default:
		return fmt.Errorf("unknown category %q", w.Category)
	}
	if len(w.Segments) == 0 {
		return fmt.Errorf("no segments")
	}
	if w.Difficulty < 1 || w.Difficulty > 5 {
		return fmt.Errorf("difficulty %d outside 1-5", w.Difficulty)
	}
	if !w.Indoor && !w.Outdoor {
		return fmt.Errorf("suitable for neither indoor nor outdoor")
	}
	return nil
}

// All returns every workout in load order.
func (c *Catalog) All() []Workout {
	out := make([]Workout, len(c.workouts))
	copy(out, c.workouts)
	return out
}

// Get looks a workout up by id.
func (c *Catalog) Get(id string) (Workout, bool) {
	w, ok := c.byID[id]
	return w, ok
}

// ByCategory returns the workouts in one training category.
func (c *Catalog) ByCategory(cat models.SessionCategory) []Workout {
	var out []Workout
	for _, w := range c.workouts {
		if w.Category == cat {
			out = append(out, w)
		}
	}
	return out
}

// Search windows, as fractions of the available slot. The primary window
// prefers workouts that fill most of the slot without overrunning much; the
// relaxed window is tried only when the primary finds nothing.
const (
	primaryWindowLo = 0.7
	primaryWindowHi = 1.1
	relaxedWindowLo = 0.5
	relaxedWindowHi = 1.5
)

// Match weighting: hitting the stress target matters more than exactly
// filling the slot.
const (
	stressWeight   = 0.6
	durationWeight = 0.4
)

// BestMatch finds the template closest to the wanted category, slot length
// and stress target at the given location. It searches a tight duration
// window first and widens once before giving up.
func (c *Catalog) BestMatch(cat models.SessionCategory, slotSec int, targetStress float64, indoor bool) (Workout, bool) {
	if w, ok := c.bestInWindow(cat, slotSec, targetStress, indoor, primaryWindowLo, primaryWindowHi); ok {
		return w, true
	}
	return c.bestInWindow(cat, slotSec, targetStress, indoor, relaxedWindowLo, relaxedWindowHi)
}

func (c *Catalog) bestInWindow(cat models.SessionCategory, slotSec int, targetStress float64, indoor bool, lo, hi float64) (Workout, bool) {
	var (
		best      Workout
		bestScore = math.Inf(1)
		found     bool
	)
	for _, w := range c.workouts {
		if w.Category != cat || !w.SuitableFor(indoor) {
			continue
		}
		dur := float64(w.DurationSec())
		slot := float64(slotSec)
		if dur < lo*slot || dur > hi*slot {
			continue
		}
		score := matchScore(w.TargetStress(), targetStress, dur, slot)
		if score < bestScore {
			best, bestScore, found = w, score, true
		}
	}
	return best, found
}

func matchScore(stress, targetStress, dur, slot float64) float64 {
	stressDiff := 0.0
	if targetStress > 0 {
		stressDiff = math.Abs(stress-targetStress) / targetStress
	}
	durDiff := 0.0
	if slot > 0 {
		durDiff = math.Abs(dur-slot) / slot
	}
	return stressWeight*stressDiff + durationWeight*durDiff
}
