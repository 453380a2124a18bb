package catalog

import (
	"math/rand"

	"github.com/claude/veloplan/internal/models"
)

// Criteria filters the library. Zero-valued fields do not filter.
type Criteria struct {
	Category       models.SessionCategory
	MinDurationSec int
	MaxDurationSec int
	MinStress      float64
	MaxStress      float64
	IndoorOnly     bool
	OutdoorOnly    bool
	Difficulties   []int
	// RequiredTags must all be present on a workout for it to match.
	RequiredTags []string
}

func (cr Criteria) matches(w Workout) bool {
	if cr.Category != "" && w.Category != cr.Category {
		return false
	}
	dur := w.DurationSec()
	if cr.MinDurationSec > 0 && dur < cr.MinDurationSec {
		return false
	}
	if cr.MaxDurationSec > 0 && dur > cr.MaxDurationSec {
		return false
	}
	stress := w.TargetStress()
	if cr.MinStress > 0 && stress < cr.MinStress {
		return false
	}
	if cr.MaxStress > 0 && stress > cr.MaxStress {
		return false
	}
	if cr.IndoorOnly && !w.Indoor {
		return false
	}
	if cr.OutdoorOnly && !w.Outdoor {
		return false
	}
	if len(cr.Difficulties) > 0 {
		ok := false
		for _, d := range cr.Difficulties {
			if w.Difficulty == d {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, tag := range cr.RequiredTags {
		if !hasTag(w, tag) {
			return false
		}
	}
	return true
}

func hasTag(w Workout, tag string) bool {
	for _, t := range w.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Find returns every workout matching the criteria, in library order.
func (c *Catalog) Find(cr Criteria) []Workout {
	var out []Workout
	for _, w := range c.workouts {
		if cr.matches(w) {
			out = append(out, w)
		}
	}
	return out
}

// PickRandom draws one matching workout uniformly using the given source.
// An empty result set is reported via ok=false, not an error.
func (c *Catalog) PickRandom(cr Criteria, rng *rand.Rand) (Workout, bool) {
	matched := c.Find(cr)
	if len(matched) == 0 {
		return Workout{}, false
	}
	return matched[rng.Intn(len(matched))], true
}
