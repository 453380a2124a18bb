package importer

import (
	"sort"
	"time"

	"github.com/claude/veloplan/internal/ingest"
)

// mergeDuplicates collapses export entries that describe the same activity.
// Overlapping exports are common when a head unit and a phone both record a
// ride: the entries share a start time but each carries only part of the
// data. The entry with power data wins; any signal it is missing is filled
// from the losing entry.
func mergeDuplicates(entries []ingest.RawActivity) []ingest.RawActivity {
	byStart := make(map[time.Time]int)
	merged := make([]ingest.RawActivity, 0, len(entries))

	for _, e := range entries {
		key := e.StartTime.UTC().Truncate(time.Minute)
		idx, seen := byStart[key]
		if !seen {
			byStart[key] = len(merged)
			merged = append(merged, e)
			continue
		}
		merged[idx] = mergePair(merged[idx], e)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].StartTime.Before(merged[j].StartTime)
	})
	return merged
}

// mergePair combines two entries for the same start time. The one carrying
// power data is the base; gaps in the base are filled from the other.
func mergePair(a, b ingest.RawActivity) ingest.RawActivity {
	base, other := a, b
	if !hasPower(a) && hasPower(b) {
		base, other = b, a
	}
	if base.AvgPower == nil {
		base.AvgPower = other.AvgPower
	}
	if base.NormalizedPower == nil {
		base.NormalizedPower = other.NormalizedPower
	}
	if base.AvgHeartRate == nil {
		base.AvgHeartRate = other.AvgHeartRate
	}
	if base.PerceivedEffort == nil {
		base.PerceivedEffort = other.PerceivedEffort
	}
	if len(base.Duration) == 0 {
		base.Duration = other.Duration
	}
	return base
}

func hasPower(e ingest.RawActivity) bool {
	return e.NormalizedPower != nil || e.AvgPower != nil
}
