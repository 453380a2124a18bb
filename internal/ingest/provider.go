// Package ingest turns raw activity payloads into scored, stored activities.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/claude/veloplan/internal/storage"
	"github.com/claude/veloplan/internal/stress"
)

// Result holds the outcome of an ingest operation.
type Result struct {
	Received      int      `json:"received"`
	Inserted      int      `json:"inserted"`
	Skipped       int      `json:"skipped"` // duplicates
	Rejected      int      `json:"rejected"`
	RejectedInfo  []string `json:"rejected_info,omitempty"`
	LowConfidence int      `json:"low_confidence"`
	TotalStress   float64  `json:"total_stress"`
	Message       string   `json:"message,omitempty"`
}

// Provider scores and stores incoming activities.
type Provider struct {
	db  *storage.DB
	log *slog.Logger
}

// NewProvider creates an ingest provider.
func NewProvider(db *storage.DB, log *slog.Logger) *Provider {
	return &Provider{db: db, log: log}
}

// Ingest processes one payload. Rejected entries are counted and reported,
// they never abort the batch.
func (p *Provider) Ingest(ctx context.Context, payload *Payload) (*Result, error) {
	if payload.AthleteID == "" {
		return nil, fmt.Errorf("athlete_id required")
	}

	profile, _, err := p.db.GetAthlete(ctx, payload.AthleteID)
	if err != nil {
		return nil, fmt.Errorf("loading athlete: %w", err)
	}
	refs := stress.References{FTPWatts: profile.FTPWatts, LTHRBpm: profile.LTHRBpm}

	result := &Result{Received: len(payload.Activities)}
	for i, raw := range payload.Activities {
		a, err := raw.ToActivity(payload.AthleteID)
		if err != nil {
			result.Rejected++
			result.RejectedInfo = append(result.RejectedInfo, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}

		scored, err := stress.Score(stress.Input{
			DurationSec:     a.DurationSec,
			NormalizedPower: a.NormalizedPower,
			AvgPower:        a.AvgPower,
			AvgHeartRate:    a.AvgHeartRate,
			PerceivedEffort: a.PerceivedEffort,
		}, refs)
		if err != nil {
			result.Rejected++
			result.RejectedInfo = append(result.RejectedInfo, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		a.StressScore = scored.Score
		a.LowConfidence = scored.LowConfidence
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}

		inserted, err := p.db.InsertActivity(ctx, a)
		if err != nil {
			return result, fmt.Errorf("inserting activity %d: %w", i, err)
		}
		if !inserted {
			result.Skipped++
			continue
		}
		result.Inserted++
		result.TotalStress += scored.Score
		if scored.LowConfidence {
			result.LowConfidence++
		}
	}

	p.log.Info("ingest complete",
		"athlete", payload.AthleteID,
		"received", result.Received,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"rejected", result.Rejected,
	)
	return result, nil
}
