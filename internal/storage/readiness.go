package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/claude/veloplan/internal/models"
)

// UpsertReadiness stores one self-report, replacing any earlier report for
// the same athlete and day.
func (db *DB) UpsertReadiness(ctx context.Context, r models.ReadinessCheck) error {
	day, err := time.Parse(models.DateLayout, r.Date)
	if err != nil {
		return fmt.Errorf("parsing readiness date: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO readiness_checks (athlete_id, date, sleep_quality, fatigue,
		 motivation, soreness, stress, score, notes, submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (athlete_id, date) DO UPDATE SET
		   sleep_quality = EXCLUDED.sleep_quality,
		   fatigue = EXCLUDED.fatigue,
		   motivation = EXCLUDED.motivation,
		   soreness = EXCLUDED.soreness,
		   stress = EXCLUDED.stress,
		   score = EXCLUDED.score,
		   notes = EXCLUDED.notes,
		   submitted_at = EXCLUDED.submitted_at`,
		r.AthleteID, day, r.SleepQuality, r.Fatigue,
		r.Motivation, r.Soreness, r.Stress, r.Score, r.Notes, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("upserting readiness: %w", err)
	}
	return nil
}

// GetReadiness loads the self-report for one athlete and day.
func (db *DB) GetReadiness(ctx context.Context, athleteID, date string) (models.ReadinessCheck, error) {
	var (
		r   models.ReadinessCheck
		day time.Time
	)
	err := db.Pool.QueryRow(ctx,
		`SELECT athlete_id, date, sleep_quality, fatigue, motivation, soreness,
		 stress, score, notes, submitted_at
		 FROM readiness_checks WHERE athlete_id = $1 AND date = $2`,
		athleteID, date).
		Scan(&r.AthleteID, &day, &r.SleepQuality, &r.Fatigue, &r.Motivation,
			&r.Soreness, &r.Stress, &r.Score, &r.Notes, &r.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, fmt.Errorf("readiness %s/%s: %w", athleteID, date, ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("querying readiness: %w", err)
	}
	r.Date = day.Format(models.DateLayout)
	return r, nil
}

// ReadinessRange retrieves an athlete's self-reports in [start, end],
// oldest first. Bounds are day-granularity dates.
func (db *DB) ReadinessRange(ctx context.Context, athleteID, start, end string) ([]models.ReadinessCheck, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT athlete_id, date, sleep_quality, fatigue, motivation, soreness,
		 stress, score, notes, submitted_at
		 FROM readiness_checks
		 WHERE athlete_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date ASC`,
		athleteID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying readiness range: %w", err)
	}
	defer rows.Close()

	var out []models.ReadinessCheck
	for rows.Next() {
		var (
			r   models.ReadinessCheck
			day time.Time
		)
		if err := rows.Scan(&r.AthleteID, &day, &r.SleepQuality, &r.Fatigue,
			&r.Motivation, &r.Soreness, &r.Stress, &r.Score, &r.Notes,
			&r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scanning readiness: %w", err)
		}
		r.Date = day.Format(models.DateLayout)
		out = append(out, r)
	}
	return out, rows.Err()
}
