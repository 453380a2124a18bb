package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/claude/veloplan/internal/models"
)

// InsertActivity inserts one scored activity. Returns true if inserted,
// false if the id was already present.
func (db *DB) InsertActivity(ctx context.Context, a models.Activity) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO activities (id, athlete_id, start_time, duration_sec,
		 avg_power, normalized_power, avg_heart_rate, perceived_effort,
		 stress_score, low_confidence, indoor, source)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT DO NOTHING`,
		a.ID, a.AthleteID, a.StartTime, a.DurationSec,
		a.AvgPower, a.NormalizedPower, a.AvgHeartRate, a.PerceivedEffort,
		a.StressScore, a.LowConfidence, a.Indoor, a.Source)
	if err != nil {
		return false, fmt.Errorf("inserting activity: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// QueryActivities retrieves an athlete's activities in a time range, oldest
// first.
func (db *DB) QueryActivities(ctx context.Context, athleteID string, start, end time.Time) ([]models.Activity, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, athlete_id, start_time, duration_sec,
		 avg_power, normalized_power, avg_heart_rate, perceived_effort,
		 stress_score, low_confidence, indoor, source
		 FROM activities
		 WHERE athlete_id = $1 AND start_time >= $2 AND start_time < $3
		 ORDER BY start_time ASC`,
		athleteID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// AllActivities retrieves every activity for an athlete, oldest first.
func (db *DB) AllActivities(ctx context.Context, athleteID string) ([]models.Activity, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, athlete_id, start_time, duration_sec,
		 avg_power, normalized_power, avg_heart_rate, perceived_effort,
		 stress_score, low_confidence, indoor, source
		 FROM activities
		 WHERE athlete_id = $1
		 ORDER BY start_time ASC`,
		athleteID)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

func scanActivities(rows pgx.Rows) ([]models.Activity, error) {
	var out []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.AthleteID, &a.StartTime, &a.DurationSec,
			&a.AvgPower, &a.NormalizedPower, &a.AvgHeartRate, &a.PerceivedEffort,
			&a.StressScore, &a.LowConfidence, &a.Indoor, &a.Source); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
