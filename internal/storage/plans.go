package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/claude/veloplan/internal/models"
)

// SavePlan stores a generated week as a whole document. Regeneration inserts
// a new version under the same athlete and week start; earlier versions stay.
func (db *DB) SavePlan(ctx context.Context, p models.WeeklyPlan) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO plans (athlete_id, week_start, generated, doc)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT DO NOTHING`,
		p.AthleteID, p.WeekStart, p.Generated, doc)
	if err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}
	return nil
}

// GetLatestPlan loads the newest version of an athlete's plan for a week.
func (db *DB) GetLatestPlan(ctx context.Context, athleteID string, weekStart time.Time) (models.WeeklyPlan, error) {
	var (
		p   models.WeeklyPlan
		doc []byte
	)
	err := db.Pool.QueryRow(ctx,
		`SELECT doc FROM plans
		 WHERE athlete_id = $1 AND week_start = $2
		 ORDER BY generated DESC LIMIT 1`,
		athleteID, weekStart).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, fmt.Errorf("plan %s/%s: %w", athleteID, weekStart.Format(models.DateLayout), ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("querying plan: %w", err)
	}
	if err := json.Unmarshal(doc, &p); err != nil {
		return p, fmt.Errorf("decoding plan: %w", err)
	}
	return p, nil
}

// ListPlans retrieves the newest version of each of an athlete's plans,
// oldest week first.
func (db *DB) ListPlans(ctx context.Context, athleteID string) ([]models.WeeklyPlan, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT DISTINCT ON (week_start) doc FROM plans
		 WHERE athlete_id = $1
		 ORDER BY week_start ASC, generated DESC`,
		athleteID)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	var out []models.WeeklyPlan
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		var p models.WeeklyPlan
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decoding plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
