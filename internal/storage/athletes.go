package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/claude/veloplan/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// UpsertAthlete creates or replaces an athlete profile and its availability
// windows.
func (db *DB) UpsertAthlete(ctx context.Context, a models.AthleteProfile, availability []models.AvailabilityWindow) error {
	if availability == nil {
		availability = []models.AvailabilityWindow{}
	}
	avail, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("encoding availability: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO athletes (id, ftp_watts, lthr_bpm, weekly_hours, indoor_allowed, availability, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,now())
		 ON CONFLICT (id) DO UPDATE SET
		   ftp_watts = EXCLUDED.ftp_watts,
		   lthr_bpm = EXCLUDED.lthr_bpm,
		   weekly_hours = EXCLUDED.weekly_hours,
		   indoor_allowed = EXCLUDED.indoor_allowed,
		   availability = EXCLUDED.availability,
		   updated_at = now()`,
		a.ID, a.FTPWatts, a.LTHRBpm, a.WeeklyHoursTarget, a.IndoorAllowed, avail)
	if err != nil {
		return fmt.Errorf("upserting athlete: %w", err)
	}
	return nil
}

// GetAthlete loads a profile and its availability windows.
func (db *DB) GetAthlete(ctx context.Context, id string) (models.AthleteProfile, []models.AvailabilityWindow, error) {
	var (
		a     models.AthleteProfile
		avail []byte
	)
	err := db.Pool.QueryRow(ctx,
		`SELECT id, ftp_watts, lthr_bpm, weekly_hours, indoor_allowed, availability
		 FROM athletes WHERE id = $1`, id).
		Scan(&a.ID, &a.FTPWatts, &a.LTHRBpm, &a.WeeklyHoursTarget, &a.IndoorAllowed, &avail)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, nil, fmt.Errorf("athlete %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return a, nil, fmt.Errorf("querying athlete: %w", err)
	}

	var windows []models.AvailabilityWindow
	if err := json.Unmarshal(avail, &windows); err != nil {
		return a, nil, fmt.Errorf("decoding availability: %w", err)
	}
	return a, windows, nil
}
