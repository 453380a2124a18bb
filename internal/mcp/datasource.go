package mcp

import (
	"context"
	"time"

	"github.com/claude/veloplan/internal/models"
	"github.com/claude/veloplan/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	GetAthlete(ctx context.Context, athleteID string) (models.AthleteProfile, []models.AvailabilityWindow, error)
	QueryActivities(ctx context.Context, athleteID string, start, end time.Time) ([]models.Activity, error)
	AllActivities(ctx context.Context, athleteID string) ([]models.Activity, error)
	GetLatestPlan(ctx context.Context, athleteID string, weekStart time.Time) (models.WeeklyPlan, error)
	ListPlans(ctx context.Context, athleteID string) ([]models.WeeklyPlan, error)
	GetReadiness(ctx context.Context, athleteID, date string) (models.ReadinessCheck, error)
	ReadinessRange(ctx context.Context, athleteID, start, end string) ([]models.ReadinessCheck, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
