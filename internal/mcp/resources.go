package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/veloplan/internal/loadmodel"
	"github.com/claude/veloplan/internal/models"
)

func (h *handlers) trainingStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	today := time.Now().UTC().Format(models.DateLayout)

	summary := map[string]any{"date": today}

	if history, err := h.history(ctx, h.defaultAthlete); err == nil && len(history) > 0 {
		current := history[len(history)-1]
		summary["load"] = current
		summary["zone"] = loadmodel.FormZone(current.Form)
	} else if err != nil {
		h.log.Warn("training_status: load history failed", "error", err)
	}

	if plan, err := h.ds.GetLatestPlan(ctx, h.defaultAthlete, weekStartOf(time.Now().UTC())); err == nil {
		summary["week"] = map[string]any{
			"id":           plan.ID,
			"total_stress": plan.TotalStress,
			"total_hours":  plan.TotalHours,
			"sessions":     len(plan.Sessions),
			"quality":      plan.Quality.Score,
		}
		for _, s := range plan.Sessions {
			if s.Date == today {
				summary["todays_session"] = s
				break
			}
		}
	}

	return jsonContents(req, summary)
}

func (h *handlers) weekPlan(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	plan, err := h.ds.GetLatestPlan(ctx, h.defaultAthlete, weekStartOf(time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	return jsonContents(req, plan)
}

func (h *handlers) workoutCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(req, h.catalog.All())
}

func jsonContents(req mcp.ReadResourceRequest, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
