package mcp

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/veloplan/internal/adapter"
	"github.com/claude/veloplan/internal/catalog"
	"github.com/claude/veloplan/internal/compliance"
	"github.com/claude/veloplan/internal/loadmodel"
	"github.com/claude/veloplan/internal/models"
)

// defaultTimeRange returns start/end defaulting to the last 28 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -28)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(models.DateLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// weekStartOf normalizes an instant to its week's Monday, midnight UTC.
func weekStartOf(t time.Time) time.Time {
	t = models.Midnight(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// athlete returns the per-call athlete override or the configured default.
func (h *handlers) athlete(req mcp.CallToolRequest) string {
	return req.GetString("athlete", h.defaultAthlete)
}

// --- Tool definitions ---

var toolGetLoadStatus = mcp.NewTool("get_load_status",
	mcp.WithDescription("Current training load: fitness (long-term average), fatigue (short-term average), form (their difference) and the form zone, plus the recent daily series."),
	mcp.WithString("athlete", mcp.Description("Athlete ID. Defaults to the configured athlete.")),
	mcp.WithNumber("days", mcp.Description("How many trailing days of history to include. Defaults to 14.")),
)

var toolGetLoadForecast = mcp.NewTool("get_load_forecast",
	mcp.WithDescription("Project fitness, fatigue and form forward over the planned sessions of the current and next week."),
	mcp.WithString("athlete", mcp.Description("Athlete ID. Defaults to the configured athlete.")),
	mcp.WithNumber("days", mcp.Description("Days to project. Defaults to 7.")),
)

var toolGetWeeklyPlan = mcp.NewTool("get_weekly_plan",
	mcp.WithDescription("Retrieve the plan for one week with all scheduled sessions, quality score and warnings."),
	mcp.WithString("athlete", mcp.Description("Athlete ID. Defaults to the configured athlete.")),
	mcp.WithString("week_start", mcp.Description("Any date inside the week (YYYY-MM-DD). Defaults to the current week.")),
)

var toolGetCompliance = mcp.NewTool("get_compliance",
	mcp.WithDescription("Assess how well a week's plan was executed: per-session status (completed/partial/missed/modified), the weekly rate, and whether the plan should be regenerated."),
	mcp.WithString("athlete", mcp.Description("Athlete ID. Defaults to the configured athlete.")),
	mcp.WithString("week_start", mcp.Description("Any date inside the week (YYYY-MM-DD). Defaults to the current week.")),
)

var toolGetComplianceTrend = mcp.NewTool("get_compliance_trend",
	mcp.WithDescription("Compare compliance rates across recent weeks and report whether adherence is improving, declining or stable."),
	mcp.WithString("athlete", mcp.Description("Athlete ID. Defaults to the configured athlete.")),
	mcp.WithNumber("weeks", mcp.Description("How many trailing planned weeks to compare. Defaults to 4.")),
)

var toolGetActivities = mcp.NewTool("get_activities",
	mcp.WithDescription("Query recorded activities with their stress scores."),
	mcp.WithString("athlete", mcp.Description("Athlete ID. Defaults to the configured athlete.")),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 28 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolGetReadiness = mcp.NewTool("get_readiness",
	mcp.WithDescription("Retrieve the athlete's readiness self-report for one day."),
	mcp.WithString("athlete", mcp.Description("Athlete ID. Defaults to the configured athlete.")),
	mcp.WithString("date", mcp.Description("Day (YYYY-MM-DD). Defaults to today.")),
)

var toolSuggestAdaptation = mcp.NewTool("suggest_adaptation",
	mcp.WithDescription("Run the day's scheduled session through the readiness adaptation policy and return the suggested session. Read-only, nothing is stored."),
	mcp.WithString("athlete", mcp.Description("Athlete ID. Defaults to the configured athlete.")),
	mcp.WithString("date", mcp.Description("Day (YYYY-MM-DD). Defaults to today.")),
)

var toolFindWorkouts = mcp.NewTool("find_workouts",
	mcp.WithDescription("Search the workout catalog by category, duration, difficulty and tags."),
	mcp.WithString("category", mcp.Description("Session category."), mcp.Enum("HIT", "LIT", "REC")),
	mcp.WithNumber("min_minutes", mcp.Description("Minimum duration in minutes.")),
	mcp.WithNumber("max_minutes", mcp.Description("Maximum duration in minutes.")),
	mcp.WithString("difficulty", mcp.Description("Comma-separated difficulty levels 1-5, e.g. '2,3'.")),
	mcp.WithString("tags", mcp.Description("Comma-separated tags that must all be present.")),
)

// --- Tool handlers ---

func (h *handlers) getLoadStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	athlete := h.athlete(req)
	days := req.GetInt("days", 14)

	history, err := h.history(ctx, athlete)
	if err != nil {
		h.log.Error("mcp get_load_status", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if len(history) == 0 {
		return mcp.NewToolResultText("no activities recorded yet"), nil
	}
	if len(history) > days {
		history = history[len(history)-days:]
	}
	current := history[len(history)-1]

	result, err := mcp.NewToolResultJSON(map[string]any{
		"current": current,
		"zone":    loadmodel.FormZone(current.Form),
		"history": history,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getLoadForecast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	athlete := h.athlete(req)
	days := req.GetInt("days", 7)

	history, err := h.history(ctx, athlete)
	if err != nil {
		h.log.Error("mcp get_load_forecast", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	current := models.DailyLoad{Date: time.Now().UTC().Format(models.DateLayout)}
	if len(history) > 0 {
		current = history[len(history)-1]
	}

	var sessions []models.ScheduledSession
	weekStart := weekStartOf(time.Now().UTC())
	for i := 0; i < 2; i++ {
		if plan, err := h.ds.GetLatestPlan(ctx, athlete, weekStart.AddDate(0, 0, 7*i)); err == nil {
			sessions = append(sessions, plan.Sessions...)
		}
	}

	forecast, err := loadmodel.Forecast(current, sessions, days)
	if err != nil {
		return mcp.NewToolResultError("forecast failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"current":  current,
		"forecast": forecast,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeeklyPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	athlete := h.athlete(req)
	weekStart, err := h.weekStartParam(req)
	if err != nil {
		return mcp.NewToolResultError("invalid week_start: " + err.Error()), nil
	}

	plan, err := h.ds.GetLatestPlan(ctx, athlete, weekStart)
	if err != nil {
		return mcp.NewToolResultError("no plan for that week: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(plan)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCompliance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	athlete := h.athlete(req)
	weekStart, err := h.weekStartParam(req)
	if err != nil {
		return mcp.NewToolResultError("invalid week_start: " + err.Error()), nil
	}

	assessment, err := h.assess(ctx, athlete, weekStart)
	if err != nil {
		h.log.Error("mcp get_compliance", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(assessment)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getComplianceTrend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	athlete := h.athlete(req)
	weeks := req.GetInt("weeks", 4)

	plans, err := h.ds.ListPlans(ctx, athlete)
	if err != nil {
		h.log.Error("mcp get_compliance_trend", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	now := weekStartOf(time.Now().UTC())
	var past []models.WeeklyPlan
	for _, p := range plans {
		if p.WeekStart.Before(now) {
			past = append(past, p)
		}
	}
	if len(past) > weeks {
		past = past[len(past)-weeks:]
	}

	var stats []models.ComplianceStats
	for _, p := range past {
		a, err := h.assess(ctx, athlete, p.WeekStart)
		if err != nil {
			return mcp.NewToolResultError("query failed: " + err.Error()), nil
		}
		stats = append(stats, a.Stats)
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"weeks": stats,
		"trend": compliance.RateTrend(h.complianceCfg, stats),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getActivities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	athlete := h.athlete(req)
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	activities, err := h.ds.QueryActivities(ctx, athlete, start, end)
	if err != nil {
		h.log.Error("mcp get_activities", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(activities)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getReadiness(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	athlete := h.athlete(req)
	date := req.GetString("date", time.Now().UTC().Format(models.DateLayout))

	check, err := h.ds.GetReadiness(ctx, athlete, date)
	if err != nil {
		return mcp.NewToolResultError("no readiness check for " + date), nil
	}

	result, err := mcp.NewToolResultJSON(check)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) suggestAdaptation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	athlete := h.athlete(req)
	date := req.GetString("date", time.Now().UTC().Format(models.DateLayout))
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return mcp.NewToolResultError("invalid date: " + err.Error()), nil
	}

	plan, err := h.ds.GetLatestPlan(ctx, athlete, weekStartOf(day))
	if err != nil {
		return mcp.NewToolResultError("no plan covers " + date), nil
	}
	var session *models.ScheduledSession
	for i := range plan.Sessions {
		if plan.Sessions[i].Date == date {
			session = &plan.Sessions[i]
			break
		}
	}
	if session == nil {
		return mcp.NewToolResultText("nothing scheduled on " + date), nil
	}

	var readiness *models.ReadinessCheck
	if check, err := h.ds.GetReadiness(ctx, athlete, date); err == nil {
		readiness = &check
	}

	var recent []models.DailyLoad
	if history, err := h.history(ctx, athlete); err == nil {
		if len(history) > 7 {
			history = history[len(history)-7:]
		}
		recent = history
	}

	var prior []models.ReadinessCheck
	start := day.AddDate(0, 0, -6).Format(models.DateLayout)
	if checks, err := h.ds.ReadinessRange(ctx, athlete, start, date); err == nil {
		prior = checks
	}

	result, err := mcp.NewToolResultJSON(adapter.Adapt(h.adapterCfg, *session, readiness, recent, prior))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) findWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cr := catalog.Criteria{
		Category:       models.SessionCategory(req.GetString("category", "")),
		MinDurationSec: req.GetInt("min_minutes", 0) * 60,
		MaxDurationSec: req.GetInt("max_minutes", 0) * 60,
	}
	if v := req.GetString("difficulty", ""); v != "" {
		for _, part := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return mcp.NewToolResultError("invalid difficulty: " + part), nil
			}
			cr.Difficulties = append(cr.Difficulties, n)
		}
	}
	if v := req.GetString("tags", ""); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cr.RequiredTags = append(cr.RequiredTags, t)
			}
		}
	}

	result, err := mcp.NewToolResultJSON(h.catalog.Find(cr))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// --- Shared helpers ---

func (h *handlers) history(ctx context.Context, athlete string) ([]models.DailyLoad, error) {
	activities, err := h.ds.AllActivities(ctx, athlete)
	if err != nil {
		return nil, err
	}
	return loadmodel.FromActivities(activities, time.Now().UTC())
}

func (h *handlers) weekStartParam(req mcp.CallToolRequest) (time.Time, error) {
	if v := req.GetString("week_start", ""); v != "" {
		t, err := time.Parse(models.DateLayout, v)
		if err != nil {
			return time.Time{}, err
		}
		return weekStartOf(t), nil
	}
	return weekStartOf(time.Now().UTC()), nil
}

func (h *handlers) assess(ctx context.Context, athlete string, weekStart time.Time) (compliance.Assessment, error) {
	plan, err := h.ds.GetLatestPlan(ctx, athlete, weekStart)
	if err != nil {
		return compliance.Assessment{}, err
	}
	activities, err := h.ds.QueryActivities(ctx, athlete, plan.WeekStart, plan.WeekStart.AddDate(0, 0, 7))
	if err != nil {
		return compliance.Assessment{}, err
	}

	var currentForm *float64
	if history, err := h.history(ctx, athlete); err == nil && len(history) > 0 {
		currentForm = &history[len(history)-1].Form
	}
	return compliance.AssessWeek(h.complianceCfg, plan, activities, currentForm, time.Now().UTC()), nil
}
