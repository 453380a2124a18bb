package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/veloplan/internal/adapter"
	"github.com/claude/veloplan/internal/compliance"
	"github.com/claude/veloplan/internal/models"
	"github.com/claude/veloplan/internal/planner"
	"github.com/claude/veloplan/internal/storage"
)

type generateRequest struct {
	AthleteID string `json:"athlete_id"`
	WeekStart string `json:"week_start,omitempty"` // defaults to the current week
	Weeks     int    `json:"weeks,omitempty"`      // defaults to 1
	EventDate string `json:"event_date,omitempty"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.AthleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete_id required"})
		return
	}
	if req.Weeks == 0 {
		req.Weeks = 1
	}
	if req.Weeks < 1 || req.Weeks > 52 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weeks must be between 1 and 52"})
		return
	}

	weekStart := mondayOf(time.Now().UTC())
	if req.WeekStart != "" {
		t, err := time.Parse(models.DateLayout, req.WeekStart)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week_start must be YYYY-MM-DD"})
			return
		}
		weekStart = mondayOf(t)
	}
	var eventDate *time.Time
	if req.EventDate != "" {
		t, err := time.Parse(models.DateLayout, req.EventDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "event_date must be YYYY-MM-DD"})
			return
		}
		eventDate = &t
	}

	profile, availability, err := s.db.GetAthlete(r.Context(), req.AthleteID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "athlete not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	plans, err := s.generate(r, profile, availability, weekStart, req.Weeks, eventDate)
	if err != nil {
		if errors.Is(err, planner.ErrMalformedInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("generate plan", "athlete", req.AthleteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	for i := range plans {
		if err := s.db.SavePlan(r.Context(), plans[i]); err != nil {
			s.log.Error("save plan", "athlete", req.AthleteID, "week", plans[i].ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusCreated, plans)
}

func (s *Server) generate(r *http.Request, profile models.AthleteProfile, availability []models.AvailabilityWindow, weekStart time.Time, weeks int, eventDate *time.Time) ([]models.WeeklyPlan, error) {
	if weeks > 1 {
		return planner.GenerateHorizon(s.planner, s.catalog, profile, availability, weekStart, weeks, eventDate)
	}

	priorWeeks, weekNumber, err := s.priorWeeks(r, profile.ID, weekStart)
	if err != nil {
		return nil, &planner.UpstreamError{Op: "listing prior plans", Err: err}
	}

	history, err := s.loadHistory(r, profile.ID)
	if err != nil {
		return nil, &planner.UpstreamError{Op: "loading activity history", Err: err}
	}
	var currentLoad *models.DailyLoad
	if len(history) > 0 {
		currentLoad = &history[len(history)-1]
	}

	plan, err := planner.GenerateWeek(s.planner, s.catalog, planner.Request{
		Profile:      profile,
		Availability: availability,
		WeekStart:    weekStart,
		WeekNumber:   weekNumber,
		EventDate:    eventDate,
		PriorWeeks:   priorWeeks,
		CurrentLoad:  currentLoad,
	})
	if err != nil {
		return nil, err
	}
	return []models.WeeklyPlan{plan}, nil
}

// priorWeeks reconstructs week summaries from stored plans so a regenerated
// week ramps from what came before it. Stored plans carry only the final
// stress total, which stands in for the pre-multiplier budget.
func (s *Server) priorWeeks(r *http.Request, athleteID string, weekStart time.Time) ([]planner.WeekSummary, int, error) {
	stored, err := s.db.ListPlans(r.Context(), athleteID)
	if err != nil {
		return nil, 0, err
	}
	var prior []planner.WeekSummary
	for _, p := range stored {
		if !p.WeekStart.Before(weekStart) {
			continue
		}
		prior = append(prior, planner.WeekSummary{
			WeekNumber:  p.WeekNumber,
			TotalStress: p.TotalStress,
			BaseBudget:  p.TotalStress,
		})
	}
	return prior, len(prior) + 1, nil
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	athleteID := r.URL.Query().Get("athlete")
	if athleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete parameter required"})
		return
	}
	plans, err := s.db.ListPlans(r.Context(), athleteID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) planFromRequest(w http.ResponseWriter, r *http.Request) (models.WeeklyPlan, bool) {
	athleteID := r.URL.Query().Get("athlete")
	if athleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete parameter required"})
		return models.WeeklyPlan{}, false
	}
	weekStart, err := time.Parse(models.DateLayout, chi.URLParam(r, "weekStart"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week start must be YYYY-MM-DD"})
		return models.WeeklyPlan{}, false
	}

	plan, err := s.db.GetLatestPlan(r.Context(), athleteID, mondayOf(weekStart))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "plan not found"})
		return models.WeeklyPlan{}, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return models.WeeklyPlan{}, false
	}
	return plan, true
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.planFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.planFromRequest(w, r)
	if !ok {
		return
	}

	weekEnd := plan.WeekStart.AddDate(0, 0, 7)
	activities, err := s.db.QueryActivities(r.Context(), plan.AthleteID, plan.WeekStart, weekEnd)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	var currentForm *float64
	if history, err := s.loadHistory(r, plan.AthleteID); err == nil && len(history) > 0 {
		currentForm = &history[len(history)-1].Form
	}

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse(models.DateLayout, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "as_of must be YYYY-MM-DD"})
			return
		}
		asOf = t
	}

	writeJSON(w, http.StatusOK, compliance.AssessWeek(s.compliance, plan, activities, currentForm, asOf))
}

func (s *Server) handleSubmitReadiness(w http.ResponseWriter, r *http.Request) {
	var check models.ReadinessCheck
	if err := json.NewDecoder(r.Body).Decode(&check); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if check.AthleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete_id required"})
		return
	}
	if check.Date == "" {
		check.Date = time.Now().UTC().Format(models.DateLayout)
	}
	day, err := time.Parse(models.DateLayout, check.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	score, err := adapter.CompositeScore(check)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	check.Score = &score
	check.SubmittedAt = time.Now().UTC()

	if err := s.db.UpsertReadiness(r.Context(), check); err != nil {
		s.log.Error("upsert readiness", "athlete", check.AthleteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"readiness":  check,
		"adaptation": s.adaptFor(r, check, day),
	})
}

// adaptFor runs the day's scheduled session through the adaptation policy.
// Nil when no plan covers the day or nothing is scheduled on it.
func (s *Server) adaptFor(r *http.Request, check models.ReadinessCheck, day time.Time) *adapter.Result {
	plan, err := s.db.GetLatestPlan(r.Context(), check.AthleteID, mondayOf(day))
	if err != nil {
		return nil
	}
	var session *models.ScheduledSession
	for i := range plan.Sessions {
		if plan.Sessions[i].Date == check.Date {
			session = &plan.Sessions[i]
			break
		}
	}
	if session == nil {
		return nil
	}

	var recent []models.DailyLoad
	if history, err := s.loadHistory(r, check.AthleteID); err == nil {
		if len(history) > 7 {
			history = history[len(history)-7:]
		}
		recent = history
	}

	// Last week of self-reports feeds the declining-readiness trigger.
	var prior []models.ReadinessCheck
	start := day.AddDate(0, 0, -6).Format(models.DateLayout)
	if checks, err := s.db.ReadinessRange(r.Context(), check.AthleteID, start, check.Date); err == nil {
		prior = checks
	}

	result := adapter.Adapt(s.adapter, *session, &check, recent, prior)
	return &result
}

func (s *Server) handleGetReadiness(w http.ResponseWriter, r *http.Request) {
	athleteID := r.URL.Query().Get("athlete")
	if athleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete parameter required"})
		return
	}

	// start/end select a range; otherwise a single day (default today).
	if start := r.URL.Query().Get("start"); start != "" {
		end := r.URL.Query().Get("end")
		if end == "" {
			end = time.Now().UTC().Format(models.DateLayout)
		}
		checks, err := s.db.ReadinessRange(r.Context(), athleteID, start, end)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, checks)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(models.DateLayout)
	}

	check, err := s.db.GetReadiness(r.Context(), athleteID, date)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "readiness check not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, check)
}
