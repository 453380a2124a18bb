package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/claude/veloplan/internal/compliance"
	"github.com/claude/veloplan/internal/models"
	"github.com/claude/veloplan/internal/planner"
	"github.com/claude/veloplan/internal/storage"
)

// readinessFloor forces a regeneration when the day's composite readiness
// score sits below it, even if compliance looks fine.
const readinessFloor = 0.50

type evaluateRequest struct {
	AthleteID string `json:"athlete_id"`
	// AsOf defaults to today. Sessions after it count as pending.
	AsOf string `json:"as_of,omitempty"`
}

type evaluateResponse struct {
	Updated        bool                      `json:"updated"`
	Reason         string                    `json:"reason"`
	Recommendation compliance.Recommendation `json:"recommendation"`
	Plan           *models.WeeklyPlan        `json:"plan,omitempty"`
}

// handleEvaluatePlan is the end-of-day check: assess the current week's
// compliance and load state, and when the plan is broken enough, regenerate
// next week in the same request. Intended to be hit daily by a scheduler.
func (s *Server) handleEvaluatePlan(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.AthleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete_id required"})
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		t, err := time.Parse(models.DateLayout, req.AsOf)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "as_of must be YYYY-MM-DD"})
			return
		}
		asOf = t
	}

	plan, err := s.db.GetLatestPlan(r.Context(), req.AthleteID, mondayOf(asOf))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, evaluateResponse{Reason: "no plan covers the current week"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	weekEnd := plan.WeekStart.AddDate(0, 0, 7)
	activities, err := s.db.QueryActivities(r.Context(), req.AthleteID, plan.WeekStart, weekEnd)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	history, err := s.loadHistory(r, req.AthleteID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	var currentForm *float64
	if len(history) > 0 {
		currentForm = &history[len(history)-1].Form
	}

	assessment := compliance.AssessWeek(s.compliance, plan, activities, currentForm, asOf)
	regen, reason := assessment.Recommendation.Regenerate, assessment.Recommendation.Reason

	// Today's check-in can force a regeneration on its own.
	if !regen {
		if check, err := s.db.GetReadiness(r.Context(), req.AthleteID, asOf.Format(models.DateLayout)); err == nil {
			if check.Score != nil && *check.Score < readinessFloor {
				regen = true
				reason = fmt.Sprintf("readiness %.2f below %.2f", *check.Score, readinessFloor)
			}
		}
	}

	resp := evaluateResponse{Reason: reason, Recommendation: assessment.Recommendation}
	if !regen {
		if resp.Reason == "" {
			resp.Reason = "plan on track"
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	profile, availability, err := s.db.GetAthlete(r.Context(), req.AthleteID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	nextWeek := mondayOf(asOf).AddDate(0, 0, 7)
	plans, err := s.generate(r, profile, availability, nextWeek, 1, nil)
	if err != nil {
		if errors.Is(err, planner.ErrMalformedInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("evaluate regenerate", "athlete", req.AthleteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := s.db.SavePlan(r.Context(), plans[0]); err != nil {
		s.log.Error("save regenerated plan", "athlete", req.AthleteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.log.Info("plan regenerated", "athlete", req.AthleteID, "week", plans[0].ID, "reason", reason)
	resp.Updated = true
	resp.Plan = &plans[0]
	writeJSON(w, http.StatusOK, resp)
}
