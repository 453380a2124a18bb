package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/veloplan/internal/catalog"
	"github.com/claude/veloplan/internal/loadmodel"
	"github.com/claude/veloplan/internal/models"
	"github.com/claude/veloplan/internal/storage"
	"github.com/claude/veloplan/internal/stress"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

type athleteRequest struct {
	models.AthleteProfile
	Availability []models.AvailabilityWindow `json:"availability"`
}

func (s *Server) handleUpsertAthlete(w http.ResponseWriter, r *http.Request) {
	var req athleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id required"})
		return
	}
	if req.WeeklyHoursTarget < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weekly_hours_target must not be negative"})
		return
	}

	if err := s.db.UpsertAthlete(r.Context(), req.AthleteProfile, req.Availability); err != nil {
		s.log.Error("upsert athlete", "athlete", req.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetAthlete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, availability, err := s.db.GetAthlete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "athlete not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, athleteRequest{AthleteProfile: profile, Availability: availability})
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var a models.Activity
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if a.AthleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete_id required"})
		return
	}
	if a.StartTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time required"})
		return
	}

	profile, _, err := s.db.GetAthlete(r.Context(), a.AthleteID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "athlete not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	scored, err := s.scoreActivity(&a, profile)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	inserted, err := s.db.InsertActivity(r.Context(), a)
	if err != nil {
		s.log.Error("insert activity", "athlete", a.AthleteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"activity": a,
		"inserted": inserted,
		"method":   scored.Method,
	})
}

// scoreActivity fills the activity's stress score in place, assigning an id
// when the client did not send one.
func (s *Server) scoreActivity(a *models.Activity, profile models.AthleteProfile) (stress.Result, error) {
	res, err := stress.Score(stress.Input{
		DurationSec:     a.DurationSec,
		NormalizedPower: a.NormalizedPower,
		AvgPower:        a.AvgPower,
		AvgHeartRate:    a.AvgHeartRate,
		PerceivedEffort: a.PerceivedEffort,
	}, stress.References{
		FTPWatts: profile.FTPWatts,
		LTHRBpm:  profile.LTHRBpm,
	})
	if err != nil {
		return res, err
	}
	a.StressScore = res.Score
	a.LowConfidence = res.LowConfidence
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return res, nil
}

func (s *Server) handleQueryActivities(w http.ResponseWriter, r *http.Request) {
	athleteID := r.URL.Query().Get("athlete")
	if athleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete parameter required"})
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	activities, err := s.db.QueryActivities(r.Context(), athleteID, start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	athleteID := r.URL.Query().Get("athlete")
	if athleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete parameter required"})
		return
	}
	days := intParam(r, "days", 90)

	history, err := s.loadHistory(r, athleteID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if len(history) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"current": nil, "history": []models.DailyLoad{}})
		return
	}
	if len(history) > days {
		history = history[len(history)-days:]
	}
	current := history[len(history)-1]
	writeJSON(w, http.StatusOK, map[string]any{
		"current": current,
		"zone":    loadmodel.FormZone(current.Form),
		"history": history,
	})
}

func (s *Server) handleLoadForecast(w http.ResponseWriter, r *http.Request) {
	athleteID := r.URL.Query().Get("athlete")
	if athleteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "athlete parameter required"})
		return
	}
	days := intParam(r, "days", 7)

	history, err := s.loadHistory(r, athleteID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	current := models.DailyLoad{Date: time.Now().UTC().Format(models.DateLayout)}
	if len(history) > 0 {
		current = history[len(history)-1]
	}

	// Planned sessions feed the projection; without a stored plan the
	// forecast is pure decay.
	var sessions []models.ScheduledSession
	weekStart := mondayOf(time.Now().UTC())
	for i := 0; i < 2; i++ {
		plan, err := s.db.GetLatestPlan(r.Context(), athleteID, weekStart.AddDate(0, 0, 7*i))
		if err == nil {
			sessions = append(sessions, plan.Sessions...)
		}
	}

	forecast, err := loadmodel.Forecast(current, sessions, days)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current":  current,
		"forecast": forecast,
	})
}

// loadHistory rebuilds the athlete's full load series from every stored
// activity.
func (s *Server) loadHistory(r *http.Request, athleteID string) ([]models.DailyLoad, error) {
	activities, err := s.db.AllActivities(r.Context(), athleteID)
	if err != nil {
		return nil, err
	}
	return loadmodel.FromActivities(activities, time.Now().UTC())
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	cr, err := criteriaFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Find(cr))
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	workout, ok := s.catalog.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func criteriaFromQuery(r *http.Request) (catalog.Criteria, error) {
	q := r.URL.Query()
	cr := catalog.Criteria{
		Category:    models.SessionCategory(q.Get("category")),
		IndoorOnly:  q.Get("indoor") == "true",
		OutdoorOnly: q.Get("outdoor") == "true",
	}
	if v := q.Get("min_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cr, errors.New("min_minutes must be an integer")
		}
		cr.MinDurationSec = n * 60
	}
	if v := q.Get("max_minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cr, errors.New("max_minutes must be an integer")
		}
		cr.MaxDurationSec = n * 60
	}
	if v := q.Get("difficulty"); v != "" {
		for _, part := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return cr, errors.New("difficulty must be a comma-separated list of integers")
			}
			cr.Difficulties = append(cr.Difficulties, n)
		}
	}
	if v := q.Get("tags"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cr.RequiredTags = append(cr.RequiredTags, t)
			}
		}
	}
	return cr, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 28 days
		end = time.Now()
		start = end.AddDate(0, 0, -28)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse(models.DateLayout, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse(models.DateLayout, endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}

// mondayOf normalizes an instant to its ISO week's Monday, midnight UTC.
func mondayOf(t time.Time) time.Time {
	t = models.Midnight(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
