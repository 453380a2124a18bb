package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/veloplan/internal/catalog"
	"github.com/claude/veloplan/internal/models"
)

// testServer builds a server with the embedded catalog and no database.
// Only routes that never touch storage may be exercised.
func testServer(t *testing.T) *Server {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	s := &Server{
		catalog: cat,
		log:     slog.Default(),
		apiKey:  "test-key",
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// TestHandleMeLocalDev verifies the /api/v1/me endpoint returns the dev
// identity when no Tailscale middleware is active.
func TestHandleMeLocalDev(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
}

// TestHandleMeTailscaleUser verifies the /api/v1/me endpoint returns the
// Tailscale user identity when set in context.
func TestHandleMeTailscaleUser(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "alice@example.com", DisplayName: "Alice"})
	rec := httptest.NewRecorder()
	s.handleMe(rec, req.WithContext(ctx))

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if info.Login != "alice@example.com" {
		t.Errorf("login = %q, want %q", info.Login, "alice@example.com")
	}
}

// TestListWorkouts verifies catalog listing with a category filter.
func TestListWorkouts(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workouts?category=HIT", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var workouts []catalog.Workout
	if err := json.NewDecoder(rec.Body).Decode(&workouts); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(workouts) == 0 {
		t.Fatal("expected HIT workouts")
	}
	for _, w := range workouts {
		if w.Category != models.CategoryHIT {
			t.Errorf("workout %s: category = %s, want HIT", w.ID, w.Category)
		}
	}
}

// TestListWorkoutsBadDifficulty verifies a non-numeric difficulty filter is
// a 400.
func TestListWorkoutsBadDifficulty(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workouts?difficulty=hard", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestGetWorkout verifies fetching one workout by id and the 404 path.
func TestGetWorkout(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workouts/hit-threshold-60", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var w catalog.Workout
	if err := json.NewDecoder(rec.Body).Decode(&w); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if w.ID != "hit-threshold-60" {
		t.Errorf("id = %q, want hit-threshold-60", w.ID)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/workouts/no-such-workout", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestWriteEndpointsRequireAPIKey verifies mutating routes reject requests
// without a key before reaching any handler.
func TestWriteEndpointsRequireAPIKey(t *testing.T) {
	s := testServer(t)

	for _, path := range []string{
		"/api/v1/athletes",
		"/api/v1/activities",
		"/api/v1/activities/import",
		"/api/v1/plans/generate",
		"/api/v1/plans/evaluate",
		"/api/v1/readiness",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
	}
}

// TestCriteriaFromQuery verifies filter parsing into catalog criteria.
func TestCriteriaFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/workouts?category=LIT&min_minutes=60&max_minutes=120&difficulty=2,3&tags=aerobic,base&indoor=true", nil)

	cr, err := criteriaFromQuery(req)
	if err != nil {
		t.Fatalf("criteriaFromQuery: %v", err)
	}
	if cr.Category != models.CategoryLIT {
		t.Errorf("category = %s, want LIT", cr.Category)
	}
	if cr.MinDurationSec != 3600 || cr.MaxDurationSec != 7200 {
		t.Errorf("duration range = %d-%d, want 3600-7200", cr.MinDurationSec, cr.MaxDurationSec)
	}
	if len(cr.Difficulties) != 2 || cr.Difficulties[0] != 2 || cr.Difficulties[1] != 3 {
		t.Errorf("difficulties = %v, want [2 3]", cr.Difficulties)
	}
	if len(cr.RequiredTags) != 2 {
		t.Errorf("tags = %v, want 2 entries", cr.RequiredTags)
	}
	if !cr.IndoorOnly {
		t.Error("indoorOnly should be set")
	}
}

// TestParseTimeRange verifies RFC3339 and date-only bounds, plus the
// default window.
func TestParseTimeRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?start=2026-03-02&end=2026-03-08", nil)
	start, end, err := parseTimeRange(req)
	if err != nil {
		t.Fatalf("parseTimeRange: %v", err)
	}
	if start.Format(models.DateLayout) != "2026-03-02" {
		t.Errorf("start = %v", start)
	}
	// Date-only end bounds extend to the end of the day.
	if !end.After(start.AddDate(0, 0, 6)) {
		t.Errorf("end = %v, want after %v", end, start.AddDate(0, 0, 6))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	start, end, err = parseTimeRange(req)
	if err != nil {
		t.Fatalf("parseTimeRange default: %v", err)
	}
	if !end.After(start) {
		t.Error("default range should not be empty")
	}

	req = httptest.NewRequest(http.MethodGet, "/?start=yesterday", nil)
	if _, _, err := parseTimeRange(req); err == nil {
		t.Error("expected error for unparseable start")
	}
}

// TestMondayOf verifies week normalization for each day of a week.
func TestMondayOf(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		if got := mondayOf(day); !got.Equal(monday) {
			t.Errorf("mondayOf(%s) = %v, want %v", day.Weekday(), got, monday)
		}
	}
}
