package adapter

import (
	"math"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/claude/veloplan/internal/models"
)

func hitSession() models.ScheduledSession {
	return models.ScheduledSession{
		ID:           uuid.New(),
		Date:         "2026-03-05",
		Category:     models.CategoryHIT,
		SubType:      "threshold",
		DurationSec:  4500,
		TargetStress: 58,
		WorkoutID:    "hit-threshold-75",
		Description:  "Threshold 3x10",
	}
}

func readiness(sleep, fatigue, motivation, soreness, stress int) *models.ReadinessCheck {
	return &models.ReadinessCheck{
		Date:         "2026-03-05",
		SleepQuality: sleep,
		Fatigue:      fatigue,
		Motivation:   motivation,
		Soreness:     soreness,
		Stress:       stress,
	}
}

// decliningForm is three days of deepening negative form.
func decliningForm() []models.DailyLoad {
	return []models.DailyLoad{
		{Date: "2026-03-02", Form: -5},
		{Date: "2026-03-03", Form: -12},
		{Date: "2026-03-04", Form: -20},
	}
}

func TestCompositeScore(t *testing.T) {
	tests := []struct {
		name string
		r    models.ReadinessCheck
		want float64
	}{
		{"all best", models.ReadinessCheck{SleepQuality: 5, Fatigue: 1, Motivation: 5, Soreness: 1, Stress: 1}, 1.0},
		{"all worst", models.ReadinessCheck{SleepQuality: 1, Fatigue: 5, Motivation: 1, Soreness: 5, Stress: 5}, 0.0},
		{"all middle", models.ReadinessCheck{SleepQuality: 3, Fatigue: 3, Motivation: 3, Soreness: 3, Stress: 3}, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CompositeScore(tc.r)
			if err != nil {
				t.Fatalf("CompositeScore: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("score = %.3f, want %.3f", got, tc.want)
			}
		})
	}

	if _, err := CompositeScore(models.ReadinessCheck{SleepQuality: 0, Fatigue: 3, Motivation: 3, Soreness: 3, Stress: 3}); err == nil {
		t.Error("expected error for out-of-range sleep quality")
	}
	if _, err := CompositeScore(models.ReadinessCheck{SleepQuality: 3, Fatigue: 6, Motivation: 3, Soreness: 3, Stress: 3}); err == nil {
		t.Error("expected error for out-of-range fatigue")
	}
}

func TestAdaptStrongReduction(t *testing.T) {
	// Low readiness and three days of falling form: the hard session
	// becomes a short recovery spin.
	session := hitSession()
	res := Adapt(DefaultConfig(), session, readiness(3, 3, 3, 4, 4), decliningForm(), nil)

	if !res.Changed {
		t.Fatal("expected changed=true")
	}
	if res.Readiness >= 0.5 {
		t.Errorf("composite readiness = %.2f, expected < 0.5 for this snapshot", res.Readiness)
	}
	if res.Session.Category != models.CategoryREC {
		t.Errorf("category = %s, want REC", res.Session.Category)
	}
	if res.Session.TargetStress > 40 {
		t.Errorf("target stress %.1f above recovery cap", res.Session.TargetStress)
	}
	if res.Session.TargetStress >= session.TargetStress*0.6 {
		t.Errorf("stress %.1f not strongly reduced from %.1f", res.Session.TargetStress, session.TargetStress)
	}
	if res.Session.DurationSec > 3600 {
		t.Errorf("duration %ds above recovery cap", res.Session.DurationSec)
	}
	// Input must not be mutated.
	if session.Category != models.CategoryHIT {
		t.Error("input session was mutated")
	}
}

func TestAdaptForcedRecovery(t *testing.T) {
	score := func(v float64) *float64 { return &v }

	tests := []struct {
		name      string
		readiness *models.ReadinessCheck
		recent    []models.DailyLoad
		prior     []models.ReadinessCheck
	}{
		{
			// Composite of zero: forced regardless of history.
			name:      "critical readiness",
			readiness: readiness(1, 5, 1, 5, 5),
		},
		{
			// Composite 0.55 would only trim the session, but the sleep
			// and fatigue combination forces the swap on its own.
			name:      "poor sleep with high fatigue",
			readiness: readiness(2, 4, 5, 1, 1),
		},
		{
			// Middling composite, but form below -25 signals overreach.
			name:      "deeply negative form",
			readiness: readiness(3, 3, 3, 3, 3),
			recent:    []models.DailyLoad{{Date: "2026-03-03", Form: -28}, {Date: "2026-03-04", Form: -31}},
		},
		{
			// Today's check alone reads fine; the week of sliding scores
			// does not.
			name:      "declining trend",
			readiness: readiness(3, 3, 4, 3, 3),
			prior: []models.ReadinessCheck{
				{Score: score(0.60)},
				{Score: score(0.55)},
				{Score: score(0.40)},
				{Score: score(0.30)},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := hitSession()
			res := Adapt(DefaultConfig(), session, tc.readiness, tc.recent, tc.prior)

			if !res.Changed {
				t.Fatalf("expected forced recovery, got: %s", res.Reason)
			}
			if res.Session.Category != models.CategoryREC {
				t.Errorf("category = %s, want REC (%s)", res.Session.Category, res.Reason)
			}
			if res.Session.TargetStress > 40 {
				t.Errorf("target stress %.1f above recovery cap", res.Session.TargetStress)
			}
			if res.Session.DurationSec > 3600 {
				t.Errorf("duration %ds above recovery cap", res.Session.DurationSec)
			}
		})
	}
}

func TestReadinessTrend(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	checks := func(vals ...float64) []models.ReadinessCheck {
		out := make([]models.ReadinessCheck, len(vals))
		for i, v := range vals {
			out[i] = models.ReadinessCheck{Score: score(v)}
		}
		return out
	}

	if _, declining, days := readinessTrend(nil); declining || days != 0 {
		t.Errorf("empty history: declining=%v days=%d", declining, days)
	}
	// Three checks establish an average but never a trend.
	if _, declining, _ := readinessTrend(checks(0.8, 0.5, 0.3)); declining {
		t.Error("trend reported from three checks")
	}
	avg, declining, days := readinessTrend(checks(0.60, 0.55, 0.40, 0.30))
	if !declining || days != 4 {
		t.Errorf("falling scores: declining=%v days=%d", declining, days)
	}
	if math.Abs(avg-0.4625) > 1e-9 {
		t.Errorf("avg = %.4f, want 0.4625", avg)
	}
	if _, declining, _ := readinessTrend(checks(0.45, 0.45, 0.45, 0.45)); declining {
		t.Error("flat scores read as declining")
	}
}

func TestAdaptModerateReduction(t *testing.T) {
	// Mediocre readiness without a declining trend keeps the category but
	// trims the session by roughly a quarter.
	session := hitSession()
	res := Adapt(DefaultConfig(), session, readiness(3, 4, 3, 3, 3), nil, nil)

	if !res.Changed {
		t.Fatal("expected changed=true")
	}
	if res.Session.Category != models.CategoryHIT {
		t.Errorf("category = %s, want HIT kept", res.Session.Category)
	}
	if math.Abs(res.Session.TargetStress-session.TargetStress*0.75) > 0.01 {
		t.Errorf("stress = %.1f, want %.1f", res.Session.TargetStress, session.TargetStress*0.75)
	}
	if res.Session.DurationSec != int(float64(session.DurationSec)*0.75) {
		t.Errorf("duration = %d, want %d", res.Session.DurationSec, int(float64(session.DurationSec)*0.75))
	}
}

func TestAdaptNoChangeWhenReady(t *testing.T) {
	session := hitSession()
	res := Adapt(DefaultConfig(), session, readiness(4, 2, 4, 2, 2), []models.DailyLoad{{Form: 5}}, nil)

	if res.Changed {
		t.Fatalf("expected no change, got: %s", res.Reason)
	}
	if !reflect.DeepEqual(res.Session, session) {
		t.Error("session altered despite changed=false")
	}
}

func TestAdaptEscalationGated(t *testing.T) {
	lit := hitSession()
	lit.Category = models.CategoryLIT
	fresh := readiness(5, 1, 5, 1, 1)

	// Off by default.
	res := Adapt(DefaultConfig(), lit, fresh, nil, nil)
	if res.Changed {
		t.Fatalf("escalation fired with AllowEscalation=false: %s", res.Reason)
	}

	cfg := DefaultConfig()
	cfg.AllowEscalation = true
	res = Adapt(cfg, lit, fresh, nil, nil)
	if !res.Changed {
		t.Fatal("expected escalation with AllowEscalation=true")
	}
	if res.Session.TargetStress <= lit.TargetStress {
		t.Errorf("stress %.1f not increased from %.1f", res.Session.TargetStress, lit.TargetStress)
	}

	// Never escalates a hard session.
	res = Adapt(cfg, hitSession(), fresh, nil, nil)
	if res.Changed {
		t.Error("escalation applied to a HIT session")
	}
}

func TestAdaptMissingOrMalformedReadiness(t *testing.T) {
	session := hitSession()

	res := Adapt(DefaultConfig(), session, nil, decliningForm(), nil)
	if res.Changed {
		t.Error("changed=true with no readiness check")
	}
	if !reflect.DeepEqual(res.Session, session) {
		t.Error("session altered with no readiness check")
	}

	bad := readiness(9, 5, 2, 4, 3)
	res = Adapt(DefaultConfig(), session, bad, decliningForm(), nil)
	if res.Changed {
		t.Error("changed=true with malformed readiness")
	}
}

func TestAdaptDeterministic(t *testing.T) {
	session := hitSession()
	r := readiness(2, 4, 2, 4, 4)
	loads := decliningForm()

	first := Adapt(DefaultConfig(), session, r, loads, nil)
	second := Adapt(DefaultConfig(), session, r, loads, nil)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different results")
	}
}

func TestFormDeclining(t *testing.T) {
	if formDeclining(nil) {
		t.Error("no history should not read as declining")
	}
	if formDeclining([]models.DailyLoad{{Form: -20}}) {
		t.Error("single day should not read as declining")
	}
	if !formDeclining(decliningForm()) {
		t.Error("falling form not detected")
	}
	rising := []models.DailyLoad{{Form: -20}, {Form: -10}, {Form: -2}}
	if formDeclining(rising) {
		t.Error("rising form read as declining")
	}
}
