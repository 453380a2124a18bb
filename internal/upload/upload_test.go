package upload

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/claude/veloplan/internal/ingest"
)

const testExport = `DATE;START;MINUTES;AVG_W;NP_W;AVG_HR;RPE;LOCATION
2026-03-02;18:05;90;210;225;142;6;indoor
2026-03-04;06:30;60;;;;4;outdoor
`

// TestStateDBRoundTrip verifies files are only reported uploaded with a
// matching size and hash.
func TestStateDBRoundTrip(t *testing.T) {
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	defer state.Close()

	uploaded, _, err := state.IsUploaded("rides.csv", 100, "abc")
	if err != nil {
		t.Fatalf("IsUploaded: %v", err)
	}
	if uploaded {
		t.Error("fresh state should report not uploaded")
	}

	if err := state.MarkUploaded("rides.csv", 100, "abc", 12); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	uploaded, activities, err := state.IsUploaded("rides.csv", 100, "abc")
	if err != nil {
		t.Fatalf("IsUploaded: %v", err)
	}
	if !uploaded {
		t.Error("marked file should report uploaded")
	}
	if activities != 12 {
		t.Errorf("activities = %d, want 12", activities)
	}

	// A changed file re-uploads.
	uploaded, _, err = state.IsUploaded("rides.csv", 100, "different-hash")
	if err != nil {
		t.Fatalf("IsUploaded: %v", err)
	}
	if uploaded {
		t.Error("changed hash should report not uploaded")
	}
}

// TestClientSendPayload verifies the POST carries the API key and decodes
// the import result.
func TestClientSendPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/activities/import" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("api key = %q", r.Header.Get("X-API-Key"))
		}
		var payload ingest.Payload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		json.NewEncoder(w).Encode(ingest.Result{Received: len(payload.Activities), Inserted: len(payload.Activities)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	result, err := c.SendPayload(ingest.Payload{AthleteID: "athlete-1", Activities: make([]ingest.RawActivity, 2)})
	if err != nil {
		t.Fatalf("SendPayload: %v", err)
	}
	if result.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", result.Inserted)
	}
}

// TestClientNoRetryOnClientError verifies a 4xx response fails without
// burning retries.
func TestClientNoRetryOnClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	if _, err := c.SendPayload(ingest.Payload{AthleteID: "athlete-1"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// TestUploaderRun verifies the scan-parse-send-mark cycle and that a second
// run skips everything.
func TestUploaderRun(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rides.csv"), []byte(testExport), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload ingest.Payload
		json.NewDecoder(r.Body).Decode(&payload)
		if payload.AthleteID != "athlete-1" {
			t.Errorf("athleteID = %q", payload.AthleteID)
		}
		json.NewEncoder(w).Encode(ingest.Result{Received: len(payload.Activities), Inserted: len(payload.Activities)})
	}))
	defer srv.Close()

	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	u := New(NewClient(srv.URL, "secret"), state, dir, "athlete-1", false, slog.Default())
	stats, err := u.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesTotal != 1 || stats.FilesUploaded != 1 {
		t.Errorf("stats = %+v, want 1 file uploaded", stats)
	}
	if stats.ActivitiesInserted != 2 {
		t.Errorf("inserted = %d, want 2", stats.ActivitiesInserted)
	}

	// Second run: unchanged file is skipped.
	u = New(NewClient(srv.URL, "secret"), state, dir, "athlete-1", false, slog.Default())
	stats, err = u.Run()
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.FilesSkipped != 1 || stats.FilesUploaded != 0 {
		t.Errorf("second run stats = %+v, want 1 skipped", stats)
	}
}

// TestUploaderDryRun verifies nothing is sent or recorded in dry run mode.
func TestUploaderDryRun(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rides.csv"), []byte(testExport), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("dry run must not hit the server")
	}))
	defer srv.Close()

	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	u := New(NewClient(srv.URL, "secret"), state, dir, "athlete-1", true, slog.Default())
	stats, err := u.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.ActivitiesSent != 2 {
		t.Errorf("activitiesSent = %d, want 2", stats.ActivitiesSent)
	}
	if stats.FilesUploaded != 0 {
		t.Errorf("filesUploaded = %d, want 0", stats.FilesUploaded)
	}
}
