package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/veloplan/internal/models"
	"github.com/claude/veloplan/internal/storage"
)

// HTTPClient implements DataSource by calling the VeloPlan REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) GetAthlete(ctx context.Context, athleteID string) (models.AthleteProfile, []models.AvailabilityWindow, error) {
	body, err := c.get(ctx, "/api/v1/athletes/"+url.PathEscape(athleteID), nil)
	if err != nil {
		return models.AthleteProfile{}, nil, err
	}

	var out struct {
		models.AthleteProfile
		Availability []models.AvailabilityWindow `json:"availability"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return models.AthleteProfile{}, nil, fmt.Errorf("httpclient: decode athlete: %w", err)
	}
	return out.AthleteProfile, out.Availability, nil
}

func (c *HTTPClient) QueryActivities(ctx context.Context, athleteID string, start, end time.Time) ([]models.Activity, error) {
	params := url.Values{}
	params.Set("athlete", athleteID)
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	body, err := c.get(ctx, "/api/v1/activities", params)
	if err != nil {
		return nil, err
	}

	var out []models.Activity
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("httpclient: decode activities: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) AllActivities(ctx context.Context, athleteID string) ([]models.Activity, error) {
	// The REST API has no unbounded query; a wide range is equivalent.
	start := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	return c.QueryActivities(ctx, athleteID, start, time.Now().UTC().AddDate(0, 0, 1))
}

func (c *HTTPClient) GetLatestPlan(ctx context.Context, athleteID string, weekStart time.Time) (models.WeeklyPlan, error) {
	params := url.Values{}
	params.Set("athlete", athleteID)

	body, err := c.get(ctx, "/api/v1/plans/"+weekStart.Format(models.DateLayout), params)
	if err != nil {
		return models.WeeklyPlan{}, err
	}

	var out models.WeeklyPlan
	if err := json.Unmarshal(body, &out); err != nil {
		return models.WeeklyPlan{}, fmt.Errorf("httpclient: decode plan: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) ListPlans(ctx context.Context, athleteID string) ([]models.WeeklyPlan, error) {
	params := url.Values{}
	params.Set("athlete", athleteID)

	body, err := c.get(ctx, "/api/v1/plans", params)
	if err != nil {
		return nil, err
	}

	var out []models.WeeklyPlan
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("httpclient: decode plans: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) GetReadiness(ctx context.Context, athleteID, date string) (models.ReadinessCheck, error) {
	params := url.Values{}
	params.Set("athlete", athleteID)
	params.Set("date", date)

	body, err := c.get(ctx, "/api/v1/readiness", params)
	if err != nil {
		return models.ReadinessCheck{}, err
	}

	var out models.ReadinessCheck
	if err := json.Unmarshal(body, &out); err != nil {
		return models.ReadinessCheck{}, fmt.Errorf("httpclient: decode readiness: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) ReadinessRange(ctx context.Context, athleteID, start, end string) ([]models.ReadinessCheck, error) {
	params := url.Values{}
	params.Set("athlete", athleteID)
	params.Set("start", start)
	params.Set("end", end)

	body, err := c.get(ctx, "/api/v1/readiness", params)
	if err != nil {
		return nil, err
	}

	var out []models.ReadinessCheck
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("httpclient: decode readiness range: %w", err)
	}
	return out, nil
}
