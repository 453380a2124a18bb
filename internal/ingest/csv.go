package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// headerRe matches the export column header: DATE;START;MINUTES;AVG_W;NP_W;AVG_HR;RPE;LOCATION
	headerRe = regexp.MustCompile(`^DATE;START;MINUTES;`)

	// rowRe matches: 2026-03-02;18:05;90;210;225;142;6;indoor
	rowRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2});(\d{1,2}:\d{2});([^;]*);([^;]*);([^;]*);([^;]*);([^;]*);(\w*)$`)
)

// ParseCSV reads a semicolon-separated ride log export. Empty numeric
// columns mean the metric was not recorded.
func ParseCSV(r io.Reader) ([]RawActivity, error) {
	scanner := bufio.NewScanner(r)
	var out []RawActivity
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || headerRe.MatchString(line) {
			continue
		}

		m := rowRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: unrecognized row %q", lineNo, line)
		}

		start, err := time.Parse("2006-01-02 15:04", m[1]+" "+m[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		minutes, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: minutes %q: %w", lineNo, m[3], err)
		}

		raw := RawActivity{
			StartTime: start.UTC(),
			Duration:  json.RawMessage(strconv.FormatFloat(minutes*60, 'f', -1, 64)),
			Indoor:    m[8] == "indoor",
			Source:    "csv",
		}
		if raw.AvgPower, err = optionalField(m[4]); err != nil {
			return nil, fmt.Errorf("line %d: avg power: %w", lineNo, err)
		}
		if raw.NormalizedPower, err = optionalField(m[5]); err != nil {
			return nil, fmt.Errorf("line %d: normalized power: %w", lineNo, err)
		}
		if raw.AvgHeartRate, err = optionalField(m[6]); err != nil {
			return nil, fmt.Errorf("line %d: avg heart rate: %w", lineNo, err)
		}
		if raw.PerceivedEffort, err = optionalField(m[7]); err != nil {
			return nil, fmt.Errorf("line %d: rpe: %w", lineNo, err)
		}
		out = append(out, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	return out, nil
}

func optionalField(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
