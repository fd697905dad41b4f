package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestReadingPayload_Parse(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	testCases := []struct {
		name        string
		body        string
		expectError bool
		errorFields []string
		expected    ReadingInput
	}{
		{
			name:     "Valid numbers",
			body:     `{"temperature": 25.5, "humidity": 40, "origin": "raspberry-picoW"}`,
			expected: ReadingInput{Temperature: 25.5, Humidity: 40, Origin: "raspberry-picoW"},
		},
		{
			name:     "Numeric strings",
			body:     `{"temperature": "21.3", "humidity": "55", "origin": " simulator "}`,
			expected: ReadingInput{Temperature: 21.3, Humidity: 55, Origin: "simulator"},
		},
		{
			name:     "Zero values are present values",
			body:     `{"temperature": 0, "humidity": 0}`,
			expected: ReadingInput{Temperature: 0, Humidity: 0},
		},
		{
			name:     "Humidity above 100 is not rejected",
			body:     `{"temperature": 20, "humidity": 120}`,
			expected: ReadingInput{Temperature: 20, Humidity: 120},
		},
		{
			name:     "Timestamp is normalized to UTC",
			body:     `{"temperature": 20, "humidity": 50, "timestamp": "` + ts.Format(time.RFC3339) + `"}`,
			expected: ReadingInput{Temperature: 20, Humidity: 50, Timestamp: ts.UTC()},
		},
		{
			name:        "Missing temperature",
			body:        `{"humidity": 50}`,
			expectError: true,
			errorFields: []string{"temperature"},
		},
		{
			name:        "Missing both",
			body:        `{"origin": "simulator"}`,
			expectError: true,
			errorFields: []string{"temperature", "humidity"},
		},
		{
			name:        "Null humidity",
			body:        `{"temperature": 22, "humidity": null}`,
			expectError: true,
			errorFields: []string{"humidity"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p ReadingPayload
			if err := json.Unmarshal([]byte(tc.body), &p); err != nil {
				t.Fatalf("Failed to unmarshal payload: %v", err)
			}

			in, err := p.Parse()
			if tc.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !errors.Is(err, ErrMissingField) {
					t.Errorf("Expected ErrMissingField, got %v", err)
				}
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Expected *ValidationError, got %T", err)
				}
				for _, f := range tc.errorFields {
					if _, ok := verr.Fields[f]; !ok {
						t.Errorf("Expected error for field %q, got %v", f, verr.Fields)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if in != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, in)
			}
		})
	}
}

func TestReadingPayload_InvalidNumber(t *testing.T) {
	testCases := []string{
		`{"temperature": "warm", "humidity": 40}`,
		`{"temperature": "NaN", "humidity": 40}`,
		`{"temperature": 20, "humidity": "Inf"}`,
		`{"temperature": "-Infinity", "humidity": 40}`,
		`{"temperature": "1e400", "humidity": 40}`,
	}

	for _, body := range testCases {
		var p ReadingPayload
		if err := json.Unmarshal([]byte(body), &p); err == nil {
			t.Errorf("Expected unmarshal error for %s", body)
		}
	}
}

func TestParseNumber_NonFinite(t *testing.T) {
	for _, s := range []string{"NaN", "nan", "Inf", "+Inf", "-Infinity"} {
		if n, err := ParseNumber(s); err == nil {
			t.Errorf("Expected error for %q, got %+v", s, n)
		}
	}

	n, err := ParseNumber(" 12,5 ")
	if err != nil || n.Float() != 12.5 {
		t.Errorf("Expected 12.5, got %+v (%v)", n, err)
	}
}

func TestLatestQuery_Normalize(t *testing.T) {
	testCases := []struct {
		limit    int
		expected int
	}{
		{0, DefaultLatestLimit},
		{-5, DefaultLatestLimit},
		{1, 1},
		{20, 20},
		{100, 100},
		{101, MaxLatestLimit},
		{5000, MaxLatestLimit},
	}

	for _, tc := range testCases {
		got := LatestQuery{Limit: tc.limit}.Normalize().Limit
		if got != tc.expected {
			t.Errorf("Normalize(%d) = %d, expected %d", tc.limit, got, tc.expected)
		}
	}
}

func TestEvaluateAlerts(t *testing.T) {
	cfg := DefaultConfig()

	testCases := []struct {
		name     string
		reading  SensorReading
		expected Alerts
	}{
		{
			name:     "All below limits",
			reading:  SensorReading{Temperature: 25, Humidity: 50, HeatIndex: 35},
			expected: Alerts{},
		},
		{
			name:     "Temperature above limit",
			reading:  SensorReading{Temperature: 35.1, Humidity: 50, HeatIndex: 35},
			expected: Alerts{Temperature: true},
		},
		{
			name:     "Equal to limit is not an alert",
			reading:  SensorReading{Temperature: 35, Humidity: 65, HeatIndex: 38},
			expected: Alerts{},
		},
		{
			name:     "Everything above",
			reading:  SensorReading{Temperature: 40, Humidity: 80, HeatIndex: 45},
			expected: Alerts{Temperature: true, Humidity: true, HeatIndex: true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateAlerts(tc.reading, cfg)
			if got != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, got)
			}
			if got.Any() != (tc.expected != Alerts{}) {
				t.Errorf("Any() mismatch for %+v", got)
			}
		})
	}
}

func TestEvaluateAlerts_UnsetLimits(t *testing.T) {
	got := EvaluateAlerts(SensorReading{Temperature: 90, Humidity: 90, HeatIndex: 90}, EnvironmentalConfig{})
	if got.Any() {
		t.Errorf("Expected no alerts without configured limits, got %+v", got)
	}
}
