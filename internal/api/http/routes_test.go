package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"hourlycast/internal/forecast"
)

type stubSource struct{}

func (stubSource) ResolveGridpoint(context.Context, float64, float64) (forecast.GridEndpoint, error) {
	return forecast.GridEndpoint{Office: "SEW", GridX: 127, GridY: 75}, nil
}

func (stubSource) GetGridProperties(context.Context, forecast.GridEndpoint) (forecast.GridProperties, error) {
	return forecast.GridProperties{}, nil
}

type stubSink struct{}

func (stubSink) Deliver(forecast.InstanceConfig, forecast.Payload) {}
func (stubSink) DeliverError(forecast.InstanceConfig, string)      {}

type stubScheduler struct{}

func (stubScheduler) Schedule(string, time.Duration, func()) error { return nil }
func (stubScheduler) Cancel(string) error                          { return nil }

type stubGeocoder struct{}

func (stubGeocoder) Resolve(string, string, string) (float64, float64, error) {
	return 0, 0, errors.New("geocoding disabled")
}

func newTestApp() *fiber.App {
	app := fiber.New()
	svc := forecast.NewService(stubSource{}, stubSink{}, stubScheduler{}, forecast.ServiceConfig{})
	RegisterRoutes(app, svc, stubGeocoder{})
	return app
}

// TestRegisterValidation verifies that registration requires either a
// coordinate pair or a geocodable city and rejects out-of-range values.
func TestRegisterValidation(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing location", `{}`, http.StatusBadRequest},
		{"latitude out of range", `{"latitude": 91, "longitude": 0}`, http.StatusBadRequest},
		{"bad units", `{"latitude": 47.6, "longitude": -122.3, "units": "kelvin"}`, http.StatusBadRequest},
		{"hours out of range", `{"latitude": 47.6, "longitude": -122.3, "hoursToShow": 49}`, http.StatusBadRequest},
		{"bad interval", `{"latitude": 47.6, "longitude": -122.3, "updateInterval": "soon"}`, http.StatusBadRequest},
		{"city without geocoder", `{"city": "Seattle", "state": "WA"}`, http.StatusBadRequest},
		{"valid", `{"latitude": 47.6, "longitude": -122.3, "hoursToShow": 12}`, http.StatusAccepted},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/instances", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
	}
}

// TestRegisterGeneratesInstanceID verifies that registration without an id
// returns a generated one.
func TestRegisterGeneratesInstanceID(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/instances",
		strings.NewReader(`{"latitude": 47.6, "longitude": -122.3}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}

	var body struct {
		InstanceID string `json:"instanceId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.InstanceID == "" {
		t.Fatal("expected a generated instanceId")
	}
}

// TestForecastNotFound verifies unknown instances map to 404.
func TestForecastNotFound(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/instances/nope/forecast", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

// TestUnregisterNotFound verifies removing an unknown instance maps to 404.
func TestUnregisterNotFound(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/instances/nope", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestRegisterThenUnregister(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/instances",
		strings.NewReader(`{"instanceId": "widget-1", "latitude": 47.6, "longitude": -122.3}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/instances/widget-1", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
}
