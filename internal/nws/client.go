// Package nws is a client for the api.weather.gov grid forecast endpoints:
// coordinate-to-gridpoint resolution and raw gridpoint properties.
package nws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"hourlycast/internal/forecast"
)

const DefaultBaseURL = "https://api.weather.gov"

var (
	errServerError = errors.New("server error")
	errRateLimited = errors.New("rate limited")
	errUnexpected  = errors.New("unexpected status code")
)

// Client implements forecast.GridSource against the NWS API. The API
// requires a descriptive User-Agent identifying the calling application.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	circuit    *gobreaker.CircuitBreaker
}

func NewClient(httpClient *http.Client, baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nws",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		circuit:    cb,
	}
}

type pointsResponse struct {
	Properties struct {
		GridID           string `json:"gridId"`
		GridX            int    `json:"gridX"`
		GridY            int    `json:"gridY"`
		ForecastGridData string `json:"forecastGridData"`
	} `json:"properties"`
}

type seriesValue struct {
	ValidTime string   `json:"validTime"`
	Value     *float64 `json:"value"`
}

type quantity struct {
	UOM    string        `json:"uom"`
	Values []seriesValue `json:"values"`
}

type gridResponse struct {
	Properties struct {
		UpdateTime                 time.Time `json:"updateTime"`
		Temperature                quantity  `json:"temperature"`
		ApparentTemperature        quantity  `json:"apparentTemperature"`
		WindSpeed                  quantity  `json:"windSpeed"`
		WindGust                   quantity  `json:"windGust"`
		ProbabilityOfPrecipitation quantity  `json:"probabilityOfPrecipitation"`
		QuantitativePrecipitation  quantity  `json:"quantitativePrecipitation"`
		SnowfallAmount             quantity  `json:"snowfallAmount"`
	} `json:"properties"`
}

// ResolveGridpoint maps a coordinate pair to its forecast-grid endpoint via
// the /points endpoint.
func (c *Client) ResolveGridpoint(ctx context.Context, lat, lon float64) (forecast.GridEndpoint, error) {
	u := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)

	var payload pointsResponse
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return forecast.GridEndpoint{}, fmt.Errorf("points %.4f,%.4f: %w", lat, lon, err)
	}
	if payload.Properties.GridID == "" {
		return forecast.GridEndpoint{}, fmt.Errorf("points %.4f,%.4f: no grid coverage", lat, lon)
	}

	return forecast.GridEndpoint{
		Office:      payload.Properties.GridID,
		GridX:       payload.Properties.GridX,
		GridY:       payload.Properties.GridY,
		ForecastURL: payload.Properties.ForecastGridData,
	}, nil
}

// GetGridProperties fetches the raw quantity series for a resolved grid
// endpoint.
func (c *Client) GetGridProperties(ctx context.Context, ep forecast.GridEndpoint) (forecast.GridProperties, error) {
	u := ep.ForecastURL
	if u == "" {
		u = fmt.Sprintf("%s/gridpoints/%s/%d,%d", c.baseURL, ep.Office, ep.GridX, ep.GridY)
	}

	var payload gridResponse
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return forecast.GridProperties{}, fmt.Errorf("gridpoints %s/%d,%d: %w", ep.Office, ep.GridX, ep.GridY, err)
	}

	return forecast.GridProperties{
		Temperature:                records(payload.Properties.Temperature),
		ApparentTemperature:        records(payload.Properties.ApparentTemperature),
		WindSpeed:                  records(payload.Properties.WindSpeed),
		WindGust:                   records(payload.Properties.WindGust),
		ProbabilityOfPrecipitation: records(payload.Properties.ProbabilityOfPrecipitation),
		QuantitativePrecipitation:  records(payload.Properties.QuantitativePrecipitation),
		SnowfallAmount:             records(payload.Properties.SnowfallAmount),
	}, nil
}

// getJSON runs one GET through the circuit breaker and decodes the body.
// Retrying is the caller's concern; the breaker only sheds load once the
// upstream is persistently failing.
func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.httpClient.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, errServerError
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return fmt.Errorf("unexpected result type from circuit breaker")
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func records(q quantity) []forecast.RawSeriesRecord {
	if len(q.Values) == 0 {
		return nil
	}
	out := make([]forecast.RawSeriesRecord, 0, len(q.Values))
	for _, v := range q.Values {
		out = append(out, forecast.RawSeriesRecord{ValidTime: v.ValidTime, Value: v.Value})
	}
	return out
}
