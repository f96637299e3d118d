package forecast

import (
	"context"
	"time"
)

// UnitSystem selects the display measurement system.
type UnitSystem string

const (
	UnitsImperial UnitSystem = "imperial"
	UnitsMetric   UnitSystem = "metric"
)

// PrecipKind distinguishes the two upstream precipitation series.
type PrecipKind string

const (
	PrecipLiquid PrecipKind = "liquid"
	PrecipFrozen PrecipKind = "frozen"
)

// RawSeriesRecord is one entry of an upstream quantity series:
// an interval encoded as "<RFC3339 start>/<ISO 8601 duration>" plus a value.
// The value may be null when the upstream has no data for the interval.
type RawSeriesRecord struct {
	ValidTime string
	Value     *float64
}

// GridProperties holds the raw quantity series for one grid endpoint,
// in the upstream's native units (degC, km/h, percent, mm).
type GridProperties struct {
	Temperature                []RawSeriesRecord
	ApparentTemperature        []RawSeriesRecord
	WindSpeed                  []RawSeriesRecord
	WindGust                   []RawSeriesRecord
	ProbabilityOfPrecipitation []RawSeriesRecord
	QuantitativePrecipitation  []RawSeriesRecord
	SnowfallAmount             []RawSeriesRecord
}

// ExpandedSample is one hour of a run-length expanded series.
type ExpandedSample struct {
	Time  time.Time
	Value *float64
}

// HourlySample is one display hour of the normalized forecast.
// Nil fields mean the upstream had no value at or before that hour.
type HourlySample struct {
	Timestamp int64    `json:"timestamp"` // unix seconds, top of the hour
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feelsLike"`
	WindSpeed *float64 `json:"windSpeed"`
	WindGust  *float64 `json:"windGust"`
	Pop       float64  `json:"pop"` // probability of precipitation, 0..1
}

// PrecipitationPeriod is a contiguous precipitation interval addressed by
// hour offsets into the hourly window. EndIndex is exclusive and both
// indices are clipped to [0, windowHours].
type PrecipitationPeriod struct {
	StartIndex       int        `json:"startIndex"`
	EndIndex         int        `json:"endIndex"`
	AmountNative     float64    `json:"amountNative"`  // upstream units (mm)
	AmountDisplay    float64    `json:"amount"`        // display units
	DisplayThreshold float64    `json:"displayThreshold"`
	Units            UnitSystem `json:"units"`
	Kind             PrecipKind `json:"kind"`
}

// Payload is the normalized output handed to the rendering layer.
type Payload struct {
	Hourly               []HourlySample        `json:"hourly"`
	PrecipitationPeriods []PrecipitationPeriod `json:"precipitationPeriods"`
}

// InstanceConfig is the inbound configuration message for one display
// instance of the rendering layer.
type InstanceConfig struct {
	InstanceID     string
	Latitude       float64
	Longitude      float64
	Units          UnitSystem
	UpdateInterval time.Duration
	HoursToShow    int

	// CallbackURL, when set, receives delivery messages as HTTP POSTs.
	CallbackURL string
}

// GridEndpoint identifies a resolved forecast-grid resource.
type GridEndpoint struct {
	Office      string
	GridX       int
	GridY       int
	ForecastURL string
}

// GridSource abstracts the upstream grid-forecast API.
type GridSource interface {
	ResolveGridpoint(ctx context.Context, lat, lon float64) (GridEndpoint, error)
	GetGridProperties(ctx context.Context, ep GridEndpoint) (GridProperties, error)
}
