// Package geocode resolves place names to coordinates for configuration
// messages that omit latitude and longitude.
package geocode

import (
	"errors"
	"fmt"

	"github.com/kelvins/geocoder"
)

// ErrDisabled is returned when no geocoder API key is configured.
var ErrDisabled = errors.New("geocoding disabled: no api key configured")

type Resolver struct {
	enabled bool
}

// NewResolver configures the geocoder. Geocoding requires a Google API key;
// without one the resolver stays disabled and configuration messages must
// carry coordinates.
func NewResolver(apiKey string) *Resolver {
	if apiKey == "" {
		return &Resolver{}
	}
	geocoder.ApiKey = apiKey
	return &Resolver{enabled: true}
}

// Resolve maps a city/state/country triple to a coordinate pair.
func (r *Resolver) Resolve(city, state, country string) (float64, float64, error) {
	if r == nil || !r.enabled {
		return 0, 0, ErrDisabled
	}

	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    city,
		State:   state,
		Country: country,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", city, err)
	}
	return loc.Latitude, loc.Longitude, nil
}
