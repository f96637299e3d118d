package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"hourlycast/internal/forecast"
)

var validate = validator.New()

// Geocoder resolves a place name when a registration omits coordinates.
type Geocoder interface {
	Resolve(city, state, country string) (float64, float64, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc *forecast.Service, geo Geocoder) {
	v1 := app.Group("/api/v1")

	v1.Post("/instances", func(c *fiber.Ctx) error {
		var req registerRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cfg, err := req.toInstanceConfig(geo)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := svc.Configure(cfg); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to register instance")
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"instanceId": cfg.InstanceID,
		})
	})

	v1.Delete("/instances/:id", func(c *fiber.Ctx) error {
		if err := svc.Unregister(c.Params("id")); err != nil {
			if errors.Is(err, forecast.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "unknown instance")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to unregister instance")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/instances/:id/forecast", func(c *fiber.Ctx) error {
		payload, err := svc.LatestFor(c.Params("id"))
		if err != nil {
			if errors.Is(err, forecast.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast data for instance")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast data")
		}
		return c.JSON(payload)
	})
}

// registerRequest is the inbound configuration message for one display
// instance. Either a coordinate pair or a geocodable city is required.
type registerRequest struct {
	InstanceID string   `json:"instanceId"`
	Latitude   *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	Country    string   `json:"country"`

	Units          string `json:"units" validate:"omitempty,oneof=imperial metric"`
	UpdateInterval string `json:"updateInterval"` // Go duration string, e.g. "10m"
	HoursToShow    int    `json:"hoursToShow" validate:"omitempty,gte=1,lte=48"`
	CallbackURL    string `json:"callbackUrl" validate:"omitempty,url"`
}

func (r registerRequest) toInstanceConfig(geo Geocoder) (forecast.InstanceConfig, error) {
	var lat, lon float64
	switch {
	case r.Latitude != nil && r.Longitude != nil:
		lat, lon = *r.Latitude, *r.Longitude
	case r.City != "":
		var err error
		lat, lon, err = geo.Resolve(r.City, r.State, r.Country)
		if err != nil {
			return forecast.InstanceConfig{}, fmt.Errorf("could not resolve location: %w", err)
		}
	default:
		return forecast.InstanceConfig{}, errors.New("either latitude/longitude or city is required")
	}

	var interval time.Duration
	if r.UpdateInterval != "" {
		var err error
		interval, err = time.ParseDuration(r.UpdateInterval)
		if err != nil {
			return forecast.InstanceConfig{}, fmt.Errorf("invalid updateInterval: %w", err)
		}
	}

	id := r.InstanceID
	if id == "" {
		id = uuid.NewString()
	}

	return forecast.InstanceConfig{
		InstanceID:     id,
		Latitude:       lat,
		Longitude:      lon,
		Units:          forecast.UnitSystem(r.Units),
		UpdateInterval: interval,
		HoursToShow:    r.HoursToShow,
		CallbackURL:    r.CallbackURL,
	}, nil
}
