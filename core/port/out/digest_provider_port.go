package out

import (
	"context"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
)

// WeatherProvider returns current conditions for a city. A nil result
// with nil error means "no weather available"; callers render without it.
type WeatherProvider interface {
	Current(ctx context.Context, city, region string) (*domain.Weather, error)
}

// GeoLocation is the IP-geolocation result.
type GeoLocation struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// GeoLocator resolves the caller's approximate location when city hints
// are absent.
type GeoLocator interface {
	Locate(ctx context.Context) (*GeoLocation, error)
}
