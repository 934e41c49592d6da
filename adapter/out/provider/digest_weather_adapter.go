// Package provider holds HTTP adapters for the enrichment
// collaborators: current weather and IP geolocation.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/domain"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/apperr"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/resilience"
)

const (
	geocodeBaseURL  = "https://geocoding-api.open-meteo.com/v1/search"
	forecastBaseURL = "https://api.open-meteo.com/v1/forecast"

	weatherCacheTTL = 30 * time.Minute
)

// weatherCodes maps the WMO weather interpretation codes open-meteo
// returns to display conditions.
var weatherCodes = map[int]string{
	0: "clear", 1: "mostly clear", 2: "partly cloudy", 3: "overcast",
	45: "foggy", 48: "foggy",
	51: "drizzle", 53: "drizzle", 55: "drizzle",
	61: "rainy", 63: "rainy", 65: "rainy",
	66: "freezing rain", 67: "freezing rain",
	71: "snowy", 73: "snowy", 75: "snowy", 77: "snowy",
	80: "rain showers", 81: "rain showers", 82: "rain showers",
	85: "snow showers", 86: "snow showers",
	95: "stormy", 96: "stormy", 99: "stormy",
}

// WeatherClient implements out.WeatherProvider over the open-meteo
// geocoding and forecast APIs, with a TTL cache in front.
type WeatherClient struct {
	httpClient *http.Client
	breaker    *resilience.Breaker
	cache      out.TTLCache
}

func NewWeatherClient(timeout time.Duration, cache out.TTLCache) *WeatherClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WeatherClient{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerConfig("weather")),
		cache:      cache,
	}
}

var _ out.WeatherProvider = (*WeatherClient)(nil)

func (c *WeatherClient) Current(ctx context.Context, city, region string) (*domain.Weather, error) {
	if strings.TrimSpace(city) == "" {
		return nil, apperr.BadRequest("weather lookup requires a city")
	}

	key := weatherCacheKey(city, region)
	if c.cache != nil {
		var cached domain.Weather
		if found, _ := c.cache.GetJSON(ctx, key, &cached); found {
			return &cached, nil
		}
	}

	var weather *domain.Weather
	err := c.breaker.Execute(func() error {
		lat, lon, resolvedCity, err := c.geocode(ctx, city, region)
		if err != nil {
			return err
		}
		weather, err = c.fetchCurrent(ctx, lat, lon, resolvedCity)
		return err
	})
	if err != nil {
		return nil, apperr.ExternalCall("weather", err)
	}

	if c.cache != nil {
		_ = c.cache.SetJSON(ctx, key, weather, weatherCacheTTL)
	}
	return weather, nil
}

func weatherCacheKey(city, region string) string {
	return fmt.Sprintf("weather:%s|%s", strings.ToLower(city), strings.ToLower(region))
}

func (c *WeatherClient) geocode(ctx context.Context, city, region string) (lat, lon float64, name string, err error) {
	query := url.Values{}
	query.Set("name", city)
	query.Set("count", "5")

	var result struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Admin1    string  `json:"admin1"`
		} `json:"results"`
	}
	if err = c.getJSON(ctx, geocodeBaseURL+"?"+query.Encode(), &result); err != nil {
		return 0, 0, "", err
	}
	if len(result.Results) == 0 {
		return 0, 0, "", fmt.Errorf("no geocoding match for %q", city)
	}

	// Prefer the match within the hinted region.
	best := result.Results[0]
	if region != "" {
		for _, r := range result.Results {
			if strings.EqualFold(r.Admin1, region) {
				best = r
				break
			}
		}
	}
	return best.Latitude, best.Longitude, best.Name, nil
}

func (c *WeatherClient) fetchCurrent(ctx context.Context, lat, lon float64, city string) (*domain.Weather, error) {
	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%.4f", lat))
	query.Set("longitude", fmt.Sprintf("%.4f", lon))
	query.Set("current", "temperature_2m,weather_code")
	query.Set("temperature_unit", "fahrenheit")

	var result struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
	}
	if err := c.getJSON(ctx, forecastBaseURL+"?"+query.Encode(), &result); err != nil {
		return nil, err
	}

	condition, ok := weatherCodes[result.Current.WeatherCode]
	if !ok {
		condition = "unsettled"
	}
	return &domain.Weather{
		Temp:      int(result.Current.Temperature + 0.5),
		Condition: condition,
		City:      city,
	}, nil
}

func (c *WeatherClient) getJSON(ctx context.Context, rawURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}
