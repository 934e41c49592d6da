package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/apperr"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/resilience"
)

const (
	geoIPBaseURL = "http://ip-api.com/json/?fields=status,city,regionName,country"

	geoCacheKey        = "geoip:self"
	geoSuccessCacheTTL = time.Hour
	geoFailureCacheTTL = 5 * time.Minute
)

// GeoIPClient implements out.GeoLocator against ip-api.com, locating the
// server's own egress IP. Successful lookups are cached for an hour;
// failures are negative-cached briefly so a dead provider is not
// hammered once per digest.
type GeoIPClient struct {
	httpClient *http.Client
	breaker    *resilience.Breaker
	cache      out.TTLCache
}

func NewGeoIPClient(timeout time.Duration, cache out.TTLCache) *GeoIPClient {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &GeoIPClient{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerConfig("geoip")),
		cache:      cache,
	}
}

var _ out.GeoLocator = (*GeoIPClient)(nil)

type geoCacheEntry struct {
	Failed   bool            `json:"failed"`
	Location out.GeoLocation `json:"location"`
}

func (c *GeoIPClient) Locate(ctx context.Context) (*out.GeoLocation, error) {
	if c.cache != nil {
		var cached geoCacheEntry
		if found, _ := c.cache.GetJSON(ctx, geoCacheKey, &cached); found {
			if cached.Failed {
				return nil, apperr.ExternalCall("geoip", fmt.Errorf("recent lookup failed"))
			}
			loc := cached.Location
			return &loc, nil
		}
	}

	var loc *out.GeoLocation
	err := c.breaker.Execute(func() error {
		var e error
		loc, e = c.fetch(ctx)
		return e
	})
	if err != nil {
		if c.cache != nil {
			_ = c.cache.SetJSON(ctx, geoCacheKey, geoCacheEntry{Failed: true}, geoFailureCacheTTL)
		}
		return nil, apperr.ExternalCall("geoip", err)
	}

	if c.cache != nil {
		_ = c.cache.SetJSON(ctx, geoCacheKey, geoCacheEntry{Location: *loc}, geoSuccessCacheTTL)
	}
	return loc, nil
}

func (c *GeoIPClient) fetch(ctx context.Context) (*out.GeoLocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geoIPBaseURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}

	var result struct {
		Status  string `json:"status"`
		City    string `json:"city"`
		Region  string `json:"regionName"`
		Country string `json:"country"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if result.Status != "success" || result.City == "" {
		return nil, fmt.Errorf("lookup status %q", result.Status)
	}
	return &out.GeoLocation{City: result.City, Region: result.Region, Country: result.Country}, nil
}
