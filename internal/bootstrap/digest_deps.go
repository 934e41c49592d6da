package bootstrap

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jkoufopoulos/shopq-prototype-sub001/adapter/out/cache"
	"github.com/jkoufopoulos/shopq-prototype-sub001/adapter/out/llm"
	"github.com/jkoufopoulos/shopq-prototype-sub001/adapter/out/persistence"
	"github.com/jkoufopoulos/shopq-prototype-sub001/adapter/out/provider"
	"github.com/jkoufopoulos/shopq-prototype-sub001/config"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// Dependencies holds the wired outbound adapters. Optional
// collaborators degrade to in-memory or nil implementations so the
// service runs with no external infrastructure at all.
type Dependencies struct {
	Cache     out.TTLCache
	TextModel out.TextModel
	Weather   out.WeatherProvider
	Geo       out.GeoLocator
	Prefs     out.PreferenceStore
	History   out.DigestHistory

	db *sqlx.DB
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Cache: Redis when configured, in-process otherwise.
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCacheFromURL(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
			deps.Cache = cache.NewMemoryCache()
		} else {
			deps.Cache = redisCache
		}
	} else {
		deps.Cache = cache.NewMemoryCache()
	}

	// LLM: optional. Without a key the pipeline runs deterministically.
	if cfg.OpenAIAPIKey != "" {
		deps.TextModel = llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
			MaxRetries:  cfg.LLMMaxRetries,
		})
	} else {
		logger.Warn().Msg("OPENAI_API_KEY unset, LLM features disabled")
	}

	deps.Weather = provider.NewWeatherClient(time.Duration(cfg.WeatherTimeoutSec)*time.Second, deps.Cache)
	deps.Geo = provider.NewGeoIPClient(time.Duration(cfg.GeoIPTimeoutSec)*time.Second, deps.Cache)

	// Storage: Postgres when configured, in-memory otherwise.
	if cfg.DatabaseURL != "" {
		db, err := persistence.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn().Err(err).Msg("database unavailable, using in-memory stores")
			deps.Prefs = persistence.NewMemoryPreferenceStore()
			deps.History = persistence.NewMemoryHistory()
		} else {
			deps.db = db
			deps.Prefs = persistence.NewPreferenceAdapter(db)
			deps.History = persistence.NewHistoryAdapter(db)
		}
	} else {
		deps.Prefs = persistence.NewMemoryPreferenceStore()
		deps.History = persistence.NewMemoryHistory()
	}

	cleanup := func() {
		if deps.db != nil {
			deps.db.Close()
		}
		if closer, ok := deps.Cache.(*cache.RedisCache); ok {
			closer.Close()
		}
	}
	return deps, cleanup, nil
}
