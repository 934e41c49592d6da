// Package bootstrap wires configuration, adapters, the pipeline, and
// the fiber app into a runnable API.
package bootstrap

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	httpin "github.com/jkoufopoulos/shopq-prototype-sub001/adapter/in/http"
	"github.com/jkoufopoulos/shopq-prototype-sub001/config"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/service"
	"github.com/jkoufopoulos/shopq-prototype-sub001/core/service/pipeline"
	"github.com/jkoufopoulos/shopq-prototype-sub001/infra/middleware"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/logger"
)

// NewAPI builds the fiber app. The returned cleanup releases adapter
// resources and must run on shutdown.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := "info"
	if cfg.IsDevelopment() {
		logLevel = "debug"
	}
	logger.Init(logger.Config{Level: logLevel, Service: "mailq"})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	svc, err := NewDigestService(cfg, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             10 * 1024 * 1024,
	})

	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	httpin.NewDigestHandler(svc).Register(app)
	httpin.NewHealthHandler(svc).Register(app)

	return app, cleanup, nil
}

// NewDigestService assembles the stage graph and the service around it.
// A bad stage graph fails here, before the server accepts traffic.
func NewDigestService(cfg *config.Config, deps *Dependencies) (*service.DigestService, error) {
	p, err := pipeline.New(
		pipeline.NewTemporalStage(),
		pipeline.NewT0Stage(),
		pipeline.NewT1Stage(),
		pipeline.NewNoiseStage(deps.TextModel),
		pipeline.NewEntityStage(deps.TextModel, deps.TextModel != nil),
		pipeline.NewEnrichStage(deps.Weather, deps.Geo),
		pipeline.NewSynthesisStage(deps.TextModel, pipeline.SynthesisConfig{
			LLMSynthesis:  cfg.LLMSynthesis && deps.TextModel != nil,
			RawDigest:     cfg.RawDigest,
			PromptVersion: cfg.SynthesisPrompt,
			DebugFeatured: cfg.DebugFeatured,
		}),
		pipeline.NewValidateStage(cfg.VerifierKnownNames),
	)
	if err != nil {
		return nil, err
	}
	return service.NewDigestService(p, deps.Prefs, deps.History), nil
}
