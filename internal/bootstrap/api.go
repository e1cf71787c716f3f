package bootstrap

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpin "crisislens_server/adapter/in/http"
	"crisislens_server/config"
)

// NewAPI builds the fiber application with all routes mounted.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               "crisislens",
		DisableStartupMessage: !cfg.IsDevelopment(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             5 * 1024 * 1024,

		// go-json is 2-3x faster than encoding/json for these payloads
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	httpin.NewHealthHandler(deps.DB, deps.Redis, deps.Mongo).Register(app)
	httpin.NewAnalyzeHandler(deps.Orchestrator, deps.Records, deps.Logger).
		Register(app, httpin.RequireAdmin(cfg.AdminJWTSecret))

	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	return app, cleanup, nil
}
