package bootstrap

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	httpadapter "github.com/aerioncore/mailcore/adapter/in/http"
	"github.com/aerioncore/mailcore/config"
	"github.com/aerioncore/mailcore/infra/middleware"
)

// NewAPI builds the Fiber app: middleware stack, route mounts, and a
// cleanup func that releases every connection build opened.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := build(cfg)
	if err != nil {
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:                  "mailcore",
		ErrorHandler:             middleware.ErrorHandler(),
		DisableStartupMessage:    cfg.IsProduction(),
		JSONEncoder:              json.Marshal,
		JSONDecoder:              json.Unmarshal,
		ReadBufferSize:           16384,
		WriteBufferSize:          16384,
		BodyLimit:                10 * 1024 * 1024,
		ServerHeader:             "",
		DisableDefaultDate:       true,
		DisableHeaderNormalizing: false,
		StreamRequestBody:        true,
	})

	// Order matters: recover first so nothing downstream can crash the
	// process, request ID before anything that logs, input sanitizing
	// before the handlers that would otherwise see the raw payload.
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.InputSanitizer())
	app.Use(middleware.RequestLogger(deps.Metrics))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	origins, allowCredentials := corsOrigins(cfg)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	generalLimiter := middleware.NewRateLimiter(120, time.Minute)
	app.Use(generalLimiter.Handler())
	app.Use(middleware.NewEndpointRateLimiter().Handler())

	httpadapter.Mount(app, "/api/v1", deps.httpServices())

	return app, cleanup, nil
}

// corsOrigins never allows "*" with credentials; production with nothing
// configured blocks cross-origin callers outright rather than relaxing.
func corsOrigins(cfg *config.Config) (origins string, allowCredentials bool) {
	joined := strings.Join(cfg.AllowedOrigins, ",")
	if joined == "" || joined == "*" {
		if cfg.IsProduction() {
			return "", false
		}
		return "http://localhost:3000,http://localhost:5173", true
	}
	return joined, true
}
