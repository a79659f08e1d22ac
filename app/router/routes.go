// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/revlyhq/revly-backend/app/dto"
	"github.com/revlyhq/revly-backend/app/handlers"
	"github.com/revlyhq/revly-backend/app/middleware"
	"github.com/revlyhq/revly-backend/config"
	"github.com/revlyhq/revly-backend/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	cfg               *config.ProductionConfig
	feedbackHandler   handlers.FeedbackHandlerInterface
	customerHandler   handlers.CustomerHandlerInterface
	activityHandler   handlers.ActivityHandlerInterface
	reviewLinkHandler handlers.ReviewLinkHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	feedbackHandler handlers.FeedbackHandlerInterface,
	customerHandler handlers.CustomerHandlerInterface,
	activityHandler handlers.ActivityHandlerInterface,
	reviewLinkHandler handlers.ReviewLinkHandlerInterface,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Revly API",
		ServerHeader: "Revly",
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:               app,
		cfg:               cfg,
		feedbackHandler:   feedbackHandler,
		customerHandler:   customerHandler,
		activityHandler:   activityHandler,
		reviewLinkHandler: reviewLinkHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	// Public review link route; the token carries the tenant so there is
	// no tenant header here
	r.app.Get("/r/:token", r.reviewLinkHandler.Visit)

	if r.cfg.Metrics.Enabled {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:        2000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	api.Use(middleware.Tenant())

	api.Post("/feedback", r.feedbackHandler.Submit)
	api.Delete("/feedback", r.feedbackHandler.Clear)
	api.Get("/customers", r.customerHandler.List)
	api.Post("/send", r.customerHandler.Send)
	api.Get("/activity", r.activityHandler.List)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Server.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			"X-Tenant-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		MaxAge: 3600,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"service":   "revly-api",
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "Endpoint not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An unexpected error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
		},
	})
}
