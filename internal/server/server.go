// Package server provides HTTP server setup for the phone library and the watch agent.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sebasr/bpmetrics/internal/auth"
	"github.com/sebasr/bpmetrics/internal/handlers"
	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/middleware"
	"github.com/sebasr/bpmetrics/internal/repository"
	"github.com/sebasr/bpmetrics/internal/transport"
)

// GlobalRequestsPerMinute is the per-IP limit applied to every route
const GlobalRequestsPerMinute = 100

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if request ID already exists in header
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// Dependencies holds all dependencies needed to create the phone server
type Dependencies struct {
	Library     handlers.Library
	Transport   transport.Handler // receives payloads posted by the watch
	DeviceRepo  repository.DeviceRepository
	Pairing     *auth.PairingService
	Metrics     *metrics.Collector          // Optional
	HealthCheck func(context.Context) error // Optional: nil reports healthy unconditionally
	Logger      *log.Logger
}

// WatchDependencies holds all dependencies needed to create the watch server
type WatchDependencies struct {
	Session handlers.Session
	Metrics *metrics.Collector // Optional
	Logger  *log.Logger
}

// New creates the phone router with all routes configured
func New(deps *Dependencies) *gin.Engine {
	router := newEngine(deps.Logger, deps.Metrics, "/api/v1/records/stream")

	pairing := middleware.NewPairingMiddleware(deps.Pairing)
	transportLimiter := middleware.NewTransportRateLimitMiddleware()

	libraryHandler := handlers.NewLibraryHandler(deps.Library, deps.Logger)
	transportHandler := handlers.NewTransportHandler(deps.Transport)
	deviceHandler := handlers.NewDeviceHandler(deps.DeviceRepo)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler(deps.HealthCheck))

		// Watch ingress (paired devices only, stricter rate limiting)
		ingress := v1.Group("/transport")
		ingress.Use(transportLimiter, pairing.Required())
		{
			ingress.POST("/*path", transportHandler.Receive)
		}

		records := v1.Group("/records")
		{
			records.GET("", libraryHandler.ListRecords)
			records.DELETE("", libraryHandler.DeleteAllRecords)
			records.GET("/stream", libraryHandler.StreamRecords)
			records.POST("/samples", libraryHandler.SeedSamples)
			records.GET("/:id", libraryHandler.GetRecord)
			records.PATCH("/:id", libraryHandler.RenameRecord)
		}

		devices := v1.Group("/devices")
		{
			devices.GET("", deviceHandler.ListDevices)
			devices.GET("/:id", deviceHandler.GetDevice)
		}
	}

	return router
}

// NewWatch creates the watch router exposing session control
func NewWatch(deps *WatchDependencies) *gin.Engine {
	router := newEngine(deps.Logger, deps.Metrics, "/api/v1/session/stream")

	sessionHandler := handlers.NewSessionHandler(deps.Session)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthHandler)

		session := v1.Group("/session")
		{
			session.GET("", sessionHandler.GetSession)
			session.POST("/start", sessionHandler.StartSession)
			session.POST("/stop", sessionHandler.StopSession)
			session.GET("/stream", sessionHandler.StreamSession)
		}
	}

	return router
}

func newEngine(logger *log.Logger, collector *metrics.Collector, streamPaths ...string) *gin.Engine {
	// Set Gin to release mode to disable ANSI colors in logs
	gin.SetMode(gin.ReleaseMode)

	var out io.Writer = io.Discard
	if logger != nil {
		out = logger.Writer()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(p gin.LogFormatterParams) string {
			return fmt.Sprintf("HTTP: %s %s %d %s\n", p.Method, p.Path, p.StatusCode, p.Latency)
		},
		Output:    out,
		SkipPaths: []string{"/api/v1/health", "/metrics"},
	}))

	// CORS for the browser dashboard
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Encoding", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(RequestIDMiddleware())
	router.Use(collector.Middleware())
	router.Use(middleware.NewRateLimitMiddleware(GlobalRequestsPerMinute, time.Minute))
	// Event streams are flushed per event and stay uncompressed
	router.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithDecompressFn(gzip.DefaultDecompressHandle),
		gzip.WithExcludedPaths(streamPaths),
	))

	router.GET("/metrics", gin.WrapH(collector.Handler()))

	return router
}

func healthHandler(check func(context.Context) error) gin.HandlerFunc {
	if check == nil {
		return handlers.HealthHandler
	}
	return handlers.NewHealthCheckHandler(check)
}
