// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ridequick/internal/http/handlers"
	"ridequick/internal/http/middleware"
	"ridequick/internal/infra"
	"ridequick/internal/modules/driver"
	"ridequick/internal/modules/pricing"
	"ridequick/internal/modules/trip"
)

type ServerDeps struct {
	Trips    *trip.Service
	Drivers  *driver.Service
	Pricing  *pricing.Service
	Routes   handlers.RouteEstimator
	Verifier infra.TokenVerifier
	Logger   *zap.Logger
}

type Server struct {
	trips    *trip.Service
	drivers  *driver.Service
	pricing  *pricing.Service
	routes   handlers.RouteEstimator
	verifier infra.TokenVerifier
	log      *zap.Logger
}

func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		trips:    deps.Trips,
		drivers:  deps.Drivers,
		pricing:  deps.Pricing,
		routes:   deps.Routes,
		verifier: deps.Verifier,
		log:      logger,
	}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(s.verifier))

	cabs := handlers.NewCabTypeHandler(s.pricing)
	api.GET("/cab-types", cabs.List)
	api.POST("/cab-types", middleware.RequireRole("admin"), cabs.Create)

	drivers := handlers.NewDriverHandler(s.drivers, s.trips)
	api.GET("/drivers/nearby", drivers.Nearby)
	api.GET("/drivers/:id", drivers.Get)
	api.GET("/drivers/:id/trips", middleware.RequireRole("admin", "dispatcher"), drivers.Trips)

	estimates := handlers.NewEstimateHandler(s.pricing, s.drivers, s.routes, s.log)
	api.POST("/trips/estimate", estimates.Estimate)

	trips := handlers.NewTripHandler(s.trips)
	api.POST("/trips", trips.Create)
	api.GET("/trips", trips.List)
	api.GET("/trips/:id", trips.Get)
	api.PATCH("/trips/:id", trips.Patch)
	api.GET("/trips/:id/events", trips.Events)
	api.POST("/trips/:id/start", trips.Start)
	api.POST("/trips/:id/complete", trips.Complete)
	api.POST("/trips/:id/cancel", trips.Cancel)

	return r
}
