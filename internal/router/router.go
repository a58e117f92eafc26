package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/venue-reservation/internal/handler"
)

// RegisterRoutes registers operational routes that do not require
// authentication: the liveness and readiness checks and, when enabled, the
// prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metricsEnabled bool) {
	// Load balancers hit /healthz; /readyz also checks the database.
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	if metricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
}

// RegisterPublic registers unauthenticated catalog reads.  The snapshot
// route is wrapped by the response cache when one is supplied; pass nil to
// serve it uncached.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if cache != nil {
		mw = append(mw, cache)
	}
	e.GET("/v1/services/:id/snapshot", p.GetServiceSnapshot, mw...)
}
