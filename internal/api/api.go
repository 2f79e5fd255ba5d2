// Package api is the HTTP façade (spec.md §6's HTTP surface), a gin
// engine wrapped to satisfy grace.Grace the way internal/jvp/api.API
// wraps its engine.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hyperwake/hyperwake/internal/poolctl"
)

// Version is reported by GET /health.
const Version = "0.1.0"

type API struct {
	engine *gin.Engine
	server *http.Server
	pool   *poolctl.Controller
}

// New builds the API and registers spec.md §6's routes. port is the
// operator-specified listen port.
func New(pool *poolctl.Controller, port int) *API {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	a := &API{
		engine: engine,
		pool:   pool,
		server: &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: engine},
	}
	a.registerRoutes(engine)
	return a
}

func (a *API) registerRoutes(r *gin.Engine) {
	r.GET("/health", a.health)
	v1 := r.Group("/api/v1")
	v1.POST("/acquire", a.acquire)
	v1.POST("/vms/:name/release", a.release)
	v1.POST("/vms/:name/resume", a.resume)
}

// Run starts serving and blocks until the listener fails or is closed
// by Shutdown, satisfying grace.Grace.
func (a *API) Run(ctx context.Context) error {
	err := a.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully, satisfying grace.Grace.
func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Name identifies this service to grace's shepherd.
func (a *API) Name() string { return "hyperwake-api" }
