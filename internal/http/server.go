package http

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmehdipour/pos-sync/internal/config"
	"github.com/jmehdipour/pos-sync/internal/http/middleware"
	"github.com/jmehdipour/pos-sync/internal/scheduler"
	"github.com/jmehdipour/pos-sync/internal/service/queue"
)

type Server struct{ e *echo.Echo }

// NewServer wires the admin/status surface: health, metrics, sync control,
// and the enqueue endpoint for out-of-process domain collaborators.
func NewServer(cfg config.Config, queueSvc *queue.Service, sched *scheduler.Scheduler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	authMW := middleware.APIKeyMiddleware(cfg.HTTP.APIKey)

	v1 := e.Group("/v1", authMW)
	v1.GET("/sync/status", syncStatusHandler(queueSvc, sched))
	v1.POST("/sync/now", syncNowHandler(sched))
	v1.POST("/sync/pause", syncPauseHandler(sched))
	v1.POST("/sync/resume", syncResumeHandler(sched))
	v1.POST("/outbox", enqueueHandler(queueSvc))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
