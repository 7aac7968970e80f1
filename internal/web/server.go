package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeena-krishna/system-monitor/internal/alerts"
	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/monitor"
	"github.com/jeena-krishna/system-monitor/internal/store"
)

const (
	defaultHistoryWindow = time.Hour
	defaultAlertWindow   = 24 * time.Hour
	shutdownTimeout      = 5 * time.Second
)

// Server is the read-side HTTP surface over the store and the alert
// engine. Acknowledgement is the only mutation it exposes.
type Server struct {
	store  store.Store
	engine *alerts.Engine
	svc    *monitor.Service
	log    logger.Logger

	httpSrv *http.Server
}

func NewServer(addr string, st store.Store, engine *alerts.Engine, svc *monitor.Service, log logger.Logger) *Server {
	s := &Server{
		store:  st,
		engine: engine,
		svc:    svc,
		log:    log,
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())

	r.GET("/healthz", s.handleHealth)
	r.GET("/ws", s.handleStream)

	api := r.Group("/api")
	{
		api.GET("/system", s.handleSystem)

		metricsGroup := api.Group("/metrics")
		{
			metricsGroup.GET("/latest", s.handleLatest)
			metricsGroup.GET("/history", s.handleHistory)
			metricsGroup.GET("/export", s.handleExport)
		}

		alertsGroup := api.Group("/alerts")
		{
			alertsGroup.GET("", s.handleOpenAlerts)
			alertsGroup.GET("/history", s.handleAlertHistory)
			alertsGroup.GET("/thresholds", s.handleThresholds)
			alertsGroup.POST("/:id/acknowledge", s.handleAcknowledge)
		}
	}

	return r
}

// Run serves until ctx is cancelled, then drains with a bounded timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpSrv.Addr).Msg("HTTP server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, errorResponse{
		Error: err.Error(),
		Code:  string(errors.CodeOf(err)),
	})
}
