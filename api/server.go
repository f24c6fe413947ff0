// Package api - HTTP control surface for a measurement controller.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/go-ppg/capture"
	"github.com/nvr-ai/go-ppg/controller"
	"github.com/nvr-ai/go-ppg/ppg"
	"github.com/nvr-ai/go-ppg/profiler"
	"github.com/pkg/errors"
)

// Controller is the part of controller.Controller the API drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	State() controller.State
	Display() controller.Display
	Summary() ppg.Summary
}

// Options configures the HTTP surface.
type Options struct {
	// AllowOrigins lists the CORS origins; empty allows any origin.
	AllowOrigins []string
	// Stream serves the websocket display stream; nil disables the route.
	Stream http.Handler
	// Profiler backs GET /v1/metrics; nil reports an empty snapshot.
	Profiler *profiler.Profiler
	// StartTimeout bounds the acquisition triggered by POST /v1/session/start.
	StartTimeout time.Duration
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusResponse reports the controller state together with the latest display.
type StatusResponse struct {
	State   controller.State   `json:"state"`
	Active  bool               `json:"active"`
	Display controller.Display `json:"display"`
}

// Server exposes a controller over HTTP.
type Server struct {
	ctrl Controller
	opts Options
}

// NewServer creates a server.
func NewServer(ctrl Controller, opts Options) *Server {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 10 * time.Second
	}
	return &Server{ctrl: ctrl, opts: opts}
}

// Router builds the gin engine.
//
// Routes:
//   - POST /v1/session/start
//   - POST /v1/session/stop
//   - GET  /v1/session
//   - GET  /v1/session/summary
//   - GET  /v1/metrics
//   - GET  /v1/stream (websocket, when Options.Stream is set)
//   - GET  /healthz
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.opts.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.opts.AllowOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", s.health)

	v1 := r.Group("/v1")
	{
		session := v1.Group("/session")
		session.POST("/start", s.start)
		session.POST("/stop", s.stop)
		session.GET("", s.status)
		session.GET("/summary", s.summary)

		v1.GET("/metrics", s.metrics)
		if s.opts.Stream != nil {
			v1.GET("/stream", gin.WrapH(s.opts.Stream))
		}
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": s.ctrl.State()})
}

func (s *Server) start(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.StartTimeout)
	defer cancel()

	if err := s.ctrl.Start(ctx); err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, capture.ErrAcquisition):
			code = http.StatusServiceUnavailable
		case errors.Is(err, controller.ErrAcquireTimeout), errors.Is(err, context.DeadlineExceeded):
			code = http.StatusGatewayTimeout
		}
		c.JSON(code, ErrorResponse{Error: "failed to start session", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) stop(c *gin.Context) {
	if err := s.ctrl.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to stop session", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) summary(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Summary())
}

func (s *Server) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Profiler.Snapshot())
}

func (s *Server) snapshot() StatusResponse {
	state := s.ctrl.State()
	return StatusResponse{State: state, Active: state.Active(), Display: s.ctrl.Display()}
}
