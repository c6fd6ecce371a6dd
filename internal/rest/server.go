package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ziflex/lecho/v3"

	"github.com/Klingon-tech/powledger/config"
	klog "github.com/Klingon-tech/powledger/internal/log"
	"github.com/Klingon-tech/powledger/internal/metrics"
)

// Server serves the REST routes.
type Server struct {
	addr   string
	echo   *echo.Echo
	server *http.Server
	ln     net.Listener
}

// New creates a REST server. A nil gatherer leaves /metrics unregistered.
func New(addr string, ctrl *Controller, cfg config.RESTConfig, gatherer prometheus.Gatherer) *Server {
	elog := lecho.From(klog.REST)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = elog
	e.Use(lecho.Middleware(lecho.Config{Logger: elog}))
	e.Use(middleware.Recover())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		}))
	}

	e.GET("/chain", ctrl.GetChain)
	e.POST("/transactions/new", ctrl.NewTransaction)
	e.GET("/transactions/pending", ctrl.PendingTransactions)
	e.POST("/mine/get-job", ctrl.GetJob)
	e.POST("/mine/submit-solution", ctrl.SubmitSolution)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))
	}

	return &Server{
		addr: addr,
		echo: e,
		server: &http.Server{
			Handler:      e,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Handler returns the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rest listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			klog.REST.Error().Err(err).Msg("REST server error")
		}
	}()

	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
