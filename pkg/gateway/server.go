package gateway

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"go.uber.org/zap"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
	"cachebuster/pkg/version"
)

// ChannelStatus reports which transports are running.
type ChannelStatus interface {
	Status() map[string]bool
}

// Server is the local status HTTP endpoint.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	gateway    *Gateway
	bus        bus.Bus
	channels   ChannelStatus
	echo       *echo.Echo
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates a status server.
func NewServer(
	cfg *config.Config,
	log *logger.Logger,
	gw *Gateway,
	messageBus bus.Bus,
	channels ChannelStatus,
) *Server {
	s := &Server{
		config:    cfg,
		logger:    log,
		gateway:   gw,
		bus:       messageBus,
		channels:  channels,
		startedAt: time.Now(),
	}

	s.setup()
	return s
}

func (s *Server) setup() {
	e := echo.New()
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealth)
	e.GET("/status", s.handleStatus)

	s.echo = e
}

// Start starts the status server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Status.Host, s.config.Status.Port)
	s.logger.Info("Status server starting", zap.String("addr", addr))

	// fx owns shutdown, so echo's own Start is not used.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Status server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the status server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Status server stopping")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c *echo.Context) error {
	uptime := time.Since(s.startedAt)

	var channels map[string]bool
	if s.channels != nil {
		channels = s.channels.Status()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":        version.GetVersion(),
		"go_version":     runtime.Version(),
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"command_prefix": s.config.CommandPrefix,
		"bus":            s.bus.GetMetrics(),
		"dispatch":       s.gateway.Stats(),
		"channels":       channels,
	})
}
