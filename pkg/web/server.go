// Package web serves the robot HTTP API, the live status websocket and the
// browser dashboard.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-robotsim/pkg/hub"
	"github.com/teslashibe/go-robotsim/pkg/protocol"
	"github.com/teslashibe/go-robotsim/pkg/robot"
)

// Robot is what the server needs from the simulator.
type Robot interface {
	robot.Robot
	Stats() robot.Stats
}

// Config holds server settings.
type Config struct {
	// StaticDir is served at "/". Empty disables the dashboard.
	StaticDir string

	// StatusInterval is the period of the websocket status broadcast.
	StatusInterval time.Duration

	// Debug enables request logging.
	Debug bool

	Version string
	Logger  *slog.Logger
}

// Server is the robot API server
type Server struct {
	app   *fiber.App
	cfg   Config
	log   *slog.Logger
	robot Robot

	// Hub for websocket status broadcast
	statusHub *hub.Hub
}

// NewServer creates a server for r. Call Run to start the status stream.
func NewServer(r Robot, cfg Config) *Server {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		log:       cfg.Logger.With("component", "web"),
		robot:     r,
		statusHub: hub.New("status", cfg.Logger),
	}
	s.statusHub.OnMessage(s.handleClientMessage)

	app := fiber.New(fiber.Config{
		AppName:               "robotsim",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	// API routes
	api := app.Group("/api/robot")
	api.Post("/connect", s.handleConnect)
	api.Post("/disconnect", s.handleDisconnect)
	api.Get("/status", s.handleStatus)
	api.Post("/command", s.handleCommand)
	api.Post("/emergency-stop", s.handleEmergencyStop)
	api.Post("/reset", s.handleReset)
	api.Get("/capabilities", s.handleCapabilities)

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	// Static files
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	app.Use(s.handleNotFound)

	r.OnEvent(s.onRobotEvent)

	s.app = app
	return s
}

// App exposes the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// StatusHub returns the status hub for external use
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// Run starts the status hub and the periodic status broadcast.
// It blocks until ctx is done.
func (s *Server) Run(ctx context.Context) {
	go s.statusHub.Run(ctx)

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() > 0 {
				s.broadcastStatus()
			}
		}
	}
}

// Listen serves HTTP on addr.
func (s *Server) Listen(addr string) error {
	s.log.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves HTTP on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) onRobotEvent(evt robot.Event) {
	if msg, err := protocol.NewEventMessage(evt); err == nil {
		s.statusHub.BroadcastMessage(msg)
	}
	s.broadcastStatus()
}

func (s *Server) broadcastStatus() {
	msg, err := protocol.NewStatusMessage(s.robot.Snapshot())
	if err != nil {
		s.log.Error("encode status", "error", err)
		return
	}
	if err := s.statusHub.BroadcastMessage(msg); err != nil {
		s.log.Error("broadcast status", "error", err)
	}
}

// handleError renders errors that escaped a handler, including recovered panics.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fail(c, fe.Code, fe.Message)
	}
	s.log.Error("unhandled error", "path", c.Path(), "error", err)
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}
