package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-robotsim/pkg/hub"
	"github.com/teslashibe/go-robotsim/pkg/protocol"
	"github.com/teslashibe/go-robotsim/pkg/robot"
)

// Response is the envelope of every /api/robot reply except status.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// CommandRequest is the body of POST /api/robot/command.
type CommandRequest struct {
	Command string       `json:"command"`
	Params  robot.Params `json:"params"`
}

func ok(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(Response{Success: true, Message: message, Data: data})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Response{Success: false, Message: message})
}

// failWith maps robot conditions to 400 and everything else to 500.
func failWith(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	if robot.IsClientError(err) {
		status = fiber.StatusBadRequest
	}
	return fail(c, status, err.Error())
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	result, err := s.robot.Connect(c.UserContext())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return ok(c, "Robot connected successfully", result)
}

func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	result, err := s.robot.Disconnect(c.UserContext())
	if err != nil {
		return failWith(c, err)
	}
	return ok(c, "Robot disconnected successfully", result)
}

// handleStatus returns the flat status snapshot, without the envelope.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap, err := s.robot.Status(c.UserContext())
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(snap)
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Command == "" {
		return fail(c, fiber.StatusBadRequest, "Command is required")
	}
	if !robot.ValidCommand(req.Command) {
		return fail(c, fiber.StatusBadRequest,
			"Invalid command. Valid commands: "+strings.Join(robot.Commands, ", "))
	}

	result, err := s.robot.ExecuteCommand(c.UserContext(), req.Command, req.Params)
	if err != nil {
		return failWith(c, err)
	}
	if msg, err := protocol.NewCommandMessage(result); err == nil {
		s.statusHub.BroadcastMessage(msg)
	}
	return ok(c, fmt.Sprintf("Command '%s' executed successfully", req.Command), result)
}

func (s *Server) handleEmergencyStop(c *fiber.Ctx) error {
	result, err := s.robot.EmergencyStop(c.UserContext())
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return ok(c, "Emergency stop executed", result)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	result, err := s.robot.ResetPosition(c.UserContext())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return ok(c, "Robot position reset successfully", result)
}

func (s *Server) handleCapabilities(c *fiber.Ctx) error {
	return c.JSON(Response{Success: true, Data: s.robot.Capabilities()})
}

func (s *Server) handleNotFound(c *fiber.Ctx) error {
	return fail(c, fiber.StatusNotFound, "Endpoint not found")
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	snap := s.robot.Snapshot()
	return c.JSON(fiber.Map{
		"status":    "ok",
		"version":   s.cfg.Version,
		"connected": snap.IsConnected,
		"battery":   snap.Battery,
		"clients":   s.statusHub.ClientCount(),
	})
}

// handleMetrics renders the Prometheus text exposition format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	stats := s.robot.Stats()
	snap := s.robot.Snapshot()
	connected := 0
	if snap.IsConnected {
		connected = 1
	}

	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(fmt.Sprintf(`# HELP robotsim_connected Whether the robot is connected
# TYPE robotsim_connected gauge
robotsim_connected %d

# HELP robotsim_battery Current battery level
# TYPE robotsim_battery gauge
robotsim_battery %g

# HELP robotsim_commands_total Commands executed
# TYPE robotsim_commands_total counter
robotsim_commands_total{outcome="success"} %d
robotsim_commands_total{outcome="failure"} %d

# HELP robotsim_connects_total Connect attempts
# TYPE robotsim_connects_total counter
robotsim_connects_total{outcome="success"} %d
robotsim_connects_total{outcome="failure"} %d

# HELP robotsim_emergency_stops_total Emergency stops
# TYPE robotsim_emergency_stops_total counter
robotsim_emergency_stops_total %d

# HELP robotsim_resets_total Position resets
# TYPE robotsim_resets_total counter
robotsim_resets_total %d

# HELP robotsim_battery_depletions_total Battery depletions
# TYPE robotsim_battery_depletions_total counter
robotsim_battery_depletions_total %d

# HELP robotsim_ws_clients Connected websocket clients
# TYPE robotsim_ws_clients gauge
robotsim_ws_clients %d
`,
		connected, snap.Battery,
		stats.CommandsSucceeded, stats.CommandsFailed,
		stats.ConnectsSucceeded, stats.ConnectsFailed,
		stats.EmergencyStops, stats.Resets, stats.BatteryDepletions,
		s.statusHub.ClientCount()))
}

// handleStatusWS streams status and event messages to one dashboard.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client, joined := hub.NewClient(s.statusHub, c)
	if !joined {
		c.Close()
		return
	}
	s.sendStatus(client)
	client.Run()
}

// handleClientMessage answers pings and on-demand status requests.
// Anything else gets an error message back.
func (s *Server) handleClientMessage(client *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.log.Debug("malformed client message", "error", err)
		s.sendError(client, err)
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			s.sendError(client, fmt.Errorf("invalid ping: %w", err))
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return
		}
		if m, err := hub.FromProtocol(pong); err == nil {
			client.Send(m)
		}
	case protocol.TypeStatus:
		s.sendStatus(client)
	default:
		s.sendError(client, fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

func (s *Server) sendError(client *hub.Client, err error) {
	msg, mErr := protocol.NewErrorMessage(err)
	if mErr != nil {
		return
	}
	if m, mErr := hub.FromProtocol(msg); mErr == nil {
		client.Send(m)
	}
}

func (s *Server) sendStatus(client *hub.Client) {
	msg, err := protocol.NewStatusMessage(s.robot.Snapshot())
	if err != nil {
		return
	}
	if m, err := hub.FromProtocol(msg); err == nil {
		client.Send(m)
	}
}
