package robot

import "time"

// Command names accepted by ExecuteCommand.
const (
	CommandMove   = "move"
	CommandRotate = "rotate"
	CommandStop   = "stop"

	// Reported as lastCommand by the out-of-pipeline operations.
	CommandEmergencyStop = "emergency_stop"
	CommandReset         = "reset"
)

// Commands lists the names ExecuteCommand accepts, in display order.
var Commands = []string{CommandMove, CommandRotate, CommandStop}

// ValidCommand reports whether name is accepted by ExecuteCommand.
func ValidCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}

// Direction is a movement or rotation direction.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
)

var (
	moveDirections   = []Direction{DirectionForward, DirectionBackward, DirectionLeft, DirectionRight}
	rotateDirections = []Direction{DirectionLeft, DirectionRight}
)

func hasDirection(set []Direction, d Direction) bool {
	for _, v := range set {
		if v == d {
			return true
		}
	}
	return false
}

// Params are the optional arguments of a command.
// Nil fields fall back to the per-command defaults.
type Params struct {
	Direction string   `json:"direction,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Duration  *int     `json:"duration,omitempty"`
}

// ConnectResult describes a new session.
type ConnectResult struct {
	ConnectionID    string    `json:"connectionId"`
	Timestamp       time.Time `json:"timestamp"`
	RobotModel      string    `json:"robotModel"`
	FirmwareVersion string    `json:"firmwareVersion"`
}

// DisconnectResult confirms a disconnect.
type DisconnectResult struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// StatusSnapshot is a deep copy of the robot state at one instant.
type StatusSnapshot struct {
	IsConnected bool       `json:"isConnected"`
	Position    Position   `json:"position"`
	IsMoving    bool       `json:"isMoving"`
	Battery     float64    `json:"battery"`
	LastCommand *string    `json:"lastCommand"`
	Error       *string    `json:"error"`
	ConnectedAt *time.Time `json:"connectedAt"`
	Timestamp   time.Time  `json:"timestamp"`
	Uptime      int64      `json:"uptime"` // ms since connect, 0 when disconnected
}

// CommandResult is returned by every command-like operation.
// Only the fields relevant to Command are set.
type CommandResult struct {
	Command   string   `json:"command"`
	Direction string   `json:"direction,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Duration  *int     `json:"duration,omitempty"`

	// move
	Distance    *float64  `json:"distance,omitempty"`
	OldPosition *Position `json:"oldPosition,omitempty"`
	NewPosition *Position `json:"newPosition,omitempty"`

	// rotate
	Angle       *float64 `json:"angle,omitempty"`
	OldRotation *float64 `json:"oldRotation,omitempty"`
	NewRotation *float64 `json:"newRotation,omitempty"`

	// stop, emergency_stop
	Position *Position `json:"position,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// SpeedRange is an inclusive speed interval.
type SpeedRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Specifications is the static hardware sheet of the simulated model.
type Specifications struct {
	Model        string   `json:"model"`
	Firmware     string   `json:"firmware"`
	MaxPayload   string   `json:"maxPayload"`
	MaxSpeed     string   `json:"maxSpeed"`
	BatteryLife  string   `json:"batteryLife"`
	Connectivity []string `json:"connectivity"`
}

// Capabilities describes what the robot supports.
type Capabilities struct {
	Movements      []Direction    `json:"movements"`
	Rotations      []Direction    `json:"rotations"`
	SpeedRange     SpeedRange     `json:"speedRange"`
	PositionLimits Limits         `json:"positionLimits"`
	Features       []string       `json:"features"`
	Specifications Specifications `json:"specifications"`
}

// EventType identifies a simulator event.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventConnectFailed    EventType = "connect_failed"
	EventDisconnected     EventType = "disconnected"
	EventCommandStarted   EventType = "command_started"
	EventCommandCompleted EventType = "command_completed"
	EventCommandFailed    EventType = "command_failed"
	EventEmergencyStop    EventType = "emergency_stop"
	EventReset            EventType = "reset"
	EventBatteryDepleted  EventType = "battery_depleted"
)

// Event is delivered to OnEvent listeners after the state change it reports.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command,omitempty"`
	Message   string    `json:"message,omitempty"`
}
