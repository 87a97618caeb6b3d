package robot

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected robot conditions.
// Callers match them with errors.Is; the pipeline wraps them with detail.
var (
	// ErrConnection is returned when the connect handshake fails.
	ErrConnection = errors.New("connection failed: robot not responding")

	// ErrNotConnected is returned when a command reaches a disconnected robot.
	ErrNotConnected = errors.New("robot is not connected")

	// ErrBatteryDepleted is returned when the battery is empty.
	ErrBatteryDepleted = errors.New("robot battery is depleted")

	// ErrInvalidDirection is returned for a missing or unsupported direction.
	ErrInvalidDirection = errors.New("invalid direction")

	// ErrInvalidSpeed is returned when speed is outside the configured range.
	ErrInvalidSpeed = errors.New("invalid speed")

	// ErrRobotBusy is returned when an operation needs the robot idle.
	ErrRobotBusy = errors.New("cannot reset position while robot is moving")

	// ErrUnknownCommand is returned for command names the pipeline does not know.
	ErrUnknownCommand = errors.New("unknown command")
)

var clientErrors = []error{
	ErrConnection,
	ErrNotConnected,
	ErrBatteryDepleted,
	ErrInvalidDirection,
	ErrInvalidSpeed,
	ErrRobotBusy,
	ErrUnknownCommand,
}

// IsClientError reports whether err is one of the expected robot conditions
// (bad parameters, robot state) rather than an internal failure.
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func invalidDirection(kind, direction string) error {
	if direction == "" {
		return fmt.Errorf("%w: %s direction is required", ErrInvalidDirection, kind)
	}
	return fmt.Errorf("%w: %s direction %q", ErrInvalidDirection, kind, direction)
}
