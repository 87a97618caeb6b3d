// Package robot provides the simulated mobile robot: connection lifecycle,
// 2D pose integration, safety limits, battery drain and a serialized
// command pipeline.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use.
package robot

import "context"

// Connector manages the robot link.
type Connector interface {
	Connect(ctx context.Context) (*ConnectResult, error)
	Disconnect(ctx context.Context) (*DisconnectResult, error)
}

// StatusReader provides read-only robot state.
// Use this minimal interface for dashboards and telemetry.
type StatusReader interface {
	Status(ctx context.Context) (*StatusSnapshot, error)
	Snapshot() StatusSnapshot
	Capabilities() Capabilities
}

// Commander executes motion commands.
type Commander interface {
	ExecuteCommand(ctx context.Context, name string, params Params) (*CommandResult, error)
	EmergencyStop(ctx context.Context) (*CommandResult, error)
	ResetPosition(ctx context.Context) (*CommandResult, error)
}

// EventSource delivers lifecycle and command events to listeners.
type EventSource interface {
	OnEvent(listener func(Event))
}

// Robot is the composite interface for full robot control.
// Use this when you need complete robot control capabilities.
type Robot interface {
	Connector
	StatusReader
	Commander
	EventSource
}

// Ensure Simulator implements Robot
var _ Robot = (*Simulator)(nil)
