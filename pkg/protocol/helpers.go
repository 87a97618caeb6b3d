package protocol

import (
	"time"

	"github.com/teslashibe/go-robotsim/pkg/robot"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewStatusMessage creates a status message from a snapshot
func NewStatusMessage(snap robot.StatusSnapshot) (*Message, error) {
	return NewMessage(TypeStatus, snap)
}

// NewEventMessage creates an event message
func NewEventMessage(evt robot.Event) (*Message, error) {
	return NewMessage(TypeEvent, evt)
}

// NewCommandMessage creates a command result message
func NewCommandMessage(result *robot.CommandResult) (*Message, error) {
	return NewMessage(TypeCommand, result)
}

// NewErrorMessage creates an error message
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: err.Error()})
}

// NewPingMessage creates a ping with the given correlation id
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetStatus extracts a status snapshot from a message
func (m *Message) GetStatus() (*robot.StatusSnapshot, error) {
	var data robot.StatusSnapshot
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetEvent extracts an event from a message
func (m *Message) GetEvent() (*robot.Event, error) {
	var data robot.Event
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
