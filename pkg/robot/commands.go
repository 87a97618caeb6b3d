package robot

import (
	"context"
	"fmt"
	"math"
)

// ExecuteCommand runs one motion command through the pipeline:
// readiness checks, execution slot, simulated actuation latency, then an
// all-or-nothing state update.
func (s *Simulator) ExecuteCommand(ctx context.Context, name string, params Params) (*CommandResult, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if !ValidCommand(name) {
		err := fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		s.mu.Lock()
		s.st.lastError = err.Error()
		s.mu.Unlock()
		s.recordCommand(name, err)
		return nil, err
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	s.mu.Lock()
	if err := s.checkReadyLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.st.moving = true
	s.st.lastCommand = name
	s.mu.Unlock()

	s.log.Debug("command started", "command", name, "direction", params.Direction)
	s.emit(Event{Type: EventCommandStarted, Command: name})

	if err := s.wait(ctx, s.cfg.CommandLatency); err != nil {
		return nil, s.fail(name, err)
	}

	s.mu.Lock()
	result, err := s.applyLocked(name, params)
	if err != nil {
		s.mu.Unlock()
		return nil, s.fail(name, err)
	}
	depleted := s.drainLocked(s.cfg.CommandDrain)
	s.st.moving = false
	s.st.lastError = ""
	s.mu.Unlock()

	s.recordCommand(name, nil)
	s.log.Debug("command completed", "command", name)
	s.emit(Event{Type: EventCommandCompleted, Timestamp: result.Timestamp, Command: name})
	if depleted {
		s.onDepleted()
	}
	return result, nil
}

func (s *Simulator) checkReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkReadyLocked()
}

func (s *Simulator) checkReadyLocked() error {
	if !s.st.connected {
		return ErrNotConnected
	}
	if s.st.battery <= 0 {
		return ErrBatteryDepleted
	}
	return nil
}

// acquire takes the execution slot, or gives up when ctx is done.
func (s *Simulator) acquire(ctx context.Context) error {
	select {
	case s.exec <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) release() {
	<-s.exec
}

// fail records a command failure. The pose is left untouched.
func (s *Simulator) fail(name string, err error) error {
	s.mu.Lock()
	s.st.moving = false
	s.st.lastError = err.Error()
	s.mu.Unlock()

	s.recordCommand(name, err)
	s.log.Warn("command failed", "command", name, "error", err)
	s.emit(Event{Type: EventCommandFailed, Command: name, Message: err.Error()})
	return err
}

// applyLocked validates params and computes the effect of a command.
// Nothing is written to s.st unless validation passes. Callers must hold s.mu.
func (s *Simulator) applyLocked(name string, p Params) (*CommandResult, error) {
	switch name {
	case CommandMove:
		return s.moveLocked(p)
	case CommandRotate:
		return s.rotateLocked(p)
	case CommandStop:
		return s.stopLocked(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func (s *Simulator) moveLocked(p Params) (*CommandResult, error) {
	dir := Direction(p.Direction)
	if !hasDirection(moveDirections, dir) {
		return nil, invalidDirection("movement", p.Direction)
	}
	speed := s.cfg.DefaultMoveSpeed
	if p.Speed != nil {
		speed = *p.Speed
	}
	if math.IsNaN(speed) || speed < s.cfg.MinSpeed || speed > s.cfg.MaxSpeed {
		return nil, fmt.Errorf("%w: speed must be between %g and %g", ErrInvalidSpeed, s.cfg.MinSpeed, s.cfg.MaxSpeed)
	}
	duration := s.cfg.MoveDuration
	if p.Duration != nil {
		duration = *p.Duration
	}

	distance := speed / 100 * s.cfg.MoveDistance
	oldPos := s.st.pose
	newPos := s.cfg.Limits.Clamp(displace(oldPos, dir, distance))
	s.st.pose = newPos

	return &CommandResult{
		Command:     CommandMove,
		Direction:   string(dir),
		Speed:       &speed,
		Duration:    &duration,
		Distance:    &distance,
		OldPosition: &oldPos,
		NewPosition: &newPos,
		Timestamp:   s.now(),
	}, nil
}

func (s *Simulator) rotateLocked(p Params) (*CommandResult, error) {
	dir := Direction(p.Direction)
	if !hasDirection(rotateDirections, dir) {
		return nil, invalidDirection("rotation", p.Direction)
	}
	speed := s.cfg.DefaultRotateSpeed
	if p.Speed != nil {
		speed = *p.Speed
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return nil, fmt.Errorf("%w: rotation speed must be a finite number", ErrInvalidSpeed)
	}
	duration := s.cfg.RotateDuration
	if p.Duration != nil {
		duration = *p.Duration
	}

	angle := speed / 100 * s.cfg.RotationAngle
	oldRot := s.st.pose.Rotation
	delta := angle
	if dir == DirectionLeft {
		delta = -angle
	}
	newRot := NormalizeRotation(oldRot + delta)
	s.st.pose.Rotation = newRot

	return &CommandResult{
		Command:     CommandRotate,
		Direction:   string(dir),
		Speed:       &speed,
		Duration:    &duration,
		Angle:       &angle,
		OldRotation: &oldRot,
		NewRotation: &newRot,
		Timestamp:   s.now(),
	}, nil
}

func (s *Simulator) stopLocked() *CommandResult {
	s.st.moving = false
	pos := s.st.pose
	return &CommandResult{
		Command:   CommandStop,
		Position:  &pos,
		Timestamp: s.now(),
	}
}

// EmergencyStop halts the robot immediately. It skips the execution slot
// and the simulated latency, so it preempts an in-flight command's moving
// flag without rolling back pose that command already applied.
func (s *Simulator) EmergencyStop(ctx context.Context) (*CommandResult, error) {
	s.mu.Lock()
	s.st.moving = false
	s.st.lastCommand = CommandEmergencyStop
	pos := s.st.pose
	s.mu.Unlock()

	now := s.now()
	s.stats.emergencyStops.Add(1)
	s.log.Warn("emergency stop")
	s.emit(Event{Type: EventEmergencyStop, Timestamp: now, Command: CommandEmergencyStop})
	return &CommandResult{
		Command:   CommandEmergencyStop,
		Position:  &pos,
		Timestamp: now,
		Message:   "Emergency stop executed successfully",
	}, nil
}

// ResetPosition returns the robot to the origin. It fails with ErrRobotBusy
// while a command is moving the robot.
func (s *Simulator) ResetPosition(ctx context.Context) (*CommandResult, error) {
	s.mu.Lock()
	if s.st.moving {
		s.mu.Unlock()
		return nil, ErrRobotBusy
	}
	oldPos := s.st.pose
	newPos := Position{}
	s.st.pose = newPos
	s.st.lastCommand = CommandReset
	s.mu.Unlock()

	now := s.now()
	s.stats.resets.Add(1)
	s.log.Info("robot position reset")
	s.emit(Event{Type: EventReset, Timestamp: now, Command: CommandReset})
	return &CommandResult{
		Command:     CommandReset,
		OldPosition: &oldPos,
		NewPosition: &newPos,
		Timestamp:   now,
	}, nil
}
