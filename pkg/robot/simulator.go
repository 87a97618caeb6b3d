package robot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// state is the live robot state. Guarded by Simulator.mu.
type state struct {
	connected   bool
	pose        Position
	moving      bool
	battery     float64
	lastCommand string
	lastError   string
	connectedAt time.Time
}

// Simulator is a single simulated robot.
//
// Two primitives coordinate access:
//   - mu guards state; every read-modify-write happens in one critical section.
//   - exec is the execution slot; it serializes commands end to end so only
//     one command is in flight at a time.
//
// EmergencyStop and status reads take only mu and never wait on exec.
type Simulator struct {
	cfg Config
	log *slog.Logger

	mu sync.Mutex
	st state

	exec chan struct{}

	randMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []func(Event)

	// Passive drain task
	drainStarted bool
	stop         chan struct{}
	done         chan struct{}
	closeOnce    sync.Once

	metrics *instruments
	stats   counters
}

// New creates a simulator with default configuration adjusted by opts.
func New(opts ...Option) (*Simulator, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("robot: invalid config: %w", err)
	}
	if cfg.Random == nil {
		cfg.Random = DefaultRandom()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Simulator{
		cfg:  *cfg,
		log:  cfg.Logger.With("component", "robot"),
		st:   state{battery: cfg.InitialBattery},
		exec: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	m, err := newInstruments(s)
	if err != nil {
		return nil, fmt.Errorf("robot: %w", err)
	}
	s.metrics = m
	return s, nil
}

// Config returns a copy of the simulator configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// OnEvent registers a listener. Listeners run synchronously on the goroutine
// that caused the event, outside the state lock, and must not block.
func (s *Simulator) OnEvent(listener func(Event)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, listener)
	s.listenersMu.Unlock()
}

func (s *Simulator) emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	s.listenersMu.RLock()
	listeners := make([]func(Event), len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(evt)
	}
}

func (s *Simulator) now() time.Time {
	return s.cfg.Clock()
}

// wait blocks for a delay drawn from r, or until ctx is done.
func (s *Simulator) wait(ctx context.Context, r LatencyRange) error {
	d := s.latency(r)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect performs the simulated handshake.
func (s *Simulator) Connect(ctx context.Context) (*ConnectResult, error) {
	s.startDrain()

	if err := s.wait(ctx, s.cfg.ConnectLatency); err != nil {
		return nil, err
	}

	s.mu.Lock()
	depleted := s.st.battery <= 0
	s.mu.Unlock()
	if depleted {
		s.recordConnect(false)
		return nil, ErrBatteryDepleted
	}

	if s.sample() >= s.cfg.ConnectSuccessRate {
		s.recordConnect(false)
		s.log.Error("robot connection failed", "error", ErrConnection)
		s.emit(Event{Type: EventConnectFailed, Message: ErrConnection.Error()})
		return nil, ErrConnection
	}

	now := s.now()
	s.mu.Lock()
	s.st.connected = true
	s.st.connectedAt = now
	s.st.lastError = ""
	s.mu.Unlock()

	s.recordConnect(true)
	result := &ConnectResult{
		ConnectionID:    uuid.NewString(),
		Timestamp:       now,
		RobotModel:      s.cfg.Model,
		FirmwareVersion: s.cfg.Firmware,
	}
	s.log.Info("robot connected", "connection_id", result.ConnectionID)
	s.emit(Event{Type: EventConnected, Timestamp: now})
	return result, nil
}

// Disconnect drops the link. It always succeeds and keeps pose and battery.
func (s *Simulator) Disconnect(ctx context.Context) (*DisconnectResult, error) {
	s.mu.Lock()
	s.disconnectLocked()
	s.mu.Unlock()

	now := s.now()
	s.log.Info("robot disconnected")
	s.emit(Event{Type: EventDisconnected, Timestamp: now})
	return &DisconnectResult{
		Timestamp: now,
		Message:   "Disconnected successfully",
	}, nil
}

func (s *Simulator) disconnectLocked() {
	s.st.connected = false
	s.st.moving = false
	s.st.connectedAt = time.Time{}
}

// Status returns a snapshot after a simulated telemetry round trip.
func (s *Simulator) Status(ctx context.Context) (*StatusSnapshot, error) {
	if err := s.wait(ctx, s.cfg.StatusLatency); err != nil {
		return nil, err
	}
	snap := s.Snapshot()
	return &snap, nil
}

// Snapshot returns the current state without simulated latency.
func (s *Simulator) Snapshot() StatusSnapshot {
	s.mu.Lock()
	st := s.st
	s.mu.Unlock()

	now := s.now()
	snap := StatusSnapshot{
		IsConnected: st.connected,
		Position:    st.pose,
		IsMoving:    st.moving,
		Battery:     st.battery,
		Timestamp:   now,
	}
	if st.lastCommand != "" {
		cmd := st.lastCommand
		snap.LastCommand = &cmd
	}
	if st.lastError != "" {
		msg := st.lastError
		snap.Error = &msg
	}
	if !st.connectedAt.IsZero() {
		at := st.connectedAt
		snap.ConnectedAt = &at
		if up := now.Sub(at).Milliseconds(); up > 0 {
			snap.Uptime = up
		}
	}
	return snap
}

// Battery returns the current battery level.
func (s *Simulator) Battery() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.battery
}

// Capabilities describes the robot. It depends only on configuration.
func (s *Simulator) Capabilities() Capabilities {
	return Capabilities{
		Movements:      append([]Direction(nil), moveDirections...),
		Rotations:      append([]Direction(nil), rotateDirections...),
		SpeedRange:     SpeedRange{Min: s.cfg.MinSpeed, Max: s.cfg.MaxSpeed},
		PositionLimits: s.cfg.Limits,
		Features: []string{
			"position_tracking",
			"rotation_control",
			"battery_monitoring",
			"emergency_stop",
			"remote_control",
		},
		Specifications: Specifications{
			Model:        s.cfg.Model,
			Firmware:     s.cfg.Firmware,
			MaxPayload:   "5kg",
			MaxSpeed:     "2m/s",
			BatteryLife:  "8 hours",
			Connectivity: []string{"WiFi", "Bluetooth"},
		},
	}
}

// Close stops the passive drain task and disconnects.
func (s *Simulator) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		started := s.drainStarted
		s.disconnectLocked()
		s.mu.Unlock()
		if started {
			<-s.done
		}
		s.metrics.close()
	})
	return nil
}
