package robot

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/teslashibe/go-robotsim/pkg/robot"

// Outcome attribute values.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// instruments holds the OTel instruments of one simulator.
type instruments struct {
	commands metric.Int64Counter
	connects metric.Int64Counter
	battery  metric.Float64ObservableGauge
	reg      metric.Registration
}

// newInstruments creates the simulator's instruments on the global meter
// provider (no-op if not configured).
func newInstruments(s *Simulator) (*instruments, error) {
	m := meter()
	in := &instruments{}

	var err error
	in.commands, err = m.Int64Counter(
		"robotsim.commands",
		metric.WithDescription("Commands executed, by command and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating commands counter: %w", err)
	}

	in.connects, err = m.Int64Counter(
		"robotsim.connects",
		metric.WithDescription("Connect attempts, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating connects counter: %w", err)
	}

	in.battery, err = m.Float64ObservableGauge(
		"robotsim.battery",
		metric.WithDescription("Current battery level"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating battery gauge: %w", err)
	}

	in.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveFloat64(in.battery, s.Battery())
			return nil
		},
		in.battery,
	)
	if err != nil {
		return nil, fmt.Errorf("registering battery callback: %w", err)
	}

	return in, nil
}

func (in *instruments) close() {
	if in.reg != nil {
		_ = in.reg.Unregister()
	}
}

// counters mirrors the OTel instruments for the /metrics text endpoint.
type counters struct {
	commandsOK     atomic.Int64
	commandsFailed atomic.Int64
	connectsOK     atomic.Int64
	connectsFailed atomic.Int64
	emergencyStops atomic.Int64
	resets         atomic.Int64
	depletions     atomic.Int64
}

// Stats is a point-in-time copy of the simulator counters.
type Stats struct {
	CommandsSucceeded int64
	CommandsFailed    int64
	ConnectsSucceeded int64
	ConnectsFailed    int64
	EmergencyStops    int64
	Resets            int64
	BatteryDepletions int64
}

// Stats returns the simulator counters.
func (s *Simulator) Stats() Stats {
	return Stats{
		CommandsSucceeded: s.stats.commandsOK.Load(),
		CommandsFailed:    s.stats.commandsFailed.Load(),
		ConnectsSucceeded: s.stats.connectsOK.Load(),
		ConnectsFailed:    s.stats.connectsFailed.Load(),
		EmergencyStops:    s.stats.emergencyStops.Load(),
		Resets:            s.stats.resets.Load(),
		BatteryDepletions: s.stats.depletions.Load(),
	}
}

func (s *Simulator) recordCommand(name string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
		s.stats.commandsFailed.Add(1)
	} else {
		s.stats.commandsOK.Add(1)
	}
	s.metrics.commands.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("command", name),
		attribute.String("outcome", outcome),
	))
}

func (s *Simulator) recordConnect(ok bool) {
	outcome := outcomeSuccess
	if ok {
		s.stats.connectsOK.Add(1)
	} else {
		outcome = outcomeFailure
		s.stats.connectsFailed.Add(1)
	}
	s.metrics.connects.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
