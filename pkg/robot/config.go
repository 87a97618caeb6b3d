package robot

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default simulator identity reported by Connect and Capabilities.
const (
	DefaultModel    = "MockBot-2000"
	DefaultFirmware = "1.2.3"
)

// LatencyRange is a uniform [Min, Max] delay.
type LatencyRange struct {
	Min time.Duration
	Max time.Duration
}

// Config holds simulator configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Motion
	MinSpeed           float64
	MaxSpeed           float64
	DefaultMoveSpeed   float64
	DefaultRotateSpeed float64
	MoveDistance       float64 // units travelled at speed 100
	RotationAngle      float64 // degrees turned at speed 100
	MoveDuration       int     // echoed in results, ms
	RotateDuration     int
	Limits             Limits

	// Battery
	InitialBattery float64
	CommandDrain   float64
	PassiveDrain   float64
	DrainInterval  time.Duration

	// Link simulation
	ConnectSuccessRate float64
	ConnectLatency     LatencyRange
	CommandLatency     LatencyRange
	StatusLatency      LatencyRange

	// Identity
	Model    string
	Firmware string

	// Injectable policies
	Random Random
	Clock  func() time.Time

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the simulator.
type Option func(*Config)

// DefaultConfig returns the stock MockBot-2000 configuration.
func DefaultConfig() *Config {
	return &Config{
		MinSpeed:           10,
		MaxSpeed:           100,
		DefaultMoveSpeed:   50,
		DefaultRotateSpeed: 30,
		MoveDistance:       5,
		RotationAngle:      15,
		MoveDuration:       1000,
		RotateDuration:     500,
		Limits:             DefaultLimits(),
		InitialBattery:     100,
		CommandDrain:       0.1,
		PassiveDrain:       0.01,
		DrainInterval:      time.Second,
		ConnectSuccessRate: 0.9,
		ConnectLatency:     LatencyRange{Min: 1000 * time.Millisecond, Max: 3000 * time.Millisecond},
		CommandLatency:     LatencyRange{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
		StatusLatency:      LatencyRange{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
		Model:              DefaultModel,
		Firmware:           DefaultFirmware,
		Random:             DefaultRandom(),
		Clock:              time.Now,
		Logger:             slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []error
	if c.MinSpeed <= 0 || c.MinSpeed > c.MaxSpeed {
		errs = append(errs, fmt.Errorf("speed range [%g, %g] is invalid", c.MinSpeed, c.MaxSpeed))
	} else if c.DefaultMoveSpeed < c.MinSpeed || c.DefaultMoveSpeed > c.MaxSpeed {
		errs = append(errs, fmt.Errorf("default move speed %g outside speed range [%g, %g]",
			c.DefaultMoveSpeed, c.MinSpeed, c.MaxSpeed))
	}
	if c.Limits.XMin > c.Limits.XMax || c.Limits.YMin > c.Limits.YMax {
		errs = append(errs, fmt.Errorf("position limits %+v are inverted", c.Limits))
	}
	if c.MoveDistance < 0 || c.RotationAngle < 0 {
		errs = append(errs, errors.New("move distance and rotation angle must not be negative"))
	}
	if c.InitialBattery < 0 || c.InitialBattery > 100 {
		errs = append(errs, fmt.Errorf("initial battery %g outside [0, 100]", c.InitialBattery))
	}
	if c.CommandDrain < 0 || c.PassiveDrain < 0 {
		errs = append(errs, errors.New("battery drain must not be negative"))
	}
	if c.PassiveDrain > 0 && c.DrainInterval <= 0 {
		errs = append(errs, errors.New("drain interval must be positive when passive drain is set"))
	}
	if c.ConnectSuccessRate < 0 || c.ConnectSuccessRate > 1 {
		errs = append(errs, fmt.Errorf("connect success rate %g outside [0, 1]", c.ConnectSuccessRate))
	}
	for name, r := range map[string]LatencyRange{
		"connect": c.ConnectLatency,
		"command": c.CommandLatency,
		"status":  c.StatusLatency,
	} {
		if r.Min < 0 || r.Min > r.Max {
			errs = append(errs, fmt.Errorf("%s latency [%s, %s] is invalid", name, r.Min, r.Max))
		}
	}
	return errors.Join(errs...)
}

// WithSpeedRange sets the accepted move speed range.
func WithSpeedRange(min, max float64) Option {
	return func(c *Config) {
		c.MinSpeed = min
		c.MaxSpeed = max
	}
}

// WithLimits sets the position limits.
func WithLimits(l Limits) Option {
	return func(c *Config) {
		c.Limits = l
	}
}

// WithMoveDistance sets the distance covered by a move at speed 100.
func WithMoveDistance(units float64) Option {
	return func(c *Config) {
		c.MoveDistance = units
	}
}

// WithRotationAngle sets the angle turned by a rotate at speed 100.
func WithRotationAngle(deg float64) Option {
	return func(c *Config) {
		c.RotationAngle = deg
	}
}

// WithInitialBattery sets the battery level at construction.
func WithInitialBattery(level float64) Option {
	return func(c *Config) {
		c.InitialBattery = level
	}
}

// WithBatteryDrain configures per-command and passive drain.
func WithBatteryDrain(perCommand, passive float64, interval time.Duration) Option {
	return func(c *Config) {
		c.CommandDrain = perCommand
		c.PassiveDrain = passive
		c.DrainInterval = interval
	}
}

// WithConnectSuccessRate sets the probability that a handshake succeeds.
func WithConnectSuccessRate(rate float64) Option {
	return func(c *Config) {
		c.ConnectSuccessRate = rate
	}
}

// WithConnectLatency sets the handshake delay range.
func WithConnectLatency(min, max time.Duration) Option {
	return func(c *Config) {
		c.ConnectLatency = LatencyRange{Min: min, Max: max}
	}
}

// WithCommandLatency sets the actuation delay range.
func WithCommandLatency(min, max time.Duration) Option {
	return func(c *Config) {
		c.CommandLatency = LatencyRange{Min: min, Max: max}
	}
}

// WithStatusLatency sets the telemetry round-trip delay range.
func WithStatusLatency(min, max time.Duration) Option {
	return func(c *Config) {
		c.StatusLatency = LatencyRange{Min: min, Max: max}
	}
}

// WithNoLatency disables every simulated delay. Useful in tests.
func WithNoLatency() Option {
	return func(c *Config) {
		c.ConnectLatency = LatencyRange{}
		c.CommandLatency = LatencyRange{}
		c.StatusLatency = LatencyRange{}
	}
}

// WithIdentity overrides the reported model and firmware.
func WithIdentity(model, firmware string) Option {
	return func(c *Config) {
		c.Model = model
		c.Firmware = firmware
	}
}

// WithRandom sets the random source used for latency jitter and connect outcome.
func WithRandom(r Random) Option {
	return func(c *Config) {
		c.Random = r
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Clock = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
