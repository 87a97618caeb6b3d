// Package config loads robotsim configuration from defaults, an optional
// YAML file and ROBOTSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ROBOTSIM_SERVER_PORT.
const EnvPrefix = "ROBOTSIM"

// DefaultConfigName is looked up in the working directory when no file is given.
const DefaultConfigName = "robotsim"

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Robot     RobotConfig     `mapstructure:"robot"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	StaticDir      string        `mapstructure:"static_dir"`
	StatusInterval time.Duration `mapstructure:"status_interval"`
	Debug          bool          `mapstructure:"debug"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LimitsConfig is the allowed area for the robot.
type LimitsConfig struct {
	XMin float64 `mapstructure:"x_min"`
	XMax float64 `mapstructure:"x_max"`
	YMin float64 `mapstructure:"y_min"`
	YMax float64 `mapstructure:"y_max"`
}

// LatencyConfig is a uniform delay range.
type LatencyConfig struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// RobotConfig holds simulator settings.
type RobotConfig struct {
	MinSpeed           float64       `mapstructure:"min_speed"`
	MaxSpeed           float64       `mapstructure:"max_speed"`
	DefaultMoveSpeed   float64       `mapstructure:"default_move_speed"`
	DefaultRotateSpeed float64       `mapstructure:"default_rotate_speed"`
	MoveDistance       float64       `mapstructure:"move_distance"`
	RotationAngle      float64       `mapstructure:"rotation_angle"`
	Limits             LimitsConfig  `mapstructure:"limits"`
	InitialBattery     float64       `mapstructure:"initial_battery"`
	CommandDrain       float64       `mapstructure:"command_drain"`
	PassiveDrain       float64       `mapstructure:"passive_drain"`
	DrainInterval      time.Duration `mapstructure:"drain_interval"`
	ConnectSuccessRate float64       `mapstructure:"connect_success_rate"`
	ConnectLatency     LatencyConfig `mapstructure:"connect_latency"`
	CommandLatency     LatencyConfig `mapstructure:"command_latency"`
	StatusLatency      LatencyConfig `mapstructure:"status_latency"`
	Model              string        `mapstructure:"model"`
	Firmware           string        `mapstructure:"firmware"`
}

// TelemetryConfig selects and configures the telemetry publisher.
type TelemetryConfig struct {
	Backend     string        `mapstructure:"backend"` // none, mqtt or kafka
	TopicPrefix string        `mapstructure:"topic_prefix"`
	Interval    time.Duration `mapstructure:"interval"`
	MQTT        MQTTConfig    `mapstructure:"mqtt"`
	Kafka       KafkaConfig   `mapstructure:"kafka"`
}

// MQTTConfig holds MQTT broker settings.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	QoS      int    `mapstructure:"qos"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// KafkaConfig holds Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.static_dir", "./web")
	v.SetDefault("server.status_interval", "1s")
	v.SetDefault("server.debug", false)

	v.SetDefault("log.level", "info")

	v.SetDefault("robot.min_speed", 10)
	v.SetDefault("robot.max_speed", 100)
	v.SetDefault("robot.default_move_speed", 50)
	v.SetDefault("robot.default_rotate_speed", 30)
	v.SetDefault("robot.move_distance", 5)
	v.SetDefault("robot.rotation_angle", 15)
	v.SetDefault("robot.limits.x_min", -100)
	v.SetDefault("robot.limits.x_max", 100)
	v.SetDefault("robot.limits.y_min", -100)
	v.SetDefault("robot.limits.y_max", 100)
	v.SetDefault("robot.initial_battery", 100)
	v.SetDefault("robot.command_drain", 0.1)
	v.SetDefault("robot.passive_drain", 0.01)
	v.SetDefault("robot.drain_interval", "1s")
	v.SetDefault("robot.connect_success_rate", 0.9)
	v.SetDefault("robot.connect_latency.min", "1s")
	v.SetDefault("robot.connect_latency.max", "3s")
	v.SetDefault("robot.command_latency.min", "500ms")
	v.SetDefault("robot.command_latency.max", "1500ms")
	v.SetDefault("robot.status_latency.min", "50ms")
	v.SetDefault("robot.status_latency.max", "150ms")
	v.SetDefault("robot.model", "MockBot-2000")
	v.SetDefault("robot.firmware", "1.2.3")

	v.SetDefault("telemetry.backend", "none")
	v.SetDefault("telemetry.topic_prefix", "robotsim")
	v.SetDefault("telemetry.interval", "5s")
	v.SetDefault("telemetry.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("telemetry.mqtt.client_id", "robotsim")
	v.SetDefault("telemetry.mqtt.username", "")
	v.SetDefault("telemetry.mqtt.password", "")
	v.SetDefault("telemetry.mqtt.qos", 1)
	v.SetDefault("telemetry.mqtt.connect_timeout", "10s")
	v.SetDefault("telemetry.kafka.brokers", []string{"localhost:9092"})
}

// Load reads configuration. If path is empty, robotsim.yaml in the working
// directory is used when present. Environment variables override the file,
// and PORT overrides server.port.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		v.Set("server.port", port)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.StatusInterval <= 0 {
		errs = append(errs, errors.New("server.status_interval must be positive"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if err := c.Robot.validate(); err != nil {
		errs = append(errs, fmt.Errorf("robot: %w", err))
	}

	switch c.Telemetry.Backend {
	case "", "none":
	case "mqtt":
		if c.Telemetry.MQTT.Broker == "" {
			errs = append(errs, errors.New("telemetry.mqtt.broker is required for the mqtt backend"))
		}
		if q := c.Telemetry.MQTT.QoS; q < 0 || q > 2 {
			errs = append(errs, fmt.Errorf("telemetry.mqtt.qos %d must be 0, 1 or 2", q))
		}
	case "kafka":
		if len(c.Telemetry.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("telemetry.kafka.brokers is required for the kafka backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("telemetry.backend %q is not one of none, mqtt, kafka", c.Telemetry.Backend))
	}
	if c.Telemetry.Enabled() {
		if c.Telemetry.Interval <= 0 {
			errs = append(errs, errors.New("telemetry.interval must be positive"))
		}
		if c.Telemetry.TopicPrefix == "" {
			errs = append(errs, errors.New("telemetry.topic_prefix is required"))
		}
	}

	return errors.Join(errs...)
}

// Enabled reports whether a telemetry backend is selected.
func (t TelemetryConfig) Enabled() bool {
	return t.Backend != "" && t.Backend != "none"
}
