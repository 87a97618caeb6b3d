package config

import (
	"log/slog"

	"github.com/teslashibe/go-robotsim/pkg/robot"
)

// Options converts the robot section into simulator options.
func (r RobotConfig) Options(logger *slog.Logger) []robot.Option {
	return []robot.Option{
		robot.WithSpeedRange(r.MinSpeed, r.MaxSpeed),
		robot.WithMoveDistance(r.MoveDistance),
		robot.WithRotationAngle(r.RotationAngle),
		robot.WithLimits(robot.Limits{
			XMin: r.Limits.XMin,
			XMax: r.Limits.XMax,
			YMin: r.Limits.YMin,
			YMax: r.Limits.YMax,
		}),
		robot.WithInitialBattery(r.InitialBattery),
		robot.WithBatteryDrain(r.CommandDrain, r.PassiveDrain, r.DrainInterval),
		robot.WithConnectSuccessRate(r.ConnectSuccessRate),
		robot.WithConnectLatency(r.ConnectLatency.Min, r.ConnectLatency.Max),
		robot.WithCommandLatency(r.CommandLatency.Min, r.CommandLatency.Max),
		robot.WithStatusLatency(r.StatusLatency.Min, r.StatusLatency.Max),
		robot.WithIdentity(r.Model, r.Firmware),
		func(c *robot.Config) {
			if r.DefaultMoveSpeed > 0 {
				c.DefaultMoveSpeed = r.DefaultMoveSpeed
			}
			if r.DefaultRotateSpeed > 0 {
				c.DefaultRotateSpeed = r.DefaultRotateSpeed
			}
		},
		robot.WithLogger(logger),
	}
}

func (r RobotConfig) validate() error {
	cfg := robot.DefaultConfig()
	cfg.Apply(r.Options(nil)...)
	return cfg.Validate()
}
